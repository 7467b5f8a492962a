package chronodm

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store is the persistent document store the versioning core runs against.
// Lookups that match nothing return ErrNotFound. A snapshot write that
// collides with an existing (owner, kind, number) returns ValidationErrors.
type Store interface {
	FindRecord(ctx context.Context, schema *Schema, id bson.ObjectID, into Record) error
	InsertRecord(ctx context.Context, schema *Schema, rec Record) error
	ReplaceRecord(ctx context.Context, schema *Schema, rec Record) error
	UpdateRecordFields(ctx context.Context, schema *Schema, id bson.ObjectID, fields bson.M) error
	DeleteRecord(ctx context.Context, schema *Schema, id bson.ObjectID) error

	FindSnapshot(ctx context.Context, owner OwnerRef, number int) (*Snapshot, error)
	// LatestSnapshot returns the owner's highest-numbered snapshot.
	LatestSnapshot(ctx context.Context, owner OwnerRef) (*Snapshot, error)
	// SnapshotAt returns the latest snapshot created at or before t,
	// ordered by created_at then number, both descending.
	SnapshotAt(ctx context.Context, owner OwnerRef, t time.Time) (*Snapshot, error)
	// ListSnapshots returns every snapshot of the owner by ascending number.
	ListSnapshots(ctx context.Context, owner OwnerRef) ([]*Snapshot, error)
	// SaveSnapshot inserts a new snapshot (assigning its ID) or replaces an
	// existing one by ID.
	SaveSnapshot(ctx context.Context, s *Snapshot) error
	DeleteSnapshot(ctx context.Context, s *Snapshot) error
	DeleteSnapshots(ctx context.Context, owner OwnerRef) (int64, error)
}

// Transactor is implemented by stores that can run the snapshot and record
// writes of a save atomically.
type Transactor interface {
	// Transactional reports whether WithTransaction provides atomicity.
	Transactional() bool
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
