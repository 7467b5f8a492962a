// Package chronodm adds temporal versioning to MongoDB documents.
//
// A registered model embeds Model. Every versioned update closes out the
// previous state into an immutable Snapshot stored in a separate collection,
// and a Doc can view, edit, or roll the record back to any of those states.
package chronodm

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Model is the base struct that all versioned models should embed inline.
// It carries identity, timestamps, and the version bookkeeping fields.
type Model struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
	Version          int           `bson:"version"`
	VersionUpdatedAt time.Time     `bson:"version_updated_at"`
}

// Record is the capability the versioning algorithms operate on.
// Any struct embedding Model satisfies it through a pointer.
type Record interface {
	GetID() bson.ObjectID
	SetID(bson.ObjectID)
	GetCreatedAt() time.Time
	SetCreatedAt(time.Time)
	GetUpdatedAt() time.Time
	SetUpdatedAt(time.Time)
	GetVersion() int
	SetVersion(int)
	GetVersionUpdatedAt() time.Time
	SetVersionUpdatedAt(time.Time)
}

func (m *Model) GetID() bson.ObjectID { return m.ID }
func (m *Model) SetID(id bson.ObjectID) { m.ID = id }
func (m *Model) GetCreatedAt() time.Time { return m.CreatedAt }
func (m *Model) SetCreatedAt(t time.Time) { m.CreatedAt = t }
func (m *Model) GetUpdatedAt() time.Time { return m.UpdatedAt }
func (m *Model) SetUpdatedAt(t time.Time) { m.UpdatedAt = t }
func (m *Model) GetVersion() int { return m.Version }
func (m *Model) SetVersion(n int) { m.Version = n }
func (m *Model) GetVersionUpdatedAt() time.Time { return m.VersionUpdatedAt }
func (m *Model) SetVersionUpdatedAt(t time.Time) { m.VersionUpdatedAt = t }

// VersioningOptions configures versioning behavior for a model type.
type VersioningOptions struct {
	// EditingTime suppresses new snapshots for edits made within this
	// duration of the last versioned change. Future-dated edits always
	// snapshot. Zero disables the window.
	EditingTime time.Duration
}

// EditingTimeSeconds returns VersioningOptions with an editing window of n seconds.
func EditingTimeSeconds(n int) VersioningOptions {
	return VersioningOptions{EditingTime: time.Duration(n) * time.Second}
}

// VersionedAttributeLister is implemented by models that restrict versioning
// to an explicit allow-list of bson field names.
type VersionedAttributeLister interface {
	VersionedAttributes() []string
}

// VersioningConfigurable is implemented by models that declare versioning options.
type VersioningConfigurable interface {
	VersioningOptions() VersioningOptions
}
