package chronodm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultSnapshotCollection is the collection snapshots are stored in.
const DefaultSnapshotCollection = "versions"

// MongoStoreOptions configures a MongoStore.
type MongoStoreOptions struct {
	// SnapshotCollection overrides DefaultSnapshotCollection.
	SnapshotCollection string
	// Transactions runs the snapshot and record writes of a save in one
	// transaction. Requires a replica set or sharded cluster.
	Transactions bool
}

// MongoStore is a Store backed by MongoDB. Records live in their schema's
// collection, snapshots of every kind share one collection.
type MongoStore struct {
	db   *mongo.Database
	opts MongoStoreOptions
}

// NewMongoStore returns a store on db. A nil db falls back to the database
// set by Connect at call time.
func NewMongoStore(db *mongo.Database, opts ...MongoStoreOptions) *MongoStore {
	s := &MongoStore{db: db}
	if len(opts) > 0 {
		s.opts = opts[0]
	}
	if s.opts.SnapshotCollection == "" {
		s.opts.SnapshotCollection = DefaultSnapshotCollection
	}
	return s
}

func (s *MongoStore) database() (*mongo.Database, error) {
	return getDB(s.db)
}

func (s *MongoStore) records(schema *Schema) (*mongo.Collection, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}
	return db.Collection(schema.Collection), nil
}

func (s *MongoStore) snapshots() (*mongo.Collection, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}
	return db.Collection(s.opts.SnapshotCollection), nil
}

func ownerFilter(owner OwnerRef) bson.D {
	return bson.D{
		{Key: "owner_id", Value: owner.ID},
		{Key: "owner_kind", Value: owner.Kind},
	}
}

func (s *MongoStore) FindRecord(ctx context.Context, schema *Schema, id bson.ObjectID, into Record) error {
	coll, err := s.records(schema)
	if err != nil {
		return err
	}
	if err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(into); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("chronodm: find %s failed: %w", schema.ModelName, err)
	}
	return nil
}

func (s *MongoStore) InsertRecord(ctx context.Context, schema *Schema, rec Record) error {
	coll, err := s.records(schema)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ValidationErrors{{Field: "_id", Message: "duplicate key"}}
		}
		return fmt.Errorf("chronodm: insert %s failed: %w", schema.ModelName, err)
	}
	return nil
}

func (s *MongoStore) ReplaceRecord(ctx context.Context, schema *Schema, rec Record) error {
	coll, err := s.records(schema)
	if err != nil {
		return err
	}
	result, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: rec.GetID()}}, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ValidationErrors{{Field: "_id", Message: "duplicate key"}}
		}
		return fmt.Errorf("chronodm: update %s failed: %w", schema.ModelName, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdateRecordFields(ctx context.Context, schema *Schema, id bson.ObjectID, fields bson.M) error {
	coll, err := s.records(schema)
	if err != nil {
		return err
	}
	result, err := coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return fmt.Errorf("chronodm: update %s fields failed: %w", schema.ModelName, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteRecord(ctx context.Context, schema *Schema, id bson.ObjectID) error {
	coll, err := s.records(schema)
	if err != nil {
		return err
	}
	result, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("chronodm: delete %s failed: %w", schema.ModelName, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findSnapshot(ctx context.Context, filter bson.D, opts ...options.Lister[options.FindOneOptions]) (*Snapshot, error) {
	coll, err := s.snapshots()
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := coll.FindOne(ctx, filter, opts...).Decode(&snap); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chronodm: find snapshot failed: %w", err)
	}
	return &snap, nil
}

func (s *MongoStore) FindSnapshot(ctx context.Context, owner OwnerRef, number int) (*Snapshot, error) {
	filter := append(ownerFilter(owner), bson.E{Key: "number", Value: number})
	return s.findSnapshot(ctx, filter)
}

func (s *MongoStore) LatestSnapshot(ctx context.Context, owner OwnerRef) (*Snapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "number", Value: -1}})
	return s.findSnapshot(ctx, ownerFilter(owner), opts)
}

func (s *MongoStore) SnapshotAt(ctx context.Context, owner OwnerRef, t time.Time) (*Snapshot, error) {
	filter := append(ownerFilter(owner), bson.E{Key: "created_at", Value: bson.D{{Key: "$lte", Value: t}}})
	opts := options.FindOne().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "number", Value: -1},
	})
	return s.findSnapshot(ctx, filter, opts)
}

func (s *MongoStore) ListSnapshots(ctx context.Context, owner OwnerRef) ([]*Snapshot, error) {
	coll, err := s.snapshots()
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, ownerFilter(owner), options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("chronodm: list snapshots failed: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var snaps []*Snapshot
	if err := cursor.All(ctx, &snaps); err != nil {
		return nil, fmt.Errorf("chronodm: cursor decode failed: %w", err)
	}
	return snaps, nil
}

func (s *MongoStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	coll, err := s.snapshots()
	if err != nil {
		return err
	}

	if snap.IsNew() {
		snap.ID = bson.NewObjectID()
		if _, err := coll.InsertOne(ctx, snap); err != nil {
			snap.ID = bson.NilObjectID
			return snapshotWriteError(err)
		}
		return nil
	}

	result, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: snap.ID}}, snap)
	if err != nil {
		return snapshotWriteError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func snapshotWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ValidationErrors{{Field: "number", Message: "version number is already taken"}}
	}
	return fmt.Errorf("chronodm: write snapshot failed: %w", err)
}

func (s *MongoStore) DeleteSnapshot(ctx context.Context, snap *Snapshot) error {
	coll, err := s.snapshots()
	if err != nil {
		return err
	}
	result, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: snap.ID}})
	if err != nil {
		return fmt.Errorf("chronodm: delete snapshot failed: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteSnapshots(ctx context.Context, owner OwnerRef) (int64, error) {
	coll, err := s.snapshots()
	if err != nil {
		return 0, err
	}
	result, err := coll.DeleteMany(ctx, ownerFilter(owner))
	if err != nil {
		return 0, fmt.Errorf("chronodm: delete snapshots failed: %w", err)
	}
	return result.DeletedCount, nil
}

// Transactional reports whether saves run their writes in a transaction.
func (s *MongoStore) Transactional() bool {
	return s.opts.Transactions
}

// WithTransaction executes fn within a MongoDB transaction. Store calls made
// with the context passed to fn participate in it.
//
// If fn returns an error, the transaction is aborted. If fn succeeds, the
// transaction is committed. Transient transaction errors are retried
// automatically by the driver.
func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	db, err := s.database()
	if err != nil {
		return err
	}

	client := db.Client()
	if client == nil {
		return ErrNoDatabase
	}

	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("chronodm: failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	if err != nil {
		return fmt.Errorf("chronodm: transaction failed: %w", err)
	}
	return nil
}
