package chronodm

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// snapshotIndexes back the version number uniqueness and the lookups the
// resolver performs.
var snapshotIndexes = []CompoundIndex{
	NewUniqueCompoundIndex("owner_id", "owner_kind", "number"),
	NewCompoundIndex("owner_id", "owner_kind", "created_at"),
}

// EnsureIndexes creates the snapshot collection's indexes and the indexes
// declared by every registered schema. Existing indexes are left alone.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	db, err := s.database()
	if err != nil {
		return err
	}

	if err := ensureIndexes(ctx, db.Collection(s.opts.SnapshotCollection), nil, snapshotIndexes); err != nil {
		return err
	}
	for _, schema := range GetAll() {
		if err := ensureIndexes(ctx, db.Collection(schema.Collection), schema.Fields, schema.CompoundIndexes); err != nil {
			return err
		}
	}
	return nil
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection, fields []FieldSchema, compound []CompoundIndex) error {
	existing, err := ListExistingIndexes(ctx, coll)
	if err != nil {
		return &EnforcementError{
			Collection: coll.Name(),
			Message:    fmt.Sprintf("failed to list indexes: %v", err),
		}
	}

	var models []mongo.IndexModel
	for _, field := range fields {
		if !field.Unique && !field.Index {
			continue
		}
		if existing[field.BSONName+"_1"] {
			continue
		}
		model := mongo.IndexModel{Keys: bson.D{{Key: field.BSONName, Value: 1}}}
		if field.Unique {
			model.Options = options.Index().SetUnique(true)
		}
		models = append(models, model)
	}

	for _, ci := range compound {
		if existing[compoundIndexName(ci)] {
			continue
		}
		keys := bson.D{}
		for _, f := range ci.Fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		model := mongo.IndexModel{Keys: keys}
		if ci.Unique {
			model.Options = options.Index().SetUnique(true)
		}
		models = append(models, model)
	}

	if len(models) == 0 {
		return nil
	}
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return &EnforcementError{
			Collection: coll.Name(),
			Message:    fmt.Sprintf("failed to create indexes: %v", err),
		}
	}
	return nil
}

// ListExistingIndexes returns a set of index names that exist on the collection.
func ListExistingIndexes(ctx context.Context, coll *mongo.Collection) (map[string]bool, error) {
	result := make(map[string]bool)

	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var idx bson.M
		if err := cursor.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			result[name] = true
		}
	}

	return result, nil
}

func compoundIndexName(ci CompoundIndex) string {
	parts := make([]string, 0, len(ci.Fields)*2)
	for _, f := range ci.Fields {
		parts = append(parts, f, "1")
	}
	return strings.Join(parts, "_")
}
