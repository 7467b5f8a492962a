package chronodm

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	dbMu     sync.RWMutex
	globalDB *mongo.Database
)

// Connect establishes a connection to MongoDB and returns the database handle.
// It also stores the database reference globally as the fallback for
// MongoStore and EnsureIndexes.
func Connect(ctx context.Context, uri string, dbName string) (*mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("chronodm: failed to connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("chronodm: failed to ping: %w", err)
	}

	db := client.Database(dbName)
	SetDB(db)
	return db, nil
}

// SetDB replaces the globally stored database reference.
func SetDB(db *mongo.Database) {
	dbMu.Lock()
	globalDB = db
	dbMu.Unlock()
}

// DB returns the globally stored database reference.
// Returns nil if Connect has not been called.
func DB() *mongo.Database {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return globalDB
}

// getDB prefers an explicit database over the global one.
func getDB(db *mongo.Database) (*mongo.Database, error) {
	if db != nil {
		return db, nil
	}
	if db = DB(); db != nil {
		return db, nil
	}
	return nil, ErrNoDatabase
}
