package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dwoolworth/chronodm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	mongoURI           string
	dbName             string
	snapshotCollection string
	logLevel           string
	timeout            time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chronodm",
	Short: "chronodm — temporal versioning for MongoDB documents",
	Long:  "Inspect versioned model schemas and browse the snapshot history of records stored by chronodm.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		chronodm.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).
			With().Timestamp().Logger())
		return nil
	},
}

func init() {
	defaultURI := os.Getenv("MONGODB_URI")
	if defaultURI == "" {
		defaultURI = "mongodb://localhost:27017"
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&mongoURI, "uri", defaultURI, "MongoDB connection URI (defaults to $MONGODB_URI)")
	flags.StringVar(&dbName, "db", os.Getenv("MONGODB_DB"), "MongoDB database name (defaults to $MONGODB_DB)")
	flags.StringVar(&snapshotCollection, "collection", chronodm.DefaultSnapshotCollection, "Collection holding snapshots")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for database operations")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(indexesCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore connects to the configured database and returns a store on it.
func openStore(ctx context.Context) (*chronodm.MongoStore, error) {
	if dbName == "" {
		return nil, fmt.Errorf("--db flag is required")
	}
	db, err := chronodm.Connect(ctx, mongoURI, dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return chronodm.NewMongoStore(db, chronodm.MongoStoreOptions{SnapshotCollection: snapshotCollection}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
