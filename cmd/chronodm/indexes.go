package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/dwoolworth/chronodm"
	"github.com/spf13/cobra"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the snapshot and model indexes",
	Long:  "Create the indexes the snapshot collection needs for version lookups, plus the indexes declared by every registered model. Existing indexes are left alone.",
	RunE:  runIndexes,
}

func runIndexes(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}

	collections := []string{snapshotCollection}
	for _, schema := range chronodm.GetAll() {
		collections = append(collections, schema.Collection)
	}

	db := chronodm.DB()
	for _, coll := range collections {
		existing, err := chronodm.ListExistingIndexes(ctx, db.Collection(coll))
		if err != nil {
			return fmt.Errorf("list indexes on %s: %w", coll, err)
		}
		names := make([]string, 0, len(existing))
		for name := range existing {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("%s:\n", coll)
		for _, name := range names {
			fmt.Printf("  ✓ %s\n", name)
		}
	}
	return nil
}
