package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dwoolworth/chronodm"
	"github.com/dwoolworth/chronodm/example/models"
	"github.com/rs/zerolog"
)

func main() {
	ctx := context.Background()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGODB_DB")
	if dbName == "" {
		dbName = "chronodm_example"
	}

	chronodm.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel))
	models.Trace = func(ev chronodm.VersionEvent) {
		fmt.Printf("  [version] %s -> v%d\n", ev.Action, ev.Version)
	}

	// The example drives its own clock so the editing window can be shown
	// without waiting.
	now := time.Now().UTC().Truncate(time.Second)
	opts := chronodm.Options{Now: func() time.Time { return now }}
	advance := func(d time.Duration) { now = now.Add(d) }

	// 1. Connect and create indexes
	fmt.Println("=== Connect ===")
	db, err := chronodm.Connect(ctx, uri, dbName)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	_ = db.Collection("posts").Drop(ctx)
	_ = db.Collection(chronodm.DefaultSnapshotCollection).Drop(ctx)

	store := chronodm.NewMongoStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("indexes: %v", err)
	}

	// 2. Create a post
	fmt.Println("\n=== Create ===")
	doc, err := chronodm.Wrap(store, &models.Post{
		Slug:  "hello-world",
		Title: "Hello, world",
		Body:  "First draft.",
		Tags:  []string{"Intro"},
	}, opts)
	if err != nil {
		log.Fatalf("wrap: %v", err)
	}
	if err := doc.Save(ctx); err != nil {
		log.Fatalf("create: %v", err)
	}
	post := doc.Record()
	fmt.Printf("Created post %s at version %d\n", post.ID.Hex(), post.Version)

	// 3. Edits inside the editing window amend version 1
	fmt.Println("\n=== Edit within the editing window ===")
	advance(2 * time.Minute)
	post.Body = "First draft, with a typo fixed."
	if err := doc.Save(ctx); err != nil {
		log.Fatalf("amend: %v", err)
	}
	fmt.Printf("Still at version %d\n", post.Version)

	// 4. Unversioned changes never create versions
	fmt.Println("\n=== Unversioned change ===")
	post.Status = models.StatusPublished
	post.Views = 10
	if err := doc.Save(ctx); err != nil {
		log.Fatalf("publish: %v", err)
	}
	fmt.Printf("Published, still at version %d\n", post.Version)

	// 5. Later edits close out a version each
	fmt.Println("\n=== Edit after the window ===")
	for _, body := range []string{"Second revision.", "Third revision."} {
		advance(time.Hour)
		post.Body = body
		if err := doc.Save(ctx); err != nil {
			log.Fatalf("edit: %v", err)
		}
		fmt.Printf("Now at version %d\n", post.Version)
	}

	// 6. Look back
	fmt.Println("\n=== History ===")
	history, err := doc.History(ctx)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	for _, snap := range history {
		fmt.Printf("  v%d from %s: %v\n", snap.Number, snap.CreatedAt.Format(time.RFC3339), snap.Attributes["body"])
	}

	v1, err := doc.Version(ctx, chronodm.Number(1))
	if err != nil {
		log.Fatalf("version: %v", err)
	}
	fmt.Printf("Version 1 body: %q (status %s)\n", v1.Record().Body, v1.Record().Status)

	earlier, err := doc.VersionAt(ctx, now.Add(-90*time.Minute))
	if err != nil {
		log.Fatalf("version at: %v", err)
	}
	fmt.Printf("90 minutes ago: version %d, %q\n", earlier.Record().Version, earlier.Record().Body)

	// 7. Fix a typo in an old version without touching the live record
	fmt.Println("\n=== Edit version 2 ===")
	v2, err := doc.Version(ctx, chronodm.Number(2), chronodm.Attrs{"body": "Second revision (corrected)."})
	if err != nil {
		log.Fatalf("version: %v", err)
	}
	if err := v2.Save(ctx); err != nil {
		log.Fatalf("save version: %v", err)
	}
	fmt.Printf("Live record still reads %q\n", post.Body)

	// 8. Roll back and forward
	fmt.Println("\n=== Undo / Migrate ===")
	advance(time.Minute)
	if err := doc.Undo(ctx); err != nil {
		log.Fatalf("undo: %v", err)
	}
	fmt.Printf("After undo: version %d, %q\n", post.Version, post.Body)

	advance(time.Minute)
	if err := doc.Migrate(ctx, 3); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	fmt.Printf("After migrate(3): version %d, %q\n", post.Version, post.Body)

	// 9. Deleting the post removes its history
	fmt.Println("\n=== Delete ===")
	if err := doc.Delete(ctx); err != nil {
		log.Fatalf("delete: %v", err)
	}
	left, err := store.ListSnapshots(ctx, chronodm.OwnerRef{ID: post.ID, Kind: "Post"})
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	fmt.Printf("Snapshots left: %d\n", len(left))
}
