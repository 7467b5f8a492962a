package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dwoolworth/chronodm"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var historyCmd = &cobra.Command{
	Use:   "history <kind> <id>",
	Short: "List the snapshots of a record",
	Long:  "List every stored snapshot of the record identified by its model kind and hex ObjectID, oldest version first.",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <kind> <id> <version|time>",
	Short: "Show the attributes of one version",
	Long:  "Print the versioned attributes of one version of a record, selected by version number or by the time it was in effect (RFC 3339 or YYYY-MM-DD). The live record is shown when it is the selected version.",
	Args:  cobra.ExactArgs(3),
	RunE:  runShow,
}

func parseOwner(kind, id string) (chronodm.OwnerRef, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return chronodm.OwnerRef{}, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	// Snapshots are readable without the model's schema.
	if _, ok := chronodm.Lookup(chronodm.Kind(kind)); !ok {
		fmt.Printf("Note: kind %q is not registered in this binary.\n\n", kind)
	}
	return chronodm.OwnerRef{ID: oid, Kind: chronodm.Kind(kind)}, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	owner, err := parseOwner(args[0], args[1])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}

	snaps, err := store.ListSnapshots(ctx, owner)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Printf("No snapshots for %s.\n", owner)
		return nil
	}

	fmt.Printf("History of %s\n", owner)
	fmt.Println(strings.Repeat("=", len("History of ")+len(owner.String())))
	fmt.Println()
	for _, s := range snaps {
		fmt.Printf("  #%-4d %s  %s\n", s.Number, s.CreatedAt.UTC().Format(time.RFC3339), strings.Join(attributeNames(s), ", "))
	}
	fmt.Printf("\n%d snapshot(s)\n", len(snaps))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	owner, err := parseOwner(args[0], args[1])
	if err != nil {
		return err
	}
	sel, err := chronodm.ParseSelector(args[2])
	if err != nil {
		return err
	}
	if _, ok := sel.Version(); !ok {
		if _, ok := sel.Time(); !ok {
			return fmt.Errorf("show needs a version number or a time, got %q", sel)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}

	if _, ok := chronodm.Lookup(owner.Kind); !ok {
		fmt.Println("Showing stored snapshots only; the live record needs a registered kind.")
		fmt.Println()
		return showSnapshot(ctx, store, owner, sel)
	}

	d, err := chronodm.OpenKind(ctx, store, owner.Kind, owner.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", owner, err)
	}
	v, err := d.Version(ctx, sel)
	if err != nil {
		return fmt.Errorf("%s %s: %w", owner, sel, err)
	}

	attrs, err := versionedAttributes(v)
	if err != nil {
		return err
	}
	rec := v.Record()
	if snap := v.VersionObject(); snap != nil {
		return printVersion(owner, snap.Number, snap.CreatedAt, "", attrs)
	}
	return printVersion(owner, rec.GetVersion(), rec.GetVersionUpdatedAt(), ", live", attrs)
}

// showSnapshot prints a stored snapshot without consulting the live record.
func showSnapshot(ctx context.Context, store *chronodm.MongoStore, owner chronodm.OwnerRef, sel chronodm.Selector) error {
	var snap *chronodm.Snapshot
	var err error
	if n, ok := sel.Version(); ok {
		snap, err = store.FindSnapshot(ctx, owner, n)
	} else {
		t, _ := sel.Time()
		snap, err = store.SnapshotAt(ctx, owner, t)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", owner, sel, err)
	}
	return printVersion(owner, snap.Number, snap.CreatedAt, "", snap.Attributes)
}

// versionedAttributes returns the versioned subset of the record a Doc shows.
func versionedAttributes(d *chronodm.Doc[chronodm.Record]) (bson.M, error) {
	raw, err := bson.Marshal(d.Record())
	if err != nil {
		return nil, err
	}
	var all bson.M
	if err := bson.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	attrs := bson.M{}
	for _, name := range d.Schema().VersionedFieldNames() {
		attrs[name] = all[name]
	}
	return attrs, nil
}

func printVersion(owner chronodm.OwnerRef, number int, from time.Time, note string, attrs bson.M) error {
	out, err := bson.MarshalExtJSONIndent(attrs, false, false, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s version %d (in effect from %s%s)\n", owner, number, from.UTC().Format(time.RFC3339), note)
	fmt.Println(string(out))
	return nil
}

func attributeNames(s *chronodm.Snapshot) []string {
	names := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
