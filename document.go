package chronodm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Options configures a Doc.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Doc is a versioned handle on one record. It tracks the record's persisted
// state, the baseline used for change detection, and the transient state of
// the current version resolution.
//
// A Doc is not safe for concurrent use. Saves, migrations, and deletions of
// the same record through different Docs are serialised within the process.
type Doc[T Record] struct {
	rec    T
	schema *Schema
	store  Store
	now    func() time.Time

	// persisted is the record as last read from or written to the store,
	// nil while the record is new.
	persisted bson.M
	// loaded is the change-tracking baseline: the persisted state, or the
	// resolved version's state before overrides.
	loaded bson.M
	cache  *versionCache
}

// Open loads the record with the given ID from the store.
func Open[T Record](ctx context.Context, store Store, id bson.ObjectID, opts ...Options) (*Doc[T], error) {
	schema, err := schemaOf[T]()
	if err != nil {
		return nil, err
	}

	return open(ctx, newDoc(store, schema.newRecord().(T), schema, opts), id)
}

// OpenKind loads a record of a registered kind without naming its Go type,
// for tools that only know the kind.
func OpenKind(ctx context.Context, store Store, kind Kind, id bson.ObjectID, opts ...Options) (*Doc[Record], error) {
	schema, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("chronodm: kind %q is not registered", kind)
	}
	return open(ctx, newDoc(store, schema.newRecord(), schema, opts), id)
}

func open[T Record](ctx context.Context, d *Doc[T], id bson.ObjectID) (*Doc[T], error) {
	err := d.call(ctx, OpFind, 0, func(ctx context.Context) error {
		return d.store.FindRecord(ctx, d.schema, id, d.rec)
	})
	if err != nil {
		return nil, err
	}
	if err := d.markPersisted(); err != nil {
		return nil, err
	}
	return d, nil
}

// Wrap returns a Doc around rec. A record with a zero ID is treated as new;
// otherwise rec is taken to be the record as currently stored.
func Wrap[T Record](store Store, rec T, opts ...Options) (*Doc[T], error) {
	schema, err := schemaFor(rec)
	if err != nil {
		return nil, err
	}

	d := newDoc(store, rec, schema, opts)
	if !rec.GetID().IsZero() {
		if err := d.markPersisted(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func newDoc[T Record](store Store, rec T, schema *Schema, opts []Options) *Doc[T] {
	d := &Doc[T]{rec: rec, schema: schema, store: store, now: time.Now}
	for _, o := range opts {
		if o.Now != nil {
			d.now = o.Now
		}
	}
	return d
}

func schemaOf[T Record]() (*Schema, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("chronodm: record type %s must be a pointer", t)
	}
	return schemaFor(reflect.New(t.Elem()).Interface())
}

// Record returns the wrapped record. It is the same pointer across
// resolutions and saves.
func (d *Doc[T]) Record() T { return d.rec }

// Schema returns the record's registered schema.
func (d *Doc[T]) Schema() *Schema { return d.schema }

// Kind returns the record's model kind.
func (d *Doc[T]) Kind() Kind { return d.schema.Kind }

// Owner returns the reference snapshots of this record carry.
func (d *Doc[T]) Owner() OwnerRef {
	return OwnerRef{ID: d.rec.GetID(), Kind: d.schema.Kind}
}

// IsNew reports whether the record has never been saved.
func (d *Doc[T]) IsNew() bool { return d.persisted == nil }

// VersionObject returns the snapshot the current resolution points at, or
// nil when nothing is resolved or the record is on its own version.
func (d *Doc[T]) VersionObject() *Snapshot {
	if !d.cache.resolved() {
		return nil
	}
	return d.cache.snapshot
}

// IsNewVersion reports whether the resolved version does not exist in the
// store yet and would be created by the next save.
func (d *Doc[T]) IsNewVersion() bool {
	return d.cache.resolved() && d.cache.snapshot.IsNew()
}

// OriginalVersionNumber returns the version number of the live record,
// regardless of which version the Doc currently shows.
func (d *Doc[T]) OriginalVersionNumber() int {
	if d.persisted == nil {
		return d.rec.GetVersion()
	}
	return d.liveVersion()
}

// VersionedAttributesChanged reports whether any versioned attribute differs
// from the baseline.
func (d *Doc[T]) VersionedAttributesChanged() bool {
	changed, err := d.changed(d.schema.IsVersioned)
	return err == nil && len(changed) > 0
}

// UnversionedAttributesChanged reports whether any unversioned attribute,
// other than the bookkeeping fields, differs from the baseline.
func (d *Doc[T]) UnversionedAttributesChanged() bool {
	changed, err := d.changed(d.isUnversionedAttribute)
	return err == nil && len(changed) > 0
}

func (d *Doc[T]) isUnversionedAttribute(name string) bool {
	return !d.schema.IsVersioned(name) && !isUnversionedDefault(name)
}

func (d *Doc[T]) changed(include func(string) bool) ([]string, error) {
	current, err := attributesOf(d.rec)
	if err != nil {
		return nil, err
	}
	return changedAttributes(d.loaded, current, include), nil
}

// HasVersion reports whether version n exists, either as the live record's
// own version or as a stored snapshot.
func (d *Doc[T]) HasVersion(ctx context.Context, n int) (bool, error) {
	if n < 1 {
		return false, invalidArgument("version number %d is below 1", n)
	}
	if d.IsNew() {
		return false, ErrNewRecord
	}
	if n == d.liveVersion() {
		return true, nil
	}
	snap, err := d.findSnapshot(ctx, n)
	if err != nil {
		return false, err
	}
	return snap != nil, nil
}

// History returns every stored snapshot of the record by ascending number.
// The live version is not included.
func (d *Doc[T]) History(ctx context.Context) ([]*Snapshot, error) {
	if d.IsNew() {
		return nil, ErrNewRecord
	}
	var snaps []*Snapshot
	err := d.call(ctx, OpListSnapshots, 0, func(ctx context.Context) error {
		var err error
		snaps, err = d.store.ListSnapshots(ctx, d.Owner())
		return err
	})
	return snaps, err
}

// ReloadVersion re-reads the record from the store. An active resolution
// onto another version is repeated against the fresh state with the same
// selector and overrides.
func (d *Doc[T]) ReloadVersion(ctx context.Context) error {
	if d.IsNew() {
		return ErrNewRecord
	}

	fresh := d.schema.newRecord().(T)
	err := d.call(ctx, OpFind, 0, func(ctx context.Context) error {
		return d.store.FindRecord(ctx, d.schema, d.rec.GetID(), fresh)
	})
	if err != nil {
		return err
	}
	reflect.ValueOf(d.rec).Elem().Set(reflect.ValueOf(fresh).Elem())
	if err := d.markPersisted(); err != nil {
		return err
	}

	prev := d.cache
	d.cache = nil
	if prev == nil || prev.self {
		return nil
	}
	return d.resolve(ctx, prev.selector, prev.overrides)
}

// markPersisted makes the record's current state both the persisted state
// and the change-tracking baseline.
func (d *Doc[T]) markPersisted() error {
	attrs, err := attributesOf(d.rec)
	if err != nil {
		return err
	}
	d.persisted = attrs
	d.loaded = cloneAttrs(attrs)
	return nil
}

// restoreLive puts the persisted state back onto the record, dropping any
// resolution.
func (d *Doc[T]) restoreLive() error {
	attrs := bson.M{}
	for _, f := range d.schema.Fields {
		attrs[f.BSONName] = d.persisted[f.BSONName]
	}
	if err := applyAttributes(d.rec, d.schema, attrs); err != nil {
		return err
	}
	d.loaded = cloneAttrs(d.persisted)
	d.cache = nil
	return nil
}

// isView reports whether the Doc shows a version other than the live one.
func (d *Doc[T]) isView() bool {
	return d.cache.resolved()
}

func (d *Doc[T]) liveVersion() int {
	return intAttr(d.persisted, "version")
}

// liveVersionUpdatedAt is the time the live version's content was last
// established, falling back to updated_at for records that predate it.
func (d *Doc[T]) liveVersionUpdatedAt() time.Time {
	if t := timeAttr(d.persisted, "version_updated_at"); !t.IsZero() {
		return t
	}
	return timeAttr(d.persisted, "updated_at")
}

// clone returns an independent Doc over a deep copy of the record.
func (d *Doc[T]) clone() (*Doc[T], error) {
	rec, err := cloneRecord(d.rec)
	if err != nil {
		return nil, err
	}
	c := &Doc[T]{
		rec:       rec,
		schema:    d.schema,
		store:     d.store,
		now:       d.now,
		persisted: cloneAttrs(d.persisted),
		loaded:    cloneAttrs(d.loaded),
	}
	if d.cache != nil {
		cc := *d.cache
		cc.snapshot = d.cache.snapshot.clone()
		cc.capture = d.cache.capture.clone()
		c.cache = &cc
	}
	return c, nil
}

func (d *Doc[T]) opInfo(op OpType, version int) *OpInfo {
	return &OpInfo{
		Operation:  op,
		Collection: d.schema.Collection,
		ModelName:  d.schema.ModelName,
		Model:      d.rec,
		Owner:      d.Owner(),
		Version:    version,
	}
}

// call runs fn through the middleware chain.
func (d *Doc[T]) call(ctx context.Context, op OpType, version int, fn func(context.Context) error) error {
	return runMiddleware(ctx, d.opInfo(op, version), fn)
}

// findSnapshot returns the snapshot numbered n, or nil if there is none.
func (d *Doc[T]) findSnapshot(ctx context.Context, n int) (*Snapshot, error) {
	var snap *Snapshot
	err := d.call(ctx, OpFindSnapshot, n, func(ctx context.Context) error {
		var err error
		snap, err = d.store.FindSnapshot(ctx, d.Owner(), n)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

func (d *Doc[T]) latestSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := d.call(ctx, OpFindSnapshot, 0, func(ctx context.Context) error {
		var err error
		snap, err = d.store.LatestSnapshot(ctx, d.Owner())
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

func (d *Doc[T]) snapshotAt(ctx context.Context, t time.Time) (*Snapshot, error) {
	var snap *Snapshot
	err := d.call(ctx, OpFindSnapshot, 0, func(ctx context.Context) error {
		var err error
		snap, err = d.store.SnapshotAt(ctx, d.Owner(), t)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

// nextNumber is one past the highest of the record's version and every
// stored snapshot number.
func (d *Doc[T]) nextNumber(ctx context.Context) (int, error) {
	latest, err := d.latestSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	n := d.rec.GetVersion()
	if latest != nil && latest.Number > n {
		n = latest.Number
	}
	return n + 1, nil
}
