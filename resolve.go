package chronodm

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Checkout resolves sel in place: the record takes on the selected version's
// versioned attributes, version number, and timestamps, then the versioned
// subset of overrides is applied on top. Unversioned attributes are kept.
//
// Resolving onto the record's own version only applies the overrides.
// Resolving onto a version that does not exist yet (New, Next, Previous past
// the end) prepares a fresh snapshot seeded from the current attributes;
// Number and At require the version to exist and return a
// *VersionNotFoundError otherwise. On error the record is left unchanged.
func (d *Doc[T]) Checkout(ctx context.Context, sel Selector, overrides ...Attrs) error {
	return d.call(ctx, OpResolve, 0, func(ctx context.Context) error {
		return d.resolve(ctx, sel, mergeAttrs(overrides))
	})
}

// Version is like Checkout but resolves onto a detached copy of the Doc,
// leaving the receiver untouched.
func (d *Doc[T]) Version(ctx context.Context, sel Selector, overrides ...Attrs) (*Doc[T], error) {
	c, err := d.clone()
	if err != nil {
		return nil, err
	}
	if err := c.Checkout(ctx, sel, overrides...); err != nil {
		return nil, err
	}
	return c, nil
}

// VersionAt returns a detached copy showing the version in effect at t.
func (d *Doc[T]) VersionAt(ctx context.Context, t time.Time) (*Doc[T], error) {
	return d.Version(ctx, At(t))
}

func (d *Doc[T]) resolve(ctx context.Context, sel Selector, overrides Attrs) error {
	if sel.IsZero() {
		return invalidArgument("no version selector given")
	}
	if d.IsNew() {
		return ErrNewRecord
	}
	if sel.kind == selAt {
		return d.resolveAt(ctx, sel, overrides)
	}

	c := &versionCache{
		selector:        sel,
		overrides:       overrides,
		originalVersion: d.liveVersion(),
	}

	current := d.rec.GetVersion()
	var number int
	switch sel.kind {
	case selNext:
		number = current + 1
	case selPrevious:
		number = current - 1
	case selNew:
		n, err := d.nextNumber(ctx)
		if err != nil {
			return err
		}
		number = n
	case selNumber:
		number = sel.number
		c.existingWanted = true
	}
	if number < 1 {
		number = 1
	}
	c.number = number

	// Asking a view for the live version drops the view; asking it for the
	// version it shows keeps the view.
	if d.isView() {
		if number == c.originalVersion {
			return d.resolveSelf(c, true)
		}
		if number == d.cache.number {
			return d.reapplyView(c)
		}
	} else if number == c.originalVersion {
		return d.resolveSelf(c, false)
	}

	snap, err := d.findSnapshot(ctx, number)
	if err != nil {
		return err
	}
	if snap == nil {
		if c.existingWanted {
			return &VersionNotFoundError{Owner: d.Owner(), Number: number}
		}
		attrs, err := attributesOf(d.rec)
		if err != nil {
			return err
		}
		snap = newSnapshot(d.Owner(), number, versionedSubset(d.schema, attrs), d.rec.GetUpdatedAt())
	}
	c.snapshot = snap
	return d.applyResolution(c, snap.Attributes, snap.CreatedAt)
}

// resolveAt picks the version in effect at the cache's time: the live
// version if it was established at or before t and is no older than the
// latest snapshot created by then, otherwise that snapshot.
func (d *Doc[T]) resolveAt(ctx context.Context, sel Selector, overrides Attrs) error {
	t := sel.at
	if t.IsZero() {
		return invalidArgument("no time given")
	}

	snap, err := d.snapshotAt(ctx, t)
	if err != nil {
		return err
	}

	c := &versionCache{
		selector:        sel,
		overrides:       overrides,
		originalVersion: d.liveVersion(),
		existingWanted:  true,
	}

	own := d.liveVersionUpdatedAt()
	if !own.After(t) && (snap == nil || !own.Before(snap.CreatedAt)) {
		c.number = c.originalVersion
		return d.resolveSelf(c, d.isView())
	}
	if snap == nil {
		return &VersionNotFoundError{Owner: d.Owner(), At: t}
	}

	c.number = snap.Number
	if snap.Number == c.originalVersion {
		// A snapshot sharing the live number predates a migration. Show its
		// content as an edit of the live version.
		if err := d.resolveSelf(c, d.isView()); err != nil {
			return err
		}
		edits := versionedSubset(d.schema, snap.Attributes)
		for k, v := range restrictAttrs(d.schema, overrides, d.schema.IsVersioned) {
			edits[k] = v
		}
		return applyAttributes(d.rec, d.schema, edits)
	}

	c.snapshot = snap
	return d.applyResolution(c, snap.Attributes, snap.CreatedAt)
}

// resolveSelf completes a resolution onto the record's own version. When
// restore is set the live state is put back first.
func (d *Doc[T]) resolveSelf(c *versionCache, restore bool) error {
	c.self = true
	overrides := restrictAttrs(d.schema, c.overrides, d.schema.IsVersioned)

	if restore {
		if err := d.restoreLive(); err != nil {
			return err
		}
	}
	if err := applyAttributes(d.rec, d.schema, overrides); err != nil {
		return err
	}
	d.cache = c
	return nil
}

// reapplyView repeats a resolution onto the version the Doc already shows.
// Pending edits and the baseline are kept and only the overrides are applied.
func (d *Doc[T]) reapplyView(c *versionCache) error {
	c.snapshot = d.cache.snapshot
	overrides := restrictAttrs(d.schema, c.overrides, d.schema.IsVersioned)
	if err := applyAttributes(d.rec, d.schema, overrides); err != nil {
		return err
	}
	d.cache = c
	return nil
}

// applyResolution moves the record onto a non-self version. The baseline
// becomes the version's own state so that only later edits and overrides
// count as changes.
func (d *Doc[T]) applyResolution(c *versionCache, snapshotAttrs bson.M, createdAt time.Time) error {
	base := resolvedAttributes(d.schema, snapshotAttrs, nil)
	overrides := restrictAttrs(d.schema, c.overrides, d.schema.IsVersioned)

	// Convert on a copy first so that a bad value leaves the record as is.
	trial, err := cloneRecord(d.rec)
	if err != nil {
		return err
	}
	if err := applyAttributes(trial, d.schema, base); err != nil {
		return err
	}
	if err := applyAttributes(trial, d.schema, overrides); err != nil {
		return err
	}

	if err := applyAttributes(d.rec, d.schema, base); err != nil {
		return err
	}
	d.rec.SetVersion(c.number)
	if !createdAt.IsZero() {
		d.rec.SetUpdatedAt(createdAt)
		d.rec.SetVersionUpdatedAt(createdAt)
	}

	loaded, err := attributesOf(d.rec)
	if err != nil {
		return err
	}
	d.loaded = loaded
	if err := applyAttributes(d.rec, d.schema, overrides); err != nil {
		return err
	}
	d.cache = c
	return nil
}
