package chronodm

import (
	"context"
)

// Migrate makes the resolved version the record's live state and saves it.
// With a number, that version is resolved first; otherwise the Doc's current
// resolution is used. The state being replaced is captured in a snapshot
// under the live version number, so nothing is lost.
func (d *Doc[T]) Migrate(ctx context.Context, number ...int) error {
	if d.IsNew() {
		return ErrNewRecord
	}
	unlock := recordLocks.lock(d.Owner())
	defer unlock()

	if len(number) > 0 {
		if err := d.Checkout(ctx, Number(number[0])); err != nil {
			return err
		}
	}
	return d.migrate(ctx)
}

// Undo migrates the record to its previous version.
func (d *Doc[T]) Undo(ctx context.Context) error {
	return d.step(ctx, Previous)
}

// Redo migrates the record to its next version, creating it from the
// current state when there is none.
func (d *Doc[T]) Redo(ctx context.Context) error {
	return d.step(ctx, Next)
}

func (d *Doc[T]) step(ctx context.Context, sel Selector) error {
	if d.IsNew() {
		return ErrNewRecord
	}
	unlock := recordLocks.lock(d.Owner())
	defer unlock()

	if err := d.Checkout(ctx, sel); err != nil {
		return err
	}
	return d.migrate(ctx)
}

func (d *Doc[T]) migrate(ctx context.Context) error {
	c := d.cache
	if c == nil {
		return &MigrationError{Owner: d.Owner(), Reason: "no version has been resolved"}
	}
	if c.self {
		return &MigrationError{Owner: d.Owner(), Version: c.number, Reason: "record is already at this version"}
	}

	return d.call(ctx, OpMigrate, c.number, func(ctx context.Context) error {
		// A migration takes effect now, so a target dated in the future is
		// pulled back to the present.
		now := d.now()
		target := c.snapshot
		if target.CreatedAt.After(now) {
			target.CreatedAt = now
			c.advanceTarget = !target.IsNew()
		}
		d.rec.SetUpdatedAt(now)
		d.rec.SetVersionUpdatedAt(now)

		capture, err := d.findSnapshot(ctx, c.originalVersion)
		if err != nil {
			return err
		}
		if capture == nil {
			capture = newSnapshot(d.Owner(), c.originalVersion, nil, now)
		}
		capture.Attributes = versionedSubset(d.schema, cloneAttrs(d.persisted))
		if t := d.liveVersionUpdatedAt(); !t.IsZero() {
			capture.CreatedAt = t
		}
		c.capture = capture

		logger().Debug().
			Str("owner", d.Owner().String()).
			Int("from", c.originalVersion).
			Int("to", c.number).
			Msg("migrating record")

		if err := d.save(ctx); err != nil {
			c.capture = nil
			c.advanceTarget = false
			return err
		}
		return nil
	})
}
