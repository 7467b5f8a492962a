package chronodm

import (
	"context"
	"fmt"
)

// Delete removes the record and all of its snapshots without running hooks.
// While the Doc shows another version, only that version's snapshot is
// removed and the Doc returns to the live record.
func (d *Doc[T]) Delete(ctx context.Context) error {
	return d.remove(ctx, false)
}

// Destroy is like Delete but runs the BeforeDelete and AfterDelete hooks.
func (d *Doc[T]) Destroy(ctx context.Context) error {
	return d.remove(ctx, true)
}

func (d *Doc[T]) remove(ctx context.Context, hooks bool) error {
	if d.IsNew() {
		return ErrNewRecord
	}
	unlock := recordLocks.lock(d.Owner())
	defer unlock()

	if d.isView() {
		return d.removeVersion(ctx)
	}

	if hooks {
		if hook, ok := any(d.rec).(BeforeDelete); ok {
			if err := hook.BeforeDelete(ctx); err != nil {
				return fmt.Errorf("chronodm: BeforeDelete hook failed: %w", err)
			}
		}
	}

	// Snapshots go first; if they cannot be removed the record stays.
	var removed int64
	err := d.call(ctx, OpDeleteSnapshots, 0, func(ctx context.Context) error {
		var err error
		removed, err = d.store.DeleteSnapshots(ctx, d.Owner())
		return err
	})
	if err != nil {
		return fmt.Errorf("chronodm: removing versions of %s: %w", d.Owner(), err)
	}

	err = d.call(ctx, OpDelete, d.liveVersion(), func(ctx context.Context) error {
		return d.store.DeleteRecord(ctx, d.schema, d.rec.GetID())
	})
	if err != nil {
		return err
	}

	logger().Debug().
		Str("owner", d.Owner().String()).
		Int64("snapshots", removed).
		Msg("record deleted")

	d.persisted = nil
	d.loaded = nil
	d.cache = nil

	if hooks {
		if hook, ok := any(d.rec).(AfterDelete); ok {
			if err := hook.AfterDelete(ctx); err != nil {
				return fmt.Errorf("chronodm: AfterDelete hook failed: %w", err)
			}
		}
	}
	return nil
}

// removeVersion deletes the snapshot the Doc currently shows.
func (d *Doc[T]) removeVersion(ctx context.Context) error {
	snap := d.cache.snapshot
	if snap.IsNew() {
		return &VersionNotFoundError{Owner: d.Owner(), Number: snap.Number}
	}

	err := d.call(ctx, OpDeleteSnapshot, snap.Number, func(ctx context.Context) error {
		return d.store.DeleteSnapshot(ctx, snap)
	})
	if err != nil {
		return err
	}

	logger().Debug().
		Str("owner", d.Owner().String()).
		Int("version", snap.Number).
		Msg("version deleted")
	return d.restoreLive()
}
