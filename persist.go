package chronodm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// SaveAction is what a save does to the version history.
type SaveAction int

const (
	// ActionInsert creates a new record at version 1 without a snapshot.
	ActionInsert SaveAction = iota + 1
	// ActionCaptureMigration writes the pre-migration snapshot and replaces
	// the record with the migrated state.
	ActionCaptureMigration
	// ActionSkipSnapshot writes the record only; no versioned attribute changed.
	ActionSkipSnapshot
	// ActionWriteVersion edits a resolved version in its own snapshot.
	ActionWriteVersion
	// ActionCloseOut snapshots the previous state and advances the version.
	ActionCloseOut
	// ActionAmend changes the current version in place inside the editing window.
	ActionAmend
)

func (a SaveAction) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionCaptureMigration:
		return "capture_migration"
	case ActionSkipSnapshot:
		return "skip_snapshot"
	case ActionWriteVersion:
		return "write_version"
	case ActionCloseOut:
		return "close_out"
	case ActionAmend:
		return "amend"
	default:
		return fmt.Sprintf("SaveAction(%d)", int(a))
	}
}

// Stage names a step of the save pipeline. Each stage runs through the
// middleware chain with its name as the operation.
type Stage string

const (
	StageBeforeVersionSave Stage = "beforeVersionSave"
	StagePersistVersion    Stage = "persistVersion"
	StageAfterVersionSave  Stage = "afterVersionSave"
)

// saveOp carries one save through the pipeline.
type saveOp struct {
	action SaveAction
	now    time.Time

	// snapshot is written before the record, nil when none is.
	snapshot *Snapshot
	// writeRecord is false when a version edit leaves the record untouched.
	writeRecord bool
	// partial writes only the changed unversioned fields, used while the
	// Doc shows a version other than the live one.
	partial bool

	prevVersion          int
	prevUpdatedAt        time.Time
	prevVersionUpdatedAt time.Time
	touchedRecord        bool
	generatedID          bool

	inserted []*Snapshot
	written  bool
}

type saveStage struct {
	name Stage
	run  func(context.Context, *saveOp) error
}

// Save persists the record and maintains its version history. What happens
// depends on the Doc's state:
//
//   - a new record is inserted at version 1
//   - a pending migration writes its pre-migration snapshot, then the record
//   - unchanged versioned attributes write the record without a snapshot
//   - edits to a resolved version are written into that version's snapshot
//   - otherwise, inside the editing window the current version is amended;
//     outside it the previous state is closed out into a snapshot and the
//     version number advances
//
// A failed save leaves the Doc's version bookkeeping as it was.
func (d *Doc[T]) Save(ctx context.Context) error {
	if !d.rec.GetID().IsZero() {
		unlock := recordLocks.lock(d.Owner())
		defer unlock()
	}
	return d.save(ctx)
}

// TrySave is like Save but reports validation failures as false instead of
// an error.
func (d *Doc[T]) TrySave(ctx context.Context) (bool, error) {
	err := d.Save(ctx)
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		logger().Debug().Str("model", d.schema.ModelName).Err(err).Msg("save rejected")
		return false, nil
	}
	return err == nil, err
}

func (d *Doc[T]) save(ctx context.Context) error {
	op := &saveOp{
		now:                  d.now(),
		prevVersion:          d.rec.GetVersion(),
		prevUpdatedAt:        d.rec.GetUpdatedAt(),
		prevVersionUpdatedAt: d.rec.GetVersionUpdatedAt(),
	}
	stages := []saveStage{
		{StageBeforeVersionSave, d.beforeVersionSave},
		{StagePersistVersion, d.persistVersion},
		{StageAfterVersionSave, d.afterVersionSave},
	}

	for _, st := range stages {
		err := d.call(ctx, OpType(st.name), d.rec.GetVersion(), func(ctx context.Context) error {
			return st.run(ctx, op)
		})
		if err != nil {
			if !op.written {
				d.rollback(op)
			}
			return err
		}
	}
	return nil
}

// beforeVersionSave decides the save action and prepares the version
// bookkeeping, then runs the BeforeVersionSave hook.
func (d *Doc[T]) beforeVersionSave(ctx context.Context, op *saveOp) error {
	if d.IsNew() {
		op.action = ActionInsert
		op.writeRecord = true
		return d.runBeforeVersionSave(ctx, op)
	}

	current, err := attributesOf(d.rec)
	if err != nil {
		return err
	}
	versionedChanged := len(changedAttributes(d.loaded, current, d.schema.IsVersioned)) > 0
	unversionedChanged := len(changedAttributes(d.loaded, current, d.isUnversionedAttribute)) > 0
	c := d.cache

	switch {
	case c != nil && c.capture != nil:
		op.action = ActionCaptureMigration
		op.snapshot = c.capture
		op.writeRecord = true

	case !versionedChanged:
		op.action = ActionSkipSnapshot
		op.partial = d.isView()
		op.writeRecord = !op.partial || unversionedChanged

	case d.isView():
		op.action = ActionWriteVersion
		snap := c.snapshot.clone()
		snap.Attributes = versionedSubset(d.schema, current)
		snap.CreatedAt = d.rec.GetUpdatedAt()
		op.snapshot = snap
		op.partial = true
		op.writeRecord = unversionedChanged

	case d.editingWindowOpen(op.now):
		op.action = ActionAmend
		op.writeRecord = true
		d.rec.SetVersionUpdatedAt(op.now)

	default:
		op.action = ActionCloseOut
		op.writeRecord = true

		// A migration leaves a snapshot under the number it moved to. That
		// snapshot is already persisted and stays as it is.
		live := d.liveVersion()
		existing, err := d.findSnapshot(ctx, live)
		if err != nil {
			return err
		}
		if existing == nil {
			op.snapshot = newSnapshot(d.Owner(), live, versionedSubset(d.schema, d.persisted), d.liveVersionUpdatedAt())
		} else if len(changedAttributes(existing.Attributes, d.persisted, d.schema.IsVersioned)) > 0 {
			logger().Warn().
				Str("owner", d.Owner().String()).
				Int("version", live).
				Msg("closing out version whose stored snapshot differs; snapshot kept")
		}

		next, err := d.nextNumber(ctx)
		if err != nil {
			return err
		}
		d.rec.SetVersion(next)
		d.rec.SetVersionUpdatedAt(op.now)
	}

	return d.runBeforeVersionSave(ctx, op)
}

// editingWindowOpen reports whether a versioned change may amend the
// current version instead of creating a new one. Edits dated in the future
// always create a version.
func (d *Doc[T]) editingWindowOpen(now time.Time) bool {
	window := d.schema.Versioning.EditingTime
	if window <= 0 {
		return false
	}
	if d.rec.GetUpdatedAt().After(now) {
		return false
	}
	return now.Sub(d.liveVersionUpdatedAt()) < window
}

func (d *Doc[T]) runBeforeVersionSave(ctx context.Context, op *saveOp) error {
	if hook, ok := any(d.rec).(BeforeVersionSave); ok {
		if err := hook.BeforeVersionSave(ctx, d.versionEvent(op)); err != nil {
			return fmt.Errorf("chronodm: BeforeVersionSave hook failed: %w", err)
		}
	}
	return nil
}

func (d *Doc[T]) versionEvent(op *saveOp) VersionEvent {
	return VersionEvent{
		Action:   op.action,
		Owner:    d.Owner(),
		Version:  d.rec.GetVersion(),
		Snapshot: op.snapshot,
	}
}

// persistVersion writes the snapshot and the record. When the store is
// transactional both writes share a transaction; otherwise a snapshot
// inserted by a save whose record write fails is deleted again.
func (d *Doc[T]) persistVersion(ctx context.Context, op *saveOp) error {
	if op.action == ActionInsert {
		return d.insert(ctx, op)
	}

	if op.writeRecord && !op.partial {
		if err := d.prepareReplace(ctx, op); err != nil {
			return err
		}
	}

	write := func(ctx context.Context) error {
		if op.snapshot != nil {
			if err := d.writeSnapshot(ctx, op, op.snapshot); err != nil {
				return err
			}
		}
		if c := d.cache; op.action == ActionCaptureMigration && c.advanceTarget {
			if err := d.writeSnapshot(ctx, op, c.snapshot); err != nil {
				return err
			}
		}
		if !op.writeRecord {
			return nil
		}
		if op.partial {
			return d.updateUnversioned(ctx, op)
		}
		return d.call(ctx, OpUpdate, d.rec.GetVersion(), func(ctx context.Context) error {
			return d.store.ReplaceRecord(ctx, d.schema, d.rec)
		})
	}

	var err error
	if tx, ok := d.store.(Transactor); ok && tx.Transactional() {
		err = tx.WithTransaction(ctx, write)
	} else {
		err = write(ctx)
		if err != nil {
			d.compensate(ctx, op)
		}
	}
	if err != nil {
		for _, s := range op.inserted {
			s.ID = bson.NilObjectID
		}
		return err
	}
	op.written = true
	return nil
}

// prepareReplace runs the BeforeSave hook and validates the record before
// anything is written. updated_at moves to now unless the caller set it.
func (d *Doc[T]) prepareReplace(ctx context.Context, op *saveOp) error {
	if attrEqual(d.persisted["updated_at"], bson.NewDateTimeFromTime(d.rec.GetUpdatedAt())) ||
		d.rec.GetUpdatedAt().IsZero() {
		d.rec.SetUpdatedAt(op.now)
		op.touchedRecord = true
	}

	if hook, ok := any(d.rec).(BeforeSave); ok {
		if err := hook.BeforeSave(ctx); err != nil {
			return fmt.Errorf("chronodm: BeforeSave hook failed: %w", err)
		}
	}

	errs := Validate(d.rec, d.schema)
	current, err := attributesOf(d.rec)
	if err != nil {
		return err
	}
	errs = append(errs, validateImmutable(d.persisted, current, d.schema)...)
	if len(errs) > 0 {
		return ValidationErrors(errs)
	}
	return nil
}

// updateUnversioned writes the changed unversioned attributes onto the live
// record without disturbing its versioned attributes.
func (d *Doc[T]) updateUnversioned(ctx context.Context, op *saveOp) error {
	current, err := attributesOf(d.rec)
	if err != nil {
		return err
	}
	fields := bson.M{}
	for _, name := range changedAttributes(d.loaded, current, d.isUnversionedAttribute) {
		fields[name] = current[name]
	}
	if len(fields) == 0 {
		return nil
	}

	errs := validateImmutable(d.persisted, mergeInto(d.persisted, fields), d.schema)
	if len(errs) > 0 {
		return ValidationErrors(errs)
	}

	fields["updated_at"] = op.now
	err = d.call(ctx, OpUpdate, d.liveVersion(), func(ctx context.Context) error {
		return d.store.UpdateRecordFields(ctx, d.schema, d.rec.GetID(), fields)
	})
	if err != nil {
		return err
	}
	for k, v := range fields {
		d.persisted[k] = v
	}
	d.persisted["updated_at"] = bson.NewDateTimeFromTime(op.now)
	return nil
}

func mergeInto(base, fields bson.M) bson.M {
	out := cloneAttrs(base)
	if out == nil {
		out = bson.M{}
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (d *Doc[T]) writeSnapshot(ctx context.Context, op *saveOp, snap *Snapshot) error {
	if errs := ValidateSnapshot(snap); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	isNew := snap.IsNew()
	snap.UpdatedAt = op.now
	err := d.call(ctx, OpSaveSnapshot, snap.Number, func(ctx context.Context) error {
		return d.store.SaveSnapshot(ctx, snap)
	})
	if err != nil {
		if isNew {
			snap.ID = bson.NilObjectID
		}
		return err
	}
	if isNew {
		op.inserted = append(op.inserted, snap)
	}
	return nil
}

// compensate removes snapshots inserted by a save whose record write failed.
func (d *Doc[T]) compensate(ctx context.Context, op *saveOp) {
	for _, snap := range op.inserted {
		err := d.call(ctx, OpDeleteSnapshot, snap.Number, func(ctx context.Context) error {
			return d.store.DeleteSnapshot(ctx, snap)
		})
		if err != nil {
			logger().Warn().Err(err).
				Str("owner", d.Owner().String()).
				Int("version", snap.Number).
				Msg("orphaned snapshot left behind by failed save")
		}
	}
}

func (d *Doc[T]) insert(ctx context.Context, op *saveOp) error {
	rec := d.rec
	if rec.GetID().IsZero() {
		rec.SetID(bson.NewObjectID())
		op.generatedID = true
	}
	if err := applyDefaults(rec, d.schema); err != nil {
		return err
	}
	if rec.GetCreatedAt().IsZero() {
		rec.SetCreatedAt(op.now)
	}
	if rec.GetUpdatedAt().IsZero() {
		rec.SetUpdatedAt(op.now)
	}
	if rec.GetVersion() < 1 {
		rec.SetVersion(1)
	}
	if rec.GetVersionUpdatedAt().IsZero() {
		rec.SetVersionUpdatedAt(rec.GetUpdatedAt())
	}

	if hook, ok := any(rec).(BeforeCreate); ok {
		if err := hook.BeforeCreate(ctx); err != nil {
			return fmt.Errorf("chronodm: BeforeCreate hook failed: %w", err)
		}
	}

	if errs := Validate(rec, d.schema); len(errs) > 0 {
		return ValidationErrors(errs)
	}

	err := d.call(ctx, OpCreate, rec.GetVersion(), func(ctx context.Context) error {
		return d.store.InsertRecord(ctx, d.schema, rec)
	})
	if err != nil {
		return err
	}
	op.written = true
	return nil
}

// rollback undoes the in-memory bookkeeping of a save that wrote nothing.
func (d *Doc[T]) rollback(op *saveOp) {
	if op.generatedID {
		d.rec.SetID(bson.NilObjectID)
	}
	d.rec.SetVersion(op.prevVersion)
	d.rec.SetVersionUpdatedAt(op.prevVersionUpdatedAt)
	if op.touchedRecord {
		d.rec.SetUpdatedAt(op.prevUpdatedAt)
	}
}

// afterVersionSave settles the Doc's baselines and runs the after hooks.
func (d *Doc[T]) afterVersionSave(ctx context.Context, op *saveOp) error {
	if op.partial {
		if err := d.settleView(op); err != nil {
			return err
		}
	} else {
		if err := d.markPersisted(); err != nil {
			return err
		}
		d.cache = nil
	}

	logger().Debug().
		Str("model", d.schema.ModelName).
		Str("owner", d.rec.GetID().Hex()).
		Str("action", op.action.String()).
		Int("version", d.rec.GetVersion()).
		Msg("version saved")

	switch {
	case op.action == ActionInsert:
		if hook, ok := any(d.rec).(AfterCreate); ok {
			if err := hook.AfterCreate(ctx); err != nil {
				return fmt.Errorf("chronodm: AfterCreate hook failed: %w", err)
			}
		}
	case op.writeRecord && !op.partial:
		if hook, ok := any(d.rec).(AfterSave); ok {
			if err := hook.AfterSave(ctx); err != nil {
				return fmt.Errorf("chronodm: AfterSave hook failed: %w", err)
			}
		}
	}

	if hook, ok := any(d.rec).(AfterVersionSave); ok {
		if err := hook.AfterVersionSave(ctx, d.versionEvent(op)); err != nil {
			return fmt.Errorf("chronodm: AfterVersionSave hook failed: %w", err)
		}
	}
	return nil
}

// settleView keeps a Doc that saved while showing another version on that
// version, now backed by the stored snapshot.
func (d *Doc[T]) settleView(op *saveOp) error {
	prev := d.cache
	c := &versionCache{
		selector:        Number(prev.number),
		number:          prev.number,
		snapshot:        prev.snapshot,
		existingWanted:  true,
		originalVersion: d.liveVersion(),
	}
	if op.snapshot != nil {
		c.snapshot = op.snapshot
	}

	loaded, err := attributesOf(d.rec)
	if err != nil {
		return err
	}
	d.loaded = loaded
	d.cache = c
	return nil
}
