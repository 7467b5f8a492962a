package chronodm

import "context"

// BeforeCreate is called before inserting a new document.
type BeforeCreate interface {
	BeforeCreate(ctx context.Context) error
}

// AfterCreate is called after inserting a new document.
type AfterCreate interface {
	AfterCreate(ctx context.Context) error
}

// BeforeSave is called before an existing document is written back.
type BeforeSave interface {
	BeforeSave(ctx context.Context) error
}

// AfterSave is called after an existing document is written back.
type AfterSave interface {
	AfterSave(ctx context.Context) error
}

// BeforeDelete is called by Destroy before removing a document.
type BeforeDelete interface {
	BeforeDelete(ctx context.Context) error
}

// AfterDelete is called by Destroy after removing a document.
type AfterDelete interface {
	AfterDelete(ctx context.Context) error
}

// BeforeVersionSave is called once the coordinator has decided what a save
// will do to the version history, before anything is written. Returning an
// error vetoes the save and undoes any reserved version number.
type BeforeVersionSave interface {
	BeforeVersionSave(ctx context.Context, ev VersionEvent) error
}

// AfterVersionSave is called after the snapshot and record writes succeed.
type AfterVersionSave interface {
	AfterVersionSave(ctx context.Context, ev VersionEvent) error
}

// VersionEvent describes the coordinator's decision for a single save.
type VersionEvent struct {
	Action   SaveAction
	Owner    OwnerRef
	Version  int       // record version number after the save
	Snapshot *Snapshot // snapshot written by the save, or nil
}
