package chronodm

// versionCache is the transient state of one resolution on one Doc.
// It is rebuilt at the start of every resolution and dropped after every
// successful save; it is never persisted.
type versionCache struct {
	selector  Selector
	overrides Attrs

	// number is the resolved target version number.
	number int
	// snapshot is the resolved snapshot, nil in the self-version case.
	snapshot *Snapshot
	// self marks a resolution onto the record's own current version.
	self bool
	// existingWanted marks an explicit request for an existing version.
	existingWanted bool
	// originalVersion is the live record's version number before resolution.
	originalVersion int

	// capture is the pre-migration snapshot a pending migration will write.
	capture *Snapshot
	// advanceTarget marks a persisted migration target whose future
	// timestamp was pulled back to now.
	advanceTarget bool
}

// resolved reports whether the cache holds a completed resolution onto a
// version other than the record's own.
func (c *versionCache) resolved() bool {
	return c != nil && !c.self && c.snapshot != nil
}
