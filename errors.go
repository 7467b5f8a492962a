package chronodm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document is not found.
	ErrNotFound = errors.New("chronodm: document not found")

	// ErrNoDatabase is returned when no database connection is available.
	ErrNoDatabase = errors.New("chronodm: no database connection (call Connect first)")

	// ErrInvalidArgument is returned for a missing or malformed version selector,
	// a version number below 1, or a zero or unparsable time.
	ErrInvalidArgument = errors.New("chronodm: invalid argument")

	// ErrNewRecord is returned when a version operation is attempted on a
	// record that has never been saved.
	ErrNewRecord = errors.New("chronodm: record has not been saved")

	// ErrVersionNotFound matches every *VersionNotFoundError.
	ErrVersionNotFound = errors.New("chronodm: version not found")

	// ErrMigration matches every *MigrationError.
	ErrMigration = errors.New("chronodm: migration failed")
)

// VersionNotFoundError indicates a selector resolved to neither an existing
// snapshot nor the record's current version.
type VersionNotFoundError struct {
	Owner  OwnerRef
	Number int       // requested number, zero for time lookups
	At     time.Time // requested time, zero for number lookups
}

func (e *VersionNotFoundError) Error() string {
	if !e.At.IsZero() {
		return fmt.Sprintf("chronodm: no version of %s exists at %s", e.Owner, e.At.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("chronodm: version %d of %s not found", e.Number, e.Owner)
}

func (e *VersionNotFoundError) Is(target error) bool {
	return target == ErrVersionNotFound
}

// MigrationError indicates Migrate had nothing to migrate to, or was asked
// to migrate a record onto its own current version.
type MigrationError struct {
	Owner   OwnerRef
	Version int
	Reason  string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("chronodm: cannot migrate %s to version %d: %s", e.Owner, e.Version, e.Reason)
}

func (e *MigrationError) Is(target error) bool {
	return target == ErrMigration
}

// ValidationError indicates a field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// ValidationErrors is a slice of ValidationError that implements error.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// EnforcementError indicates a failure to create a required index.
type EnforcementError struct {
	Collection string
	Message    string
}

func (e *EnforcementError) Error() string {
	return fmt.Sprintf("enforcement error on %s: %s", e.Collection, e.Message)
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
