package chronodm

import (
	"strconv"
	"strings"
	"time"
)

type selectorKind int

const (
	selNone selectorKind = iota
	selNew
	selNext
	selPrevious
	selNumber
	selAt
)

// Selector picks the version a resolution targets. The zero Selector is
// invalid; use New, Next, Previous, Number, or At.
type Selector struct {
	kind   selectorKind
	number int
	at     time.Time
}

var (
	// New targets one past the highest of the current version and every
	// existing snapshot, so it never collides with out-of-order snapshots.
	New = Selector{kind: selNew}
	// Next targets the current version plus one.
	Next = Selector{kind: selNext}
	// Previous targets the current version minus one.
	Previous = Selector{kind: selPrevious}
)

// Number targets version n, which must already exist.
func Number(n int) Selector {
	return Selector{kind: selNumber, number: n}
}

// At targets the version that was in effect at t.
func At(t time.Time) Selector {
	return Selector{kind: selAt, at: t}
}

// IsZero reports whether no selector was given.
func (s Selector) IsZero() bool {
	return s.kind == selNone
}

// Version returns the number a Number selector targets.
func (s Selector) Version() (int, bool) {
	return s.number, s.kind == selNumber
}

// Time returns the instant an At selector targets.
func (s Selector) Time() (time.Time, bool) {
	return s.at, s.kind == selAt
}

func (s Selector) String() string {
	switch s.kind {
	case selNew:
		return "new"
	case selNext:
		return "next"
	case selPrevious:
		return "previous"
	case selNumber:
		return strconv.Itoa(s.number)
	case selAt:
		return s.at.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// ParseSelector parses "new", "next", "previous", a version number, or an
// RFC 3339 timestamp.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return Selector{}, invalidArgument("no version selector given")
	case "new":
		return New, nil
	case "next":
		return Next, nil
	case "previous", "prev":
		return Previous, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Number(n), nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return Selector{}, invalidArgument("cannot parse version selector %q", s)
	}
	return At(t), nil
}

// ParseTime parses an RFC 3339 timestamp or a plain date.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalidArgument("cannot parse time %q", s)
}
