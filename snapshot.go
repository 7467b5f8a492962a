package chronodm

import (
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OwnerRef is the typed foreign key from a snapshot to its record.
type OwnerRef struct {
	ID   bson.ObjectID
	Kind Kind
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s(%s)", o.Kind, o.ID.Hex())
}

// Snapshot is a past state of a record's versioned attributes.
// Its content is immutable once the save that wrote it completes, except for
// the bookkeeping timestamp adjustments made during migration.
type Snapshot struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	OwnerID    bson.ObjectID `bson:"owner_id"             chrono:"required"`
	OwnerKind  Kind          `bson:"owner_kind"           chrono:"required"`
	Number     int           `bson:"number"               chrono:"required,min=1"`
	CreatedAt  time.Time     `bson:"created_at"           chrono:"required"`
	UpdatedAt  time.Time     `bson:"updated_at"`
	Attributes bson.M        `bson:"versioned_attributes"`
}

// Owner returns the snapshot's owner reference.
func (s *Snapshot) Owner() OwnerRef {
	return OwnerRef{ID: s.OwnerID, Kind: s.OwnerKind}
}

// IsNew reports whether the snapshot has not been written yet.
func (s *Snapshot) IsNew() bool {
	return s.ID.IsZero()
}

// clone returns a deep copy of the snapshot.
func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Attributes = cloneAttrs(s.Attributes)
	return &c
}

func newSnapshot(owner OwnerRef, number int, attrs bson.M, createdAt time.Time) *Snapshot {
	return &Snapshot{
		OwnerID:    owner.ID,
		OwnerKind:  owner.Kind,
		Number:     number,
		CreatedAt:  createdAt,
		Attributes: cloneAttrs(attrs),
	}
}

var snapshotSchema = mustParseSchema(reflect.TypeOf(Snapshot{}))

func mustParseSchema(t reflect.Type) *Schema {
	s, err := parseSchema(t)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateSnapshot checks a snapshot against its field rules.
func ValidateSnapshot(s *Snapshot) []ValidationError {
	return Validate(s, snapshotSchema)
}
