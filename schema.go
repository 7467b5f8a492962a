package chronodm

import "reflect"

// Kind identifies a registered model type. It is the owner discriminator
// stored on every Snapshot and resolves back to a Schema through the registry.
type Kind string

// FieldSchema describes a single field parsed from struct tags.
type FieldSchema struct {
	Name      string   // Go field name
	BSONName  string   // bson tag name
	Type      string   // Go type as string
	Required  bool     // field must be non-zero
	Unique    bool     // unique index on this field
	Index     bool     // single-field index
	Default   string   // raw default value
	Enum      []string // allowed values
	Min       *int     // minimum value/length
	Max       *int     // maximum value/length
	Immutable bool     // cannot be changed after creation
}

// Schema is the parsed representation of a model struct.
type Schema struct {
	ModelName       string          // Go struct name
	Kind            Kind            // owner discriminator for snapshots
	Collection      string          // MongoDB collection name
	Fields          []FieldSchema   // parsed fields
	CompoundIndexes []CompoundIndex // compound indexes from Indexes() method
	Hooks           []string        // hook interface names the model implements

	// VersionedAttributes is the explicit allow-list declared by the model.
	// Empty means every field except the fixed exclude list.
	VersionedAttributes []string
	Versioning          VersioningOptions

	modelType reflect.Type
}

// HasField returns true if the schema contains a field with the given BSON name.
func (s *Schema) HasField(bsonName string) bool {
	return s.GetField(bsonName) != nil
}

// GetField returns the FieldSchema for a given BSON name, or nil if not found.
func (s *Schema) GetField(bsonName string) *FieldSchema {
	for i := range s.Fields {
		if s.Fields[i].BSONName == bsonName {
			return &s.Fields[i]
		}
	}
	return nil
}

// IsVersioned reports whether changes to the named attribute are versioned.
// An explicit allow-list is used verbatim; otherwise everything outside the
// fixed exclude list is versioned.
func (s *Schema) IsVersioned(bsonName string) bool {
	if len(s.VersionedAttributes) > 0 {
		for _, name := range s.VersionedAttributes {
			if name == bsonName {
				return true
			}
		}
		return false
	}
	return !isUnversionedDefault(bsonName)
}

// VersionedFieldNames returns the bson names of all versioned fields, in
// declaration order.
func (s *Schema) VersionedFieldNames() []string {
	var names []string
	for _, f := range s.Fields {
		if s.IsVersioned(f.BSONName) {
			names = append(names, f.BSONName)
		}
	}
	return names
}

// newRecord allocates a zero value of the registered model type.
func (s *Schema) newRecord() Record {
	return reflect.New(s.modelType).Interface().(Record)
}

// Indexable is implemented by models that define compound indexes.
type Indexable interface {
	Indexes() []CompoundIndex
}

// unversionedDefaults are never captured in snapshots.
var unversionedDefaults = []string{
	"_id", "_type", "uuid", "created_at", "updated_at", "version", "version_updated_at",
}

func isUnversionedDefault(bsonName string) bool {
	for _, name := range unversionedDefaults {
		if name == bsonName {
			return true
		}
	}
	return false
}
