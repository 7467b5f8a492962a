package chronodm

import (
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Attrs are attribute values keyed by bson field name, used for overrides.
type Attrs map[string]interface{}

// attributesOf returns the record's attributes normalised to their bson
// representation, so that values compare and persist consistently
// regardless of whether they came from memory or from the store.
func attributesOf(rec Record) (bson.M, error) {
	raw, err := bson.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("chronodm: encode attributes: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("chronodm: decode attributes: %w", err)
	}
	return m, nil
}

// versionedSubset keeps only the versioned attributes of attrs.
func versionedSubset(schema *Schema, attrs bson.M) bson.M {
	out := bson.M{}
	for k, v := range attrs {
		if schema.IsVersioned(k) {
			out[k] = v
		}
	}
	return out
}

// resolvedAttributes assembles the attribute set a resolution applies:
// every declared field defaulted to nil, overlaid with the snapshot's
// attributes, filtered to the versioned partition, then overlaid with the
// versioned subset of the caller's overrides.
func resolvedAttributes(schema *Schema, snapshot bson.M, overrides Attrs) bson.M {
	base := bson.M{}
	for _, f := range schema.Fields {
		base[f.BSONName] = nil
	}
	for k, v := range snapshot {
		base[k] = v
	}

	out := versionedSubset(schema, base)
	for k, v := range overrides {
		if schema.IsVersioned(k) && schema.HasField(k) {
			out[k] = v
		}
	}
	return out
}

// applyAttributes writes attribute values onto the record's struct fields.
// Values are converted through bson so that stored representations
// (int32, bson.DateTime, bson.A, ...) land in the field's Go type.
// Every value is converted before any field is written, so a failed
// conversion leaves the record untouched.
func applyAttributes(rec Record, schema *Schema, attrs bson.M) error {
	type assignment struct {
		field reflect.Value
		value reflect.Value
	}

	v := reflect.ValueOf(rec).Elem()
	pending := make([]assignment, 0, len(attrs))
	for name, value := range attrs {
		field := schema.GetField(name)
		if field == nil {
			continue
		}
		fv := v.FieldByName(field.Name)
		if !fv.IsValid() || !fv.CanSet() {
			continue
		}
		converted, err := convertValue(fv.Type(), value)
		if err != nil {
			return fmt.Errorf("chronodm: cannot set attribute %s: %w", name, err)
		}
		pending = append(pending, assignment{field: fv, value: converted})
	}

	for _, a := range pending {
		a.field.Set(a.value)
	}
	return nil
}

func convertValue(t reflect.Type, value interface{}) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	bt, data, err := bson.MarshalValue(value)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(t)
	if err := (bson.RawValue{Type: bt, Value: data}).Unmarshal(ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}

// restrictAttrs keeps the entries of overrides accepted by include that name
// a declared field.
func restrictAttrs(schema *Schema, overrides Attrs, include func(string) bool) bson.M {
	out := bson.M{}
	for k, v := range overrides {
		if schema.HasField(k) && include(k) {
			out[k] = v
		}
	}
	return out
}

// mergeAttrs folds a variadic list of override sets into one; later sets win.
func mergeAttrs(sets []Attrs) Attrs {
	if len(sets) == 0 {
		return nil
	}
	out := Attrs{}
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// intAttr reads an integer attribute in any of its bson representations.
func intAttr(m bson.M, key string) int {
	switch v := m[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// timeAttr reads a datetime attribute in any of its bson representations.
func timeAttr(m bson.M, key string) time.Time {
	switch v := m[key].(type) {
	case bson.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v
	}
	return time.Time{}
}

// changedAttributes returns the attribute names accepted by include whose
// values differ between before and after.
func changedAttributes(before, after bson.M, include func(string) bool) []string {
	seen := map[string]bool{}
	var changed []string
	check := func(k string) {
		if seen[k] || !include(k) {
			return
		}
		seen[k] = true
		if !attrEqual(before[k], after[k]) {
			changed = append(changed, k)
		}
	}
	for k := range before {
		check(k)
	}
	for k := range after {
		check(k)
	}
	return changed
}

func attrEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// cloneAttrs deep-copies an attribute map.
func cloneAttrs(m bson.M) bson.M {
	if m == nil {
		return nil
	}
	raw, err := bson.Marshal(m)
	if err == nil {
		var out bson.M
		if err = bson.Unmarshal(raw, &out); err == nil {
			return out
		}
	}
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneRecord returns a deep copy of rec as a fresh value of the same type.
func cloneRecord[T Record](rec T) (T, error) {
	var zero T
	raw, err := bson.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("chronodm: encode record: %w", err)
	}
	out := reflect.New(reflect.TypeOf(rec).Elem()).Interface().(T)
	if err := bson.Unmarshal(raw, out); err != nil {
		return zero, fmt.Errorf("chronodm: decode record: %w", err)
	}
	return out, nil
}
