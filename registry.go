package chronodm

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dwoolworth/chronodm/internal"
)

var (
	registryMu sync.RWMutex
	registry   = map[Kind]*Schema{}
)

// Register parses a model struct and registers its schema under the model's
// Go type name. The model must be a pointer to a struct that embeds
// chronodm.Model. The collection parameter is the MongoDB collection name.
func Register(model interface{}, collection string) error {
	if _, ok := model.(Record); !ok {
		return fmt.Errorf("chronodm: Register expects a pointer to a struct embedding chronodm.Model, got %T", model)
	}

	schema, err := parseSchema(reflect.TypeOf(model))
	if err != nil {
		return err
	}
	schema.Collection = collection

	// Check for Indexable interface (compound indexes)
	if indexable, ok := model.(Indexable); ok {
		schema.CompoundIndexes = indexable.Indexes()
	}

	if lister, ok := model.(VersionedAttributeLister); ok {
		names := lister.VersionedAttributes()
		for _, name := range names {
			if !schema.HasField(name) {
				return fmt.Errorf("chronodm: %s declares versioned attribute %q which is not a field", schema.ModelName, name)
			}
			if isUnversionedDefault(name) {
				return fmt.Errorf("chronodm: %s cannot version bookkeeping attribute %q", schema.ModelName, name)
			}
		}
		schema.VersionedAttributes = append([]string(nil), names...)
	}

	if configurable, ok := model.(VersioningConfigurable); ok {
		schema.Versioning = configurable.VersioningOptions()
		if schema.Versioning.EditingTime < 0 {
			return fmt.Errorf("chronodm: %s has a negative editing time", schema.ModelName)
		}
	}

	schema.Hooks = detectHooks(model)

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[schema.Kind]; exists {
		return fmt.Errorf("chronodm: model %q is already registered", schema.ModelName)
	}
	registry[schema.Kind] = schema

	return nil
}

// Unregister removes a model kind from the registry.
func Unregister(kind Kind) {
	registryMu.Lock()
	delete(registry, kind)
	registryMu.Unlock()
}

// GetAll returns all registered schemas keyed by model name.
func GetAll() map[string]*Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make(map[string]*Schema, len(registry))
	for k, v := range registry {
		result[string(k)] = v
	}
	return result
}

// Get returns the schema for a given model name, or false if not found.
func Get(name string) (*Schema, bool) {
	return Lookup(Kind(name))
}

// Lookup resolves a snapshot owner kind to its registered schema.
func Lookup(kind Kind) (*Schema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[kind]
	return s, ok
}

// parseSchema builds a Schema from struct fields and their tags.
func parseSchema(t reflect.Type) (*Schema, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("chronodm: expected a struct, got %s", t.Kind())
	}

	schema := &Schema{
		ModelName: t.Name(),
		Kind:      Kind(t.Name()),
		modelType: t,
	}

	for _, f := range internal.StructFields(t) {
		bsonName, _ := ParseBSONTag(f.Tag.Get("bson"))
		if bsonName == "" {
			bsonName = strings.ToLower(f.Name)
		}
		if bsonName == "-" {
			continue
		}

		fs := ParseChronoTag(f.Tag.Get("chrono"))
		fs.Name = f.Name
		fs.BSONName = bsonName
		fs.Type = internal.TypeName(f.Type)

		schema.Fields = append(schema.Fields, fs)
	}

	return schema, nil
}

// schemaFor resolves the registered schema for a record instance.
func schemaFor(rec interface{}) (*Schema, error) {
	t := reflect.TypeOf(rec)
	if t == nil {
		return nil, fmt.Errorf("chronodm: nil record")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema, ok := Lookup(Kind(t.Name()))
	if !ok {
		return nil, fmt.Errorf("chronodm: model %q is not registered", t.Name())
	}
	return schema, nil
}

// detectHooks checks which hook interfaces a model implements.
func detectHooks(model interface{}) []string {
	var hooks []string
	if _, ok := model.(BeforeCreate); ok {
		hooks = append(hooks, "BeforeCreate")
	}
	if _, ok := model.(AfterCreate); ok {
		hooks = append(hooks, "AfterCreate")
	}
	if _, ok := model.(BeforeSave); ok {
		hooks = append(hooks, "BeforeSave")
	}
	if _, ok := model.(AfterSave); ok {
		hooks = append(hooks, "AfterSave")
	}
	if _, ok := model.(BeforeVersionSave); ok {
		hooks = append(hooks, "BeforeVersionSave")
	}
	if _, ok := model.(AfterVersionSave); ok {
		hooks = append(hooks, "AfterVersionSave")
	}
	if _, ok := model.(BeforeDelete); ok {
		hooks = append(hooks, "BeforeDelete")
	}
	if _, ok := model.(AfterDelete); ok {
		hooks = append(hooks, "AfterDelete")
	}
	return hooks
}
