package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dwoolworth/chronodm"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect registered model schemas",
	Long:  "Display all registered model schemas with their fields, which of them are versioned, the editing window, indexes, and hooks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		schemas := chronodm.GetAll()
		if len(schemas) == 0 {
			fmt.Println("No models registered. Import your model packages to register them.")
			return nil
		}

		names := make([]string, 0, len(schemas))
		for name := range schemas {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			printSchema(schemas[name])
			fmt.Println()
		}
		return nil
	},
}

func printSchema(schema *chronodm.Schema) {
	fmt.Printf("%s (collection: %s, kind: %s)\n", schema.ModelName, schema.Collection, schema.Kind)

	for i, field := range schema.Fields {
		connector := "├──"
		if i == len(schema.Fields)-1 {
			connector = "└──"
		}
		marker := " "
		if schema.IsVersioned(field.BSONName) {
			marker = "v"
		}
		fmt.Printf("  %s %s %-20s %-14s %s\n", connector, marker, field.BSONName, field.Type, formatFieldAttrs(field))
	}

	fmt.Println()
	fmt.Println("  Versioning:")
	if len(schema.VersionedAttributes) > 0 {
		fmt.Printf("    attributes: %s (allow-list)\n", strings.Join(schema.VersionedAttributes, ", "))
	} else {
		fmt.Printf("    attributes: %s\n", strings.Join(schema.VersionedFieldNames(), ", "))
	}
	if schema.Versioning.EditingTime > 0 {
		fmt.Printf("    editing window: %s\n", schema.Versioning.EditingTime)
	} else {
		fmt.Println("    editing window: none")
	}

	if len(schema.CompoundIndexes) > 0 || hasIndexedFields(schema) {
		fmt.Println()
		fmt.Println("  Indexes:")
		for _, field := range schema.Fields {
			if field.Unique {
				fmt.Printf("    ✓ %s_1 (unique)\n", field.BSONName)
			} else if field.Index {
				fmt.Printf("    ✓ %s_1\n", field.BSONName)
			}
		}
		for _, ci := range schema.CompoundIndexes {
			label := "(compound)"
			if ci.Unique {
				label = "(compound, unique)"
			}
			fmt.Printf("    ✓ %s %s\n", indexName(ci), label)
		}
	}

	if len(schema.Hooks) > 0 {
		fmt.Println()
		fmt.Println("  Hooks:")
		for _, h := range schema.Hooks {
			fmt.Printf("    ⚡ %s\n", h)
		}
	}
}

func formatFieldAttrs(f chronodm.FieldSchema) string {
	var parts []string
	if f.Unique {
		parts = append(parts, "unique")
	}
	if f.Index {
		parts = append(parts, "indexed")
	}
	if f.Required {
		parts = append(parts, "required")
	}
	if f.Immutable {
		parts = append(parts, "immutable")
	}
	if len(f.Enum) > 0 {
		parts = append(parts, fmt.Sprintf("enum(%s)", strings.Join(f.Enum, "|")))
	}
	if f.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", f.Default))
	}
	if f.Min != nil {
		parts = append(parts, fmt.Sprintf("min: %d", *f.Min))
	}
	if f.Max != nil {
		parts = append(parts, fmt.Sprintf("max: %d", *f.Max))
	}
	return strings.Join(parts, ", ")
}

func hasIndexedFields(schema *chronodm.Schema) bool {
	for _, f := range schema.Fields {
		if f.Unique || f.Index {
			return true
		}
	}
	return false
}

func indexName(ci chronodm.CompoundIndex) string {
	parts := make([]string, 0, len(ci.Fields)*2)
	for _, f := range ci.Fields {
		parts = append(parts, f, "1")
	}
	return strings.Join(parts, "_")
}
