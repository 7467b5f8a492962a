package chronodm

import (
	"strconv"
	"strings"
)

// ParseChronoTag parses a `chrono:"..."` struct tag value into FieldSchema attributes.
// Supported tags: unique, index, required, immutable, default=val, enum=a|b|c,
// min=N, max=N
func ParseChronoTag(tag string) FieldSchema {
	var fs FieldSchema
	if tag == "" {
		return fs
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		k, v, ok := strings.Cut(part, "=")
		if !ok {
			switch part {
			case "unique":
				fs.Unique = true
			case "index":
				fs.Index = true
			case "required":
				fs.Required = true
			case "immutable":
				fs.Immutable = true
			}
			continue
		}

		switch k {
		case "default":
			fs.Default = v
		case "enum":
			fs.Enum = strings.Split(v, "|")
		case "min":
			if n, err := strconv.Atoi(v); err == nil {
				fs.Min = &n
			}
		case "max":
			if n, err := strconv.Atoi(v); err == nil {
				fs.Max = &n
			}
		}
	}

	return fs
}

// ParseBSONTag extracts the BSON field name from a `bson:"..."` struct tag.
// Returns the field name and whether the field should be omitted when empty.
func ParseBSONTag(tag string) (name string, omitempty bool) {
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}
