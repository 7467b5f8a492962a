package chronodm

import (
	"reflect"
	"testing"
)

func TestParseChronoTag(t *testing.T) {
	fs := ParseChronoTag("unique, index,required,immutable,default=draft,enum=draft|live,min=1,max=9")
	if !fs.Unique || !fs.Index || !fs.Required || !fs.Immutable {
		t.Fatalf("flags not parsed: %+v", fs)
	}
	if fs.Default != "draft" {
		t.Fatalf("expected default 'draft', got %q", fs.Default)
	}
	if !reflect.DeepEqual(fs.Enum, []string{"draft", "live"}) {
		t.Fatalf("unexpected enum %v", fs.Enum)
	}
	if fs.Min == nil || *fs.Min != 1 || fs.Max == nil || *fs.Max != 9 {
		t.Fatalf("unexpected bounds min=%v max=%v", fs.Min, fs.Max)
	}
}

func TestParseChronoTag_Ignored(t *testing.T) {
	fs := ParseChronoTag("min=abc,,bogus,max=")
	if fs.Min != nil || fs.Max != nil || fs.Unique || fs.Required {
		t.Fatalf("expected an empty schema, got %+v", fs)
	}
	if !reflect.DeepEqual(ParseChronoTag(""), FieldSchema{}) {
		t.Fatal("expected an empty schema for an empty tag")
	}
}

func TestParseBSONTag(t *testing.T) {
	tests := []struct {
		tag       string
		name      string
		omitempty bool
	}{
		{"", "", false},
		{"title", "title", false},
		{"title,omitempty", "title", true},
		{",inline", "", false},
	}
	for _, tt := range tests {
		name, omitempty := ParseBSONTag(tt.tag)
		if name != tt.name || omitempty != tt.omitempty {
			t.Errorf("ParseBSONTag(%q) = %q, %v; want %q, %v", tt.tag, name, omitempty, tt.name, tt.omitempty)
		}
	}
}
