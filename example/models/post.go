package models

import (
	"context"
	"strings"

	"github.com/dwoolworth/chronodm"
)

// Status represents a post publication status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Post is an example model for blog posts. Title, body, and tags are
// versioned; status and view counts change without creating versions.
type Post struct {
	chronodm.Model `bson:",inline"`
	Slug           string   `bson:"slug"   chrono:"required,unique,immutable"`
	Title          string   `bson:"title"  chrono:"required,max=200"`
	Body           string   `bson:"body"   chrono:"required"`
	Tags           []string `bson:"tags"   chrono:"index"`
	Status         Status   `bson:"status" chrono:"enum=draft|published|archived,default=draft"`
	Views          int      `bson:"views"  chrono:"min=0"`
}

// VersionedAttributes restricts versioning to the post's content.
func (p *Post) VersionedAttributes() []string {
	return []string{"title", "body", "tags"}
}

// VersioningOptions folds edits made within ten minutes of each other into
// one version.
func (p *Post) VersioningOptions() chronodm.VersioningOptions {
	return chronodm.EditingTimeSeconds(600)
}

// Indexes returns compound indexes for the Post model.
func (p *Post) Indexes() []chronodm.CompoundIndex {
	return []chronodm.CompoundIndex{
		chronodm.NewCompoundIndex("status", "updated_at"),
	}
}

// BeforeSave normalises tags.
func (p *Post) BeforeSave(ctx context.Context) error {
	for i, tag := range p.Tags {
		p.Tags[i] = strings.ToLower(strings.TrimSpace(tag))
	}
	return nil
}

// AfterVersionSave reports versioning decisions while the example runs.
func (p *Post) AfterVersionSave(ctx context.Context, ev chronodm.VersionEvent) error {
	if Trace != nil {
		Trace(ev)
	}
	return nil
}

// Trace, when set, receives every version event of a Post.
var Trace func(chronodm.VersionEvent)

func init() {
	if err := chronodm.Register(&Post{}, "posts"); err != nil {
		panic(err)
	}
}
