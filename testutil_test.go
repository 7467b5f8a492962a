package chronodm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// --- test models ---

type testArticle struct {
	Model `bson:",inline"`
	Title string `bson:"title" chrono:"required"`
	Text  string `bson:"text"`
	Views int    `bson:"views" chrono:"min=0"`
}

// testPage versions only title and body; slug and hits are unversioned.
type testPage struct {
	Model `bson:",inline"`
	Title string `bson:"title" chrono:"required"`
	Body  string `bson:"body"`
	Slug  string `bson:"slug"  chrono:"immutable"`
	Hits  int    `bson:"hits"`
}

func (*testPage) VersionedAttributes() []string { return []string{"title", "body"} }

// testDraft collapses edits made within five minutes of each other.
type testDraft struct {
	Model `bson:",inline"`
	Title string `bson:"title"`
	Text  string `bson:"text"`
}

func (*testDraft) VersioningOptions() VersioningOptions { return EditingTimeSeconds(300) }

type testHookArticle struct {
	Model  `bson:",inline"`
	Title  string   `bson:"title"`
	Events []string `bson:"-"`

	actions []SaveAction
	veto    error
}

func (a *testHookArticle) BeforeCreate(ctx context.Context) error {
	a.Events = append(a.Events, "before_create")
	return nil
}
func (a *testHookArticle) AfterCreate(ctx context.Context) error {
	a.Events = append(a.Events, "after_create")
	return nil
}
func (a *testHookArticle) BeforeSave(ctx context.Context) error {
	a.Events = append(a.Events, "before_save")
	return nil
}
func (a *testHookArticle) AfterSave(ctx context.Context) error {
	a.Events = append(a.Events, "after_save")
	return nil
}
func (a *testHookArticle) BeforeDelete(ctx context.Context) error {
	a.Events = append(a.Events, "before_delete")
	return nil
}
func (a *testHookArticle) AfterDelete(ctx context.Context) error {
	a.Events = append(a.Events, "after_delete")
	return nil
}
func (a *testHookArticle) BeforeVersionSave(ctx context.Context, ev VersionEvent) error {
	if a.veto != nil {
		return a.veto
	}
	a.actions = append(a.actions, ev.Action)
	return nil
}
func (a *testHookArticle) AfterVersionSave(ctx context.Context, ev VersionEvent) error {
	a.Events = append(a.Events, "after_version_save:"+ev.Action.String())
	return nil
}

var testModels = []struct {
	model      interface{}
	collection string
}{
	{&testArticle{}, "test_articles"},
	{&testPage{}, "test_pages"},
	{&testDraft{}, "test_drafts"},
	{&testHookArticle{}, "test_hook_articles"},
}

func registerTestModels() {
	unregisterTestModels()
	for _, m := range testModels {
		_ = Register(m.model, m.collection)
	}
}

func unregisterTestModels() {
	registryMu.Lock()
	delete(registry, "testArticle")
	delete(registry, "testPage")
	delete(registry, "testDraft")
	delete(registry, "testHookArticle")
	registryMu.Unlock()
}

// --- clock ---

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// --- in-memory environment ---

type testEnv struct {
	ctx   context.Context
	store *memStore
	clock *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	registerTestModels()
	t.Cleanup(func() {
		unregisterTestModels()
		ClearMiddleware()
	})
	return &testEnv{
		ctx:   context.Background(),
		store: newMemStore(),
		clock: &testClock{now: t0},
	}
}

func (e *testEnv) opts() Options {
	return Options{Now: e.clock.Now}
}

// create saves a new record and returns its Doc.
func create[T Record](t *testing.T, e *testEnv, rec T) *Doc[T] {
	t.Helper()
	d, err := Wrap(e.store, rec, e.opts())
	require.NoError(t, err)
	require.NoError(t, d.Save(e.ctx))
	return d
}

// newArticle creates an article, then edits it once per extra title an hour
// apart, so that every edit closes out a version.
func newArticle(t *testing.T, e *testEnv, titles ...string) *Doc[*testArticle] {
	t.Helper()
	d := create(t, e, &testArticle{Title: titles[0], Text: textFor(titles[0])})
	for _, title := range titles[1:] {
		e.clock.Advance(time.Hour)
		d.Record().Title = title
		d.Record().Text = textFor(title)
		require.NoError(t, d.Save(e.ctx))
	}
	return d
}

func textFor(title string) string {
	var n string
	fmt.Sscanf(title, "title %s", &n)
	return "text " + n
}

func snapshotsOf[T Record](t *testing.T, e *testEnv, d *Doc[T]) []*Snapshot {
	t.Helper()
	snaps, err := e.store.ListSnapshots(e.ctx, d.Owner())
	require.NoError(t, err)
	return snaps
}

func requireTime(t *testing.T, want, got time.Time) {
	t.Helper()
	require.Truef(t, want.Equal(got), "expected time %s, got %s", want, got)
}

// --- MongoDB integration setup ---

func setupTestDB(t *testing.T) (context.Context, *mongo.Database, func()) {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx := context.Background()
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	dbName := fmt.Sprintf("chronodm_test_%d", time.Now().UnixNano())
	db := client.Database(dbName)

	// Verify we can actually perform operations (auth check)
	testColl := db.Collection("_chronodm_auth_check")
	if _, err := testColl.InsertOne(ctx, bson.D{{Key: "test", Value: true}}); err != nil {
		_ = db.Drop(ctx)
		t.Skipf("MongoDB not writable (auth required?): %v", err)
	}
	_ = testColl.Drop(ctx)

	SetDB(db)
	registerTestModels()

	cleanup := func() {
		_ = db.Drop(ctx)
		SetDB(nil)
		unregisterTestModels()
		ClearMiddleware()
		_ = client.Disconnect(ctx)
	}

	return ctx, db, cleanup
}

var errBoom = errors.New("boom")
