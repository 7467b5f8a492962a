package chronodm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestApplyAttributes_ConvertsStoredTypes(t *testing.T) {
	newTestEnv(t)
	schema, _ := Get("testArticle")

	rec := &testArticle{}
	err := applyAttributes(rec, schema, bson.M{
		"title":      "hello",
		"views":      int32(12),
		"updated_at": bson.NewDateTimeFromTime(t0),
		"unknown":    "ignored",
	})
	require.NoError(t, err)
	require.Equal(t, "hello", rec.Title)
	require.Equal(t, 12, rec.Views)
	requireTime(t, t0, rec.UpdatedAt)
}

func TestApplyAttributes_FailureLeavesRecordUntouched(t *testing.T) {
	newTestEnv(t)
	schema, _ := Get("testArticle")

	rec := &testArticle{Title: "before", Views: 3}
	err := applyAttributes(rec, schema, bson.M{
		"title": "after",
		"views": "not a number",
	})
	require.Error(t, err)
	require.Equal(t, "before", rec.Title)
	require.Equal(t, 3, rec.Views)
}

func TestApplyAttributes_NilZeroesField(t *testing.T) {
	newTestEnv(t)
	schema, _ := Get("testArticle")

	rec := &testArticle{Title: "a", Text: "b"}
	require.NoError(t, applyAttributes(rec, schema, bson.M{"text": nil}))
	require.Equal(t, "a", rec.Title)
	require.Empty(t, rec.Text)
}

func TestResolvedAttributes(t *testing.T) {
	newTestEnv(t)
	schema, _ := Get("testPage")

	got := resolvedAttributes(schema,
		bson.M{"title": "old", "hits": int32(4), "version": int32(1)},
		Attrs{"body": "new body", "hits": 9, "bogus": 1},
	)
	require.Equal(t, bson.M{"title": "old", "body": "new body"}, got)
}

func TestChangedAttributes(t *testing.T) {
	before := bson.M{"title": "a", "text": "x", "updated_at": bson.NewDateTimeFromTime(t0)}
	after := bson.M{"title": "b", "text": "x", "updated_at": bson.NewDateTimeFromTime(t0.Add(time.Second)), "views": int32(1)}

	all := func(string) bool { return true }
	require.ElementsMatch(t, []string{"title", "updated_at", "views"}, changedAttributes(before, after, all))

	noTimestamps := func(k string) bool { return !isUnversionedDefault(k) }
	require.ElementsMatch(t, []string{"title", "views"}, changedAttributes(before, after, noTimestamps))
}

func TestMergeAttrs(t *testing.T) {
	require.Nil(t, mergeAttrs(nil))
	got := mergeAttrs([]Attrs{{"title": "a", "text": "x"}, {"title": "b"}})
	require.Equal(t, Attrs{"title": "b", "text": "x"}, got)
}

func TestIntAndTimeAttr(t *testing.T) {
	m := bson.M{
		"a": int32(3),
		"b": int64(4),
		"c": 5.0,
		"d": bson.NewDateTimeFromTime(t0),
		"e": t0,
	}
	require.Equal(t, 3, intAttr(m, "a"))
	require.Equal(t, 4, intAttr(m, "b"))
	require.Equal(t, 5, intAttr(m, "c"))
	require.Equal(t, 0, intAttr(m, "missing"))
	requireTime(t, t0, timeAttr(m, "d"))
	requireTime(t, t0, timeAttr(m, "e"))
	require.True(t, timeAttr(m, "missing").IsZero())
}

func TestCloneAttrs_IsDeep(t *testing.T) {
	orig := bson.M{"tags": bson.A{"a", "b"}}
	c := cloneAttrs(orig)
	c["tags"].(bson.A)[0] = "z"
	require.Equal(t, "a", orig["tags"].(bson.A)[0])
	require.Nil(t, cloneAttrs(nil))
}
