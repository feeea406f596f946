package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/steinarvk/recquery/lib/config"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/predicate"
	"github.com/steinarvk/recquery/lib/query"
	"github.com/steinarvk/recquery/lib/record"
	"github.com/steinarvk/recquery/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bobID = "7f3c1a52-8a64-4a4e-9c53-0a2c1b7d0e11"
	jonID = "b0e5f0a8-1f2d-4c1e-8f55-5b9d8a0c7e22"
)

var peopleJSONL = strings.Join([]string{
	`{"id": "` + bobID + `", "name": "Bob", "age": 25}`,
	`{"id": "` + jonID + `", "name": "Jon", "age": 27}`,
}, "\n")

var postsJSONL = strings.Join([]string{
	`{"title": "bob #1", "author": "` + bobID + `", "is_published": true, "created_at": "2011-05-28", "order": 1}`,
	`{"title": "bob #2", "author": "` + bobID + `", "is_published": false, "created_at": "2011-06-05", "order": 2}`,
	`{"title": "bob #3", "author": "` + bobID + `", "is_published": true, "created_at": "2011-06-01", "order": 3}`,
	``,
	`{"title": "jon #1", "author": "` + jonID + `", "is_published": true, "created_at": "2011-05-28", "order": 4}`,
	`{"title": "jon #2", "author": "` + jonID + `", "is_published": true, "created_at": "2011-06-05", "order": 5}`,
	`{"title": "jon #3", "author": "` + jonID + `", "is_published": true, "created_at": "2011-06-01", "order": 6}`,
}, "\n")

func TestLoadReader(t *testing.T) {
	s, err := store.New()
	require.NoError(t, err)
	c := s.Collection("person")

	stats, err := LoadReader(context.Background(), c, strings.NewReader(peopleJSONL), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NumLines)
	assert.Equal(t, 2, stats.NumInserted)
	assert.Equal(t, 0, stats.NumError)

	bob, err := c.Get(uuid.MustParse(bobID))
	require.NoError(t, err)
	assert.False(t, bob.Has("id"))
	age, _ := bob.Get("age")
	assert.True(t, age.Equal(record.Int(25)))
}

func TestLoadReaderCollectsLineErrors(t *testing.T) {
	s, err := store.New()
	require.NoError(t, err)
	c := s.Collection("things")

	input := strings.Join([]string{
		`{"n": 1}`,
		`not json`,
		`{"n": 1.5}`,
		`[1, 2]`,
		`{"id": 12, "n": 2}`,
		`{"id": "` + bobID + `", "n": 3}`,
		`{"id": "` + bobID + `", "n": 4}`,
		`{"n": 5}`,
	}, "\n")

	stats, err := LoadReader(context.Background(), c, strings.NewReader(input), Options{})
	require.Error(t, err)

	assert.Equal(t, 8, stats.NumLines)
	assert.Equal(t, 3, stats.NumInserted)
	assert.Equal(t, 5, stats.NumError)
	assert.Equal(t, 3, c.Len())

	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "line 7")
	assert.True(t, errors.Is(err, dexerror.ErrDuplicateID))
}

func TestLoadReaderLineTooLong(t *testing.T) {
	s, err := store.New()
	require.NoError(t, err)

	long := `{"s": "` + strings.Repeat("x", 200) + `"}`
	_, err = LoadReader(context.Background(), s.Collection("x"), strings.NewReader(long), Options{MaxLineBytes: 64})
	assert.Error(t, err)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func blogConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Load(context.Background(), `{
		"data_dir": "`+dir+`",
		"namespaces": {
			"person": {},
			"post": {
				"fields": {
					"created_at": "date",
					"author": {"type": "ref", "namespace": "person"}
				},
				"derived": [{"field": "ymd", "from": "created_at", "layout": "2006-01-02"}],
				"ordering": "+order"
			},
			"comment": {}
		}
	}`)
	require.NoError(t, err)
	return cfg
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "person.jsonl", peopleJSONL)
	writeFile(t, dir, "post.jsonl", postsJSONL)

	cfg := blogConfig(t, dir)

	s, stats, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	comments, ok := s.Lookup("comment")
	require.True(t, ok)
	assert.Equal(t, 0, comments.Len())

	posts, ok := s.Lookup("post")
	require.True(t, ok)

	jon, err := s.Collection("person").Get(uuid.MustParse(jonID))
	require.NoError(t, err)

	records, err := query.New(posts).
		Filter(predicate.Eq("author", jon.Ref())).
		Filter(predicate.StartsWith("ymd", "2011-06")).
		Execute()
	require.NoError(t, err)

	var titles []string
	for _, r := range records {
		v, _ := r.Get("title")
		title, _ := v.AsString()
		titles = append(titles, title)
	}
	assert.Equal(t, []string{"jon #2", "jon #3"}, titles)
}

func TestReloadReplacesRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "person.jsonl", peopleJSONL)

	cfg := blogConfig(t, dir)
	s, _, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Collection("person").Len())

	writeFile(t, dir, "person.jsonl", peopleJSONL+"\n"+`{"name": "Ann", "age": 31}`)

	_, err = Reload(context.Background(), cfg, s)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Collection("person").Len())
}

func TestReloadReportsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "person.jsonl", peopleJSONL)
	writeFile(t, dir, "post.jsonl", `{"title": "undated", "created_at": "someday"}`)

	s, stats, err := Open(context.Background(), blogConfig(t, dir))
	require.Error(t, err)
	require.NotNil(t, s)
	assert.Contains(t, err.Error(), "post.jsonl")
	assert.Equal(t, 2, s.Collection("person").Len())

	var postStats int
	for _, st := range stats {
		if st.Namespace == "post" {
			postStats = st.NumError
		}
	}
	assert.Equal(t, 1, postStats)
}
