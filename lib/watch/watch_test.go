package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcluded(t *testing.T) {
	assert.True(t, excluded("/data/.post.jsonl.swp", nil))
	assert.True(t, excluded("/data/post.jsonl~", []string{".jsonl"}))
	assert.False(t, excluded("/data/post.jsonl", nil))
	assert.False(t, excluded("/data/post.jsonl", []string{".jsonl"}))
	assert.True(t, excluded("/data/notes.txt", []string{".jsonl"}))
}

func TestDirRequiresArguments(t *testing.T) {
	noop := func(ctx context.Context, reason string) error { return nil }
	assert.Error(t, Dir(context.Background(), "", Options{}, noop))
	assert.Error(t, Dir(context.Background(), t.TempDir(), Options{}, nil))
}

func TestDirRunsOnStartupAndChange(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reasons := make(chan string, 10)
	done := make(chan error, 1)

	go func() {
		done <- Dir(ctx, dir, Options{Debounce: 50 * time.Millisecond, Suffixes: []string{".jsonl"}}, func(ctx context.Context, reason string) error {
			reasons <- reason
			return nil
		})
	}()

	select {
	case reason := <-reasons:
		assert.Equal(t, "startup", reason)
	case <-time.After(5 * time.Second):
		t.Fatal("no startup call")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "post.jsonl"), []byte("{}\n"), 0644))

	select {
	case reason := <-reasons:
		assert.Contains(t, reason, "post.jsonl")
	case <-time.After(5 * time.Second):
		t.Fatal("no call after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestDirStopsOnActionError(t *testing.T) {
	boom := errors.New("boom")
	err := Dir(context.Background(), t.TempDir(), Options{}, func(ctx context.Context, reason string) error {
		return boom
	})
	assert.True(t, errors.Is(err, boom))
}
