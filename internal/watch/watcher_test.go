package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsJSONFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	w := New(dir, WithDebounce(50*time.Millisecond))
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, path string) {
			mu.Lock()
			seen[filepath.Base(path)]++
			mu.Unlock()
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "person.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"object"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["person.json"] >= 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, seen, "notes.txt")
}

func TestWatcher_MissingDir(t *testing.T) {
	err := New(filepath.Join(t.TempDir(), "nope")).Run(context.Background(), func(context.Context, string) {})
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "a.json", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "a.JSON", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "a.json", Op: fsnotify.Remove}, false},
		{fsnotify.Event{Name: "a.json", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "a.yaml", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relevant(tt.event), tt.event.String())
	}
}
