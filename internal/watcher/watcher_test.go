package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, paths ...string) <-chan Change {
	t.Helper()
	w, err := New(paths, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ch := make(chan Change, 16)
	w.OnChange(func(c Change) { ch <- c })
	w.Start()
	assert.True(t, w.IsRunning())
	return ch
}

func TestWatcherReportsPromptChanges(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(prompt, []byte("v1"), 0o644))

	ch := startWatcher(t, prompt)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(prompt, []byte("v2"), 0o644))

	select {
	case ev := <-ch:
		assert.Equal(t, prompt, ev.Path)
		assert.False(t, ev.Removed)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherSeesRenameSaves(t *testing.T) {
	dir := t.TempDir()
	prompt := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(prompt, []byte("v1"), 0o644))

	ch := startWatcher(t, prompt)

	tmp := filepath.Join(dir, "prompt.md.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0o644))
	require.NoError(t, os.Rename(tmp, prompt))

	select {
	case ev := <-ch:
		assert.Equal(t, prompt, ev.Path)
		assert.False(t, ev.Removed)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestNewRequiresPaths(t *testing.T) {
	_, err := New(nil, 0)
	assert.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "p.txt")}, 0)
	require.NoError(t, err)
	w.Start()
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}

func TestWatcherReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "hero.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o644))

	ch := startWatcher(t, img)
	require.NoError(t, os.Remove(img))

	select {
	case c := <-ch:
		assert.Equal(t, img, c.Path)
		assert.True(t, c.Removed)
		assert.Equal(t, img+" removed", c.String())
	case <-time.After(3 * time.Second):
		t.Fatal("no removal reported")
	}
}
