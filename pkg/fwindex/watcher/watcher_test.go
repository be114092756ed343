package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/catalog"
	"github.com/jamesainslie/fwindex/pkg/fwindex/indexer"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 100 * time.Millisecond

// recorder collects onChange calls.
type recorder struct {
	mu     sync.Mutex
	events []int
}

func (r *recorder) onChange(_ context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
	return nil
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func startWatcher(t *testing.T, root string, fn func(context.Context, int) error) *Watcher {
	t.Helper()
	w, err := New(testDebounce)
	require.NoError(t, err)
	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, fn)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w
}

func TestWatchAddsSubdirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A", "ISP1"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "A"), filepath.Join(root, "link")))

	w, err := New(0)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(root))
	assert.Equal(t, 3, w.Watched(), "root, A and A/ISP1; symlink skipped")

	require.NoError(t, w.Watch(root))
	assert.Equal(t, 3, w.Watched())
}

func TestWatchRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(f, nil, 0o644))

	w, err := New(0)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Watch(f))
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))
}

func TestIgnore(t *testing.T) {
	w, err := New(0)
	require.NoError(t, err)
	defer w.Close()

	root := t.TempDir()
	w.Ignore(filepath.Join(root, "catalog.json"))

	assert.True(t, w.isIgnored(filepath.Join(root, "catalog.json")))
	assert.True(t, w.isIgnored(filepath.Join(root, ".catalog.json.123456.tmp")))
	assert.False(t, w.isIgnored(filepath.Join(root, "A", "catalog.json")))
	assert.False(t, w.isIgnored(filepath.Join(root, "f1.xml")))
}

func TestRunDebouncesBurst(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec.onChange)

	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}

	require.Eventually(t, func() bool { return rec.calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, rec.calls())

	rec.mu.Lock()
	assert.GreaterOrEqual(t, rec.events[0], 3)
	rec.mu.Unlock()
}

func TestRunWatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, root, rec.onChange)
	require.Equal(t, 1, w.Watched())

	require.NoError(t, os.MkdirAll(filepath.Join(root, "A", "ISP1"), 0o755))
	require.Eventually(t, func() bool { return rec.calls() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, w.Watched(), 2)

	before := rec.calls()
	require.Eventually(t, func() bool { return w.Watched() == 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "ISP1", "f1.xml"), []byte("<x/>"), 0o644))
	require.Eventually(t, func() bool { return rec.calls() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestRunIgnoresCatalogWrites(t *testing.T) {
	root := t.TempDir()
	output := filepath.Join(root, "catalog.json")
	rec := &recorder{}
	w := startWatcher(t, root, rec.onChange)
	w.Ignore(output)

	require.NoError(t, catalog.Write(output, indexer.BuildCatalog(nil, "sha256", nil)))
	time.Sleep(3 * testDebounce)
	assert.Zero(t, rec.calls())
}

func TestRunStopsOnCancel(t *testing.T) {
	w, err := New(testDebounce)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx, (&recorder{}).onChange), context.Canceled)
}

func TestRunStopsOnClose(t *testing.T) {
	w, err := New(testDebounce)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Run(context.Background(), (&recorder{}).onChange), ErrClosed)
}

func TestRebuild(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A", "ISP1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "ISP1", "f1.xml"), []byte("<x/>"), 0o644))

	opts := indexer.DefaultOptions()
	opts.Root = root
	opts.Output = filepath.Join(root, "catalog.json")

	var got *types.Catalog
	rebuild := Rebuild(opts, func(c *types.Catalog) { got = c })
	require.NoError(t, rebuild(context.Background(), 1))

	require.NotNil(t, got)
	assert.Equal(t, 1, got.TotalFiles)

	loaded, err := catalog.LoadFile(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, got.RunID, loaded.RunID)

	opts.Root = filepath.Join(root, "missing")
	assert.ErrorIs(t, Rebuild(opts, nil)(context.Background(), 1), indexer.ErrRootUnreadable)
}

func TestWatchAndRebuild(t *testing.T) {
	root := t.TempDir()
	opts := indexer.DefaultOptions()
	opts.Root = root
	opts.Output = filepath.Join(root, "catalog.json")

	catalogs := make(chan *types.Catalog, 4)
	w := startWatcher(t, root, Rebuild(opts, func(c *types.Catalog) { catalogs <- c }))
	w.Ignore(opts.Output)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "A", "ISP1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "ISP1", "f1.bin"), []byte("fw"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-catalogs:
			if c.TotalFiles == 1 {
				assert.Equal(t, "A/ISP1/f1.bin", c.Files[0].Path)
				return
			}
		case <-deadline:
			t.Fatal("catalog with the new file was not written")
		}
	}
}
