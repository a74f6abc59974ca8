package registry_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
	"github.com/isuru709/TorrentFlow-x365/internal/archive"
	"github.com/isuru709/TorrentFlow-x365/internal/domain"
	"github.com/isuru709/TorrentFlow-x365/internal/engine"
	"github.com/isuru709/TorrentFlow-x365/internal/registry"
)

type fakeHandle struct {
	mu          sync.Mutex
	stats       engine.Stats
	statusErr   error
	manifest    []engine.FileInfo
	manifestErr error

	paused  bool
	stopped bool
	dropped bool
}

func (f *fakeHandle) Status() (engine.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return engine.Stats{}, f.statusErr
	}
	st := f.stats
	st.Paused = f.paused
	return st, nil
}

func (f *fakeHandle) Manifest() ([]engine.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manifest, f.manifestErr
}

func (f *fakeHandle) Pause()            { f.mu.Lock(); f.paused = true; f.mu.Unlock() }
func (f *fakeHandle) Resume()           { f.mu.Lock(); f.paused = false; f.mu.Unlock() }
func (f *fakeHandle) Boost()            {}
func (f *fakeHandle) WideDistribution() {}
func (f *fakeHandle) StopSeeding()      { f.mu.Lock(); f.stopped = true; f.mu.Unlock() }
func (f *fakeHandle) Drop()             { f.mu.Lock(); f.dropped = true; f.mu.Unlock() }

func (f *fakeHandle) isDropped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func newRegistry(t *testing.T) (*registry.Registry, *archive.Cache) {
	t.Helper()
	cache := archive.NewCache(t.TempDir(), nil)
	return registry.New(cache, nil), cache
}

func downloadingHandle(name string) *fakeHandle {
	return &fakeHandle{stats: engine.Stats{
		Name:        name,
		HasMetadata: true,
		Progress:    0.5,
		TotalSize:   100,
		Downloaded:  50,
	}}
}

func TestAddAndGet(t *testing.T) {
	reg, _ := newRegistry(t)
	rec := reg.Add("job-1", downloadingHandle("first"), "/tmp/save", "")

	assert.Equal(t, "job-1", rec.ID)
	assert.Equal(t, domain.JobStateDownloading, rec.State)
	assert.Equal(t, "first", rec.Name)

	got, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMergedViewNewestFirst(t *testing.T) {
	reg, _ := newRegistry(t)
	reg.Add("old", downloadingHandle("old"), "/tmp", "")
	time.Sleep(5 * time.Millisecond)
	reg.Add("new", downloadingHandle("new"), "/tmp", "")

	view := reg.MergedView()
	require.Len(t, view, 2)
	assert.Equal(t, "new", view[0].ID)
	assert.Equal(t, "old", view[1].ID)
}

func TestMarkCompleted(t *testing.T) {
	reg, _ := newRegistry(t)
	h := downloadingHandle("done")
	reg.Add("job-1", h, "/tmp", "")

	now := time.Now()
	record := domain.JobRecord{
		ID: "job-1", Name: "done", State: domain.JobStateCompleted,
		Progress: 100, AddedAt: now, CompletedAt: &now,
	}

	t.Run("moves job from active to completed", func(t *testing.T) {
		require.True(t, reg.MarkCompleted("job-1", record, nil))
		assert.Equal(t, 0, reg.ActiveCount())
		assert.True(t, reg.IsCompleted("job-1"))

		got, err := reg.Get("job-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateCompleted, got.State)
	})

	t.Run("second transition is a no-op", func(t *testing.T) {
		assert.False(t, reg.MarkCompleted("job-1", record, nil))
		assert.True(t, reg.IsCompleted("job-1"))
	})
}

func TestPauseResume(t *testing.T) {
	reg, _ := newRegistry(t)
	h := downloadingHandle("job")
	reg.Add("job-1", h, "/tmp", "")

	require.NoError(t, reg.Pause("job-1"))
	rec, _ := reg.Get("job-1")
	assert.Equal(t, domain.JobStatePaused, rec.State)
	assert.True(t, h.paused)

	// Pausing again is a no-op.
	require.NoError(t, reg.Pause("job-1"))

	require.NoError(t, reg.Resume("job-1"))
	rec, _ = reg.Get("job-1")
	assert.Equal(t, domain.JobStateDownloading, rec.State)
	assert.False(t, h.paused)

	assert.ErrorIs(t, reg.Pause("missing"), apperrors.ErrNotFound)
	assert.ErrorIs(t, reg.Resume("missing"), apperrors.ErrNotFound)
}

func TestRefreshComputesRates(t *testing.T) {
	reg, _ := newRegistry(t)
	h := downloadingHandle("job")
	reg.Add("job-1", h, "/tmp", "")

	time.Sleep(20 * time.Millisecond)
	reg.Refresh("job-1", engine.Stats{
		Name: "job", HasMetadata: true, Progress: 0.75,
		TotalSize: 100, Downloaded: 75, Uploaded: 10,
	})

	rec, err := reg.Get("job-1")
	require.NoError(t, err)
	assert.InDelta(t, 75, rec.Progress, 1e-9)
	assert.Greater(t, rec.DownloadRate, int64(0))
	assert.InDelta(t, domain.Ratio(10, 75), rec.Ratio, 1e-9)
}

func TestRemoveActive(t *testing.T) {
	reg, _ := newRegistry(t)
	h := downloadingHandle("job")
	reg.Add("job-1", h, "/tmp", "")

	require.NoError(t, reg.Remove("job-1", false))
	assert.True(t, h.isDropped())
	_, err := reg.Get("job-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveCompletedDeletesFilesAndPrunes(t *testing.T) {
	reg, cache := newRegistry(t)

	root := t.TempDir()
	saveRoot := filepath.Join(root, "downloads", "job-1")
	nested := filepath.Join(saveRoot, "show", "season1")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	f1 := filepath.Join(nested, "ep1.mkv")
	f2 := filepath.Join(saveRoot, "readme.txt")
	require.NoError(t, os.WriteFile(f1, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(f2, []byte("y"), 0o644))

	h := downloadingHandle("job")
	reg.Add("job-1", h, saveRoot, "")
	now := time.Now()
	files := []domain.FileEntry{
		{RelativePath: "show/season1/ep1.mkv", AbsolutePath: f1, Size: 1},
		{RelativePath: "readme.txt", AbsolutePath: f2, Size: 1},
	}
	require.True(t, reg.MarkCompleted("job-1", domain.JobRecord{
		ID: "job-1", State: domain.JobStateCompleted, SaveRoot: saveRoot,
		AddedAt: now, CompletedAt: &now,
	}, files))

	// Pre-build an archive so removal has something to clean up.
	_, _, err := cache.BuildIfNeeded("job-1", files, "job", now)
	require.NoError(t, err)

	require.NoError(t, reg.Remove("job-1", true))

	for _, p := range []string{f1, f2, nested, saveRoot} {
		_, statErr := os.Stat(p)
		assert.True(t, os.IsNotExist(statErr), "expected %s to be gone", p)
	}
	_, statErr := os.Stat(cache.Path("job-1"))
	assert.True(t, os.IsNotExist(statErr))

	assert.ErrorIs(t, reg.Remove("job-1", true), apperrors.ErrNotFound)
}

func TestRemoveCleansDescriptorArtifact(t *testing.T) {
	reg, _ := newRegistry(t)
	dir := t.TempDir()
	descriptor := filepath.Join(dir, "job-1.torrent")
	require.NoError(t, os.WriteFile(descriptor, []byte("d4:spam4:eggse"), 0o644))

	reg.Add("job-1", downloadingHandle("job"), "/tmp", descriptor)
	require.NoError(t, reg.Remove("job-1", false))

	_, err := os.Stat(descriptor)
	assert.True(t, os.IsNotExist(err))
}

func TestFilesFor(t *testing.T) {
	t.Run("active job resolves live manifest against save root", func(t *testing.T) {
		reg, _ := newRegistry(t)
		h := downloadingHandle("job")
		h.manifest = []engine.FileInfo{
			{RelativePath: "a/b.bin", Size: 3},
			{RelativePath: "../escape.bin", Size: 3},
			{RelativePath: "/abs.bin", Size: 3},
		}
		reg.Add("job-1", h, "/save", "")

		files, _, _, err := reg.FilesFor("job-1")
		require.NoError(t, err)
		require.Len(t, files, 1, "traversing and absolute entries are dropped")
		assert.Equal(t, filepath.Join("/save", "a/b.bin"), files[0].AbsolutePath)
	})

	t.Run("active job without metadata", func(t *testing.T) {
		reg, _ := newRegistry(t)
		h := downloadingHandle("job")
		h.manifestErr = errors.New("metadata not available yet")
		reg.Add("job-1", h, "/save", "")

		_, _, _, err := reg.FilesFor("job-1")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("completed job returns snapshot with completion freshness", func(t *testing.T) {
		reg, _ := newRegistry(t)
		reg.Add("job-1", downloadingHandle("job"), "/save", "")
		completedAt := time.Now().Add(-time.Minute)
		snapshot := []domain.FileEntry{{RelativePath: "a.bin", AbsolutePath: "/save/a.bin", Size: 1}}
		require.True(t, reg.MarkCompleted("job-1", domain.JobRecord{
			ID: "job-1", AddedAt: time.Now().Add(-time.Hour), CompletedAt: &completedAt,
		}, snapshot))

		files, _, freshness, err := reg.FilesFor("job-1")
		require.NoError(t, err)
		assert.Equal(t, snapshot, files)
		assert.True(t, freshness.Equal(completedAt))
	})

	t.Run("unknown id", func(t *testing.T) {
		reg, _ := newRegistry(t)
		_, _, _, err := reg.FilesFor("missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
