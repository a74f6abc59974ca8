package archive_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isuru709/TorrentFlow-x365/internal/archive"
	"github.com/isuru709/TorrentFlow-x365/internal/domain"
)

func writeFiles(t *testing.T, root string, paths map[string]string) []domain.FileEntry {
	t.Helper()
	var entries []domain.FileEntry
	for rel, content := range paths {
		abs := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
		entries = append(entries, domain.FileEntry{
			RelativePath: rel,
			AbsolutePath: abs,
			Size:         int64(len(content)),
		})
	}
	return entries
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestBuildIfNeeded(t *testing.T) {
	t.Run("builds archive containing all relative paths", func(t *testing.T) {
		root := t.TempDir()
		files := writeFiles(t, root, map[string]string{
			"movie/part1.mkv":   "aaa",
			"movie/part2.mkv":   "bbb",
			"movie/subs/en.srt": "ccc",
		})

		cache := archive.NewCache(t.TempDir(), nil)
		path, base, err := cache.BuildIfNeeded("job-1", files, "My Movie", time.Now())
		require.NoError(t, err)
		assert.Equal(t, "My Movie", base)

		assert.ElementsMatch(t, []string{
			"movie/part1.mkv",
			"movie/part2.mkv",
			"movie/subs/en.srt",
		}, zipEntries(t, path))
	})

	t.Run("reuses fresh archive untouched", func(t *testing.T) {
		root := t.TempDir()
		files := writeFiles(t, root, map[string]string{"a.bin": "x", "b.bin": "y"})
		cache := archive.NewCache(t.TempDir(), nil)

		freshness := time.Now()
		path, _, err := cache.BuildIfNeeded("job-2", files, "name", freshness)
		require.NoError(t, err)

		// Plant a sentinel payload with an mtime after the freshness marker;
		// a reuse must return it byte for byte.
		require.NoError(t, os.WriteFile(path, []byte("sentinel"), 0o644))
		require.NoError(t, os.Chtimes(path, time.Now(), freshness.Add(time.Hour)))

		again, _, err := cache.BuildIfNeeded("job-2", files, "name", freshness)
		require.NoError(t, err)
		assert.Equal(t, path, again)
		content, err := os.ReadFile(again)
		require.NoError(t, err)
		assert.Equal(t, "sentinel", string(content))
	})

	t.Run("rebuilds stale archive", func(t *testing.T) {
		root := t.TempDir()
		files := writeFiles(t, root, map[string]string{"a.bin": "x", "b.bin": "y"})
		cache := archive.NewCache(t.TempDir(), nil)

		path, _, err := cache.BuildIfNeeded("job-3", files, "name", time.Now())
		require.NoError(t, err)
		old := time.Now().Add(-2 * time.Hour)
		require.NoError(t, os.Chtimes(path, old, old))

		_, _, err = cache.BuildIfNeeded("job-3", files, "name", time.Now())
		require.NoError(t, err)
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, fi.ModTime().After(old), "archive should have been rebuilt")
		assert.Len(t, zipEntries(t, path), 2)
	})

	t.Run("removes partial artifact on failure", func(t *testing.T) {
		cache := archive.NewCache(t.TempDir(), nil)
		missing := []domain.FileEntry{{RelativePath: "gone.bin", AbsolutePath: "/nonexistent/gone.bin"}}

		_, _, err := cache.BuildIfNeeded("job-4", missing, "name", time.Now())
		require.Error(t, err)
		_, statErr := os.Stat(cache.Path("job-4"))
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "MyMovie 1080p", archive.SanitizeName(`My*Movie 1080p?`))
	assert.Equal(t, "download", archive.SanitizeName(`\/:*?"<>|`))
	assert.Equal(t, "download", archive.SanitizeName("   "))
	assert.Equal(t, "plain", archive.SanitizeName("plain"))
}
