// Package archive builds and reuses zip archives of completed job payloads so
// multi-file downloads never touch the engine.
package archive

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
	"github.com/isuru709/TorrentFlow-x365/internal/domain"
)

// Cache memoizes one archive per job id, invalidated by a freshness
// timestamp: an archive older than the job's completion instant is rebuilt.
type Cache struct {
	dir    string
	logger *logrus.Logger
}

func NewCache(dir string, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cache{dir: dir, logger: logger}
}

// Path returns where the archive for a job lives, whether or not it exists.
func (c *Cache) Path(jobID string) string {
	return filepath.Join(c.dir, jobID+".zip")
}

// BuildIfNeeded returns a cached archive when it is non-empty and at least as
// new as freshness, otherwise rebuilds it synchronously from files. The
// second return value is the sanitized base name for the download filename.
func (c *Cache) BuildIfNeeded(jobID string, files []domain.FileEntry, displayName string, freshness time.Time) (string, string, error) {
	path := c.Path(jobID)
	base := SanitizeName(displayName)

	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 && !fi.ModTime().Before(freshness) {
		return path, base, nil
	}

	if err := c.build(path, files); err != nil {
		// Do not leave a partial archive behind for the reuse check to find.
		_ = os.Remove(path)
		return "", "", apperrors.ArchiveBuild(err)
	}
	c.logger.Infof("built archive for %s (%d files)", jobID, len(files))
	return path, base, nil
}

func (c *Cache) build(path string, files []domain.FileEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	// Fast compression; archives are throwaway transfer containers.
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})

	for _, f := range files {
		if err := addFile(zw, f); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return out.Sync()
}

func addFile(zw *zip.Writer, f domain.FileEntry) error {
	src, err := os.Open(f.AbsolutePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.AbsolutePath, err)
	}
	defer src.Close()

	w, err := zw.Create(filepath.ToSlash(f.RelativePath))
	if err != nil {
		return fmt.Errorf("add %s: %w", f.RelativePath, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write %s: %w", f.RelativePath, err)
	}
	return nil
}

// Remove deletes a job's cached archive, if any.
func (c *Cache) Remove(jobID string) {
	if err := os.Remove(c.Path(jobID)); err != nil && !os.IsNotExist(err) {
		c.logger.Warnf("remove cached archive for %s: %v", jobID, err)
	}
}

// SanitizeName strips characters that are illegal in filenames, falling back
// to a generic name when nothing survives.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, c := range name {
		if strings.ContainsRune(`\/:*?"<>|`, c) {
			continue
		}
		b.WriteRune(c)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "download"
	}
	return out
}
