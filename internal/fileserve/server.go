// Package fileserve resolves download requests against a job's files, serving
// either one file directly or the cached archive of the full set.
package fileserve

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
	"github.com/isuru709/TorrentFlow-x365/internal/archive"
	"github.com/isuru709/TorrentFlow-x365/internal/domain"
	"github.com/isuru709/TorrentFlow-x365/internal/registry"
)

type Server struct {
	reg   *registry.Registry
	cache *archive.Cache
}

func New(reg *registry.Registry, cache *archive.Cache) *Server {
	return &Server{reg: reg, cache: cache}
}

// Result is a resolved download: an on-disk path plus the filename to offer.
type Result struct {
	Path    string
	Name    string
	Archive bool
}

// Resolve picks what to serve for a job. An empty selector means "everything":
// the sole file directly, or the archive for multi-file jobs.
func (s *Server) Resolve(id, selector string) (Result, error) {
	files, name, freshness, err := s.reg.FilesFor(id)
	if err != nil {
		return Result{}, err
	}

	// Selector validation comes before any existence checks.
	if selector != "" {
		if err := ValidateSelector(selector); err != nil {
			return Result{}, err
		}
	}

	existing := existingFiles(files)
	if len(existing) == 0 {
		return Result{}, apperrors.NotFound("no files available yet; the torrent may still be downloading")
	}

	if selector != "" {
		want := filepath.Clean(selector)
		for _, f := range existing {
			if filepath.Clean(f.RelativePath) == want {
				return Result{Path: f.AbsolutePath, Name: filepath.Base(f.AbsolutePath)}, nil
			}
		}
		return Result{}, apperrors.NotFound("requested file not found in torrent contents")
	}

	if len(existing) == 1 {
		f := existing[0]
		return Result{Path: f.AbsolutePath, Name: filepath.Base(f.AbsolutePath)}, nil
	}

	path, base, err := s.cache.BuildIfNeeded(id, existing, name, freshness)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Name: base + ".zip", Archive: true}, nil
}

// ListExisting returns the job's files that are present on disk right now.
func (s *Server) ListExisting(id string) ([]domain.FileEntry, error) {
	files, _, _, err := s.reg.FilesFor(id)
	if err != nil {
		return nil, err
	}
	existing := existingFiles(files)
	if len(existing) == 0 {
		return nil, apperrors.NotFound("no files available yet; the torrent may still be downloading")
	}
	return existing, nil
}

// ValidateSelector rejects absolute selectors and any parent-directory
// segment, regardless of whether the target exists.
func ValidateSelector(selector string) error {
	if filepath.IsAbs(selector) || strings.HasPrefix(selector, "/") {
		return apperrors.InvalidPath("invalid file path")
	}
	for _, part := range strings.Split(filepath.ToSlash(selector), "/") {
		if part == ".." || part == "" {
			return apperrors.InvalidPath("invalid file path")
		}
	}
	return nil
}

func existingFiles(files []domain.FileEntry) []domain.FileEntry {
	out := make([]domain.FileEntry, 0, len(files))
	for _, f := range files {
		if fi, err := os.Stat(f.AbsolutePath); err == nil && !fi.IsDir() {
			out = append(out, f)
		}
	}
	return out
}
