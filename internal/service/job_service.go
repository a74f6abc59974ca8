// Package service orchestrates job submission and lifecycle operations across
// the classifier, the engine gateway, and the registry.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
	"github.com/isuru709/TorrentFlow-x365/internal/domain"
	"github.com/isuru709/TorrentFlow-x365/internal/engine"
	"github.com/isuru709/TorrentFlow-x365/internal/ingest"
	"github.com/isuru709/TorrentFlow-x365/internal/registry"
)

// Engine is the slice of the gateway the service needs.
type Engine interface {
	SubmitMagnet(uri string, opts engine.SubmitOptions) (engine.Handle, error)
	SubmitDescriptor(raw []byte, opts engine.SubmitOptions) (engine.Handle, error)
}

type Config struct {
	DownloadRoot string
	TorrentDir   string
	Trackers     []string
	Logger       *logrus.Logger
}

// JobService validates locators, submits them to the engine, and registers
// the resulting jobs.
type JobService struct {
	cfg     Config
	eng     Engine
	reg     *registry.Registry
	fetcher *ingest.Fetcher
	notify  func() // wakes the monitor for an immediate broadcast
}

func NewJobService(cfg Config, eng Engine, reg *registry.Registry, fetcher *ingest.Fetcher, notify func()) *JobService {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if notify == nil {
		notify = func() {}
	}
	return &JobService{cfg: cfg, eng: eng, reg: reg, fetcher: fetcher, notify: notify}
}

// Submit ingests a locator: magnet links and bare info hashes go straight to
// the engine, descriptor URLs are fetched and validated first.
func (s *JobService) Submit(ctx context.Context, locator, savePath string, sequential bool) (domain.JobRecord, error) {
	kind, loc := ingest.Classify(locator)
	opts := engine.SubmitOptions{SaveRoot: s.saveRoot(savePath), Sequential: sequential}

	switch kind {
	case ingest.KindMagnet:
		return s.submitMagnet(loc, opts, "magnet link")
	case ingest.KindInfoHash:
		return s.submitMagnet(ingest.MagnetForHash(loc, s.cfg.Trackers), opts, "info hash")
	case ingest.KindDescriptorURL:
		raw, err := s.fetcher.Fetch(ctx, loc)
		if err != nil {
			return domain.JobRecord{}, err
		}
		return s.submitDescriptor(raw, opts, "url")
	default:
		return domain.JobRecord{}, apperrors.InvalidInput(
			"invalid input: expected magnet link, HTTP(S) URL, or 40-character info hash")
	}
}

// SubmitDescriptor registers a job from raw .torrent bytes, bypassing the
// remote fetch (the upload path).
func (s *JobService) SubmitDescriptor(raw []byte, savePath string, sequential bool) (domain.JobRecord, error) {
	opts := engine.SubmitOptions{SaveRoot: s.saveRoot(savePath), Sequential: sequential}
	return s.submitDescriptor(raw, opts, "file")
}

func (s *JobService) submitMagnet(uri string, opts engine.SubmitOptions, source string) (domain.JobRecord, error) {
	handle, err := s.eng.SubmitMagnet(uri, opts)
	if err != nil {
		return domain.JobRecord{}, apperrors.Engine("add torrent", err)
	}
	id := uuid.NewString()
	rec := s.reg.Add(id, handle, opts.SaveRoot, "")
	s.cfg.Logger.Infof("added torrent %s from %s", id, source)
	s.notify()
	return rec, nil
}

func (s *JobService) submitDescriptor(raw []byte, opts engine.SubmitOptions, source string) (domain.JobRecord, error) {
	if err := ingest.ValidateDescriptor(raw); err != nil {
		return domain.JobRecord{}, err
	}

	id := uuid.NewString()
	descriptorPath, err := s.retainDescriptor(id, raw)
	if err != nil {
		return domain.JobRecord{}, err
	}

	handle, err := s.eng.SubmitDescriptor(raw, opts)
	if err != nil {
		if descriptorPath != "" {
			_ = os.Remove(descriptorPath)
		}
		return domain.JobRecord{}, apperrors.Engine("add torrent", err)
	}

	rec := s.reg.Add(id, handle, opts.SaveRoot, descriptorPath)
	s.cfg.Logger.Infof("added torrent %s from %s", id, source)
	s.notify()
	return rec, nil
}

// retainDescriptor keeps the .torrent bytes on disk next to the job id so the
// artifact can be cleaned up on removal.
func (s *JobService) retainDescriptor(id string, raw []byte) (string, error) {
	if s.cfg.TorrentDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.cfg.TorrentDir, 0o755); err != nil {
		return "", fmt.Errorf("create torrent dir: %w", err)
	}
	path := filepath.Join(s.cfg.TorrentDir, id+".torrent")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("retain descriptor: %w", err)
	}
	return path, nil
}

func (s *JobService) saveRoot(savePath string) string {
	if savePath != "" {
		return savePath
	}
	return s.cfg.DownloadRoot
}

func (s *JobService) Get(id string) (domain.JobRecord, error) {
	return s.reg.Get(id)
}

func (s *JobService) List() []domain.JobRecord {
	return s.reg.MergedView()
}

func (s *JobService) Pause(id string) error {
	return s.reg.Pause(id)
}

func (s *JobService) Resume(id string) error {
	return s.reg.Resume(id)
}

func (s *JobService) Remove(id string, deleteFiles bool) error {
	return s.reg.Remove(id, deleteFiles)
}

func (s *JobService) ActiveCount() int {
	return s.reg.ActiveCount()
}
