package monitor

import (
	"time"

	"github.com/isuru709/TorrentFlow-x365/internal/domain"
	"github.com/isuru709/TorrentFlow-x365/internal/engine"
	"github.com/isuru709/TorrentFlow-x365/internal/registry"
)

// complete runs the one-way Active → Completed transition. Steps are
// best-effort: a failed manifest read yields an empty snapshot, a failed
// archive pre-build is only logged. The registry move happens last, so a
// failed attempt is retried on the next tick.
func (m *Monitor) complete(id string, handle engine.Handle) {
	if m.reg.IsCompleted(id) {
		return
	}
	logger := m.cfg.Logger.WithField("job_id", id)

	current, err := m.reg.Get(id)
	if err != nil {
		return // removed mid-tick
	}
	st, err := handle.Status()
	if err != nil {
		logger.Warnf("final status: %v", err)
		return
	}

	var files []domain.FileEntry
	if manifest, err := handle.Manifest(); err != nil {
		logger.Warnf("snapshot file manifest: %v", err)
	} else {
		files = registry.ResolveManifest(manifest, current.SaveRoot)
	}

	handle.StopSeeding()

	now := time.Now()
	record := domain.JobRecord{
		ID:          id,
		Name:        st.Name,
		State:       domain.JobStateCompleted,
		Progress:    100,
		Peers:       0,
		Seeds:       0,
		TotalSize:   st.TotalSize,
		Downloaded:  st.TotalSize,
		Uploaded:    st.Uploaded,
		Ratio:       domain.Ratio(st.Uploaded, st.Downloaded),
		ETA:         0,
		SaveRoot:    current.SaveRoot,
		AddedAt:     current.AddedAt,
		CompletedAt: &now,
	}

	// Pre-build the archive so the first "download all" is instant.
	if len(files) > 1 {
		if _, _, err := m.cache.BuildIfNeeded(id, files, record.Name, now); err != nil {
			logger.Warnf("prebuild archive: %v", err)
		}
	}

	handle.Drop()

	if !m.reg.MarkCompleted(id, record, files) {
		logger.Debug("job no longer active, skipping completion")
		return
	}
	logger.Infof("stopped seeding after completion: %s", record.Name)
}
