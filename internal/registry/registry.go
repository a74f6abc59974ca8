// Package registry is the authoritative in-memory store of active and
// completed jobs. All state lives behind one mutex; the monitor loop, request
// handlers, and the push path all go through it.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
	"github.com/isuru709/TorrentFlow-x365/internal/archive"
	"github.com/isuru709/TorrentFlow-x365/internal/domain"
	"github.com/isuru709/TorrentFlow-x365/internal/engine"
)

type activeJob struct {
	id             string
	handle         engine.Handle
	saveRoot       string
	addedAt        time.Time
	descriptorPath string
	snapshot       domain.JobRecord

	// rate sampling state, written only during Refresh
	lastDownloaded int64
	lastUploaded   int64
	lastSample     time.Time
}

type completedJob struct {
	record         domain.JobRecord
	files          []domain.FileEntry
	descriptorPath string
}

// Registry guards the active/completed maps with a single mutex so monitor
// ticks, user actions, and broadcasts serialize their mutations.
type Registry struct {
	mu        sync.RWMutex
	active    map[string]*activeJob
	completed map[string]*completedJob
	cache     *archive.Cache
	logger    *logrus.Logger
}

func New(cache *archive.Cache, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		active:    make(map[string]*activeJob),
		completed: make(map[string]*completedJob),
		cache:     cache,
		logger:    logger,
	}
}

// Add registers a newly submitted job under the given id and builds its first
// snapshot so list requests see it before the next monitor tick.
func (r *Registry) Add(id string, handle engine.Handle, saveRoot, descriptorPath string) domain.JobRecord {
	now := time.Now()
	job := &activeJob{
		id:             id,
		handle:         handle,
		saveRoot:       saveRoot,
		addedAt:        now,
		descriptorPath: descriptorPath,
		lastSample:     now,
	}
	if st, err := handle.Status(); err == nil {
		job.snapshot = buildRecord(job, st, 0, 0)
		job.lastDownloaded = st.Downloaded
		job.lastUploaded = st.Uploaded
	} else {
		job.snapshot = domain.JobRecord{
			ID:       id,
			State:    domain.JobStateFetchingMetadata,
			SaveRoot: saveRoot,
			AddedAt:  now,
			ETA:      -1,
		}
	}

	r.mu.Lock()
	r.active[id] = job
	r.mu.Unlock()
	return job.snapshot
}

// Get returns the latest snapshot for an active or completed job.
func (r *Registry) Get(id string) (domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if job, ok := r.active[id]; ok {
		return job.snapshot, nil
	}
	if job, ok := r.completed[id]; ok {
		return job.record, nil
	}
	return domain.JobRecord{}, apperrors.NotFound("torrent not found")
}

// MergedView returns all jobs, newest first by submission time.
func (r *Registry) MergedView() []domain.JobRecord {
	r.mu.RLock()
	out := make([]domain.JobRecord, 0, len(r.active)+len(r.completed))
	for _, job := range r.active {
		out = append(out, job.snapshot)
	}
	for _, job := range r.completed {
		out = append(out, job.record)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out
}

// ActiveHandles returns a copy of the active id → handle mapping for the
// monitor to iterate without holding the registry lock across engine calls.
func (r *Registry) ActiveHandles() map[string]engine.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]engine.Handle, len(r.active))
	for id, job := range r.active {
		out[id] = job.handle
	}
	return out
}

// ActiveCount reports how many jobs are still attached to the engine.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Refresh folds fresh engine stats into the job's snapshot, deriving transfer
// rates from the previous sample.
func (r *Registry) Refresh(id string, st engine.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[id]
	if !ok {
		return
	}

	now := time.Now()
	elapsed := now.Sub(job.lastSample).Seconds()
	var downRate, upRate int64
	if elapsed > 0 {
		downRate = int64(float64(st.Downloaded-job.lastDownloaded) / elapsed)
		upRate = int64(float64(st.Uploaded-job.lastUploaded) / elapsed)
	}
	if downRate < 0 {
		downRate = 0
	}
	if upRate < 0 {
		upRate = 0
	}
	job.lastDownloaded = st.Downloaded
	job.lastUploaded = st.Uploaded
	job.lastSample = now
	job.snapshot = buildRecord(job, st, downRate, upRate)
}

// Pause pauses an active job; pausing an already paused job is a no-op.
func (r *Registry) Pause(id string) error {
	return r.setPaused(id, true)
}

// Resume resumes an active job; resuming a running job is a no-op.
func (r *Registry) Resume(id string) error {
	return r.setPaused(id, false)
}

func (r *Registry) setPaused(id string, paused bool) error {
	r.mu.Lock()
	job, ok := r.active[id]
	if !ok {
		r.mu.Unlock()
		return apperrors.NotFound("torrent not found")
	}
	handle := job.handle
	already := job.snapshot.State == domain.JobStatePaused
	r.mu.Unlock()

	if already == paused {
		return nil
	}
	if paused {
		handle.Pause()
	} else {
		handle.Resume()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok = r.active[id]
	if !ok {
		return nil // completed or removed while toggling
	}
	if paused {
		job.snapshot.State = domain.JobStatePaused
	} else if job.snapshot.Name == "" {
		job.snapshot.State = domain.JobStateFetchingMetadata
	} else {
		job.snapshot.State = domain.JobStateDownloading
	}
	return nil
}

// MarkCompleted moves a job from the active to the completed map in one step.
// The move is one-way; calling it for an id that is no longer active reports
// false, which makes re-detection a no-op.
func (r *Registry) MarkCompleted(id string, record domain.JobRecord, files []domain.FileEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[id]
	if !ok {
		return false
	}
	delete(r.active, id)
	r.completed[id] = &completedJob{
		record:         record,
		files:          files,
		descriptorPath: job.descriptorPath,
	}
	return true
}

// IsCompleted reports whether the job already went through completion.
func (r *Registry) IsCompleted(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.completed[id]
	return ok
}

// SaveRoot returns the job's save root, for either lifecycle phase.
func (r *Registry) SaveRoot(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if job, ok := r.active[id]; ok {
		return job.saveRoot, nil
	}
	if job, ok := r.completed[id]; ok {
		return job.record.SaveRoot, nil
	}
	return "", apperrors.NotFound("torrent not found")
}

// Remove destroys a job. Active jobs are detached from the engine; completed
// jobs optionally have their snapshotted files deleted from disk. Cached
// archives and descriptor artifacts go away in both cases.
func (r *Registry) Remove(id string, deleteFiles bool) error {
	r.mu.Lock()
	if job, ok := r.active[id]; ok {
		delete(r.active, id)
		r.mu.Unlock()

		job.handle.Drop()
		if deleteFiles {
			r.deleteManifestFiles(snapshotFiles(job), job.saveRoot)
		}
		r.removeArtifacts(id, job.descriptorPath)
		r.logger.Infof("removed torrent %s", id)
		return nil
	}
	if job, ok := r.completed[id]; ok {
		delete(r.completed, id)
		r.mu.Unlock()

		if deleteFiles {
			r.deleteManifestFiles(job.files, job.record.SaveRoot)
		}
		r.removeArtifacts(id, job.descriptorPath)
		r.logger.Infof("removed completed torrent %s", id)
		return nil
	}
	r.mu.Unlock()
	return apperrors.NotFound("torrent not found")
}

// FilesFor resolves a job's file set plus the display name and freshness
// marker the archive cache should key on. Active jobs read the live manifest;
// completed jobs return their snapshot.
func (r *Registry) FilesFor(id string) ([]domain.FileEntry, string, time.Time, error) {
	r.mu.RLock()
	if job, ok := r.active[id]; ok {
		handle, saveRoot := job.handle, job.saveRoot
		name, addedAt := job.snapshot.Name, job.addedAt
		r.mu.RUnlock()

		manifest, err := handle.Manifest()
		if err != nil {
			return nil, "", time.Time{}, apperrors.NotFound(fmt.Sprintf("could not read torrent metadata: %v", err))
		}
		return ResolveManifest(manifest, saveRoot), name, addedAt, nil
	}
	if job, ok := r.completed[id]; ok {
		defer r.mu.RUnlock()
		freshness := job.record.AddedAt
		if job.record.CompletedAt != nil {
			freshness = *job.record.CompletedAt
		}
		return job.files, job.record.Name, freshness, nil
	}
	r.mu.RUnlock()
	return nil, "", time.Time{}, apperrors.NotFound("torrent not found or already stopped")
}

// ResolveManifest joins manifest paths onto the save root, dropping entries
// that are absolute or escape the root.
func ResolveManifest(manifest []engine.FileInfo, saveRoot string) []domain.FileEntry {
	out := make([]domain.FileEntry, 0, len(manifest))
	for _, fi := range manifest {
		abs, err := joinUnderRoot(saveRoot, fi.RelativePath)
		if err != nil {
			continue
		}
		out = append(out, domain.FileEntry{
			RelativePath: fi.RelativePath,
			AbsolutePath: abs,
			Size:         fi.Size,
		})
	}
	return out
}

func joinUnderRoot(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path in manifest: %s", rel)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes save root: %s", rel)
	}
	return filepath.Join(root, clean), nil
}

func snapshotFiles(job *activeJob) []domain.FileEntry {
	manifest, err := job.handle.Manifest()
	if err != nil {
		return nil
	}
	return ResolveManifest(manifest, job.saveRoot)
}

func (r *Registry) deleteManifestFiles(files []domain.FileEntry, saveRoot string) {
	for _, f := range files {
		if err := os.Remove(f.AbsolutePath); err != nil && !os.IsNotExist(err) {
			r.logger.Warnf("remove file %s: %v", f.AbsolutePath, err)
		}
	}
	for _, f := range files {
		pruneEmptyDirs(filepath.Dir(f.AbsolutePath))
	}
	if saveRoot != "" {
		pruneEmptyDirs(saveRoot)
	}
}

// pruneEmptyDirs removes now-empty ancestor directories, stopping at the
// first non-empty one and never touching the filesystem root.
func pruneEmptyDirs(start string) {
	for p := filepath.Clean(start); p != "/" && p != "." && p != string(filepath.Separator); p = filepath.Dir(p) {
		if err := os.Remove(p); err != nil {
			return
		}
	}
}

func (r *Registry) removeArtifacts(id, descriptorPath string) {
	if r.cache != nil {
		r.cache.Remove(id)
	}
	if descriptorPath != "" {
		if err := os.Remove(descriptorPath); err != nil && !os.IsNotExist(err) {
			r.logger.Warnf("remove descriptor artifact %s: %v", descriptorPath, err)
		}
	}
}

func buildRecord(job *activeJob, st engine.Stats, downRate, upRate int64) domain.JobRecord {
	rec := domain.JobRecord{
		ID:           job.id,
		Name:         st.Name,
		State:        stateFor(st),
		Progress:     st.Progress * 100,
		DownloadRate: downRate,
		UploadRate:   upRate,
		Peers:        st.Peers,
		Seeds:        st.Seeds,
		TotalSize:    st.TotalSize,
		Downloaded:   st.Downloaded,
		Uploaded:     st.Uploaded,
		Ratio:        domain.Ratio(st.Uploaded, st.Downloaded),
		ETA:          -1,
		SaveRoot:     job.saveRoot,
		AddedAt:      job.addedAt,
	}
	if downRate > 0 && st.TotalSize > st.Downloaded {
		rec.ETA = (st.TotalSize - st.Downloaded) / downRate
	}
	return rec
}

func stateFor(st engine.Stats) domain.JobState {
	switch {
	case st.Paused:
		return domain.JobStatePaused
	case !st.HasMetadata:
		return domain.JobStateFetchingMetadata
	default:
		return domain.JobStateDownloading
	}
}
