package engine

import (
	"fmt"
	"sync"

	"github.com/anacrolix/torrent"
)

type handle struct {
	t       *torrent.Torrent
	gateway *Gateway

	mu      sync.Mutex
	paused  bool
	wide    bool
	dropped bool
}

func (h *handle) begin(sequential bool) {
	select {
	case <-h.t.GotInfo():
	case <-h.t.Closed():
		return
	}

	h.t.DownloadAll()
	if sequential {
		// Front-load the first file so playback-style consumers get usable
		// data early.
		if files := h.t.Files(); len(files) > 0 {
			files[0].SetPriority(torrent.PiecePriorityHigh)
		}
	}
	h.Boost()
}

func (h *handle) Status() (Stats, error) {
	h.mu.Lock()
	paused, dropped := h.paused, h.dropped
	h.mu.Unlock()
	if dropped {
		return Stats{}, fmt.Errorf("job detached from engine")
	}

	st := h.t.Stats()
	stats := Stats{
		Name:     h.t.Name(),
		Paused:   paused,
		Uploaded: st.BytesWrittenData.Int64(),
		Peers:    st.ActivePeers,
		Seeds:    st.ConnectedSeeders,
	}
	if h.t.Info() != nil {
		stats.HasMetadata = true
		stats.TotalSize = h.t.Length()
		stats.Downloaded = h.t.BytesCompleted()
		if stats.TotalSize > 0 {
			stats.Progress = float64(stats.Downloaded) / float64(stats.TotalSize)
		}
	}
	return stats, nil
}

func (h *handle) Manifest() ([]FileInfo, error) {
	if h.t.Info() == nil {
		return nil, fmt.Errorf("metadata not available yet")
	}
	files := h.t.Files()
	out := make([]FileInfo, len(files))
	for i, f := range files {
		out[i] = FileInfo{RelativePath: f.Path(), Size: f.Length()}
	}
	return out, nil
}

// Pause keeps the job stopped until an explicit Resume; the engine never
// restarts it on its own because data transfer stays disallowed.
func (h *handle) Pause() {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
	h.t.DisallowDataDownload()
	h.t.DisallowDataUpload()
}

func (h *handle) Resume() {
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	h.t.AllowDataDownload()
	h.t.AllowDataUpload()
}

func (h *handle) Boost() {
	trackers := h.gateway.opts.TrackerList
	h.t.AddTrackers([][]string{trackers})
	h.t.SetMaxEstablishedConns(h.gateway.opts.MaxConnsPerJob)
	h.t.AllowDataUpload()
	h.gateway.logger.Debugf("boost applied: %d trackers, max connections %d",
		len(trackers), h.gateway.opts.MaxConnsPerJob)
}

func (h *handle) WideDistribution() {
	if h.t.Info() == nil || h.t.BytesMissing() != 0 {
		return
	}
	h.mu.Lock()
	h.wide = true
	h.mu.Unlock()

	h.t.AddTrackers([][]string{h.gateway.opts.TrackerList})
	h.t.AllowDataUpload()
	h.t.SetMaxEstablishedConns(h.gateway.opts.MaxConnsPerJob)
	h.gateway.logger.Debugf("wide distribution enabled for %s", h.t.Name())
}

func (h *handle) StopSeeding() {
	h.mu.Lock()
	h.paused = true
	h.wide = false
	h.mu.Unlock()

	h.t.DisallowDataDownload()
	h.t.DisallowDataUpload()
	h.t.SetMaxEstablishedConns(0)
}

func (h *handle) Drop() {
	h.mu.Lock()
	if h.dropped {
		h.mu.Unlock()
		return
	}
	h.dropped = true
	h.mu.Unlock()
	h.t.Drop()
}

var _ Handle = (*handle)(nil)
