// Package monitor drives the job lifecycle: it polls the engine for every
// active job, detects completion, and broadcasts the merged job list.
package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/archive"
	"github.com/isuru709/TorrentFlow-x365/internal/push"
	"github.com/isuru709/TorrentFlow-x365/internal/registry"
)

type Config struct {
	Interval time.Duration
	Logger   *logrus.Logger
}

// Monitor runs strictly sequential ticks on a fixed cadence. Submissions can
// request an extra immediate tick via Nudge instead of spawning their own
// broadcast tasks.
type Monitor struct {
	cfg   Config
	reg   *registry.Registry
	cache *archive.Cache
	hub   *push.Hub

	nudge  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, reg *registry.Registry, cache *archive.Cache, hub *push.Hub) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Monitor{
		cfg:   cfg,
		reg:   reg,
		cache: cache,
		hub:   hub,
		nudge: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Start launches the periodic loop. Stop waits for the in-flight tick.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)
}

func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// Nudge requests an immediate tick-and-broadcast, used right after a
// successful submission. Coalesces when a tick is already pending.
func (m *Monitor) Nudge() {
	select {
	case m.nudge <- struct{}{}:
	default:
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		case <-m.nudge:
			m.Tick()
		}
	}
}

// Tick polls every active job, runs completion detection, and always ends
// with a broadcast so clients connecting between ticks catch up immediately.
func (m *Monitor) Tick() {
	for id, handle := range m.reg.ActiveHandles() {
		st, err := handle.Status()
		if err != nil {
			m.cfg.Logger.WithField("job_id", id).Debugf("query status: %v", err)
			continue
		}
		m.reg.Refresh(id, st)
		if st.HasMetadata && st.Progress >= 1.0 {
			m.complete(id, handle)
		}
	}
	m.hub.Broadcast(m.reg.MergedView())
}
