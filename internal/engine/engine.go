// Package engine wraps the anacrolix torrent client behind a narrow gateway
// so the rest of the system never touches engine types directly.
package engine

import (
	"bytes"
	"fmt"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
	"github.com/sirupsen/logrus"
)

// Options enumerates the engine knobs the gateway recognizes.
type Options struct {
	ListenPort     int  // incoming peer port, 0 lets the engine pick
	MaxConnsPerJob int  // per-job connection cap applied when boosting
	Seed           bool // keep uploading after a job completes
	DisableDHT     bool
	TrackerList    []string // public trackers registered at tier 0 by Boost

	// PeerTurnoverCutoff is handed to the engine untouched. The current
	// backend exposes no matching knob, so the value is recorded but unused.
	PeerTurnoverCutoff int

	Logger *logrus.Logger
}

// SubmitOptions carries per-job submission parameters.
type SubmitOptions struct {
	SaveRoot   string
	Sequential bool
}

// Stats is a point-in-time snapshot of one job as seen by the engine.
type Stats struct {
	Name        string
	HasMetadata bool
	Paused      bool
	Progress    float64 // 0..1, meaningful only once metadata is known
	TotalSize   int64
	Downloaded  int64
	Uploaded    int64
	Peers       int
	Seeds       int
}

// FileInfo is one entry of a job's file manifest.
type FileInfo struct {
	RelativePath string
	Size         int64
}

// Handle is the gateway's view of one submitted job.
type Handle interface {
	// Status reports current engine stats. It fails once the job has been
	// dropped from the engine.
	Status() (Stats, error)
	// Manifest lists the job's files. It fails while metadata is unknown.
	Manifest() ([]FileInfo, error)
	// Pause stops transfers and keeps the job stopped until Resume.
	Pause()
	Resume()
	// Boost registers the public tracker list at tier 0 and lifts per-job
	// connection and upload caps. Best-effort.
	Boost()
	// WideDistribution prioritizes spreading completed data quickly. Skipped
	// silently while the job is below full progress.
	WideDistribution()
	// StopSeeding pauses the transfer, zeroes its upload allowance, and
	// clears wide distribution.
	StopSeeding()
	// Drop detaches the job from the engine, freeing its connections. Files
	// already written stay on disk. Irreversible.
	Drop()
}

// Gateway owns the torrent client shared by all jobs.
type Gateway struct {
	client *torrent.Client
	opts   Options
	logger *logrus.Logger
}

func NewGateway(opts Options) (*Gateway, error) {
	if opts.MaxConnsPerJob <= 0 {
		opts.MaxConnsPerJob = 300
	}
	if len(opts.TrackerList) == 0 {
		opts.TrackerList = PublicTrackers()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	clientConfig := torrent.NewDefaultClientConfig()
	clientConfig.ListenPort = opts.ListenPort
	clientConfig.Seed = opts.Seed
	clientConfig.NoDHT = opts.DisableDHT

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create torrent client: %w", err)
	}

	return &Gateway{client: client, opts: opts, logger: opts.Logger}, nil
}

// Close shuts the engine down, stopping all transfers.
func (g *Gateway) Close() {
	g.client.Close()
	g.logger.Info("transfer engine stopped")
}

// SubmitMagnet adds a job from a magnet link.
func (g *Gateway) SubmitMagnet(uri string, opts SubmitOptions) (Handle, error) {
	spec, err := torrent.TorrentSpecFromMagnetUri(uri)
	if err != nil {
		return nil, fmt.Errorf("parse magnet: %w", err)
	}
	return g.submit(spec, opts)
}

// SubmitDescriptor adds a job from raw .torrent bytes.
func (g *Gateway) SubmitDescriptor(raw []byte, opts SubmitOptions) (Handle, error) {
	mi, err := metainfo.Load(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse torrent file: %w", err)
	}
	return g.submit(torrent.TorrentSpecFromMetaInfo(mi), opts)
}

func (g *Gateway) submit(spec *torrent.TorrentSpec, opts SubmitOptions) (Handle, error) {
	if opts.SaveRoot != "" {
		spec.Storage = storage.NewFile(opts.SaveRoot)
	}

	t, _, err := g.client.AddTorrentSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("add torrent: %w", err)
	}

	h := &handle{t: t, gateway: g}
	// Metadata arrives asynchronously for magnets; start the download and
	// apply tuning once it is known.
	go h.begin(opts.Sequential)
	return h, nil
}

func PublicTrackers() []string {
	return []string{
		"udp://tracker.opentrackr.org:1337/announce",
		"udp://open.stealth.si:80/announce",
		"udp://tracker.torrent.eu.org:451/announce",
		"udp://exodus.desync.com:6969/announce",
		"udp://open.demonii.com:1337/announce",
		"udp://tracker.openbittorrent.com:6969/announce",
		"udp://tracker.coppersurfer.tk:6969/announce",
		"udp://tracker.leechers-paradise.org:6969/announce",
		"udp://tracker.internetwarriors.net:1337/announce",
		"udp://tracker.cyberia.is:6969/announce",
		"http://tracker.openbittorrent.com:80/announce",
		"udp://opentor.org:2710/announce",
	}
}
