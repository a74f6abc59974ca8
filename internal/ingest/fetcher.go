package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
)

// Fetcher downloads .torrent descriptors over HTTP with a browser-like
// request profile, which gets past most anti-automation filters.
type Fetcher struct {
	client   *http.Client
	trackers []string
	logger   *logrus.Logger
}

func NewFetcher(trackers []string, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		trackers: trackers,
		logger:   logger,
	}
}

// Fetch retrieves and validates descriptor bytes. Failures are terminal for
// the submission attempt; there are no retries at this layer.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid descriptor URL: %v", err))
	}
	for k, v := range browserHeaders(rawURL) {
		req.Header.Set(k, v)
	}

	f.logger.Infof("downloading torrent from %s", rawURL)
	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, apperrors.RemoteTimeout("download timed out; the server may be slow or unavailable", err)
		}
		return nil, apperrors.RemoteHTTP(0, fmt.Sprintf("could not download torrent: %v", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, f.blockedError(rawURL)
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.RemoteNotFound("torrent not found (404); the link may be expired")
	case resp.StatusCode >= 400:
		return nil, apperrors.RemoteHTTP(resp.StatusCode, fmt.Sprintf("HTTP %d fetching torrent", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.RemoteHTTP(resp.StatusCode, fmt.Sprintf("read torrent payload: %v", err))
	}
	if err := ValidateDescriptor(raw); err != nil {
		return nil, err
	}

	f.logger.Infof("downloaded torrent file (%d bytes)", len(raw))
	return raw, nil
}

// blockedError maps a 403 to BlockedByHost, attaching a synthesized magnet
// link whenever an info hash can be recovered from the URL itself.
func (f *Fetcher) blockedError(rawURL string) error {
	f.logger.Errorf("403 forbidden, site is blocking the download: %s", rawURL)
	if hash, ok := ExtractInfoHash(rawURL); ok {
		return apperrors.BlockedByHost(
			"the torrent site is blocking automated downloads; use the suggested magnet link instead",
			MagnetForHash(hash, f.trackers),
		)
	}
	return apperrors.BlockedByHost(
		"the torrent site is blocking automated downloads; copy the magnet link from the torrent page or upload the .torrent file directly",
		"",
	)
}

func browserHeaders(rawURL string) map[string]string {
	return map[string]string{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Cache-Control":             "max-age=0",
		"Referer":                   refererFor(rawURL),
	}
}

func refererFor(rawURL string) string {
	if idx := strings.Index(rawURL, "/torrent/"); idx >= 0 {
		return rawURL[:idx]
	}
	if idx := strings.LastIndex(rawURL, "/"); idx > len("https://") {
		return rawURL[:idx]
	}
	return rawURL
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
