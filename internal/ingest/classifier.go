// Package ingest classifies user-supplied locators and retrieves remote
// torrent descriptors.
package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
)

// Kind is the classification of a submitted locator.
type Kind int

const (
	KindInvalid Kind = iota
	KindMagnet
	KindDescriptorURL
	KindInfoHash
)

var infoHashPattern = regexp.MustCompile(`[0-9A-Fa-f]{40}`)

// Classify trims the locator and decides how it should be ingested. The
// returned string is the trimmed locator.
func Classify(locator string) (Kind, string) {
	s := strings.TrimSpace(locator)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "magnet:"):
		return KindMagnet, s
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindDescriptorURL, s
	case isInfoHash(s):
		return KindInfoHash, s
	}
	return KindInvalid, s
}

func isInfoHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ExtractInfoHash pulls the first 40-hex-character run out of a locator, used
// to synthesize a magnet link when a host blocks descriptor downloads.
func ExtractInfoHash(locator string) (string, bool) {
	m := infoHashPattern.FindString(locator)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// MagnetForHash builds a magnet link from a bare info hash plus trackers.
func MagnetForHash(hash string, trackers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "magnet:?xt=urn:btih:%s", strings.ToLower(hash))
	for _, tr := range trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

// minDescriptorSize is the smallest payload worth attempting to parse; real
// descriptors carry at least an info dictionary.
const minDescriptorSize = 20

// ValidateDescriptor checks that raw plausibly holds a bencoded .torrent
// payload. It distinguishes HTML error pages from garbage bytes.
func ValidateDescriptor(raw []byte) error {
	if len(raw) < minDescriptorSize {
		return apperrors.NotADescriptorFile("downloaded file is too small to be a valid torrent")
	}
	if raw[0] == 'd' {
		return nil
	}
	preview := strings.ToLower(string(raw[:min(len(raw), 200)]))
	if strings.Contains(preview, "html") || strings.Contains(preview, "<") {
		return apperrors.NotADescriptorFile("received HTML instead of a torrent file; the site may be blocking automated downloads")
	}
	return apperrors.NotADescriptorFile("downloaded file is not a valid torrent file (invalid bencode format)")
}
