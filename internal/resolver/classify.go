// Package resolver turns a user-supplied URL into something downloadable:
// it classifies URLs, rewrites a few known page URLs to their media file,
// and scrapes hosting pages for a download link.
package resolver

import (
	"strings"

	"github.com/iconidentify/dsconvert/internal/domain"
)

// KnownVideoHosts are treated as direct video sources regardless of path.
var KnownVideoHosts = []string{
	"youtube.com",
	"vimeo.com",
	"dailymotion.com",
	"twitch.tv",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
	"reddit.com",
}

// IsDirectVideoURL reports whether raw looks like a direct video resource.
// It is a routing heuristic, not validation: a period in the last five
// characters is taken as a file extension, and known hosts always pass.
func IsDirectVideoURL(raw string) bool {
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}

	tail := raw
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	if strings.Contains(tail, ".") {
		return true
	}

	lower := strings.ToLower(raw)
	for _, host := range KnownVideoHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

const (
	wikimediaFilePage = "commons.wikimedia.org/wiki/File:"
	wikimediaUpload   = "https://upload.wikimedia.org/wikipedia/commons/"
)

// Rewrite maps known page URLs to their direct media URL. It returns
// ErrUnsupportedHost for hosts that need a dedicated extractor, and raw
// unchanged otherwise.
func Rewrite(raw string) (string, error) {
	if idx := strings.Index(raw, wikimediaFilePage); idx != -1 {
		if name := raw[idx+len(wikimediaFilePage):]; name != "" {
			return wikimediaUpload + name, nil
		}
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be") {
		return "", domain.ErrUnsupportedHost
	}

	return raw, nil
}
