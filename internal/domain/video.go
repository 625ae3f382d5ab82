package domain

import (
	"strings"
	"time"
)

// VideoExt is the suffix of every stored output file.
const VideoExt = ".mp4"

// StoredVideo is a completed conversion found in the video directory.
type StoredVideo struct {
	ID       JobID
	Filename string
	Size     int64
	ModTime  time.Time
}

// JobIDFromFilename extracts the job ID from a stored filename such as
// "<id>.mp4". It returns ErrInvalidJobID for anything else.
func JobIDFromFilename(name string) (JobID, error) {
	if !strings.HasSuffix(name, VideoExt) {
		return "", ErrInvalidJobID
	}
	return ParseJobID(strings.TrimSuffix(name, VideoExt))
}
