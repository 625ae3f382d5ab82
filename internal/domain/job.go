package domain

import (
	"github.com/google/uuid"
)

// JobID is a unique identifier for a conversion job. It doubles as the
// name of the stored output file.
type JobID string

// NewJobID generates a fresh random job identifier.
func NewJobID() JobID {
	return JobID(uuid.New().String())
}

// ParseJobID validates an identifier received from a client.
func ParseJobID(s string) (JobID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidJobID
	}
	// Canonical form only, so "{...}" and urn: variants never name a file.
	if u.String() != s {
		return "", ErrInvalidJobID
	}
	return JobID(s), nil
}

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// Filename returns the name of the stored output file for this job.
func (id JobID) Filename() string {
	return string(id) + VideoExt
}

// Job describes one conversion from request to stored output.
type Job struct {
	ID          JobID
	SourceURL   string
	ResolvedURL string
	InputPath   string
	OutputPath  string
}
