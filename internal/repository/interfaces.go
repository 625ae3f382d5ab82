package repository

import (
	"context"

	"github.com/iconidentify/dsconvert/internal/domain"
)

// VideoRepository stores converted videos. The presence of a video file is
// the only record that a job completed.
type VideoRepository interface {
	// Exists reports whether the finished video for id is stored.
	Exists(ctx context.Context, id domain.JobID) bool

	// Path returns where the finished video for id lives.
	Path(id domain.JobID) string

	// InputPath returns where the downloaded source for id is kept while it
	// is transcoded.
	InputPath(id domain.JobID) string

	// StagingPath returns where the transcoder writes output for id before
	// Commit makes it visible.
	StagingPath(id domain.JobID) string

	// Commit publishes the staged output for id.
	Commit(ctx context.Context, id domain.JobID) error

	// Delete removes the video for id. Deleting a missing video is not an error.
	Delete(ctx context.Context, id domain.JobID) error

	// List returns all stored videos, newest first.
	List(ctx context.Context) ([]domain.StoredVideo, error)

	// DeleteAll removes every stored video and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)
}
