package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/iconidentify/dsconvert/internal/config"
	"github.com/iconidentify/dsconvert/internal/domain"
)

const (
	inputSuffix   = "_input"
	stagingSuffix = ".part"
)

// FilesystemVideoRepository implements VideoRepository on a single flat
// directory of <id>.mp4 files.
//
// There is no locking: a delete racing an in-flight conversion of the same
// id is not guarded against. Output is staged under a name that is never
// listed and renamed into place, so readers never see a half-written video.
type FilesystemVideoRepository struct {
	dir string
}

// NewFilesystemVideoRepository creates a new filesystem-based video repository.
func NewFilesystemVideoRepository(cfg config.StorageConfig) *FilesystemVideoRepository {
	return &FilesystemVideoRepository{
		dir: cfg.VideoDir,
	}
}

// Init creates the video directory if needed.
func (r *FilesystemVideoRepository) Init() error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("create video directory: %w", err)
	}
	return nil
}

// Dir returns the video directory.
func (r *FilesystemVideoRepository) Dir() string {
	return r.dir
}

// Path returns the stored video path for id.
func (r *FilesystemVideoRepository) Path(id domain.JobID) string {
	return filepath.Join(r.dir, id.Filename())
}

// InputPath returns the transient download path for id.
func (r *FilesystemVideoRepository) InputPath(id domain.JobID) string {
	return filepath.Join(r.dir, id.String()+inputSuffix)
}

// StagingPath returns the transcoder output path for id.
func (r *FilesystemVideoRepository) StagingPath(id domain.JobID) string {
	return r.Path(id) + stagingSuffix
}

// Exists reports whether a regular file is stored for id.
func (r *FilesystemVideoRepository) Exists(ctx context.Context, id domain.JobID) bool {
	info, err := os.Stat(r.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Commit renames the staged output into place. It returns
// domain.ErrVideoNotFound when nothing was staged for id.
func (r *FilesystemVideoRepository) Commit(ctx context.Context, id domain.JobID) error {
	if err := os.Rename(r.StagingPath(id), r.Path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: no staged output for %s", domain.ErrVideoNotFound, id)
		}
		os.Remove(r.StagingPath(id))
		return fmt.Errorf("move video to final location: %w", err)
	}
	return nil
}

// Delete removes the stored video for id if present.
func (r *FilesystemVideoRepository) Delete(ctx context.Context, id domain.JobID) error {
	if err := os.Remove(r.Path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete video: %w", err)
	}
	return nil
}

// List enumerates stored videos named after a job ID, newest first.
func (r *FilesystemVideoRepository) List(ctx context.Context) ([]domain.StoredVideo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read video directory: %w", err)
	}

	videos := make([]domain.StoredVideo, 0, len(entries))
	for _, entry := range entries {
		if !isVideoEntry(entry) {
			continue
		}
		// Only "<uuid>.mp4" can be played or deleted by ID.
		id, err := domain.JobIDFromFilename(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		videos = append(videos, domain.StoredVideo{
			ID:       id,
			Filename: entry.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.Slice(videos, func(i, j int) bool {
		return videos[i].ModTime.After(videos[j].ModTime)
	})

	return videos, nil
}

// DeleteAll removes every regular file with the video suffix. Other files
// are left alone. On error it returns the count removed so far.
func (r *FilesystemVideoRepository) DeleteAll(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, fmt.Errorf("read video directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if !isVideoEntry(entry) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, entry.Name())); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("delete %s: %w", entry.Name(), err)
		}
		deleted++
	}

	return deleted, nil
}

// RemoveStale deletes downloads and staged outputs last modified before
// cutoff. With a cutoff well past the longest conversion, only leftovers
// from crashed or killed jobs match.
func (r *FilesystemVideoRepository) RemoveStale(ctx context.Context, cutoff time.Time) (int, error) {
	return r.removeMatching(ctx, cutoff, isTransientEntry)
}

// DeleteOlderThan deletes stored videos last modified before cutoff.
func (r *FilesystemVideoRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return r.removeMatching(ctx, cutoff, isVideoEntry)
}

func (r *FilesystemVideoRepository) removeMatching(ctx context.Context, cutoff time.Time, match func(fs.DirEntry) bool) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, fmt.Errorf("read video directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !match(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, entry.Name())); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("delete %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func isTransientEntry(entry fs.DirEntry) bool {
	name := entry.Name()
	return entry.Type().IsRegular() &&
		(strings.HasSuffix(name, inputSuffix) || strings.HasSuffix(name, domain.VideoExt+stagingSuffix))
}

func isVideoEntry(entry fs.DirEntry) bool {
	return entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), domain.VideoExt)
}
