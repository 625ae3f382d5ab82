package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/iconidentify/dsconvert/internal/config"
	"github.com/iconidentify/dsconvert/internal/domain"
	"github.com/iconidentify/dsconvert/internal/downloader"
	"github.com/iconidentify/dsconvert/internal/metrics"
	"github.com/iconidentify/dsconvert/internal/repository"
	"github.com/iconidentify/dsconvert/internal/resolver"
)

// LinkFinder locates a direct video link on a hosting page.
type LinkFinder interface {
	FindVideoLink(ctx context.Context, pageURL string) (string, bool)
}

// Transcoder converts a downloaded source into the handheld MP4 profile.
// Implementations remove input when they return.
type Transcoder interface {
	Transcode(ctx context.Context, input, output string) error
}

// ConvertService runs the fetch and transcode pipeline for one URL at a time
// per call. Calls are independent; concurrent conversions never share files
// because every job gets a fresh ID.
type ConvertService struct {
	videoRepo  repository.VideoRepository
	scraper    LinkFinder
	fetcher    downloader.Fetcher
	transcoder Transcoder
	cfg        config.StorageConfig
	logger     *slog.Logger

	freeSpace func(path string) int64
}

// NewConvertService creates a new conversion service.
func NewConvertService(
	videoRepo repository.VideoRepository,
	scraper LinkFinder,
	fetcher downloader.Fetcher,
	transcoder Transcoder,
	storageCfg config.StorageConfig,
	logger *slog.Logger,
) *ConvertService {
	return &ConvertService{
		videoRepo:  videoRepo,
		scraper:    scraper,
		fetcher:    fetcher,
		transcoder: transcoder,
		cfg:        storageCfg,
		logger:     logger,
		freeSpace:  getFreeDiskSpace,
	}
}

// Convert downloads rawURL, transcodes it and stores the result. It blocks
// until the job finishes and returns the new job ID. The work is not tied
// to ctx cancellation: a client that goes away does not abort ffmpeg.
func (s *ConvertService) Convert(ctx context.Context, rawURL string) (domain.JobID, error) {
	if rawURL == "" {
		return "", domain.ErrNoURL
	}

	ctx = context.WithoutCancel(ctx)

	metrics.ConversionsInProgress.Inc()
	defer metrics.ConversionsInProgress.Dec()

	id := domain.NewJobID()
	logger := s.logger.With("job_id", id.String())
	logger.Info("conversion started", "url", rawURL)

	job := &domain.Job{
		ID:         id,
		SourceURL:  rawURL,
		InputPath:  s.videoRepo.InputPath(id),
		OutputPath: s.videoRepo.Path(id),
	}
	logger.Debug("job paths", "input", job.InputPath, "output", job.OutputPath)

	resolved, err := s.resolve(ctx, rawURL, logger)
	if err != nil {
		return "", s.fail(job, "resolve", metrics.ResultResolveError, err, logger)
	}
	job.ResolvedURL = resolved

	if err := s.checkFreeSpace(); err != nil {
		return "", s.fail(job, "check storage", metrics.ResultStorageError, err, logger)
	}

	// Input is transient whatever happens below.
	defer removeFile(job.InputPath, logger)

	logger.Debug("downloading video", "url", resolved)
	start := time.Now()
	size, err := s.fetcher.Fetch(ctx, resolved, job.InputPath)
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", s.fail(job, "download", metrics.ResultDownloadError, err, logger)
	}
	logger.Debug("download completed", "bytes", size)

	logger.Debug("converting to MP4")
	start = time.Now()
	err = s.transcoder.Transcode(ctx, job.InputPath, s.videoRepo.StagingPath(id))
	metrics.StageDuration.WithLabelValues("transcode").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", s.fail(job, "transcode", metrics.ResultTranscodeError, fmt.Errorf("%w: %w", domain.ErrTranscodeFailed, err), logger)
	}

	if err := s.videoRepo.Commit(ctx, id); err != nil {
		return "", s.fail(job, "store", metrics.ResultStorageError, err, logger)
	}

	metrics.ConversionsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	logger.Info("conversion completed", "output", job.OutputPath)
	return id, nil
}

// resolve turns the submitted URL into one that should return video bytes.
func (s *ConvertService) resolve(ctx context.Context, rawURL string, logger *slog.Logger) (string, error) {
	target, err := resolver.Rewrite(rawURL)
	if err != nil {
		return "", err
	}
	if target != rawURL {
		logger.Debug("using direct URL", "url", target)
	}

	if resolver.IsDirectVideoURL(target) {
		return target, nil
	}

	logger.Debug("URL does not look like a video file, searching page for a video link", "url", target)
	link, ok := s.scraper.FindVideoLink(ctx, target)
	if !ok {
		return "", domain.ErrNoVideoLink
	}
	logger.Debug("found video link on page", "link", link)
	return link, nil
}

func (s *ConvertService) checkFreeSpace() error {
	if s.cfg.MinFreeBytes <= 0 {
		return nil
	}
	// Zero means the filesystem could not be queried; don't block on that.
	if free := s.freeSpace(s.cfg.VideoDir); free > 0 && free < s.cfg.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free, %d required", domain.ErrStorageFull, free, s.cfg.MinFreeBytes)
	}
	return nil
}

func (s *ConvertService) fail(job *domain.Job, op, result string, err error, logger *slog.Logger) error {
	metrics.ConversionsTotal.WithLabelValues(result).Inc()
	logger.Error("conversion failed", "op", op, "url", job.SourceURL, "error", err)
	return domain.NewConversionError(job.ID, op, err)
}

// Exists reports whether the converted video for id is stored.
func (s *ConvertService) Exists(ctx context.Context, id domain.JobID) bool {
	return s.videoRepo.Exists(ctx, id)
}

// Path returns the stored file for id.
func (s *ConvertService) Path(id domain.JobID) string {
	return s.videoRepo.Path(id)
}

// List returns all stored videos, newest first.
func (s *ConvertService) List(ctx context.Context) ([]domain.StoredVideo, error) {
	return s.videoRepo.List(ctx)
}

// Delete removes the stored video for id. Missing videos are ignored.
func (s *ConvertService) Delete(ctx context.Context, id domain.JobID) error {
	existed := s.videoRepo.Exists(ctx, id)
	if err := s.videoRepo.Delete(ctx, id); err != nil {
		return err
	}
	if existed {
		metrics.StoredVideosDeleted.Inc()
		s.logger.Debug("deleted video", "job_id", id.String())
	}
	return nil
}

// DeleteAll removes every stored video and returns how many were removed.
func (s *ConvertService) DeleteAll(ctx context.Context) (int, error) {
	count, err := s.videoRepo.DeleteAll(ctx)
	metrics.StoredVideosDeleted.Add(float64(count))
	if err != nil {
		return count, err
	}
	s.logger.Debug("deleted video files", "count", count)
	return count, nil
}

// getFreeDiskSpace returns 0 when the filesystem cannot be queried.
func getFreeDiskSpace(dir string) int64 {
	n, err := availableBytes(dir)
	if err != nil {
		return 0
	}
	return n
}

func removeFile(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove file", "path", path, "error", err)
	}
}
