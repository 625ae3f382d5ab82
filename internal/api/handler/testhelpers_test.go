package handler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/iconidentify/dsconvert/internal/config"
	"github.com/iconidentify/dsconvert/internal/domain"
	"github.com/iconidentify/dsconvert/internal/repository"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockVideoService stores videos in a real directory; Convert returns the
// configured result without doing any work.
type mockVideoService struct {
	repo       *repository.FilesystemVideoRepository
	convertID  domain.JobID
	convertErr error
	listErr    error
	deleteErr  error
	converted  []string
}

func newMockVideoService(t *testing.T) *mockVideoService {
	t.Helper()
	repo := repository.NewFilesystemVideoRepository(config.StorageConfig{VideoDir: t.TempDir()})
	if err := repo.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return &mockVideoService{repo: repo}
}

// addVideo stores a video with the given content and returns its ID.
func (m *mockVideoService) addVideo(t *testing.T, content []byte) domain.JobID {
	t.Helper()
	id := domain.NewJobID()
	if err := os.WriteFile(m.repo.Path(id), content, 0644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return id
}

func (m *mockVideoService) addFile(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(m.repo.Dir(), name), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func (m *mockVideoService) Convert(ctx context.Context, rawURL string) (domain.JobID, error) {
	m.converted = append(m.converted, rawURL)
	if m.convertErr != nil {
		return "", m.convertErr
	}
	return m.convertID, nil
}

func (m *mockVideoService) Exists(ctx context.Context, id domain.JobID) bool {
	return m.repo.Exists(ctx, id)
}

func (m *mockVideoService) Path(id domain.JobID) string {
	return m.repo.Path(id)
}

func (m *mockVideoService) List(ctx context.Context) ([]domain.StoredVideo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.repo.List(ctx)
}

func (m *mockVideoService) Delete(ctx context.Context, id domain.JobID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.repo.Delete(ctx, id)
}

func (m *mockVideoService) DeleteAll(ctx context.Context) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.repo.DeleteAll(ctx)
}

type mockFFmpeg struct {
	available bool
	running   int
}

func (m *mockFFmpeg) Available() bool { return m.available }
func (m *mockFFmpeg) Running() int    { return m.running }
