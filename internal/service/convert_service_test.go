package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/iconidentify/dsconvert/internal/config"
	"github.com/iconidentify/dsconvert/internal/domain"
	"github.com/iconidentify/dsconvert/internal/repository"
)

type fakeFinder struct {
	link   string
	ok     bool
	called []string
}

func (f *fakeFinder) FindVideoLink(ctx context.Context, pageURL string) (string, bool) {
	f.called = append(f.called, pageURL)
	return f.link, f.ok
}

type fakeFetcher struct {
	err    error
	urls   []string
	ctxErr error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	f.urls = append(f.urls, url)
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(dest, []byte("source"), 0644); err != nil {
		return 0, err
	}
	return 6, nil
}

type fakeTranscoder struct {
	err    error
	inputs []string
}

func (f *fakeTranscoder) Transcode(ctx context.Context, input, output string) error {
	f.inputs = append(f.inputs, input)
	defer os.Remove(input)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte("mp4"), 0644)
}

type testEnv struct {
	svc        *ConvertService
	repo       *repository.FilesystemVideoRepository
	finder     *fakeFinder
	fetcher    *fakeFetcher
	transcoder *fakeTranscoder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	storage := config.StorageConfig{VideoDir: filepath.Join(t.TempDir(), "videos")}
	repo := repository.NewFilesystemVideoRepository(storage)
	if err := repo.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	env := &testEnv{
		repo:       repo,
		finder:     &fakeFinder{},
		fetcher:    &fakeFetcher{},
		transcoder: &fakeTranscoder{},
	}
	env.svc = NewConvertService(repo, env.finder, env.fetcher, env.transcoder, storage,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return env
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestConvertService_Convert_NoURL(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Convert(context.Background(), "")
	if !errors.Is(err, domain.ErrNoURL) {
		t.Errorf("err = %v, want ErrNoURL", err)
	}
}

func TestConvertService_Convert_DirectURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.Convert(ctx, "https://cdn.example/clip.mp4")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if len(env.finder.called) != 0 {
		t.Errorf("scraper should not run for a direct URL, called with %v", env.finder.called)
	}
	if len(env.fetcher.urls) != 1 || env.fetcher.urls[0] != "https://cdn.example/clip.mp4" {
		t.Errorf("fetched %v", env.fetcher.urls)
	}
	if !env.svc.Exists(ctx, id) {
		t.Error("converted video should exist")
	}
	if env.transcoder.inputs[0] != env.repo.InputPath(id) {
		t.Errorf("transcoder input = %q, want %q", env.transcoder.inputs[0], env.repo.InputPath(id))
	}

	names := dirEntries(t, env.repo.Dir())
	if len(names) != 1 || names[0] != id.Filename() {
		t.Errorf("directory = %v, want only %s", names, id.Filename())
	}
}

func TestConvertService_Convert_ScrapesPage(t *testing.T) {
	env := newTestEnv(t)
	env.finder.link = "https://cdn.example/found.webm"
	env.finder.ok = true

	if _, err := env.svc.Convert(context.Background(), "https://host.example/watch/abc"); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if len(env.finder.called) != 1 || env.finder.called[0] != "https://host.example/watch/abc" {
		t.Errorf("scraper called with %v", env.finder.called)
	}
	if len(env.fetcher.urls) != 1 || env.fetcher.urls[0] != "https://cdn.example/found.webm" {
		t.Errorf("fetched %v, want the scraped link", env.fetcher.urls)
	}
}

func TestConvertService_Convert_ScrapeNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Convert(context.Background(), "https://host.example/watch/abc")
	if !errors.Is(err, domain.ErrNoVideoLink) {
		t.Fatalf("err = %v, want ErrNoVideoLink", err)
	}

	var convErr *domain.ConversionError
	if !errors.As(err, &convErr) || convErr.Op != "resolve" {
		t.Errorf("err should be a resolve ConversionError, got %v", err)
	}
	if len(env.fetcher.urls) != 0 {
		t.Error("nothing should be downloaded when scraping fails")
	}
}

func TestConvertService_Convert_RewritesWikimedia(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.Convert(context.Background(), "https://commons.wikimedia.org/wiki/File:Clip.webm"); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	want := "https://upload.wikimedia.org/wikipedia/commons/Clip.webm"
	if len(env.fetcher.urls) != 1 || env.fetcher.urls[0] != want {
		t.Errorf("fetched %v, want %s", env.fetcher.urls, want)
	}
}

func TestConvertService_Convert_UnsupportedHost(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Convert(context.Background(), "https://youtu.be/abc")
	if !errors.Is(err, domain.ErrUnsupportedHost) {
		t.Errorf("err = %v, want ErrUnsupportedHost", err)
	}
}

func TestConvertService_Convert_DownloadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.err = domain.ErrHTMLContent

	_, err := env.svc.Convert(context.Background(), "https://cdn.example/clip.mp4")
	if !errors.Is(err, domain.ErrHTMLContent) {
		t.Fatalf("err = %v, want ErrHTMLContent", err)
	}
	if len(env.transcoder.inputs) != 0 {
		t.Error("transcoder should not run after a failed download")
	}
	if names := dirEntries(t, env.repo.Dir()); len(names) != 0 {
		t.Errorf("directory should be empty, got %v", names)
	}
}

func TestConvertService_Convert_TranscodeFailure(t *testing.T) {
	env := newTestEnv(t)
	inner := errors.New("exit status 1")
	env.transcoder.err = inner

	_, err := env.svc.Convert(context.Background(), "https://cdn.example/clip.mp4")
	if !errors.Is(err, domain.ErrTranscodeFailed) {
		t.Fatalf("err = %v, want ErrTranscodeFailed", err)
	}
	if !errors.Is(err, inner) {
		t.Error("transcoder error should stay in the chain")
	}
	if names := dirEntries(t, env.repo.Dir()); len(names) != 0 {
		t.Errorf("directory should be empty, got %v", names)
	}
}

func TestConvertService_Convert_IgnoresCallerCancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.svc.Convert(ctx, "https://cdn.example/clip.mp4"); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if env.fetcher.ctxErr != nil {
		t.Errorf("fetch context err = %v, want nil", env.fetcher.ctxErr)
	}
}

func TestConvertService_Convert_StorageFull(t *testing.T) {
	env := newTestEnv(t)
	env.svc.cfg.MinFreeBytes = 1 << 30
	env.svc.freeSpace = func(string) int64 { return 1024 }

	_, err := env.svc.Convert(context.Background(), "https://cdn.example/clip.mp4")
	if !errors.Is(err, domain.ErrStorageFull) {
		t.Fatalf("err = %v, want ErrStorageFull", err)
	}
	if len(env.fetcher.urls) != 0 {
		t.Error("nothing should be downloaded when storage is full")
	}

	// An unknown free-space reading does not block conversions.
	env.svc.freeSpace = func(string) int64 { return 0 }
	if _, err := env.svc.Convert(context.Background(), "https://cdn.example/clip.mp4"); err != nil {
		t.Errorf("Convert failed: %v", err)
	}
}

func TestConvertService_Convert_UniqueIDs(t *testing.T) {
	env := newTestEnv(t)

	a, err := env.svc.Convert(context.Background(), "https://cdn.example/a.mp4")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	b, err := env.svc.Convert(context.Background(), "https://cdn.example/b.mp4")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if a == b {
		t.Errorf("job IDs should differ, both %s", a)
	}
}

func TestConvertService_DeleteAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []domain.JobID
	for i := 0; i < 3; i++ {
		id, err := env.svc.Convert(ctx, "https://cdn.example/clip.mp4")
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		ids = append(ids, id)
	}

	videos, err := env.svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(videos) != 3 {
		t.Errorf("len(videos) = %d, want 3", len(videos))
	}

	if err := env.svc.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if env.svc.Exists(ctx, ids[0]) {
		t.Error("deleted video should not exist")
	}
	if err := env.svc.Delete(ctx, ids[0]); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}

	count, err := env.svc.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestGetFreeDiskSpace(t *testing.T) {
	if got := getFreeDiskSpace(filepath.Join(t.TempDir(), "missing")); got != 0 {
		t.Errorf("missing directory = %d, want 0", got)
	}
	if _, err := availableBytes(t.TempDir()); err == nil {
		if got := getFreeDiskSpace(t.TempDir()); got <= 0 {
			t.Errorf("free space = %d, want > 0", got)
		}
	}
}
