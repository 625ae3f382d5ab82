package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iconidentify/dsconvert/internal/config"
	"github.com/iconidentify/dsconvert/internal/domain"
	"github.com/iconidentify/dsconvert/internal/metrics"
)

const (
	// SniffThreshold is the size below which a download is checked for HTML.
	// Real videos are expected to be larger; a small HTML-looking payload is
	// usually a login wall or an error page.
	SniffThreshold = 10000

	// sniffLength is how many leading bytes are inspected for HTML markers.
	sniffLength = 500
)

var htmlMarkers = [][]byte{[]byte("<html"), []byte("<!DOCTYPE")}

// HTTPDownloader implements Fetcher using HTTP requests.
type HTTPDownloader struct {
	// client has no overall timeout; large downloads are bounded only by
	// the response-header timeout and the optional stall timeout.
	client    *http.Client
	userAgent string
	cfg       config.DownloadConfig
	logger    *slog.Logger
}

// NewHTTPDownloader creates a new HTTP-based video downloader.
func NewHTTPDownloader(cfg config.DownloadConfig) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{
			Transport: NewTransport(cfg.ResponseHeaderTimeout),
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for download progress reporting.
func (d *HTTPDownloader) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// Fetch downloads url into dest. It rejects non-success statuses, declared
// HTML content types, and small payloads that look like HTML pages.
func (d *HTTPDownloader) Fetch(ctx context.Context, url, dest string) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	SetMediaHeaders(req, d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %d %s", domain.ErrDownloadFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	d.logger.Debug("download response",
		"url", url,
		"content_type", contentType,
		"content_length", resp.ContentLength,
	)
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return 0, domain.ErrHTMLContent
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	body := newProgressReader(resp.Body, resp.ContentLength, d.logger, url)
	if d.cfg.StallTimeout > 0 {
		body.watchStall(d.cfg.StallTimeout, cancel)
	}

	n, err := io.Copy(f, body)
	body.Close()
	metrics.DownloadBytesTotal.Add(float64(n))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		if body.stalled() {
			return 0, fmt.Errorf("download stalled: no data received for %v", d.cfg.StallTimeout)
		}
		return 0, fmt.Errorf("write file: %w", err)
	}

	if d.logger.Enabled(ctx, slog.LevelDebug) {
		d.logger.Debug("download completed", "url", url, "bytes", n, "detected_type", DetectType(dest))
	}

	if n < SniffThreshold {
		looksHTML, err := sniffHTML(dest)
		if err != nil {
			os.Remove(dest)
			return 0, fmt.Errorf("inspect file: %w", err)
		}
		if looksHTML {
			os.Remove(dest)
			return 0, domain.ErrHTMLPayload
		}
	}

	return n, nil
}

// DetectType returns the MIME type guessed from the file's content, or
// "unknown" if the file cannot be read.
func DetectType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "unknown"
	}
	return mt.String()
}

// sniffHTML reports whether the first bytes of the file carry an HTML marker.
func sniffHTML(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	head = head[:n]

	for _, marker := range htmlMarkers {
		if bytes.Contains(head, marker) {
			return true, nil
		}
	}
	return false, nil
}

// progressReader wraps an io.ReadCloser to log download progress and,
// optionally, to abort when no data arrives for a while.
type progressReader struct {
	reader     io.ReadCloser
	total      int64
	downloaded int64
	lastLog    time.Time
	logger     *slog.Logger
	url        string
	mu         sync.Mutex
	closed     bool
	stall      *time.Timer
	stallAfter time.Duration
	didStall   bool
}

func newProgressReader(r io.ReadCloser, total int64, logger *slog.Logger, url string) *progressReader {
	return &progressReader{
		reader:  r,
		total:   total,
		lastLog: time.Now(),
		logger:  logger,
		url:     url,
	}
}

// watchStall calls abort when no data has been read for timeout.
func (p *progressReader) watchStall(timeout time.Duration, abort context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stallAfter = timeout
	p.stall = time.AfterFunc(timeout, func() {
		p.mu.Lock()
		p.didStall = true
		p.mu.Unlock()
		abort()
	})
}

func (p *progressReader) stalled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.didStall
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.downloaded += int64(n)
		if p.stall != nil && !p.didStall {
			p.stall.Reset(p.stallAfter)
		}
		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.stall != nil {
		p.stall.Stop()
	}
	p.mu.Unlock()

	return p.reader.Close()
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Debug("download progress",
			"url", p.url,
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Debug("download progress",
			"url", p.url,
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}
