package resolver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/iconidentify/dsconvert/internal/config"
	"github.com/iconidentify/dsconvert/internal/downloader"
	"github.com/iconidentify/dsconvert/internal/metrics"
)

// maxPageBytes bounds how much of a page is parsed.
const maxPageBytes = 8 << 20

// Scraper looks for a video download link on a hosting page.
type Scraper struct {
	client      *http.Client
	userAgent   string
	containerID string
	logger      *slog.Logger
}

// NewScraper creates a scraper that searches pages for the element whose
// id is cfg.ContainerID. Only the wait for response headers is bounded.
func NewScraper(cfg config.ScrapeConfig, userAgent string, logger *slog.Logger) *Scraper {
	return &Scraper{
		client: &http.Client{
			Transport: downloader.NewTransport(cfg.ResponseHeaderTimeout),
		},
		userAgent:   userAgent,
		containerID: cfg.ContainerID,
		logger:      logger,
	}
}

// FindVideoLink fetches pageURL and returns the first link inside the
// container element if it classifies as a direct video URL. Any failure
// yields ("", false); the caller decides how to report it.
func (s *Scraper) FindVideoLink(ctx context.Context, pageURL string) (string, bool) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("scrape").Observe(time.Since(start).Seconds())
	}()

	base, err := url.Parse(pageURL)
	if err != nil {
		s.logger.Debug("scrape: invalid page URL", "url", pageURL, "error", err)
		metrics.ScrapesTotal.WithLabelValues(metrics.ScrapeFetchError).Inc()
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		s.logger.Debug("scrape: create request", "url", pageURL, "error", err)
		metrics.ScrapesTotal.WithLabelValues(metrics.ScrapeFetchError).Inc()
		return "", false
	}
	downloader.SetPageHeaders(req, s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("scrape: fetch page", "url", pageURL, "error", err)
		metrics.ScrapesTotal.WithLabelValues(metrics.ScrapeFetchError).Inc()
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug("scrape: unexpected status", "url", pageURL, "status", resp.StatusCode)
		metrics.ScrapesTotal.WithLabelValues(metrics.ScrapeBadStatus).Inc()
		return "", false
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		s.logger.Debug("scrape: parse page", "url", pageURL, "error", err)
		metrics.ScrapesTotal.WithLabelValues(metrics.ScrapeFetchError).Inc()
		return "", false
	}

	s.logger.Debug("scrape: searching for container", "url", pageURL, "id", s.containerID)

	link, outcome := ExtractVideoLink(doc, s.containerID, base)
	metrics.ScrapesTotal.WithLabelValues(outcome).Inc()

	switch outcome {
	case metrics.ScrapeFound:
		s.logger.Debug("scrape: found video link", "url", pageURL, "link", link)
		return link, true
	case metrics.ScrapeNoContainer:
		links := collectLinks(doc, 3)
		s.logger.Debug("scrape: container not found", "url", pageURL, "id", s.containerID, "first_links", links)
	case metrics.ScrapeNoLink:
		if c := findByID(doc, s.containerID); c != nil {
			s.logger.Debug("scrape: container has no link", "url", pageURL, "content", renderNode(c))
		}
	case metrics.ScrapeRejected:
		s.logger.Debug("scrape: link does not look like a video file", "url", pageURL, "link", link)
	}
	return "", false
}

// ExtractVideoLink finds the first element with the given id, then the
// first <a href> inside it, resolves the href against base and classifies
// it. It returns the link and a metrics.Scrape* outcome; the link is only
// meaningful for ScrapeFound and ScrapeRejected.
func ExtractVideoLink(doc *html.Node, containerID string, base *url.URL) (string, string) {
	container := findByID(doc, containerID)
	if container == nil {
		return "", metrics.ScrapeNoContainer
	}

	href := firstHref(container)
	if href == "" {
		return "", metrics.ScrapeNoLink
	}

	link := href
	if base != nil && !strings.HasPrefix(href, "#") {
		if ref, err := url.Parse(href); err == nil {
			link = base.ResolveReference(ref).String()
		}
	}

	if !IsDirectVideoURL(link) {
		return link, metrics.ScrapeRejected
	}
	return link, metrics.ScrapeFound
}

// findByID returns the first element in document order whose id attribute
// equals id.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// firstHref returns the trimmed href of the first anchor below n.
func firstHref(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.A {
			if href := strings.TrimSpace(attr(c, "href")); href != "" {
				return href
			}
		}
		if href := firstHref(c); href != "" {
			return href
		}
	}
	return ""
}

func collectLinks(n *html.Node, limit int) []string {
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(links) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if href := attr(n, "href"); href != "" {
				links = append(links, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return links
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	out := sb.String()
	if len(out) > 1000 {
		out = out[:1000] + "..."
	}
	return out
}
