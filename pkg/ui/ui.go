// Package ui renders the converter's HTML pages.
//
// Pages are plain HTML: the Nintendo 3DS browser has no
// support for modern layout or scripting beyond simple redirects.
package ui

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/dsconvert/internal/domain"
)

//go:embed *.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "*.html"))

// VideoEntry is one stored video on the home page.
type VideoEntry struct {
	ID   string
	Size string
	Age  string
}

// IndexPage is the home page: the convert form plus stored videos.
type IndexPage struct {
	Videos []VideoEntry
}

// PlayerPage shows a converted video.
type PlayerPage struct {
	ID       string
	VideoURL string
}

// ErrorPage reports a failed conversion. Detail is only set when verbose
// diagnostics are enabled.
type ErrorPage struct {
	Message string
	Detail  string
}

// NewIndexPage builds the home page model for the given stored videos.
func NewIndexPage(videos []domain.StoredVideo, now time.Time) IndexPage {
	page := IndexPage{Videos: make([]VideoEntry, 0, len(videos))}
	for _, v := range videos {
		page.Videos = append(page.Videos, VideoEntry{
			ID:   v.ID.String(),
			Size: humanize.Bytes(uint64(v.Size)),
			Age:  humanize.RelTime(v.ModTime, now, "ago", "from now"),
		})
	}
	return page
}

// RenderIndex writes the home page.
func RenderIndex(w io.Writer, page IndexPage) error {
	return templates.ExecuteTemplate(w, "index", page)
}

// RenderPlayer writes the player page.
func RenderPlayer(w io.Writer, page PlayerPage) error {
	return templates.ExecuteTemplate(w, "player", page)
}

// RenderError writes the conversion error page.
func RenderError(w io.Writer, page ErrorPage) error {
	return templates.ExecuteTemplate(w, "error", page)
}
