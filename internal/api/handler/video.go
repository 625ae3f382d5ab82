package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/dsconvert/internal/domain"
	"github.com/iconidentify/dsconvert/pkg/ffmpeg"
	"github.com/iconidentify/dsconvert/pkg/ui"
)

// VideoService is the conversion pipeline as seen by the HTTP layer.
type VideoService interface {
	Convert(ctx context.Context, rawURL string) (domain.JobID, error)
	Exists(ctx context.Context, id domain.JobID) bool
	Path(id domain.JobID) string
	List(ctx context.Context) ([]domain.StoredVideo, error)
	Delete(ctx context.Context, id domain.JobID) error
	DeleteAll(ctx context.Context) (int, error)
}

// VideoHandler serves the converter pages and the delete endpoints.
type VideoHandler struct {
	videoSvc  VideoService
	mediaPort int
	verbose   bool
	logger    *slog.Logger
}

// NewVideoHandler creates a new video handler. mediaPort is the plain-HTTP
// port used in player URLs; verbose adds diagnostics to error pages.
func NewVideoHandler(videoSvc VideoService, mediaPort int, verbose bool, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		videoSvc:  videoSvc,
		mediaPort: mediaPort,
		verbose:   verbose,
		logger:    logger,
	}
}

// Home handles GET / - the convert form and stored videos.
func (h *VideoHandler) Home(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videoSvc.List(r.Context())
	if err != nil {
		// The form is still usable without the list.
		h.logger.Warn("list videos failed", "error", err)
		videos = nil
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.RenderIndex(w, ui.NewIndexPage(videos, time.Now())); err != nil {
		h.logger.Error("render index failed", "error", err)
	}
}

// Convert handles GET /convert?url=... It blocks until the conversion
// finishes, then redirects to the player page.
func (h *VideoHandler) Convert(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		http.Error(w, "No URL provided", http.StatusBadRequest)
		return
	}

	id, err := h.videoSvc.Convert(r.Context(), rawURL)
	if err != nil {
		if errors.Is(err, domain.ErrNoURL) {
			http.Error(w, "No URL provided", http.StatusBadRequest)
			return
		}
		h.writeConvertError(w, err)
		return
	}

	http.Redirect(w, r, "/video/"+id.String(), http.StatusFound)
}

func (h *VideoHandler) writeConvertError(w http.ResponseWriter, err error) {
	page := ui.ErrorPage{Message: err.Error()}

	var convErr *domain.ConversionError
	if errors.As(err, &convErr) {
		page.Message = convErr.Err.Error()
	}
	if h.verbose {
		page.Detail = errorDetail(err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if renderErr := ui.RenderError(w, page); renderErr != nil {
		h.logger.Error("render error page failed", "error", renderErr)
	}
}

// errorDetail lists the error chain, plus ffmpeg output when the
// transcoder failed.
func errorDetail(err error) string {
	var sb strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&sb, "%T: %v\n", e, e)
	}

	var exitErr *ffmpeg.ExitError
	if errors.As(err, &exitErr) && exitErr.Stderr != "" {
		sb.WriteString("\nffmpeg output:\n")
		sb.WriteString(exitErr.Stderr)
	}
	return sb.String()
}

// Player handles GET /video/{id}
func (h *VideoHandler) Player(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseJobID(chi.URLParam(r, "id"))
	if err != nil || !h.videoSvc.Exists(r.Context(), id) {
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.RenderPlayer(w, ui.PlayerPage{
		ID:       id.String(),
		VideoURL: h.mediaURL(r, id),
	}); err != nil {
		h.logger.Error("render player failed", "error", err)
	}
}

// mediaURL builds the plain-HTTP media URL for id on the host the client
// used, since the handheld browser cannot play video over HTTPS.
func (h *VideoHandler) mediaURL(r *http.Request, id domain.JobID) string {
	host := r.Host
	if hostname, _, err := net.SplitHostPort(host); err == nil {
		host = hostname
	}
	return fmt.Sprintf("http://%s/videos/%s", net.JoinHostPort(host, strconv.Itoa(h.mediaPort)), id.Filename())
}

// Delete handles GET /delete/{id}. Unknown or malformed IDs are ignored.
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if id, err := domain.ParseJobID(chi.URLParam(r, "id")); err == nil {
		if err := h.videoSvc.Delete(r.Context(), id); err != nil {
			h.logger.Error("delete failed", "job_id", id.String(), "error", err)
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// DeleteAll handles GET /delete-all
func (h *VideoHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.videoSvc.DeleteAll(r.Context())
	if err != nil {
		h.logger.Error("delete all failed", "deleted", count, "error", err)
		http.Error(w, "Error deleting videos", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// VideoResponse represents a stored video in list responses.
type VideoResponse struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	PageURL   string    `json:"page_url"`
	MediaURL  string    `json:"media_url"`
}

// ListResponse is the JSON response for listing videos.
type ListResponse struct {
	Videos []VideoResponse `json:"videos"`
	Total  int             `json:"total"`
}

// List handles GET /api/v1/videos
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videoSvc.List(r.Context())
	if err != nil {
		h.logger.Error("list failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}

	response := ListResponse{
		Videos: make([]VideoResponse, 0, len(videos)),
		Total:  len(videos),
	}
	for _, v := range videos {
		response.Videos = append(response.Videos, VideoResponse{
			ID:        v.ID.String(),
			Size:      v.Size,
			CreatedAt: v.ModTime.UTC(),
			PageURL:   "/video/" + v.ID.String(),
			MediaURL:  h.mediaURL(r, v.ID),
		})
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *VideoHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *VideoHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
