package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var startTime = time.Now()

// FFmpegProbe reports on the transcoder binary.
type FFmpegProbe interface {
	Available() bool
	Running() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	videoSvc VideoService
	ffmpeg   FFmpegProbe
	videoDir string
	cpu      cpuSampler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(videoSvc VideoService, ffmpeg FFmpegProbe, videoDir string) *HealthHandler {
	return &HealthHandler{
		videoSvc: videoSvc,
		ffmpeg:   ffmpeg,
		videoDir: videoDir,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Problems  []string `json:"problems,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The service is ready when
// ffmpeg is installed and the video directory is writable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var problems []string
	if !h.ffmpeg.Available() {
		problems = append(problems, "ffmpeg not found")
	}
	if err := checkWritable(h.videoDir); err != nil {
		problems = append(problems, fmt.Sprintf("video directory not writable: %v", err))
	}

	w.Header().Set("Content-Type", "application/json")
	if len(problems) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Problems:  problems,
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime        int64     `json:"uptime_seconds"`
	UptimeHuman   string    `json:"uptime_human"`
	MemAllocMB    int64     `json:"mem_alloc_mb"`
	MemSysMB      int64     `json:"mem_sys_mb"`
	NumGoroutines int       `json:"num_goroutines"`
	NumCPU        int       `json:"num_cpu"`
	CPUPercent    float64   `json:"cpu_percent"`
	StoredVideos  int       `json:"stored_videos"`
	StoredBytes   int64     `json:"stored_bytes"`
	ActiveFFmpeg  int       `json:"active_ffmpeg"`
	Disk          DiskUsage `json:"disk"`
	StoragePath   string    `json:"storage_path"`
}

// DiskUsage describes the filesystem holding the video directory. All
// fields are zero when the platform does not report them.
type DiskUsage struct {
	TotalBytes int64   `json:"total_bytes"`
	FreeBytes  int64   `json:"free_bytes"`
	UsedBytes  int64   `json:"used_bytes"`
	UsedPct    float64 `json:"used_pct"`
}

func newDiskUsage(total, free int64) DiskUsage {
	d := DiskUsage{TotalBytes: total, FreeBytes: free, UsedBytes: total - free}
	if total > 0 {
		d.UsedPct = float64(d.UsedBytes) / float64(total) * 100
	}
	return d
}

// cpuSampler turns cumulative process CPU time into a percentage of one
// core since the previous sample. The first sample reports 0.
type cpuSampler struct {
	mu       sync.Mutex
	lastCPU  time.Duration
	lastWall time.Time
}

func (c *cpuSampler) sample(now time.Time) float64 {
	used, ok := processCPUTime()
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prevCPU, prevWall := c.lastCPU, c.lastWall
	c.lastCPU, c.lastWall = used, now
	if prevWall.IsZero() {
		return 0
	}
	return cpuPercent(used-prevCPU, now.Sub(prevWall))
}

// cpuPercent is cpu/wall as a percentage, clamped to [0, 100].
func cpuPercent(cpu, wall time.Duration) float64 {
	if wall <= 0 {
		return 0
	}
	pct := float64(cpu) / float64(wall) * 100
	return min(max(pct, 0), 100)
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUPercent:    h.cpu.sample(time.Now()),
		ActiveFFmpeg:  h.ffmpeg.Running(),
		StoragePath:   h.videoDir,
	}
	if abs, err := filepath.Abs(h.videoDir); err == nil {
		stats.StoragePath = abs
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if videos, err := h.videoSvc.List(ctx); err == nil {
		stats.StoredVideos = len(videos)
		for _, v := range videos {
			stats.StoredBytes += v.Size
		}
	}

	stats.Disk = diskUsage(h.videoDir)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
