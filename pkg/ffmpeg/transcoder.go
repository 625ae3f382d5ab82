// Package ffmpeg runs the external ffmpeg binary with the fixed output
// profile the handheld player can decode.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Output profile. The handheld browser decodes nothing larger than 480x240
// baseline H.264, so these are not configurable.
const (
	Width        = 480
	Height       = 240
	FrameRate    = 25
	VideoProfile = "baseline"
	VideoLevel   = "3.0"
	Preset       = "ultrafast"
	CRF          = 28
	AudioBitrate = "96k"
	AudioRate    = 44100
	AudioChans   = 2
)

// ErrStopped is returned by Transcode once Cleanup has run.
var ErrStopped = errors.New("ffmpeg: transcoder stopped")

// ExitError is returned when ffmpeg fails. Stderr holds the diagnostic
// output verbatim; Error only repeats its last line.
type ExitError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return "ffmpeg: " + e.Err.Error()
	}
	if i := strings.LastIndexByte(stderr, '\n'); i != -1 {
		stderr = strings.TrimSpace(stderr[i+1:])
	}
	return "ffmpeg: " + e.Err.Error() + ": " + stderr
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Transcoder invokes ffmpeg and tracks running processes so they can be
// killed at shutdown.
type Transcoder struct {
	ffmpegPath string
	logger     *slog.Logger
	processes  map[string]*exec.Cmd
	stopped    bool
	processMu  sync.Mutex
}

// New creates a Transcoder that runs the binary at ffmpegPath, which may
// be a bare name resolved through PATH.
func New(ffmpegPath string, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		logger:     logger,
		processes:  make(map[string]*exec.Cmd),
	}
}

// Args returns the ffmpeg arguments for converting input into output.
func Args(input, output string) []string {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		Width, Height, Width, Height,
	)
	return []string{
		"-y",
		"-i", input,
		"-vf", filter,
		"-r", fmt.Sprint(FrameRate),
		"-c:v", "libx264",
		"-profile:v", VideoProfile,
		"-level", VideoLevel,
		"-preset", Preset,
		"-crf", fmt.Sprint(CRF),
		"-c:a", "aac",
		"-b:a", AudioBitrate,
		"-ar", fmt.Sprint(AudioRate),
		"-ac", fmt.Sprint(AudioChans),
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	}
}

// Transcode converts input into output and blocks until ffmpeg exits.
// The input file is always removed afterwards; on failure any partial
// output is removed too.
func (t *Transcoder) Transcode(ctx context.Context, input, output string) error {
	defer t.removeIfExists(input)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, Args(input, output)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.logger.Debug("starting ffmpeg", "args", strings.Join(cmd.Args, " "))

	// Start and registration happen under one lock so Cleanup either sees
	// a started process or stops it from starting.
	t.processMu.Lock()
	if t.stopped {
		t.processMu.Unlock()
		return ErrStopped
	}
	err := cmd.Start()
	if err == nil {
		t.processes[output] = cmd
	}
	t.processMu.Unlock()

	if err == nil {
		err = cmd.Wait()

		t.processMu.Lock()
		delete(t.processes, output)
		t.processMu.Unlock()
	}

	if err != nil {
		t.removeIfExists(output)

		exitErr := &ExitError{ExitCode: -1, Stderr: stderr.String(), Err: err}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitErr.ExitCode = ee.ExitCode()
		}
		t.logger.Error("ffmpeg failed",
			"output", output,
			"exit_code", exitErr.ExitCode,
			"stderr", exitErr.Stderr,
		)
		return exitErr
	}

	t.logger.Debug("ffmpeg completed", "output", output)
	return nil
}

// Cleanup kills all running ffmpeg processes. Later Transcode calls fail
// with ErrStopped.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	t.stopped = true
	for output, cmd := range t.processes {
		t.logger.Info("killing transcoding process", "output", output)
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			t.logger.Warn("failed to kill transcoding process", "output", output, "error", err)
		}
	}
}

// Running returns the number of ffmpeg processes in flight.
func (t *Transcoder) Running() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Available reports whether the ffmpeg binary can be found.
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.ffmpegPath)
	return err == nil
}

// Version returns the first line of `ffmpeg -version`.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

func (t *Transcoder) removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.logger.Warn("failed to remove file", "path", path, "error", err)
	}
}
