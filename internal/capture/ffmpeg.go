package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"capsync/internal/config"
	"capsync/internal/ledger"
	"capsync/internal/logging"
)

// FFmpegEngine records one ffmpeg process per track using the segment muxer,
// which appends each finished segment's filename to the track ledger.
type FFmpegEngine struct {
	cfg    config.Capture
	logger *slog.Logger
}

// NewFFmpegEngine builds an engine from the capture config section.
func NewFFmpegEngine(cfg config.Capture, logger *slog.Logger) *FFmpegEngine {
	return &FFmpegEngine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "capture"),
	}
}

// Start launches the video and audio recorders plus a one-shot screenshot
// grab. The returned handle owns both processes; a partial start is rolled
// back before the error is returned.
func (e *FFmpegEngine) Start(ctx context.Context, opts Options) (Handle, error) {
	binary := strings.TrimSpace(e.cfg.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("locate ffmpeg: %w", err)
	}

	logger := e.logger.With(logging.String(logging.FieldSessionID, opts.SessionID))

	video, err := startRecorder(resolved, e.videoArgs(opts.VideoDir), "video", logger)
	if err != nil {
		return nil, fmt.Errorf("start video capture: %w", err)
	}

	audio, err := startRecorder(resolved, e.audioArgs(opts.AudioDir, opts.AudioInput), "audio", logger)
	if err != nil {
		stopErr := video.stop()
		if stopErr != nil {
			logger.Warn("video capture rollback failed", logging.Error(stopErr))
		}
		return nil, fmt.Errorf("start audio capture: %w", err)
	}

	handle := &ffmpegHandle{
		video:  video,
		audio:  audio,
		logger: logger,
	}
	handle.grabScreenshot(ctx, resolved, e.screenshotArgs(opts.ScreenshotDir))
	return handle, nil
}

func (e *FFmpegEngine) videoArgs(dir string) []string {
	format := valueOr(e.cfg.VideoInputFormat, "x11grab")
	input := valueOr(e.cfg.VideoInput, ":0.0")
	framerate := e.cfg.Framerate
	if framerate <= 0 {
		framerate = 30
	}
	return append([]string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", format,
		"-framerate", strconv.Itoa(framerate),
		"-i", input,
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
	}, e.segmentArgs(dir)...)
}

func (e *FFmpegEngine) audioArgs(dir, inputOverride string) []string {
	format := valueOr(e.cfg.AudioInputFormat, "pulse")
	input := valueOr(inputOverride, valueOr(e.cfg.AudioInput, "default"))
	return append([]string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", format,
		"-i", input,
		"-c:a", "aac",
	}, e.segmentArgs(dir)...)
}

func (e *FFmpegEngine) segmentArgs(dir string) []string {
	seconds := e.cfg.SegmentSeconds
	if seconds <= 0 {
		seconds = 3
	}
	return []string{
		"-f", "segment",
		"-segment_time", strconv.Itoa(seconds),
		"-segment_list", ledger.PathIn(dir),
		"-reset_timestamps", "1",
		filepath.Join(dir, "seg_%05d.ts"),
	}
}

func (e *FFmpegEngine) screenshotArgs(dir string) []string {
	format := valueOr(e.cfg.VideoInputFormat, "x11grab")
	input := valueOr(e.cfg.VideoInput, ":0.0")
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", format,
		"-i", input,
		"-frames:v", "1",
		"-y", filepath.Join(dir, ScreenshotFileName),
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

type recorder struct {
	track  string
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	done   chan error
}

func startRecorder(binary string, args []string, track string, logger *slog.Logger) (*recorder, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recorder: %w", err)
	}
	logger.Info("recorder started",
		logging.String(logging.FieldTrack, track),
		logging.Int("pid", cmd.Process.Pid),
	)

	rec := &recorder{track: track, cmd: cmd, stderr: stderr, done: make(chan error, 1)}
	go func() {
		rec.done <- cmd.Wait()
	}()
	return rec, nil
}

// stop interrupts ffmpeg and waits for it to flush and exit. An exit error
// after our own interrupt is a clean shutdown.
func (r *recorder) stop() error {
	err := r.cmd.Process.Signal(os.Interrupt)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("interrupt %s recorder: %w", r.track, err)
	}

	waitErr := <-r.done
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return fmt.Errorf("wait for %s recorder: %w", r.track, waitErr)
	}
	return nil
}

type ffmpegHandle struct {
	video  *recorder
	audio  *recorder
	logger *slog.Logger

	screenshotWG sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

func (h *ffmpegHandle) grabScreenshot(ctx context.Context, binary string, args []string) {
	h.screenshotWG.Add(1)
	go func() {
		defer h.screenshotWG.Done()
		cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
		if output, err := cmd.CombinedOutput(); err != nil {
			h.logger.Warn("screenshot grab failed",
				logging.Error(err),
				logging.String("output", strings.TrimSpace(string(output))),
			)
		}
	}()
}

// Stop interrupts both recorders and waits for them, so every recorded
// segment name has reached the ledgers before control returns.
func (h *ffmpegHandle) Stop() error {
	h.stopOnce.Do(func() {
		videoErr := h.video.stop()
		audioErr := h.audio.stop()
		h.screenshotWG.Wait()

		for _, rec := range []*recorder{h.video, h.audio} {
			if trace := strings.TrimSpace(rec.stderr.String()); trace != "" {
				h.logger.Debug("recorder stderr",
					logging.String(logging.FieldTrack, rec.track),
					logging.String("output", trace),
				)
			}
		}

		h.stopErr = errors.Join(videoErr, audioErr)
	})
	return h.stopErr
}
