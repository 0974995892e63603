// Package session owns the recording session lifecycle: it prepares the
// working directories, runs the capture engine, and drives one upload
// dispatcher per media track until the session is stopped and drained.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"capsync/internal/capture"
	"capsync/internal/config"
	"capsync/internal/logging"
	"capsync/internal/staging"
	"capsync/internal/uploader"
)

var (
	// ErrSessionActive is returned when Start is called while a previous
	// session has not finished draining.
	ErrSessionActive = errors.New("recording session already active")
	// ErrNoSession is returned by Stop when nothing is recording.
	ErrNoSession = errors.New("no active recording session")
	// ErrNoDataDir is returned when the data directory is not configured.
	ErrNoDataDir = errors.New("data directory not configured")
)

// Options parameterize one session start.
type Options struct {
	SessionID string
	UserID    string

	// AudioInput overrides the configured capture device for this session.
	AudioInput string
}

// TrackStats aggregates one track's upload outcomes for a session.
type TrackStats struct {
	Track    string
	Uploaded int
	Failed   int
	Skipped  int
}

// Summary describes a completed session.
type Summary struct {
	SessionID          string
	UserID             string
	StartedAt          time.Time
	StoppedAt          time.Time
	Video              TrackStats
	Audio              TrackStats
	ScreenshotUploaded bool
	Err                error
}

// Coordinator runs at most one recording session at a time.
type Coordinator struct {
	cfg          *config.Config
	engine       capture.Engine
	client       uploader.Client
	logger       *slog.Logger
	pollInterval time.Duration
	stopTimeout  time.Duration

	mu     sync.Mutex
	active *activeSession
}

type activeSession struct {
	opts      Options
	startedAt time.Time
	handle    capture.Handle
	cancel    context.CancelFunc
	video     *trackUploader
	audio     *trackUploader
	stopped   atomic.Bool
}

// NewCoordinator wires a coordinator from config and its collaborators.
func NewCoordinator(cfg *config.Config, engine capture.Engine, client uploader.Client, logger *slog.Logger) *Coordinator {
	pollInterval := time.Duration(cfg.Session.PollIntervalMillis) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	stopTimeout := time.Duration(cfg.Session.StopTimeoutSeconds) * time.Second
	if stopTimeout <= 0 {
		stopTimeout = 60 * time.Second
	}
	return &Coordinator{
		cfg:          cfg,
		engine:       engine,
		client:       client,
		logger:       logging.NewComponentLogger(logger, "session"),
		pollInterval: pollInterval,
		stopTimeout:  stopTimeout,
	}
}

// Start prepares the working directories, launches the capture engine, and
// runs both track dispatchers. It blocks until both dispatchers exit, which
// happens after Stop signals shutdown (or the passed context is canceled).
// A second Start while a session is active fails with ErrSessionActive.
func (c *Coordinator) Start(ctx context.Context, opts Options) error {
	if strings.TrimSpace(opts.SessionID) == "" {
		opts.SessionID = uuid.NewString()
	}
	if strings.TrimSpace(opts.UserID) == "" {
		opts.UserID = "default"
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	if strings.TrimSpace(c.cfg.Paths.DataDir) == "" {
		c.mu.Unlock()
		return ErrNoDataDir
	}

	paths := staging.Paths{
		VideoDir:      c.cfg.VideoDir(),
		AudioDir:      c.cfg.AudioDir(),
		ScreenshotDir: c.cfg.ScreenshotDir(),
	}
	if err := staging.PrepareSession(paths); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("prepare session directories: %w", err)
	}

	handle, err := c.engine.Start(ctx, capture.Options{
		SessionID:     opts.SessionID,
		VideoDir:      paths.VideoDir,
		AudioDir:      paths.AudioDir,
		ScreenshotDir: paths.ScreenshotDir,
		AudioInput:    opts.AudioInput,
	})
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("start capture engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	screenshotPath := filepath.Join(paths.ScreenshotDir, capture.ScreenshotFileName)
	sess := &activeSession{
		opts:      opts,
		startedAt: time.Now().UTC(),
		handle:    handle,
		cancel:    cancel,
		video:     newTrackUploader("video", paths.VideoDir, screenshotPath, opts, c.client, c.pollInterval, c.logger),
		audio:     newTrackUploader("audio", paths.AudioDir, "", opts, c.client, c.pollInterval, c.logger),
	}
	c.active = sess
	c.mu.Unlock()

	c.logger.Info("session started",
		logging.String(logging.FieldSessionID, opts.SessionID),
		logging.String("user_id", opts.UserID),
		logging.String(logging.FieldEventType, "session_started"),
	)

	go sess.video.run(runCtx)
	go sess.audio.run(runCtx)
	<-sess.video.finished
	<-sess.audio.finished

	// The dispatchers can exit without Stop being called, for example when
	// the daemon's run context is canceled. The capture engine must not be
	// left recording in that case.
	if !sess.stopped.Load() {
		if err := handle.Stop(); err != nil {
			c.logger.Warn("capture engine stop after cancellation failed", logging.Error(err))
		}
	}

	// Both dispatchers have finished, so the session is over regardless of
	// how Stop fared. A timed-out Stop has already returned its error; the
	// slot is still released here so a new session can start.
	c.mu.Lock()
	if c.active == sess {
		c.active = nil
	}
	c.mu.Unlock()
	return nil
}

// Stop signals shutdown once, stops the capture engine so the ledgers are
// flushed, and waits for both tracks to finish their drain passes. The wait
// is bounded so a track that died mid-session cannot hang the caller
// forever.
func (c *Coordinator) Stop(ctx context.Context) (*Summary, error) {
	c.mu.Lock()
	sess := c.active
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrNoSession
	}

	sess.stopped.Store(true)
	sess.cancel()

	if err := sess.handle.Stop(); err != nil {
		return nil, fmt.Errorf("stop capture engine: %w", err)
	}

	timer := time.NewTimer(c.stopTimeout)
	defer timer.Stop()
	for _, track := range []*trackUploader{sess.video, sess.audio} {
		select {
		case <-track.finished:
		case <-timer.C:
			return nil, fmt.Errorf("timed out after %s waiting for %s uploads to drain", c.stopTimeout, track.track)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	if c.active == sess {
		c.active = nil
	}
	c.mu.Unlock()

	summary := &Summary{
		SessionID:          sess.opts.SessionID,
		UserID:             sess.opts.UserID,
		StartedAt:          sess.startedAt,
		StoppedAt:          time.Now().UTC(),
		Video:              sess.video.stats(),
		Audio:              sess.audio.stats(),
		ScreenshotUploaded: sess.video.screenshotUploaded.Load(),
		Err:                errors.Join(sess.video.err(), sess.audio.err()),
	}
	c.logger.Info("session stopped",
		logging.String(logging.FieldSessionID, summary.SessionID),
		logging.Int("video_uploaded", summary.Video.Uploaded),
		logging.Int("audio_uploaded", summary.Audio.Uploaded),
		logging.Int("upload_failures", summary.Video.Failed+summary.Audio.Failed),
		logging.Duration("duration", summary.StoppedAt.Sub(summary.StartedAt)),
		logging.String(logging.FieldEventType, "session_stopped"),
	)
	return summary, nil
}

// Active reports the options of the running session, if any.
func (c *Coordinator) Active() (Options, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Options{}, false
	}
	return c.active.opts, true
}
