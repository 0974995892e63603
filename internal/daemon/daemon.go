package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"capsync/internal/config"
	"capsync/internal/deps"
	"capsync/internal/logging"
	"capsync/internal/notifications"
	"capsync/internal/preflight"
	"capsync/internal/session"
	"capsync/internal/store"
)

// Daemon coordinates the recording session lifecycle and enforces
// single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.Store
	coordinator *session.Coordinator
	notifier    notifications.Service
	logPath     string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Recording    bool
	SessionID    string
	UserID       string
	LockPath     string
	StoreDBPath  string
	LogPath      string
	PID          int
	Dependencies []deps.Status
	Checks       []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, coordinator *session.Coordinator, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || coordinator == nil {
		return nil, errors.New("daemon requires config, store, and session coordinator")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "capsyncd.lock")
	return &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       st,
		coordinator: coordinator,
		notifier:    notifier,
		logPath:     filepath.Join(cfg.Paths.LogDir, "capsync.log"),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
		shutdown:    make(chan struct{}),
	}, nil
}

// Start acquires the daemon lock so only one capsync daemon runs at a time.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another capsync daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running.Store(true)
	d.logger.Info("capsync daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop ends any active session, cancels background work, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if _, active := d.coordinator.Active(); active {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if _, err := d.StopSession(stopCtx); err != nil && !errors.Is(err, session.ErrNoSession) {
			d.logger.Warn("stop session during shutdown failed", logging.Error(err))
		}
		cancel()
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("capsync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestShutdown asks the daemon process to exit. The run loop watches
// ShutdownRequested.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// ShutdownRequested is closed once a shutdown has been requested over IPC.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// StartSession runs the preflight checks, records the session, and launches
// the coordinator in the background. It returns once the session is live (or
// its setup failed).
func (d *Daemon) StartSession(opts session.Options) (string, error) {
	if !d.running.Load() {
		return "", errors.New("daemon not running")
	}
	if _, active := d.coordinator.Active(); active {
		return "", session.ErrSessionActive
	}

	if failures := failedChecks(preflight.RunAll(d.ctx, d.cfg)); len(failures) > 0 {
		return "", fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}

	if strings.TrimSpace(opts.SessionID) == "" {
		opts.SessionID = uuid.NewString()
	}
	if strings.TrimSpace(opts.UserID) == "" {
		opts.UserID = "default"
	}

	err := d.store.InsertStarted(context.Background(), store.Record{
		ID:     opts.SessionID,
		UserID: opts.UserID,
		Bucket: d.cfg.Upload.Bucket,
		Region: d.cfg.Upload.Region,
	})
	if err != nil {
		return "", fmt.Errorf("record session start: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		startErr := d.coordinator.Start(d.ctx, opts)
		if startErr != nil {
			d.finalizeSession(opts.SessionID, store.StatusFailed, store.Outcome{ErrorMessage: startErr.Error()})
			d.publish(notifications.EventSessionFailed, notifications.Payload{
				"session_id": opts.SessionID,
				"error":      startErr.Error(),
			})
		} else {
			// Start returns nil without StopSession running when the run
			// context is canceled mid-session. The history row still needs
			// a terminal status; this is a no-op after a regular stop.
			if err := d.store.FinishInterrupted(context.Background(), opts.SessionID, "interrupted by daemon shutdown"); err != nil {
				d.logger.Warn("finalize interrupted session failed",
					logging.String(logging.FieldSessionID, opts.SessionID),
					logging.Error(err),
				)
			}
		}
		errCh <- startErr
	}()

	// Setup failures surface from Start before the dispatchers run; wait for
	// the session to become live so the caller gets a synchronous verdict.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, active := d.coordinator.Active(); active {
			break
		}
		select {
		case startErr := <-errCh:
			if startErr == nil {
				startErr = errors.New("session exited before becoming active")
			}
			return "", startErr
		default:
		}
		if time.Now().After(deadline) {
			return "", errors.New("timed out waiting for session to start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	d.publish(notifications.EventSessionStarted, notifications.Payload{"session_id": opts.SessionID})
	return opts.SessionID, nil
}

// StopSession drains and stops the active session, then finalizes its
// history row.
func (d *Daemon) StopSession(ctx context.Context) (*session.Summary, error) {
	summary, err := d.coordinator.Stop(ctx)
	if err != nil {
		return nil, err
	}

	status := store.StatusCompleted
	errorMessage := ""
	if summary.Err != nil {
		status = store.StatusFailed
		errorMessage = summary.Err.Error()
	}
	d.finalizeSession(summary.SessionID, status, store.Outcome{
		StoppedAt:          summary.StoppedAt,
		VideoUploaded:      summary.Video.Uploaded,
		VideoFailed:        summary.Video.Failed,
		AudioUploaded:      summary.Audio.Uploaded,
		AudioFailed:        summary.Audio.Failed,
		ScreenshotUploaded: summary.ScreenshotUploaded,
		ErrorMessage:       errorMessage,
	})

	if status == store.StatusCompleted {
		d.publish(notifications.EventSessionCompleted, notifications.Payload{
			"session_id": summary.SessionID,
			"segments":   strconv.Itoa(summary.Video.Uploaded + summary.Audio.Uploaded),
			"duration":   summary.StoppedAt.Sub(summary.StartedAt).Round(time.Second).String(),
		})
	} else {
		d.publish(notifications.EventSessionFailed, notifications.Payload{
			"session_id": summary.SessionID,
			"error":      errorMessage,
		})
	}
	return summary, nil
}

// Sessions returns recent session history rows, newest first.
func (d *Daemon) Sessions(ctx context.Context, limit int) ([]*store.Record, error) {
	if d.store == nil {
		return nil, errors.New("session store unavailable")
	}
	return d.store.List(ctx, limit)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		LockPath:     d.lockPath,
		StoreDBPath:  d.store.Path(),
		LogPath:      d.logPath,
		PID:          os.Getpid(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
		Checks:       preflight.RunAll(ctx, d.cfg),
	}
	if opts, active := d.coordinator.Active(); active {
		status.Recording = true
		status.SessionID = opts.SessionID
		status.UserID = opts.UserID
	}
	return status
}

func (d *Daemon) finalizeSession(id string, status store.Status, outcome store.Outcome) {
	if err := d.store.Finish(context.Background(), id, status, outcome); err != nil {
		d.logger.Warn("finalize session history failed",
			logging.String(logging.FieldSessionID, id),
			logging.Error(err),
		)
	}
}

func (d *Daemon) publish(event notifications.Event, payload notifications.Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		d.logger.Warn("notification publish failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func failedChecks(results []preflight.Result) []string {
	var failures []string
	for _, result := range results {
		if !result.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	return failures
}
