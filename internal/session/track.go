package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"capsync/internal/ledger"
	"capsync/internal/logging"
	"capsync/internal/uploader"
)

// trackUploader reconciles one track's segment ledger against the set of
// names already dispatched and uploads the delta. One instance runs per
// track per session; the seen set lives and dies with it.
type trackUploader struct {
	track          string
	dir            string
	ledgerPath     string
	screenshotPath string

	userID    string
	sessionID string

	client   uploader.Client
	logger   *slog.Logger
	interval time.Duration

	seen           map[string]struct{}
	screenshotSent bool

	finished   chan struct{}
	finishOnce sync.Once

	uploaded           atomic.Int64
	failed             atomic.Int64
	skipped            atomic.Int64
	screenshotUploaded atomic.Bool

	errMu   sync.Mutex
	loopErr error
}

func newTrackUploader(track, dir, screenshotPath string, opts Options, client uploader.Client, interval time.Duration, logger *slog.Logger) *trackUploader {
	return &trackUploader{
		track:          track,
		dir:            dir,
		ledgerPath:     ledger.PathIn(dir),
		screenshotPath: screenshotPath,
		userID:         opts.UserID,
		sessionID:      opts.SessionID,
		client:         client,
		logger: logger.With(
			logging.String(logging.FieldTrack, track),
			logging.String(logging.FieldSessionID, opts.SessionID),
		),
		interval: interval,
		seen:     make(map[string]struct{}),
		finished: make(chan struct{}),
	}
}

// run polls the ledger until ctx is canceled, then performs exactly one
// drain pass to catch segments recorded between the last poll and shutdown.
// The finished channel closes exactly once on every exit path, including a
// mid-session ledger read failure, so Stop can always complete its wait.
func (u *trackUploader) run(ctx context.Context) {
	defer u.finishOnce.Do(func() { close(u.finished) })

	for {
		select {
		case <-ctx.Done():
			if err := u.reconcile(ctx); err != nil {
				u.logger.Error("drain pass failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "drain_failed"),
				)
				u.setErr(err)
			}
			return
		case <-time.After(u.interval):
		}

		if err := u.reconcile(ctx); err != nil {
			u.logger.Error("ledger read failed; stopping track uploads",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ledger_read_failed"),
				logging.String(logging.FieldErrorHint, "check the capture engine and data directory"),
			)
			u.setErr(err)
			return
		}
	}
}

// reconcile runs one dispatch pass. New ledger names are marked seen whether
// or not their file is readable yet; a name observed before its file is
// flushed is skipped permanently rather than retried. All uploads spawned by
// the pass are awaited before it returns, and none of them are canceled by
// session shutdown.
func (u *trackUploader) reconcile(ctx context.Context) error {
	names, err := ledger.Load(u.ledgerPath)
	if err != nil {
		return err
	}

	uploadCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup

	for name := range names {
		if _, ok := u.seen[name]; ok {
			continue
		}
		u.seen[name] = struct{}{}

		path := filepath.Join(u.dir, name)
		if _, err := os.Stat(path); err != nil {
			u.skipped.Add(1)
			u.logger.Warn("segment listed before file appeared; it will not be retried",
				logging.String("segment", name),
			)
			continue
		}

		wg.Add(1)
		go func(name, path string) {
			defer wg.Done()
			u.uploadSegment(uploadCtx, name, path)
		}(name, path)
	}

	if u.screenshotPath != "" && !u.screenshotSent {
		if _, err := os.Stat(u.screenshotPath); err == nil {
			u.screenshotSent = true
			wg.Add(1)
			go func() {
				defer wg.Done()
				u.uploadScreenshot(uploadCtx)
			}()
		}
	}

	wg.Wait()
	return nil
}

func (u *trackUploader) uploadSegment(ctx context.Context, name, path string) {
	err := u.client.Upload(ctx, uploader.Request{
		UserID:    u.userID,
		SessionID: u.sessionID,
		Track:     u.track,
		Name:      name,
		LocalPath: path,
		Kind:      uploader.KindSegment,
	})
	if err != nil {
		u.failed.Add(1)
		u.logger.Warn("segment upload failed",
			logging.String("segment", name),
			logging.Error(err),
		)
		return
	}
	u.uploaded.Add(1)
	u.logger.Debug("segment uploaded", logging.String("segment", name))
}

func (u *trackUploader) uploadScreenshot(ctx context.Context) {
	name := filepath.Base(u.screenshotPath)
	err := u.client.Upload(ctx, uploader.Request{
		UserID:    u.userID,
		SessionID: u.sessionID,
		Track:     u.track,
		Name:      name,
		LocalPath: u.screenshotPath,
		Kind:      uploader.KindScreenshot,
	})
	if err != nil {
		u.failed.Add(1)
		u.logger.Warn("screenshot upload failed", logging.Error(err))
		return
	}
	u.screenshotUploaded.Store(true)
	u.logger.Info("screenshot uploaded")
}

func (u *trackUploader) setErr(err error) {
	u.errMu.Lock()
	if u.loopErr == nil {
		u.loopErr = err
	}
	u.errMu.Unlock()
}

func (u *trackUploader) err() error {
	u.errMu.Lock()
	defer u.errMu.Unlock()
	return u.loopErr
}

func (u *trackUploader) stats() TrackStats {
	return TrackStats{
		Track:    u.track,
		Uploaded: int(u.uploaded.Load()),
		Failed:   int(u.failed.Load()),
		Skipped:  int(u.skipped.Load()),
	}
}
