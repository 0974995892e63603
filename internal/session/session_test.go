package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"capsync/internal/capture"
	"capsync/internal/config"
	"capsync/internal/logging"
)

type fakeHandle struct {
	stopped atomic.Bool
	stopErr error
}

func (h *fakeHandle) Stop() error {
	h.stopped.Store(true)
	return h.stopErr
}

type fakeEngine struct {
	startErr error
	handle   *fakeHandle
	starts   atomic.Int32
	lastOpts capture.Options
}

func (e *fakeEngine) Start(ctx context.Context, opts capture.Options) (capture.Handle, error) {
	e.starts.Add(1)
	e.lastOpts = opts
	if e.startErr != nil {
		return nil, e.startErr
	}
	if e.handle == nil {
		e.handle = &fakeHandle{}
	}
	return e.handle, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Paths.DataDir = t.TempDir()
	cfg.Session.PollIntervalMillis = 5
	cfg.Session.StopTimeoutSeconds = 2
	return cfg
}

func startSession(t *testing.T, c *Coordinator, opts Options) chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(context.Background(), opts)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.Active(); ok {
			return errCh
		}
		select {
		case err := <-errCh:
			t.Fatalf("Start returned early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("session never became active")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStartRequiresDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.DataDir = ""
	c := NewCoordinator(cfg, &fakeEngine{}, newFakeClient(), logging.NewNop())

	if err := c.Start(context.Background(), Options{}); !errors.Is(err, ErrNoDataDir) {
		t.Fatalf("Start = %v, want ErrNoDataDir", err)
	}
}

func TestStartCaptureFailureStartsNoDispatchers(t *testing.T) {
	cfg := testConfig(t)
	engine := &fakeEngine{startErr: errors.New("no display")}
	c := NewCoordinator(cfg, engine, newFakeClient(), logging.NewNop())

	if err := c.Start(context.Background(), Options{}); err == nil {
		t.Fatal("expected capture start failure")
	}
	if _, ok := c.Active(); ok {
		t.Fatal("session left active after failed start")
	}
}

func TestStartRejectsOverlappingSession(t *testing.T) {
	cfg := testConfig(t)
	engine := &fakeEngine{}
	c := NewCoordinator(cfg, engine, newFakeClient(), logging.NewNop())

	errCh := startSession(t, c, Options{SessionID: "first"})

	if err := c.Start(context.Background(), Options{SessionID: "second"}); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Start = %v, want ErrSessionActive", err)
	}
	if got := engine.starts.Load(); got != 1 {
		t.Fatalf("capture engine started %d times, want 1", got)
	}

	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStopDrainsAndSummarizes(t *testing.T) {
	cfg := testConfig(t)
	engine := &fakeEngine{}
	client := newFakeClient()
	c := NewCoordinator(cfg, engine, client, logging.NewNop())

	errCh := startSession(t, c, Options{SessionID: "sess-1", UserID: "user-1"})

	appendLedger(t, cfg.VideoDir(), "seg_000.ts")
	writeSegment(t, cfg.VideoDir(), "seg_000.ts")
	appendLedger(t, cfg.AudioDir(), "seg_000.ts")
	writeSegment(t, cfg.AudioDir(), "seg_000.ts")

	deadline := time.Now().Add(2 * time.Second)
	for client.total() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("segments never uploaded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Appended between the last poll and shutdown; only the drain pass can
	// pick these up because Stop cancels polling first.
	appendLedger(t, cfg.VideoDir(), "seg_001.ts")
	writeSegment(t, cfg.VideoDir(), "seg_001.ts")

	summary, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !engine.handle.stopped.Load() {
		t.Fatal("capture engine not stopped")
	}
	if got := client.count("seg_001.ts"); got != 1 {
		t.Fatalf("late segment uploaded %d times, want 1", got)
	}
	if summary.Video.Uploaded != 2 {
		t.Fatalf("video uploaded = %d, want 2", summary.Video.Uploaded)
	}
	if summary.Audio.Uploaded != 1 {
		t.Fatalf("audio uploaded = %d, want 1", summary.Audio.Uploaded)
	}
	if summary.SessionID != "sess-1" || summary.UserID != "user-1" {
		t.Fatalf("summary identity = %s/%s", summary.SessionID, summary.UserID)
	}
	if _, ok := c.Active(); ok {
		t.Fatal("session still active after Stop")
	}
}

func TestStopWithoutSession(t *testing.T) {
	c := NewCoordinator(testConfig(t), &fakeEngine{}, newFakeClient(), logging.NewNop())
	if _, err := c.Stop(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Stop = %v, want ErrNoSession", err)
	}
}

func TestStopTimesOutWhenUploadsHang(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.StopTimeoutSeconds = 1
	engine := &fakeEngine{}
	client := newFakeClient()
	client.blockAll = make(chan struct{})
	c := NewCoordinator(cfg, engine, client, logging.NewNop())

	errCh := startSession(t, c, Options{SessionID: "stuck"})

	appendLedger(t, cfg.VideoDir(), "seg_000.ts")
	writeSegment(t, cfg.VideoDir(), "seg_000.ts")
	time.Sleep(50 * time.Millisecond)

	if _, err := c.Stop(context.Background()); err == nil {
		t.Fatal("expected timeout error from Stop")
	}

	close(client.blockAll)
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStartClearsActiveAfterStopTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.StopTimeoutSeconds = 1
	engine := &fakeEngine{}
	client := newFakeClient()
	client.blockAll = make(chan struct{})
	c := NewCoordinator(cfg, engine, client, logging.NewNop())

	errCh := startSession(t, c, Options{SessionID: "stuck"})

	appendLedger(t, cfg.VideoDir(), "seg_000.ts")
	writeSegment(t, cfg.VideoDir(), "seg_000.ts")
	time.Sleep(50 * time.Millisecond)

	if _, err := c.Stop(context.Background()); err == nil {
		t.Fatal("expected timeout error from Stop")
	}

	// Once the hung uploads unblock, the dispatchers drain and Start
	// returns. The coordinator must not keep reporting the dead session.
	close(client.blockAll)
	if err := <-errCh; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := c.Active(); ok {
		t.Fatal("coordinator still reports an active session after Start returned")
	}

	client.blockAll = nil
	errCh = startSession(t, c, Options{SessionID: "fresh"})
	summary, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop fresh session: %v", err)
	}
	if summary.SessionID != "fresh" {
		t.Fatalf("summary session = %s, want fresh", summary.SessionID)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("fresh Start: %v", err)
	}
}

func TestSessionCancellationStopsCapture(t *testing.T) {
	cfg := testConfig(t)
	engine := &fakeEngine{}
	c := NewCoordinator(cfg, engine, newFakeClient(), logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(ctx, Options{SessionID: "cancelled"})
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.Active(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never became active")
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
	if !engine.handle.stopped.Load() {
		t.Fatal("capture engine left running after cancellation")
	}
	if _, ok := c.Active(); ok {
		t.Fatal("session still active after cancellation")
	}
}
