// Package capture defines the recording engine abstraction and its
// ffmpeg-backed implementation. The engine is an interface so the session
// coordinator and its tests can inject fakes.
package capture

import "context"

// ScreenshotFileName is the one-shot still grabbed at session start inside
// the screenshot directory.
const ScreenshotFileName = "screen-capture.jpg"

// Options describes where one session records to and which inputs to use.
type Options struct {
	SessionID     string
	VideoDir      string
	AudioDir      string
	ScreenshotDir string

	// AudioInput overrides the configured capture device when non-empty.
	AudioInput string
}

// Handle controls a running capture. Stop interrupts the recorder and waits
// for it to exit, so the segment ledgers are fully flushed by the time Stop
// returns.
type Handle interface {
	Stop() error
}

// Engine starts a capture session. A failed start leaves nothing running.
type Engine interface {
	Start(ctx context.Context, opts Options) (Handle, error)
}
