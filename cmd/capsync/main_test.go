package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capsync/internal/capture"
	"capsync/internal/config"
	"capsync/internal/daemon"
	"capsync/internal/ipc"
	"capsync/internal/logging"
	"capsync/internal/notifications"
	"capsync/internal/session"
	"capsync/internal/store"
	"capsync/internal/testsupport"
	"capsync/internal/uploader"
)

type fakeHandle struct{}

func (fakeHandle) Stop() error { return nil }

type fakeEngine struct{}

func (fakeEngine) Start(context.Context, capture.Options) (capture.Handle, error) {
	return fakeHandle{}, nil
}

type fakeClient struct{}

func (fakeClient) Upload(context.Context, uploader.Request) error { return nil }

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	ingest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ingest.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithEndpoint(ingest.URL),
		testsupport.WithStubbedBinaries())

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	coordinator := session.NewCoordinator(cfg, fakeEngine{}, fakeClient{}, logger)
	d, err := daemon.New(cfg, st, coordinator, notifications.NewService(cfg), logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[upload]
endpoint = %q
token = %q
bucket = %q
region = %q

[session]
poll_interval_ms = %d
stop_timeout_seconds = %d
min_free_space_gib = 0
`,
		cfg.Paths.DataDir, cfg.Paths.LogDir,
		cfg.Upload.Endpoint, cfg.Upload.Token, cfg.Upload.Bucket, cfg.Upload.Region,
		cfg.Session.PollIntervalMillis, cfg.Session.StopTimeoutSeconds)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIRecordLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"record", "start", "--user", "alice"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record start: %v", err)
	}
	if !strings.Contains(out, "Recording started") {
		t.Fatalf("unexpected record start output: %q", out)
	}

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Recording") || !strings.Contains(out, "alice") {
		t.Fatalf("unexpected status output: %q", out)
	}

	out, _, err = runCLI(t, []string{"record", "stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record stop: %v", err)
	}
	if !strings.Contains(out, "Recording stopped") {
		t.Fatalf("unexpected record stop output: %q", out)
	}

	out, _, err = runCLI(t, []string{"sessions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "completed") {
		t.Fatalf("unexpected sessions output: %q", out)
	}
}

func TestCLIRecordStopWithoutSession(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"record", "stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record stop: %v", err)
	}
	if !strings.Contains(out, "no active recording session") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCLISessionsEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sessions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "No sessions recorded") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "ntfy topic not configured") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCLIConfigInitAndPath(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout.String(), target) {
		t.Fatalf("unexpected config init output: %q", stdout.String())
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	cmd = newRootCommand()
	stdout.Reset()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestCLIStatusWhenDaemonOffline(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, filepath.Join(t.TempDir(), "missing.sock"), env.configPath)
	if err != nil {
		t.Fatalf("status offline: %v", err)
	}
	if !strings.Contains(out, "Not running") {
		t.Fatalf("unexpected offline status output: %q", out)
	}
}
