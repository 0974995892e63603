package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"capsync/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "capsync")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Session.PollIntervalMillis != 100 {
		t.Fatalf("unexpected poll interval: %d", cfg.Session.PollIntervalMillis)
	}
	if cfg.Capture.VideoInputFormat != "x11grab" {
		t.Fatalf("unexpected video input format: %q", cfg.Capture.VideoInputFormat)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "capsync.toml")

	type payload struct {
		Upload struct {
			Endpoint string `toml:"endpoint"`
			Bucket   string `toml:"bucket"`
			Region   string `toml:"region"`
		} `toml:"upload"`
		Session struct {
			PollIntervalMillis int `toml:"poll_interval_ms"`
		} `toml:"session"`
	}
	custom := payload{}
	custom.Upload.Endpoint = "https://ingest.example.com/upload/"
	custom.Upload.Bucket = "cap-recordings"
	custom.Upload.Region = "us-east-1"
	custom.Session.PollIntervalMillis = 25

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Upload.Endpoint != "https://ingest.example.com/upload" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Upload.Endpoint)
	}
	if cfg.Upload.Bucket != "cap-recordings" {
		t.Fatalf("unexpected bucket: %q", cfg.Upload.Bucket)
	}
	if cfg.Session.PollIntervalMillis != 25 {
		t.Fatalf("unexpected poll interval: %d", cfg.Session.PollIntervalMillis)
	}
}

func TestLoadRejectsBadEndpoint(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "capsync.toml")
	body := "[upload]\nendpoint = \"ftp://nope.example.com\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected error for non-http endpoint")
	}
	if !strings.Contains(err.Error(), "upload.endpoint") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUploadTokenEnvFallback(t *testing.T) {
	t.Setenv("CAPSYNC_UPLOAD_TOKEN", "env-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Upload.Token != "env-token" {
		t.Fatalf("expected token from env, got %q", cfg.Upload.Token)
	}
}

func TestWorkingDirectoriesDeriveFromDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/tmp/capsync-test"

	if got := cfg.VideoDir(); got != filepath.Join("/tmp/capsync-test", "chunks", "video") {
		t.Fatalf("unexpected video dir: %q", got)
	}
	if got := cfg.AudioDir(); got != filepath.Join("/tmp/capsync-test", "chunks", "audio") {
		t.Fatalf("unexpected audio dir: %q", got)
	}
	if got := cfg.ScreenshotDir(); got != filepath.Join("/tmp/capsync-test", "screenshots") {
		t.Fatalf("unexpected screenshot dir: %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[upload]") {
		t.Fatal("sample config missing [upload] section")
	}
}
