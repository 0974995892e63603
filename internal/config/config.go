package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Upload contains configuration for the ingest endpoint uploads are sent to.
type Upload struct {
	Endpoint       string `toml:"endpoint"`
	Token          string `toml:"token"`
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Capture contains configuration for the ffmpeg capture engine.
type Capture struct {
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	VideoInputFormat string `toml:"video_input_format"`
	VideoInput       string `toml:"video_input"`
	AudioInputFormat string `toml:"audio_input_format"`
	AudioInput       string `toml:"audio_input"`
	Framerate        int    `toml:"framerate"`
	SegmentSeconds   int    `toml:"segment_seconds"`
}

// Session contains timing configuration for the upload dispatch loop.
type Session struct {
	PollIntervalMillis int `toml:"poll_interval_ms"`
	StopTimeoutSeconds int `toml:"stop_timeout_seconds"`
	MinFreeSpaceGiB    int `toml:"min_free_space_gib"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Sessions       bool   `toml:"sessions"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for capsync.
//
// Configuration sections by subsystem:
//   - Paths: session data and log directories
//   - Upload: ingest endpoint, credentials, and destination bucket
//   - Capture: ffmpeg inputs and segmenting
//   - Session: dispatcher polling and stop timeout
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Upload        Upload        `toml:"upload"`
	Capture       Capture       `toml:"capture"`
	Session       Session       `toml:"session"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/capsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/capsync/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("capsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// VideoDir returns the working directory for video segments.
func (c *Config) VideoDir() string {
	return filepath.Join(c.Paths.DataDir, "chunks", "video")
}

// AudioDir returns the working directory for audio segments.
func (c *Config) AudioDir() string {
	return filepath.Join(c.Paths.DataDir, "chunks", "audio")
}

// ScreenshotDir returns the working directory for session screenshots.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.Paths.DataDir, "screenshots")
}

// FFmpegBinary returns the ffmpeg executable used for capture.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Capture.FFmpegBinary) == "" {
		return "ffmpeg"
	}
	return c.Capture.FFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
