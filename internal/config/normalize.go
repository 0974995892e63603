package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeCapture()
	c.normalizeSession()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpload() {
	c.Upload.Endpoint = strings.TrimRight(strings.TrimSpace(c.Upload.Endpoint), "/")
	c.Upload.Token = strings.TrimSpace(c.Upload.Token)
	if c.Upload.Token == "" {
		if value, ok := os.LookupEnv("CAPSYNC_UPLOAD_TOKEN"); ok {
			c.Upload.Token = strings.TrimSpace(value)
		}
	}
	c.Upload.Bucket = strings.TrimSpace(c.Upload.Bucket)
	c.Upload.Region = strings.TrimSpace(c.Upload.Region)
	if c.Upload.RequestTimeout <= 0 {
		c.Upload.RequestTimeout = defaultUploadTimeout
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
	if c.Capture.FFmpegBinary == "" {
		c.Capture.FFmpegBinary = "ffmpeg"
	}
	c.Capture.VideoInputFormat = strings.TrimSpace(c.Capture.VideoInputFormat)
	if c.Capture.VideoInputFormat == "" {
		c.Capture.VideoInputFormat = defaultVideoInputFormat
	}
	c.Capture.VideoInput = strings.TrimSpace(c.Capture.VideoInput)
	if c.Capture.VideoInput == "" {
		c.Capture.VideoInput = defaultVideoInput
	}
	c.Capture.AudioInputFormat = strings.TrimSpace(c.Capture.AudioInputFormat)
	if c.Capture.AudioInputFormat == "" {
		c.Capture.AudioInputFormat = defaultAudioInputFormat
	}
	c.Capture.AudioInput = strings.TrimSpace(c.Capture.AudioInput)
	if c.Capture.AudioInput == "" {
		c.Capture.AudioInput = defaultAudioInput
	}
	if c.Capture.Framerate <= 0 {
		c.Capture.Framerate = defaultFramerate
	}
	if c.Capture.SegmentSeconds <= 0 {
		c.Capture.SegmentSeconds = defaultSegmentSeconds
	}
}

func (c *Config) normalizeSession() {
	if c.Session.PollIntervalMillis <= 0 {
		c.Session.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Session.StopTimeoutSeconds <= 0 {
		c.Session.StopTimeoutSeconds = defaultStopTimeoutSeconds
	}
	if c.Session.MinFreeSpaceGiB < 0 {
		c.Session.MinFreeSpaceGiB = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
