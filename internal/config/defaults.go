package config

const (
	defaultDataDir            = "~/.local/share/capsync"
	defaultLogDir             = "~/.local/share/capsync/logs"
	defaultUploadTimeout      = 30
	defaultVideoInputFormat   = "x11grab"
	defaultVideoInput         = ":0.0"
	defaultAudioInputFormat   = "pulse"
	defaultAudioInput         = "default"
	defaultFramerate          = 30
	defaultSegmentSeconds     = 3
	defaultPollIntervalMillis = 100
	defaultStopTimeoutSeconds = 60
	defaultMinFreeSpaceGiB    = 1
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Upload: Upload{
			RequestTimeout: defaultUploadTimeout,
		},
		Capture: Capture{
			FFmpegBinary:     "ffmpeg",
			VideoInputFormat: defaultVideoInputFormat,
			VideoInput:       defaultVideoInput,
			AudioInputFormat: defaultAudioInputFormat,
			AudioInput:       defaultAudioInput,
			Framerate:        defaultFramerate,
			SegmentSeconds:   defaultSegmentSeconds,
		},
		Session: Session{
			PollIntervalMillis: defaultPollIntervalMillis,
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
			MinFreeSpaceGiB:    defaultMinFreeSpaceGiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Sessions:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
