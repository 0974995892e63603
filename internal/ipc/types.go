package ipc

// RecordStartRequest begins a recording session.
type RecordStartRequest struct {
	UserID     string `json:"user_id"`
	AudioInput string `json:"audio_input"`
}

// RecordStartResponse reports whether a session started.
type RecordStartResponse struct {
	Started   bool   `json:"started"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// RecordStopRequest ends the active recording session.
type RecordStopRequest struct{}

// RecordStopResponse reports the stopped session's aggregate outcome.
type RecordStopResponse struct {
	Stopped            bool   `json:"stopped"`
	SessionID          string `json:"session_id"`
	VideoUploaded      int    `json:"video_uploaded"`
	AudioUploaded      int    `json:"audio_uploaded"`
	Failed             int    `json:"failed"`
	ScreenshotUploaded bool   `json:"screenshot_uploaded"`
	Duration           string `json:"duration"`
	Message            string `json:"message"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// CheckResult describes one preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// StatusResponse represents combined daemon/session status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	Recording    bool               `json:"recording"`
	SessionID    string             `json:"session_id"`
	UserID       string             `json:"user_id"`
	LockPath     string             `json:"lock_path"`
	StoreDBPath  string             `json:"store_db_path"`
	LogPath      string             `json:"log_path"`
	PID          int                `json:"pid"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Checks       []CheckResult      `json:"checks"`
}

// SessionListRequest fetches recent session history.
type SessionListRequest struct {
	Limit int `json:"limit"`
}

// SessionSummary is one session history row on the wire.
type SessionSummary struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	Status             string `json:"status"`
	StartedAt          string `json:"started_at"`
	StoppedAt          string `json:"stopped_at"`
	VideoUploaded      int    `json:"video_uploaded"`
	VideoFailed        int    `json:"video_failed"`
	AudioUploaded      int    `json:"audio_uploaded"`
	AudioFailed        int    `json:"audio_failed"`
	ScreenshotUploaded bool   `json:"screenshot_uploaded"`
	ErrorMessage       string `json:"error_message"`
}

// SessionListResponse contains session history entries.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// LogTailRequest reads daemon log lines. A negative Offset requests the last
// Limit lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int64 `json:"wait_millis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	ShuttingDown bool `json:"shutting_down"`
}
