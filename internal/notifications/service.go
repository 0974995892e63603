package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"capsync/internal/config"
)

const userAgent = "capsync/0.1.0"

// Event enumerates the session milestones that produce notifications.
type Event string

const (
	EventSessionStarted   Event = "session_started"
	EventSessionCompleted Event = "session_completed"
	EventSessionFailed    Event = "session_failed"
	EventTest             Event = "test"
)

// Payload carries event-specific values used to format the message.
type Payload map[string]string

// Service publishes session milestones to the operator.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		sessions: cfg.Notifications.Sessions,
		errors:   cfg.Notifications.Errors,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	sessions bool
	errors   bool
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if payload == nil {
		payload = Payload{}
	}

	var data message
	switch event {
	case EventSessionStarted:
		if !n.sessions {
			return nil
		}
		data = message{
			title: "capsync - Recording Started",
			body:  fmt.Sprintf("Recording session %s started", payload["session_id"]),
			tags:  []string{"capsync", "session", "started"},
		}
	case EventSessionCompleted:
		if !n.sessions {
			return nil
		}
		data = message{
			title: "capsync - Recording Complete",
			body: fmt.Sprintf("Session %s uploaded %s segments in %s",
				payload["session_id"], payload["segments"], payload["duration"]),
			tags: []string{"capsync", "session", "completed"},
		}
	case EventSessionFailed:
		if !n.errors {
			return nil
		}
		data = message{
			title:    "capsync - Recording Failed",
			body:     fmt.Sprintf("Session %s failed: %s", payload["session_id"], payload["error"]),
			tags:     []string{"capsync", "session", "failed"},
			priority: "high",
		}
	case EventTest:
		data = message{
			title: "capsync - Test",
			body:  "Test notification from capsync",
			tags:  []string{"capsync", "test"},
		}
	default:
		return fmt.Errorf("unknown notification event %q", event)
	}

	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
