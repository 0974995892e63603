package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"capsync/internal/config"
	"capsync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventSessionStarted, notifications.Payload{"session_id": "sess-1"})
	if err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "session started",
			event:         notifications.EventSessionStarted,
			payload:       notifications.Payload{"session_id": "sess-1"},
			expectTitle:   "capsync - Recording Started",
			expectMessage: "Recording session sess-1 started",
			expectTags:    "capsync,session,started",
		},
		{
			name:  "session completed",
			event: notifications.EventSessionCompleted,
			payload: notifications.Payload{
				"session_id": "sess-1",
				"segments":   "42",
				"duration":   "2m6s",
			},
			expectTitle:   "capsync - Recording Complete",
			expectMessage: "Session sess-1 uploaded 42 segments in 2m6s",
			expectTags:    "capsync,session,completed",
		},
		{
			name:  "session failed",
			event: notifications.EventSessionFailed,
			payload: notifications.Payload{
				"session_id": "sess-1",
				"error":      "capture engine exited",
			},
			expectTitle:    "capsync - Recording Failed",
			expectMessage:  "Session sess-1 failed: capture engine exited",
			expectTags:     "capsync,session,failed",
			expectPriority: "high",
		},
		{
			name:          "test",
			event:         notifications.EventTest,
			payload:       nil,
			expectTitle:   "capsync - Test",
			expectMessage: "Test notification from capsync",
			expectTags:    "capsync,test",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.Sessions = true
			cfg.Notifications.Errors = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Errorf("title = %q, want %q", captured.title, tc.expectTitle)
			}
			if captured.body != tc.expectMessage {
				t.Errorf("message = %q, want %q", captured.body, tc.expectMessage)
			}
			if captured.tags != tc.expectTags {
				t.Errorf("tags = %q, want %q", captured.tags, tc.expectTags)
			}
			if captured.priority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", captured.priority, tc.expectPriority)
			}
		})
	}
}

func TestSessionEventsSuppressedWhenDisabled(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Sessions = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventSessionStarted,
		notifications.EventSessionCompleted,
		notifications.EventSessionFailed,
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"session_id": "s"}); err != nil {
			t.Fatalf("Publish %s: %v", event, err)
		}
	}
	if requests != 0 {
		t.Fatalf("expected no requests, got %d", requests)
	}
}

func TestUnknownEventRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "http://127.0.0.1:0"
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.Event("bogus"), nil); err == nil {
		t.Fatal("expected error for unknown event")
	}
}
