package uploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"capsync/internal/config"
)

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestUploadSendsSegment(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotBody  string
		gotAuth  string
		gotType  string
		gotExtra http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotExtra = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewHTTPClient(config.Upload{
		Endpoint: server.URL + "/",
		Token:    "secret-token",
		Bucket:   "recordings",
		Region:   "us-east-1",
	})

	err := client.Upload(context.Background(), Request{
		UserID:    "user-1",
		SessionID: "sess-9",
		Track:     "video",
		Name:      "seg_000.ts",
		LocalPath: writeArtifact(t, "seg_000.ts", "segment-bytes"),
		Kind:      KindSegment,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/user-1/sess-9/video/seg_000.ts" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody != "segment-bytes" {
		t.Errorf("body = %q", gotBody)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotType != "application/octet-stream" {
		t.Errorf("content type = %q", gotType)
	}
	if gotExtra.Get("X-Capsync-Bucket") != "recordings" {
		t.Errorf("bucket header = %q", gotExtra.Get("X-Capsync-Bucket"))
	}
	if gotExtra.Get("X-Capsync-Region") != "us-east-1" {
		t.Errorf("region header = %q", gotExtra.Get("X-Capsync-Region"))
	}
}

func TestUploadScreenshotContentType(t *testing.T) {
	var gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
	}))
	defer server.Close()

	client := NewHTTPClient(config.Upload{Endpoint: server.URL})
	err := client.Upload(context.Background(), Request{
		UserID:    "u",
		SessionID: "s",
		Track:     "video",
		Name:      "screen-capture.jpg",
		LocalPath: writeArtifact(t, "screen-capture.jpg", "jpeg"),
		Kind:      KindScreenshot,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotType != "image/jpeg" {
		t.Errorf("content type = %q", gotType)
	}
}

func TestUploadServerErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(config.Upload{Endpoint: server.URL})
	err := client.Upload(context.Background(), Request{
		UserID:    "u",
		SessionID: "s",
		Track:     "audio",
		Name:      "seg_001.ts",
		LocalPath: writeArtifact(t, "seg_001.ts", "x"),
		Kind:      KindSegment,
	})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestUploadMissingFileIsError(t *testing.T) {
	client := NewHTTPClient(config.Upload{Endpoint: "http://127.0.0.1:0"})
	err := client.Upload(context.Background(), Request{
		UserID:    "u",
		SessionID: "s",
		Track:     "video",
		Name:      "seg_404.ts",
		LocalPath: filepath.Join(t.TempDir(), "seg_404.ts"),
		Kind:      KindSegment,
	})
	if err == nil {
		t.Fatal("expected error for missing local file")
	}
}

func TestUploadValidatesRequest(t *testing.T) {
	client := NewHTTPClient(config.Upload{Endpoint: "http://127.0.0.1:0"})
	err := client.Upload(context.Background(), Request{Track: "video"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestObjectURLEscapesSegments(t *testing.T) {
	client := NewHTTPClient(config.Upload{Endpoint: "https://ingest.example.com"})
	got := client.objectURL(Request{
		UserID:    "user one",
		SessionID: "sess",
		Track:     "video",
		Name:      "seg 0.ts",
	})
	want := "https://ingest.example.com/user%20one/sess/video/seg%200.ts"
	if got != want {
		t.Errorf("objectURL = %q, want %q", got, want)
	}
}
