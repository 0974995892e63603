package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"capsync/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace_NoMinimum(t *testing.T) {
	result := CheckFreeSpace("space", t.TempDir(), 0)
	if !result.Passed {
		t.Fatalf("expected pass with no minimum, got: %s", result.Detail)
	}
}

func TestCheckFreeSpace_ImpossibleMinimum(t *testing.T) {
	// No filesystem in CI has an exbibyte free.
	result := CheckFreeSpace("space", t.TempDir(), 1<<30)
	if result.Passed {
		t.Fatal("expected failure for absurd minimum")
	}
}

func TestCheckIngestEndpoint_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckIngestEndpoint(context.Background(), config.Upload{
		Endpoint: srv.URL,
		Token:    "token",
	})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckIngestEndpoint_AuthRejectionStillReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckIngestEndpoint(context.Background(), config.Upload{
		Endpoint: srv.URL,
		Token:    "token",
	})
	if !result.Passed {
		t.Fatalf("expected reachability pass, got: %s", result.Detail)
	}
}

func TestCheckIngestEndpoint_Missing(t *testing.T) {
	result := CheckIngestEndpoint(context.Background(), config.Upload{})
	if result.Passed {
		t.Fatal("expected failure for missing endpoint")
	}
}

func TestCheckIngestEndpoint_Unreachable(t *testing.T) {
	result := CheckIngestEndpoint(context.Background(), config.Upload{
		Endpoint: "http://127.0.0.1:1",
		Token:    "token",
	})
	if result.Passed {
		t.Fatal("expected failure for unreachable endpoint")
	}
}

func TestRunAllCoversCoreChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Session.MinFreeSpaceGiB = 0
	cfg.Upload.Endpoint = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) < 4 {
		t.Fatalf("got %d results, want at least 4", len(results))
	}
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Free disk space", "Ingest endpoint", "FFmpeg"} {
		if !names[want] {
			t.Errorf("missing check %q", want)
		}
	}
}
