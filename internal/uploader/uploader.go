// Package uploader sends captured artifacts to the configured ingest
// endpoint. The HTTP client is safe for concurrent use; retry policy is owned
// by the dispatch loop, which deliberately has none.
package uploader

import (
	"context"
	"strings"
)

// Kind distinguishes the logical payload types a session produces.
type Kind string

const (
	KindSegment    Kind = "segment"
	KindScreenshot Kind = "screenshot"
)

// Request describes one artifact to upload.
type Request struct {
	UserID    string
	SessionID string
	Track     string
	Name      string
	LocalPath string
	Kind      Kind
}

// Client uploads a single artifact. Implementations must be safe for
// concurrent calls and must not retry on failure.
type Client interface {
	Upload(ctx context.Context, req Request) error
}

func (r Request) validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return errMissingField("user id")
	case strings.TrimSpace(r.SessionID) == "":
		return errMissingField("session id")
	case strings.TrimSpace(r.Track) == "":
		return errMissingField("track")
	case strings.TrimSpace(r.Name) == "":
		return errMissingField("name")
	case strings.TrimSpace(r.LocalPath) == "":
		return errMissingField("local path")
	}
	return nil
}

type errMissingField string

func (e errMissingField) Error() string {
	return "upload request: missing " + string(e)
}
