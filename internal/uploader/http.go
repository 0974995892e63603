package uploader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"capsync/internal/config"
)

const userAgent = "capsync/0.1.0"

// HTTPClient PUTs artifacts to the ingest endpoint at
// {endpoint}/{user}/{session}/{track}/{name}.
type HTTPClient struct {
	endpoint string
	token    string
	bucket   string
	region   string
	client   *http.Client
}

// NewHTTPClient builds an uploader from the upload config section.
func NewHTTPClient(cfg config.Upload) *HTTPClient {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		token:    strings.TrimSpace(cfg.Token),
		bucket:   strings.TrimSpace(cfg.Bucket),
		region:   strings.TrimSpace(cfg.Region),
		client:   &http.Client{Timeout: timeout},
	}
}

// Upload streams the file at req.LocalPath to the ingest endpoint. A non-2xx
// response is an error; the caller decides what to do with it.
func (c *HTTPClient) Upload(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return err
	}
	if c.endpoint == "" {
		return fmt.Errorf("upload %s: ingest endpoint not configured", req.Name)
	}

	file, err := os.Open(req.LocalPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", req.LocalPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", req.LocalPath, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(req), file)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	httpReq.ContentLength = info.Size()
	httpReq.Header.Set("Content-Type", contentType(req))
	httpReq.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.bucket != "" {
		httpReq.Header.Set("X-Capsync-Bucket", c.bucket)
	}
	if c.region != "" {
		httpReq.Header.Set("X-Capsync-Region", c.region)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("upload %s: %w", req.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("upload %s returned %d: %s", req.Name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *HTTPClient) objectURL(req Request) string {
	segments := []string{req.UserID, req.SessionID, req.Track, req.Name}
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return c.endpoint + "/" + strings.Join(escaped, "/")
}

func contentType(req Request) string {
	if req.Kind == KindScreenshot {
		switch strings.ToLower(filepath.Ext(req.Name)) {
		case ".png":
			return "image/png"
		default:
			return "image/jpeg"
		}
	}
	return "application/octet-stream"
}
