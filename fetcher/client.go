package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrStatus matches any non-200 response returned by Client.Download.
var ErrStatus = errors.New("unexpected HTTP status")

// StatusError carries the status of a failed download.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL) }

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Client is a simple HTTP client that streams files to disk.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client. A zero timeout means no timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWith wraps an existing http.Client.
func NewClientWith(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// Download fetches url into dest and returns the number of bytes written. The body is
// streamed to dest+".part" and renamed on success, so dest only ever holds a complete
// file. Non-200 responses leave nothing on disk.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &StatusError{Code: resp.StatusCode, URL: url}
	}

	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return n, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return n, err
	}
	return n, nil
}
