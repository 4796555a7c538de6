// Package fetch reads the collection source and reports how fresh it is.
//
// A Source can answer two questions: "has anything changed?" (Freshness,
// cheap, metadata only) and "give me the content" (Fetch). The sync engine
// only calls Fetch when Freshness says the marker advanced.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// userAgent identifies yarnstash to remote hosts.
const userAgent = "yarnstash/1.0 (https://github.com/abelbrown/yarnstash)"

// maxBody caps how much of a remote file is read.
const maxBody = 32 << 20

// ErrUnavailable marks a failure to reach the source or a non-success
// response. The sync engine retries these.
var ErrUnavailable = errors.New("source unavailable")

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.Code, e.Status)
}

// Is lets errors.Is(err, ErrUnavailable) match status errors.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnavailable
}

// Freshness is the marker used to decide whether the content changed.
type Freshness struct {
	Modified time.Time
	ETag     string
}

// IsZero reports whether the source supplied no marker at all.
func (f Freshness) IsZero() bool {
	return f.Modified.IsZero() && f.ETag == ""
}

// Advanced reports whether f is newer than prev. A source that provides no
// marker never advances; it only reloads on a forced refresh.
func (f Freshness) Advanced(prev Freshness) bool {
	if !f.Modified.IsZero() && f.Modified.After(prev.Modified) {
		return true
	}
	return f.ETag != "" && prev.ETag != "" && f.ETag != prev.ETag
}

// Content is one full read of the source.
type Content struct {
	Body      []byte
	Freshness Freshness
}

// Source is anything the sync engine can poll.
type Source interface {
	// Name identifies the source in logs and status.
	Name() string
	// Freshness returns the current marker without reading the content.
	Freshness(ctx context.Context) (Freshness, error)
	// Fetch reads the full content.
	Fetch(ctx context.Context) (Content, error)
}

// HTTPSource reads a file served over HTTP.
type HTTPSource struct {
	url    string
	client *http.Client
	limit  int64
}

// NewHTTPSource creates an HTTPSource with the given client timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		limit: maxBody,
	}
}

func (s *HTTPSource) Name() string { return s.url }

// Freshness issues a HEAD request and reads Last-Modified and ETag.
func (s *HTTPSource) Freshness(ctx context.Context) (Freshness, error) {
	resp, err := s.do(ctx, http.MethodHead)
	if err != nil {
		return Freshness{}, err
	}
	resp.Body.Close()
	return freshnessFrom(resp.Header), nil
}

// Fetch performs a GET. Caches are bypassed so a changed file is seen on
// the next poll.
func (s *HTTPSource) Fetch(ctx context.Context) (Content, error) {
	resp, err := s.do(ctx, http.MethodGet)
	if err != nil {
		return Content{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.limit+1))
	if err != nil {
		return Content{}, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	if int64(len(body)) > s.limit {
		return Content{}, fmt.Errorf("%w: source larger than %d bytes", ErrUnavailable, s.limit)
	}
	return Content{Body: body, Freshness: freshnessFrom(resp.Header)}, nil
}

func (s *HTTPSource) do(ctx context.Context, method string) (*http.Response, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func freshnessFrom(h http.Header) Freshness {
	var f Freshness
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			f.Modified = t
		}
	}
	f.ETag = h.Get("ETag")
	return f
}
