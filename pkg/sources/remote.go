package sources

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samogod/blockforge/pkg/session"
)

const maxBodySize = 256 * 1024 * 1024

var errEmptyBody = errors.New("empty response body")

// Remote downloads a list over HTTP(S). The body is read completely before
// any record is emitted, so a failed transfer yields no records at all.
type Remote struct {
	name string
	url  string
}

func NewRemoteSource(name, url string) *Remote {
	return &Remote{name: name, url: url}
}

func (r *Remote) Name() string {
	return r.name
}

func (r *Remote) Location() string {
	return r.url
}

func (r *Remote) Run(ctx context.Context, s *session.Session) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		body, err := r.fetch(ctx, s)
		if err != nil {
			results <- Result{Source: r.name, Error: err}
			return
		}

		scanner := bufio.NewScanner(bytes.NewReader(body))
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}

			select {
			case results <- Result{Type: TypeText, Source: r.name, Value: line}:
			case <-ctx.Done():
				results <- Result{Source: r.name, Error: ctx.Err()}
				return
			}
		}

		if err := ctx.Err(); err != nil {
			results <- Result{Source: r.name, Error: err}
			return
		}

		if err := scanner.Err(); err != nil {
			results <- Result{Source: r.name, Error: fmt.Errorf("scanner error: %w", err)}
		}
	}()

	return results
}

func (r *Remote) fetch(ctx context.Context, s *session.Session) ([]byte, error) {
	attempts := 1 + s.Retries
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := s.RetryDelay * time.Duration(attempt-1)
			if s.Logger != nil {
				s.Logger.Warnf("[%s] attempt %d/%d failed: %v; retrying in %v", r.name, attempt-1, attempts, lastErr, delay)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &FetchError{URL: r.url, Attempts: attempt - 1, StatusCode: lastStatus, Err: ctx.Err()}
			}
		}

		body, status, retry, err := r.attempt(ctx, s)
		if err == nil {
			return body, nil
		}
		lastErr, lastStatus = err, status

		if !retry || ctx.Err() != nil {
			return nil, &FetchError{URL: r.url, Attempts: attempt, StatusCode: status, Err: err}
		}
	}

	return nil, &FetchError{URL: r.url, Attempts: attempts, StatusCode: lastStatus, Err: lastErr}
}

// attempt performs one request. retry reports whether a later attempt may
// succeed.
func (r *Remote) attempt(ctx context.Context, s *session.Session) (body []byte, status int, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", session.UserAgent)
	req.Header.Set("Accept", "text/plain, */*")

	var cached []byte
	if s.Cache != nil {
		entry, ok, err := s.Cache.Get(r.url)
		if err != nil && s.Logger != nil {
			s.Logger.Warnf("[%s] fetch cache lookup failed: %v", r.name, err)
		}
		if ok {
			cached = entry.Body
			req.Header.Set("If-None-Match", entry.ETag)
		}
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, 0, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		if DebugLog != nil {
			DebugLog("%s not modified, using cached copy", r.url)
		}
		return cached, resp.StatusCode, false, nil

	case resp.StatusCode != http.StatusOK:
		retry := resp.StatusCode >= 500 ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusRequestTimeout
		return nil, resp.StatusCode, retry, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, resp.StatusCode, true, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, resp.StatusCode, false, fmt.Errorf("response larger than %d bytes", maxBodySize)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, resp.StatusCode, false, errEmptyBody
	}

	if s.Cache != nil {
		if err := s.Cache.Put(r.url, resp.Header.Get("ETag"), body); err != nil && s.Logger != nil {
			s.Logger.Warnf("[%s] failed to cache response: %v", r.name, err)
		}
	}

	return body, resp.StatusCode, false, nil
}
