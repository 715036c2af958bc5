package session

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samogod/blockforge/pkg/cache"
	"github.com/samogod/blockforge/pkg/config"

	"github.com/sirupsen/logrus"
)

var DebugLog func(string, ...interface{})

const UserAgent = "blockforge/1.0 (+https://github.com/samogod/blockforge)"

// Session is shared by every source of a run.
type Session struct {
	Client     *http.Client
	Retries    int
	RetryDelay time.Duration
	// Cache is nil when conditional fetching is disabled.
	Cache  *cache.Store
	Logger logrus.FieldLogger
}

type LoggingTransport struct {
	Transport http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if DebugLog != nil {
		DebugLog("requesting url: %s", req.URL.String())

		if etag := req.Header.Get("If-None-Match"); etag != "" {
			DebugLog("revalidating with etag %s", etag)
		}
	}

	resp, err := t.Transport.RoundTrip(req)

	if DebugLog != nil {
		host := req.URL.Hostname()

		if err != nil {
			DebugLog("encountered an error with source %s: %v", host, err)
		} else {
			DebugLog("response for %s: status code %d", req.URL.String(), resp.StatusCode)

			if contentType := resp.Header.Get("Content-Type"); contentType != "" {
				DebugLog("response content-type: %s", contentType)
			}

			if resp.StatusCode >= 400 && resp.Body != nil {
				bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 500))
				resp.Body.Close()
				if readErr == nil && len(bodyBytes) > 0 {
					DebugLog("error response body: %s", strings.TrimSpace(string(bodyBytes)))
				}
				resp.Body = io.NopCloser(strings.NewReader(string(bodyBytes)))
			}
		}
	}

	return resp, err
}

// New builds the HTTP session for cfg. store may be nil.
func New(cfg *config.Config, store *cache.Store, logger logrus.FieldLogger) (*Session, error) {
	if cfg.DefaultSettings.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be greater than 0")
	}

	baseTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	var transport http.RoundTripper = baseTransport
	if DebugLog != nil {
		transport = &LoggingTransport{Transport: baseTransport}
	}

	client := &http.Client{
		Timeout:   cfg.FetchTimeout(),
		Transport: transport,
	}

	return &Session{
		Client:     client,
		Retries:    cfg.DefaultSettings.Retries,
		RetryDelay: cfg.RetryDelay(),
		Cache:      store,
		Logger:     logger,
	}, nil
}
