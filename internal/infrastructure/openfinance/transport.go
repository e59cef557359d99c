package openfinance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"agrego/internal/shared/logger"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultRateLimit  = 60
	defaultRateWindow = time.Minute

	// maxThrottleRetries caps re-issues of a request after a 429.
	maxThrottleRetries = 3
	// throttleBackoffBase is the first backoff when the provider does
	// not send a Retry-After header; it doubles per retry.
	throttleBackoffBase = time.Second
)

// slidingWindow tracks request timestamps over a trailing window and
// rejects locally once the limit is reached within it.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
	now    func() time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// reserve records the request if the trailing window has capacity.
// When it does not, it returns the wait until the oldest tracked
// request leaves the window.
func (l *slidingWindow) reserve() (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.stamps[:0]
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.stamps = kept

	if len(l.stamps) >= l.limit {
		wait = l.stamps[0].Add(l.window).Sub(now)
		if wait < 0 {
			wait = 0
		}
		return wait, false
	}

	l.stamps = append(l.stamps, now)
	return 0, true
}

// TransportConfig configures the rate-limited transport.
type TransportConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  int
	RateWindow time.Duration
}

// Transport wraps outbound HTTP calls to the provider with a sliding
// window limiter, throttle retries and defensive response parsing.
type Transport struct {
	httpClient *http.Client
	baseURL    string
	limiter    *slidingWindow
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}

	return &Transport{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: newSlidingWindow(cfg.RateLimit, cfg.RateWindow),
		sleep:   sleepContext,
	}
}

// Request issues one HTTP request against the provider and decodes the
// response into out (which may be nil to discard the body).
//
// Error conditions: ErrAuthentication (401), ErrPermissionDenied (403,
// never retried), *RateLimitError (local rejection or exhausted 429
// retries) and *ParseError (undecodable body).
func (t *Transport) Request(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, out any) error {
	if wait, ok := t.limiter.reserve(); !ok {
		return &RateLimitError{RetryAfter: wait, Local: true}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	reqURL := t.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthentication, errorMessage(raw))

		case resp.StatusCode == http.StatusForbidden:
			// Per-account scope denial; callers degrade, never retry.
			return fmt.Errorf("%w: %s", ErrPermissionDenied, errorMessage(raw))

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfter(resp.Header, attempt)
			if attempt >= maxThrottleRetries {
				return &RateLimitError{RetryAfter: delay}
			}
			logger.Get().Warnw("provider throttled request, backing off",
				"path", path, "attempt", attempt+1, "delay", delay)
			if err := t.sleep(ctx, delay); err != nil {
				return err
			}
			continue

		case resp.StatusCode >= 400:
			return fmt.Errorf("provider request failed with status %d: %s", resp.StatusCode, errorMessage(raw))
		}

		return decodeBody(raw, out)
	}
}

// retryAfter prefers the Retry-After header and falls back to
// exponential backoff starting at 1s.
func retryAfter(h http.Header, attempt int) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return throttleBackoffBase << attempt
}

// decodeBody parses a provider response defensively:
//   - an empty body is an empty object, not an error
//   - an HTML body means the provider returned an error page
//   - concatenated JSON objects ("}{") are repaired by taking the
//     first object; the provider is known to emit these occasionally
func decodeBody(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	if looksLikeHTML(trimmed) {
		return &ParseError{Reason: "HTML error page", Snippet: snippet(trimmed)}
	}

	if out == nil {
		out = &json.RawMessage{}
	}

	// Decoder reads exactly one JSON value, so a concatenated payload
	// yields its first object instead of an unmarshal failure.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(out); err != nil {
		return &ParseError{Reason: "malformed JSON", Snippet: snippet(trimmed), Err: err}
	}
	return nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 256)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype")
}

func snippet(body []byte) string {
	const maxLen = 120
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}

// errorMessage extracts the provider's error message when the body is
// JSON, falling back to the raw body.
func errorMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := decodeBody(raw, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return snippet(bytes.TrimSpace(raw))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
