// Package client implements a change-notification listener for the
// tournament planner API. It subscribes to one entity topic over SSE and
// tells the caller when its copy of the entity is stale.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// Notice mirrors the server's wire format for change events.
type Notice struct {
	Kind    string    `json:"kind"`
	ID      uuid.UUID `json:"id"`
	Version uint32    `json:"version"`
}

// VersionFunc reports the entity version the caller currently holds.
type VersionFunc func() uint32

// RefetchFunc is invoked when a received notice is newer than the caller's
// version. The caller reloads the entity however it sees fit.
type RefetchFunc func(ctx context.Context, notice Notice)

// ErrorFunc receives stream-level errors and server-sent error events.
// Errors are informational; the listener keeps reconnecting.
type ErrorFunc func(err error)

// Option configures a Listener.
type Option func(*Listener) error

// WithHTTPClient overrides the HTTP client used for the stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(l *Listener) error {
		if hc == nil {
			return fmt.Errorf("http client is required")
		}
		l.httpClient = hc
		return nil
	}
}

// WithErrorHandler attaches a handler for recoverable errors.
func WithErrorHandler(f ErrorFunc) Option {
	return func(l *Listener) error {
		l.onError = f
		return nil
	}
}

// WithMaxReconnectInterval caps the backoff between reconnect attempts.
func WithMaxReconnectInterval(d time.Duration) Option {
	return func(l *Listener) error {
		if d <= 0 {
			return fmt.Errorf("max reconnect interval must be positive")
		}
		l.maxInterval = d
		return nil
	}
}

// Listener follows one entity topic and triggers refetches. A fresh
// subscription only sees future notices, so after a reconnect the listener
// relies on the next notice (or the caller's own refetch) to catch up.
type Listener struct {
	httpClient  *http.Client
	baseURL     string
	kind        string
	id          uuid.UUID
	current     VersionFunc
	refetch     RefetchFunc
	onError     ErrorFunc
	maxInterval time.Duration
}

// New creates a listener for one topic. baseURL is the server root, e.g.
// "http://localhost:8080".
func New(
	baseURL string,
	kind string,
	id uuid.UUID,
	current VersionFunc,
	refetch RefetchFunc,
	opts ...Option,
) (*Listener, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if kind == "" {
		return nil, fmt.Errorf("topic kind is required")
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("topic id is required")
	}
	if current == nil || refetch == nil {
		return nil, fmt.Errorf("version and refetch callbacks are required")
	}

	l := &Listener{
		httpClient:  http.DefaultClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		kind:        kind,
		id:          id,
		current:     current,
		refetch:     refetch,
		maxInterval: 30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Run subscribes and processes notices until ctx is cancelled. Stream drops
// and failed connects are retried with exponential backoff; the backoff
// resets after every successful connect. Run returns ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = l.maxInterval

	for {
		if err := l.stream(ctx, bo); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.reportError(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// stream opens one subscription and consumes it until it drops.
func (l *Listener) stream(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	url := fmt.Sprintf("%s/api/cr/subscribe/%s/%s", l.baseURL, l.kind, l.id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscribe failed: unexpected status %d", resp.StatusCode)
	}

	bo.Reset()

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("stream ended: %w", err)
		}
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ":"):
			// Keep-alive comment, nothing to do.
		case line == "":
			l.dispatch(ctx, event, data)
			event, data = "", ""
		}
	}
}

// dispatch handles one complete SSE frame.
func (l *Listener) dispatch(ctx context.Context, event, data string) {
	switch event {
	case "changed":
		var notice Notice
		if err := json.Unmarshal([]byte(data), &notice); err != nil {
			l.reportError(fmt.Errorf("malformed notice: %w", err))
			return
		}
		if notice.Version > l.current() {
			l.refetch(ctx, notice)
		}
	case "error":
		var serverErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &serverErr); err != nil {
			l.reportError(errors.New(data))
			return
		}
		l.reportError(errors.New(serverErr.Error))
	}
}

func (l *Listener) reportError(err error) {
	if l.onError != nil {
		l.onError(err)
	}
}
