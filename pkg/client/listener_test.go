package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	current := func() uint32 { return 0 }
	refetch := func(context.Context, Notice) {}

	tests := []struct {
		name    string
		baseURL string
		kind    string
		id      uuid.UUID
		current VersionFunc
		refetch RefetchFunc
	}{
		{name: "missing base URL", kind: "address", id: uuid.New(), current: current, refetch: refetch},
		{name: "missing kind", baseURL: "http://x", id: uuid.New(), current: current, refetch: refetch},
		{name: "nil id", baseURL: "http://x", kind: "address", current: current, refetch: refetch},
		{name: "missing version func", baseURL: "http://x", kind: "address", id: uuid.New(), refetch: refetch},
		{name: "missing refetch func", baseURL: "http://x", kind: "address", id: uuid.New(), current: current},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.baseURL, tt.kind, tt.id, tt.current, tt.refetch)
			require.Error(t, err)
		})
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		l, err := New("http://x/", "address", uuid.New(), current, refetch)
		require.NoError(t, err)
		assert.Equal(t, "http://x", l.baseURL)
	})
}

// sseTestServer serves a scripted stream per connection. Each call of frames
// returns the frames for that connection; the stream closes after writing
// them.
func sseTestServer(t *testing.T, frames func(conn int) []string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn := int(conns.Add(1))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames(conn) {
			_, _ = fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server, &conns
}

func changedFrame(id uuid.UUID, version uint32) string {
	return fmt.Sprintf("event: changed\nid: %s\ndata: {\"kind\":\"address\",\"id\":\"%s\",\"version\":%d}\n\n",
		id, id, version)
}

func TestListenerRefetchDecision(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	server, _ := sseTestServer(t, func(conn int) []string {
		if conn > 1 {
			return nil
		}
		return []string{
			": keep-alive\n\n",
			changedFrame(id, 2), // equal to current, skipped
			changedFrame(id, 3), // newer, triggers refetch
		}
	})

	refetched := make(chan Notice, 8)
	l, err := New(server.URL, "address", id,
		func() uint32 { return 2 },
		func(_ context.Context, n Notice) { refetched <- n },
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case n := <-refetched:
		assert.Equal(t, uint32(3), n.Version)
		assert.Equal(t, id, n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("refetch was not triggered")
	}

	// The equal-version notice must not have caused a refetch: the v3
	// notice arrived first on the channel, and no second one follows.
	select {
	case n := <-refetched:
		t.Fatalf("unexpected refetch for version %d", n.Version)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestListenerReconnects(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	server, conns := sseTestServer(t, func(conn int) []string {
		// One notice per connection, then the stream drops.
		return []string{changedFrame(id, uint32(conn))}
	})

	var current atomic.Uint32
	refetched := make(chan Notice, 8)

	l, err := New(server.URL, "address", id,
		func() uint32 { return current.Load() },
		func(_ context.Context, n Notice) {
			current.Store(n.Version)
			refetched <- n
		},
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	for want := uint32(1); want <= 2; want++ {
		select {
		case n := <-refetched:
			assert.Equal(t, want, n.Version)
		case <-time.After(5 * time.Second):
			t.Fatalf("no refetch for version %d", want)
		}
	}

	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestListenerSurfacesErrorEvents(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	server, _ := sseTestServer(t, func(conn int) []string {
		if conn > 1 {
			return nil
		}
		return []string{"event: error\ndata: {\"error\":\"unknown topic kind\"}\n\n"}
	})

	errs := make(chan error, 8)
	l, err := New(server.URL, "address", id,
		func() uint32 { return 0 },
		func(context.Context, Notice) {},
		WithErrorHandler(func(err error) { errs <- err }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "unknown topic kind")
	case <-time.After(2 * time.Second):
		t.Fatal("error event was not surfaced")
	}
}

func TestListenerSubscribeFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	errs := make(chan error, 8)
	l, err := New(server.URL, "address", uuid.New(),
		func() uint32 { return 0 },
		func(context.Context, Notice) {},
		WithErrorHandler(func(err error) { errs <- err }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "unexpected status")
	case <-time.After(2 * time.Second):
		t.Fatal("connect failure was not surfaced")
	}
}
