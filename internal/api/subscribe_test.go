package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage/inmemory"
)

// sseEvent is one parsed frame from an event stream.
type sseEvent struct {
	event string
	id    string
	data  string
}

// readEvent reads frames until a complete event (or comment) terminates.
// Comment-only frames come back with event name "comment".
func readEvent(t *testing.T, reader *bufio.Reader) (sseEvent, error) {
	t.Helper()

	var ev sseEvent
	sawAny := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimRight(line, "\n")

		switch {
		case line == "":
			if sawAny {
				return ev, nil
			}
		case strings.HasPrefix(line, ": "):
			ev.event = "comment"
			ev.data = strings.TrimPrefix(line, ": ")
			sawAny = true
		case strings.HasPrefix(line, "event: "):
			ev.event = strings.TrimPrefix(line, "event: ")
			sawAny = true
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
			sawAny = true
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
			sawAny = true
		}
	}
}

func startSSEServer(t *testing.T, opts ...ServerOption) (*httptest.Server, *notify.Handle) {
	t.Helper()

	broker, err := notify.New()
	require.NoError(t, err)
	t.Cleanup(broker.Close)

	server := httptest.NewServer(NewServer(inmemory.New(), broker, opts...))
	t.Cleanup(server.Close)
	return server, broker
}

func openStream(t *testing.T, ctx context.Context, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSubscribeStreamsChanges(t *testing.T) {
	t.Parallel()

	server, broker := startSSEServer(t)

	id := uuid.New()
	topic, err := notify.NewTopic(notify.KindAddress, id)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The handler flushes the response headers only after its subscription
	// is registered, so the stream is live once the request returns.
	resp := openStream(t, ctx, server.URL+topic.Path())
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	broker.Publish(topic, notify.Notice{Kind: topic.Kind, ID: id, Version: 1})

	ev, err := readEvent(t, reader)
	require.NoError(t, err)
	require.Equal(t, "changed", ev.event)
	assert.Equal(t, id.String(), ev.id)

	var notice notify.Notice
	require.NoError(t, json.Unmarshal([]byte(ev.data), &notice))
	assert.Equal(t, notify.KindAddress, notice.Kind)
	assert.Equal(t, id, notice.ID)
	assert.Equal(t, uint32(1), notice.Version)
}

func TestSubscribeEndToEndWithSave(t *testing.T) {
	t.Parallel()

	server, _ := startSSEServer(t)

	// Create the entity first so its topic is known.
	body := strings.NewReader(`{"street":"Sportallee 1","postal_code":"22335","locality":"Hamburg","country":"DE"}`)
	createResp, err := http.Post(server.URL+"/api/v1/addresses", "application/json", body)
	require.NoError(t, err)
	defer createResp.Body.Close()
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	var created AddressResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))

	topic, err := notify.NewTopic(notify.KindAddress, created.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp := openStream(t, ctx, server.URL+topic.Path())
	reader := bufio.NewReader(resp.Body)

	// Update through the REST API; the save publishes onto the stream.
	update := `{"street":"Sportallee 2","postal_code":"22335","locality":"Hamburg","country":"DE","version":0}`
	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/v1/addresses/"+created.ID.String(), strings.NewReader(update))
	require.NoError(t, err)

	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	ev, err := readEvent(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "changed", ev.event)
	assert.Equal(t, created.ID.String(), ev.id)

	var notice notify.Notice
	require.NoError(t, json.Unmarshal([]byte(ev.data), &notice))
	assert.Equal(t, uint32(1), notice.Version)
}

func TestSubscribeUnknownKind(t *testing.T) {
	t.Parallel()

	server, _ := startSSEServer(t)

	resp := openStream(t, context.Background(), server.URL+"/api/cr/subscribe/venue/"+uuid.NewString())
	reader := bufio.NewReader(resp.Body)

	ev, err := readEvent(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "error", ev.event)
	assert.Contains(t, ev.data, "unknown topic kind")

	// The stream closes after the error event.
	_, err = readEvent(t, reader)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSubscribeMalformedID(t *testing.T) {
	t.Parallel()

	server, _ := startSSEServer(t)

	resp := openStream(t, context.Background(), server.URL+"/api/cr/subscribe/address/not-a-uuid")
	reader := bufio.NewReader(resp.Body)

	ev, err := readEvent(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "error", ev.event)
	assert.Contains(t, ev.data, "invalid entity id")

	_, err = readEvent(t, reader)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSubscribeKeepAlive(t *testing.T) {
	t.Parallel()

	server, _ := startSSEServer(t, WithKeepAliveInterval(30*time.Millisecond))

	topic, err := notify.NewTopic(notify.KindStage, uuid.New())
	require.NoError(t, err)

	resp := openStream(t, context.Background(), server.URL+topic.Path())
	reader := bufio.NewReader(resp.Body)

	ev, err := readEvent(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "comment", ev.event)
	assert.Equal(t, "keep-alive", ev.data)
}

func TestSubscribeEndsOnBrokerShutdown(t *testing.T) {
	t.Parallel()

	broker, err := notify.New()
	require.NoError(t, err)

	server := httptest.NewServer(NewServer(inmemory.New(), broker))
	t.Cleanup(server.Close)

	topic, err := notify.NewTopic(notify.KindTournamentBase, uuid.New())
	require.NoError(t, err)

	resp := openStream(t, context.Background(), server.URL+topic.Path())
	reader := bufio.NewReader(resp.Body)

	broker.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := readEvent(t, reader)
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			return
		}
		require.True(t, time.Now().Before(deadline), "stream did not end after broker shutdown")
	}
}
