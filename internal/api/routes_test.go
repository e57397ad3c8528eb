package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage/inmemory"
)

func newTestServer(t *testing.T) (*chi.Mux, *notify.Handle) {
	t.Helper()

	broker, err := notify.New()
	require.NoError(t, err)
	t.Cleanup(broker.Close)

	return NewServer(inmemory.New(), broker), broker
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeAddress(t *testing.T, rec *httptest.ResponseRecorder) AddressResponse {
	t.Helper()
	var resp AddressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func validAddressRequest(name string) AddressRequest {
	return AddressRequest{
		Name:       name,
		Street:     "Sportallee 1",
		PostalCode: "22335",
		Locality:   "Hamburg",
		Country:    "DE",
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = doJSON(t, server, http.MethodGet, "/readiness", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	rec = doJSON(t, server, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Contains(t, info, "go_version")
}

// failingStore reports a broken backend.
type failingStore struct {
	storage.Store
}

func (*failingStore) CheckReadiness(context.Context) error {
	return fmt.Errorf("connection refused")
}

func TestReadinessFailure(t *testing.T) {
	t.Parallel()

	broker, err := notify.New()
	require.NoError(t, err)
	t.Cleanup(broker.Close)

	server := NewServer(&failingStore{inmemory.New()}, broker)

	rec := doJSON(t, server, http.MethodGet, "/readiness", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}

func TestAddressCRUD(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	// Create.
	rec := doJSON(t, server, http.MethodPost, "/api/v1/addresses", validAddressRequest("Clubhouse"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeAddress(t, rec)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, uint32(0), created.Version)

	// Read back.
	rec = doJSON(t, server, http.MethodGet, "/api/v1/addresses/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeAddress(t, rec))

	// Update with the current version.
	update := validAddressRequest("Clubhouse")
	update.Street = "Sportallee 2"
	update.Version = &created.Version
	rec = doJSON(t, server, http.MethodPut, "/api/v1/addresses/"+created.ID.String(), update)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeAddress(t, rec)
	assert.Equal(t, uint32(1), updated.Version)
	assert.Equal(t, "Sportallee 2", updated.Street)

	// A second writer with the original version conflicts.
	rec = doJSON(t, server, http.MethodPut, "/api/v1/addresses/"+created.ID.String(), update)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "version conflict")
}

func TestAddressValidation(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/addresses", validAddressRequest("Base"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeAddress(t, rec)

	t.Run("version on create is rejected", func(t *testing.T) {
		req := validAddressRequest("Other")
		version := uint32(0)
		req.Version = &version
		rec := doJSON(t, server, http.MethodPost, "/api/v1/addresses", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update without version is rejected", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPut, "/api/v1/addresses/"+created.ID.String(), validAddressRequest("Base"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("mismatched body id is rejected", func(t *testing.T) {
		req := validAddressRequest("Base")
		otherID := uuid.New()
		version := created.Version
		req.ID = &otherID
		req.Version = &version
		rec := doJSON(t, server, http.MethodPut, "/api/v1/addresses/"+created.ID.String(), req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed id is rejected", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/v1/addresses/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing entity is not found", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/v1/addresses/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/addresses", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate name reports the constraint", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/addresses", validAddressRequest("BASE"))
		require.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Constraint)
	})
}

func TestAddressList(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	for _, name := range []string{"Bravo", "alpha", "Charlie"} {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/addresses", validAddressRequest(name))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, server, http.MethodGet, "/api/v1/addresses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []AddressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Name)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/addresses?name=alp", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var filtered []AddressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
	assert.Len(t, filtered, 1)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/addresses?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var limited []AddressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &limited))
	assert.Len(t, limited, 2)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/addresses?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSportConfigCRUD(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	sportID := uuid.New()

	req := SportConfigRequest{
		SportID: sportID,
		Name:    "default",
		Config:  json.RawMessage(`{"halftime":45}`),
	}

	rec := doJSON(t, server, http.MethodPost, "/api/v1/sport-configs", req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created SportConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, uint32(0), created.Version)
	assert.Equal(t, sportID, created.SportID)

	update := req
	update.Version = &created.Version
	update.Config = json.RawMessage(`{"halftime":30}`)
	rec = doJSON(t, server, http.MethodPut, "/api/v1/sport-configs/"+created.ID.String(), update)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated SportConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, uint32(1), updated.Version)
	assert.JSONEq(t, `{"halftime":30}`, string(updated.Config))

	t.Run("missing sport_id is rejected", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/sport-configs", SportConfigRequest{Name: "loose"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSaveCreatesNotice(t *testing.T) {
	t.Parallel()

	server, broker := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/addresses", validAddressRequest("Notified"))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeAddress(t, rec)

	topic, err := notify.NewTopic(notify.KindAddress, created.ID)
	require.NoError(t, err)
	sub, err := broker.Subscribe(context.Background(), topic)
	require.NoError(t, err)
	defer sub.Close()

	update := validAddressRequest("Notified")
	update.Version = &created.Version
	rec = doJSON(t, server, http.MethodPut, "/api/v1/addresses/"+created.ID.String(), update)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case notice := <-sub.C():
		assert.Equal(t, notify.KindAddress, notice.Kind)
		assert.Equal(t, created.ID, notice.ID)
		assert.Equal(t, uint32(1), notice.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no notice published after save")
	}
}
