package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
)

// routes holds the REST handler dependencies
type routes struct {
	store    storage.Store
	registry notify.Registry
}

func newRoutes(store storage.Store, registry notify.Registry) *routes {
	return &routes{store: store, registry: registry}
}

// restRouter wires the entity endpoints under /api/v1
func (rr *routes) restRouter() http.Handler {
	r := chi.NewRouter()

	r.Route("/addresses", func(r chi.Router) {
		r.Get("/", rr.listAddresses)
		r.Post("/", rr.createAddress)
		r.Get("/{id}", rr.getAddress)
		r.Put("/{id}", rr.updateAddress)
	})

	r.Route("/sport-configs", func(r chi.Router) {
		r.Get("/", rr.listSportConfigs)
		r.Post("/", rr.createSportConfig)
		r.Get("/{id}", rr.getSportConfig)
		r.Put("/{id}", rr.updateSportConfig)
	})

	return r
}

// publishSaved announces a successful save on the entity's topic.
func (rr *routes) publishSaved(kind notify.Kind, id uuid.UUID, version uint32) {
	notice := notify.Notice{Kind: kind, ID: id, Version: version}
	rr.registry.Publish(notice.Topic(), notice)
}

// parseIDParam reads the {id} URL parameter.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, "invalid entity id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// listOptions translates the name/limit query parameters.
func listOptions(w http.ResponseWriter, r *http.Request) ([]storage.ListOption, bool) {
	opts := []storage.ListOption{}
	if name := r.URL.Query().Get("name"); name != "" {
		opts = append(opts, storage.WithNameFilter(name))
	}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit <= 0 {
			writeErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest)
			return nil, false
		}
		opts = append(opts, storage.WithLimit(limit))
	}
	return opts, true
}
