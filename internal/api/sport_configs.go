package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/core"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
)

// SportConfigRequest is the write payload for sport configurations. The
// config document is passed through verbatim.
type SportConfigRequest struct {
	ID      *uuid.UUID      `json:"id,omitempty"`
	Version *uint32         `json:"version,omitempty"`
	SportID uuid.UUID       `json:"sport_id"`
	Name    string          `json:"name"`
	Config  json.RawMessage `json:"config"`
}

// SportConfigResponse is the read payload for sport configurations.
type SportConfigResponse struct {
	ID      uuid.UUID       `json:"id"`
	Version uint32          `json:"version"`
	SportID uuid.UUID       `json:"sport_id"`
	Name    string          `json:"name"`
	Config  json.RawMessage `json:"config"`
}

func sportConfigToResponse(c *core.SportConfig) SportConfigResponse {
	id, _ := c.IdVersion.ID()
	version, _ := c.IdVersion.Version()
	return SportConfigResponse{
		ID:      id,
		Version: version,
		SportID: c.SportID,
		Name:    c.Name,
		Config:  c.Config,
	}
}

func (req *SportConfigRequest) toEntity(idv core.IdVersion) *core.SportConfig {
	return &core.SportConfig{
		IdVersion: idv,
		SportID:   req.SportID,
		Name:      req.Name,
		Config:    req.Config,
	}
}

// listSportConfigs handles GET /api/v1/sport-configs
func (rr *routes) listSportConfigs(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}

	configs, err := rr.store.ListSportConfigs(r.Context(), opts...)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	response := make([]SportConfigResponse, len(configs))
	for i, c := range configs {
		response[i] = sportConfigToResponse(c)
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// getSportConfig handles GET /api/v1/sport-configs/{id}
func (rr *routes) getSportConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	config, err := rr.store.GetSportConfig(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sportConfigToResponse(config))
}

// createSportConfig handles POST /api/v1/sport-configs
func (rr *routes) createSportConfig(w http.ResponseWriter, r *http.Request) {
	var req SportConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Version != nil {
		writeErrorResponse(w, "version is not allowed on create", http.StatusBadRequest)
		return
	}
	if req.SportID == uuid.Nil {
		writeErrorResponse(w, "sport_id is required", http.StatusBadRequest)
		return
	}

	idv := core.IdVersion{}
	if req.ID != nil {
		idv = core.NewIdVersion(*req.ID, nil)
	}

	saved, err := rr.store.SaveSportConfig(r.Context(), req.toEntity(idv))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	response := sportConfigToResponse(saved)
	rr.publishSaved(notify.KindSportConfig, response.ID, response.Version)
	writeJSONResponse(w, http.StatusCreated, response)
}

// updateSportConfig handles PUT /api/v1/sport-configs/{id}
func (rr *routes) updateSportConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req SportConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Version == nil {
		writeErrorResponse(w, "version is required on update", http.StatusBadRequest)
		return
	}
	if req.ID != nil && *req.ID != id {
		writeErrorResponse(w, "body id does not match URL", http.StatusBadRequest)
		return
	}
	if req.SportID == uuid.Nil {
		writeErrorResponse(w, "sport_id is required", http.StatusBadRequest)
		return
	}

	entity := req.toEntity(core.ExistingIdVersion(id, *req.Version))
	saved, err := rr.store.SaveSportConfig(r.Context(), entity)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	response := sportConfigToResponse(saved)
	rr.publishSaved(notify.KindSportConfig, response.ID, response.Version)
	writeJSONResponse(w, http.StatusOK, response)
}
