package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/core"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
)

// AddressRequest is the write payload for postal addresses. ID is optional
// on create (a server-minted identity is the default); Version is required
// on update and must match the last version the caller has seen.
type AddressRequest struct {
	ID         *uuid.UUID `json:"id,omitempty"`
	Version    *uint32    `json:"version,omitempty"`
	Name       string     `json:"name,omitempty"`
	Street     string     `json:"street"`
	PostalCode string     `json:"postal_code"`
	Locality   string     `json:"locality"`
	Region     string     `json:"region,omitempty"`
	Country    string     `json:"country"`
}

// AddressResponse is the read payload for postal addresses.
type AddressResponse struct {
	ID         uuid.UUID `json:"id"`
	Version    uint32    `json:"version"`
	Name       string    `json:"name,omitempty"`
	Street     string    `json:"street"`
	PostalCode string    `json:"postal_code"`
	Locality   string    `json:"locality"`
	Region     string    `json:"region,omitempty"`
	Country    string    `json:"country"`
}

func addressToResponse(a *core.PostalAddress) AddressResponse {
	id, _ := a.IdVersion.ID()
	version, _ := a.IdVersion.Version()
	return AddressResponse{
		ID:         id,
		Version:    version,
		Name:       a.Name,
		Street:     a.Street,
		PostalCode: a.PostalCode,
		Locality:   a.Locality,
		Region:     a.Region,
		Country:    a.Country,
	}
}

func (req *AddressRequest) toEntity(idv core.IdVersion) *core.PostalAddress {
	return &core.PostalAddress{
		IdVersion:  idv,
		Name:       req.Name,
		Street:     req.Street,
		PostalCode: req.PostalCode,
		Locality:   req.Locality,
		Region:     req.Region,
		Country:    req.Country,
	}
}

// listAddresses handles GET /api/v1/addresses
func (rr *routes) listAddresses(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}

	addresses, err := rr.store.ListPostalAddresses(r.Context(), opts...)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	response := make([]AddressResponse, len(addresses))
	for i, a := range addresses {
		response[i] = addressToResponse(a)
	}
	writeJSONResponse(w, http.StatusOK, response)
}

// getAddress handles GET /api/v1/addresses/{id}
func (rr *routes) getAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	address, err := rr.store.GetPostalAddress(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, addressToResponse(address))
}

// createAddress handles POST /api/v1/addresses
func (rr *routes) createAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Version != nil {
		writeErrorResponse(w, "version is not allowed on create", http.StatusBadRequest)
		return
	}

	idv := core.IdVersion{}
	if req.ID != nil {
		idv = core.NewIdVersion(*req.ID, nil)
	}

	saved, err := rr.store.SavePostalAddress(r.Context(), req.toEntity(idv))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	response := addressToResponse(saved)
	rr.publishSaved(notify.KindAddress, response.ID, response.Version)
	writeJSONResponse(w, http.StatusCreated, response)
}

// updateAddress handles PUT /api/v1/addresses/{id}
func (rr *routes) updateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req AddressRequest
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

	entity := req.toEntity(core.ExistingIdVersion(id, *req.Version))
	saved, err := rr.store.SavePostalAddress(r.Context(), entity)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	response := addressToResponse(saved)
	rr.publishSaved(notify.KindAddress, response.ID, response.Version)
	writeJSONResponse(w, http.StatusOK, response)
}
