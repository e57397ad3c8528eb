package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/logger"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`

	// Constraint names the violated natural-key constraint, when one is.
	Constraint string `json:"constraint,omitempty"`
}

// writeJSONResponse writes a JSON response with the given data
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

// writeStorageError maps storage errors to HTTP status codes. Conflicts are
// recoverable by the caller (refetch, merge, retry with the fresh version).
func writeStorageError(w http.ResponseWriter, err error) {
	var (
		uv *storage.UniqueViolationError
		fk *storage.ForeignKeyViolationError
		cv *storage.CheckViolationError
	)

	switch {
	case errors.Is(err, storage.ErrOptimisticLockConflict):
		writeErrorResponse(w, "version conflict: entity was modified concurrently", http.StatusConflict)
	case errors.Is(err, storage.ErrNotFound):
		writeErrorResponse(w, "entity not found", http.StatusNotFound)
	case errors.As(err, &uv):
		writeJSONResponse(w, http.StatusConflict, ErrorResponse{
			Error:      "unique constraint violated",
			Constraint: uv.Constraint,
		})
	case errors.As(err, &fk):
		writeJSONResponse(w, http.StatusConflict, ErrorResponse{
			Error:      "foreign key constraint violated",
			Constraint: fk.Constraint,
		})
	case errors.As(err, &cv):
		writeJSONResponse(w, http.StatusConflict, ErrorResponse{
			Error:      "check constraint violated",
			Constraint: cv.Constraint,
		})
	case errors.Is(err, storage.ErrSerializationFailure):
		w.Header().Set("Retry-After", "1")
		writeErrorResponse(w, "transient storage contention, retry", http.StatusServiceUnavailable)
	default:
		logger.Errorf("Unhandled storage error: %v", err)
		writeErrorResponse(w, "internal server error", http.StatusInternalServerError)
	}
}
