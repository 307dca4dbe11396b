package httpapi

import (
	"encoding/json"
	"net/http"

	"fleetd/internal/affinity"
	"fleetd/internal/fleet"
	"fleetd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps well-known orchestrator errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case fleet.IsSlotNotFound(err):
		return http.StatusNotFound
	case fleet.IsInvalidTransition(err):
		return http.StatusConflict
	case affinity.IsCoreConflict(err):
		return http.StatusConflict
	case affinity.IsInvalidState(err):
		return http.StatusConflict
	case fleet.IsLaunchFailed(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
