package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/rehabdao/attestd/internal/domain"
	"github.com/rehabdao/attestd/internal/hasher"
	"github.com/rehabdao/attestd/internal/registry"
	"github.com/rehabdao/attestd/internal/storage"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int, details ...string) {
	respondJSON(w, errorBody{Error: message, Details: details}, status)
}

// respondServiceError maps pipeline errors onto the HTTP taxonomy.
// fallback is the message used for unexpected failures.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *domain.ValidationError
	var rejected *registry.RejectedError

	switch {
	case errors.As(err, &verr):
		if errors.Is(verr.Err, domain.ErrMissingField) || errors.Is(verr.Err, hasher.ErrEmptyInput) {
			respondError(w, "Missing required fields", http.StatusBadRequest, verr.Field)
			return
		}
		details := []string{verr.Error()}
		if errors.Is(verr.Err, domain.ErrInvalidSessionType) {
			details = append(details, "sessionType must be one of: "+joinSessionTypes())
		}
		respondError(w, "Invalid request", http.StatusBadRequest, details...)
	case errors.Is(err, storage.ErrInvalidUID):
		respondError(w, "Attestation UID is required", http.StatusBadRequest)
	case errors.Is(err, registry.ErrUnavailable):
		respondError(w, "Attestation registry not available", http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, storage.ErrUnavailable):
		respondError(w, "Attestation store not available", http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		respondError(w, "Attestation not found", http.StatusNotFound)
	case errors.As(err, &rejected):
		log.Printf("%s: %v", fallback, err)
		respondError(w, rejected.Error(), http.StatusInternalServerError)
	default:
		log.Printf("%s: %v", fallback, err)
		respondError(w, fallback, http.StatusInternalServerError)
	}
}

func joinSessionTypes() string {
	types := domain.SessionTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
