package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/catalog"
)

const respondLogPrefix = "server:respond"

// errorBody is the uniform error response.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msgf("%s - failed to encode response", respondLogPrefix)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{
		Success: false,
		Error:   message,
		Details: fmt.Sprintf("HTTP %d", status),
	})
}

// respondCatalogError maps a catalog error to its HTTP status. Internal
// errors are reported as "<action>: <cause>".
func respondCatalogError(w http.ResponseWriter, action string, err error) {
	var cerr *catalog.Error
	if !errors.As(err, &cerr) {
		log.Error().Err(err).Msgf("%s - %s", respondLogPrefix, action)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", action, err))
		return
	}
	switch cerr.Code {
	case catalog.CodeInvalidArgument:
		respondError(w, http.StatusBadRequest, cerr.Message)
	case catalog.CodeNotFound:
		respondError(w, http.StatusNotFound, cerr.Message)
	default:
		log.Error().Err(err).Msgf("%s - %s", respondLogPrefix, action)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %s", action, cerr.Message))
	}
}

// decodeBody decodes a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
