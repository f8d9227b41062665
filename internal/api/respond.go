package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/trogers1052/wheel-tracker/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps the error taxonomy onto HTTP status codes. Unexpected
// errors are logged and surfaced as a generic 500 without detail.
func respondError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	var notFound *models.NotFoundError
	var conflict *models.ConflictError
	var auth *models.AuthError

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.As(err, &conflict):
		respondJSON(w, http.StatusConflict, errorResponse{Error: conflict.Message})
	case errors.As(err, &auth):
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: auth.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
