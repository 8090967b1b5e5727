package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/internal/rating"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// validationResponse carries the outcome so the editor can show reason-specific guidance
type validationResponse struct {
	Error      string                   `json:"error"`
	Validation rating.ValidationOutcome `json:"validation"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var validationErr *rating.ValidationError
	var configErr *rating.ConfigurationError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &configErr), errors.Is(err, contracts.ErrUnknownMetric):
		return http.StatusUnprocessableEntity
	case errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrMetricInUse), errors.Is(err, contracts.ErrDuplicateMetricCode):
		return http.StatusConflict
	case errors.Is(err, rating.ErrNoModel),
		errors.Is(err, rating.ErrUnsavedModel),
		errors.Is(err, rating.ErrInvalidManualValue),
		errors.Is(err, rating.ErrInvalidWeight),
		errors.Is(err, rating.ErrNotQualitative):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes err with its mapped status. Internal errors are not echoed.
func respondDomainError(w http.ResponseWriter, err error) {
	var validationErr *rating.ValidationError
	if errors.As(err, &validationErr) {
		respondJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:      err.Error(),
			Validation: validationErr.Outcome,
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}
