package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/internal/rating"
	"github.com/wonny/safra/backend/pkg/logger"
)

const maxBodyBytes = 1 << 20

// RatingHandler handles rating API endpoints
// ⭐ SSOT: Rating API 핸들러는 이 구조체에서만
type RatingHandler struct {
	service *rating.Service
	logger  *logger.Logger
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(service *rating.Service, log *logger.Logger) *RatingHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RatingHandler{
		service: service,
		logger:  log.Module("rating_api"),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *RatingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Rating request failed")
	}
	respondDomainError(w, err)
}

// Validate checks a model without saving it
// POST /api/rating/validate
func (h *RatingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var model contracts.RatingModel
	if err := decodeBody(w, r, &model); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.service.ValidateModel(&model))
}

// CalculateRequest is the body of POST /api/rating/calculate
type CalculateRequest struct {
	Model          *contracts.RatingModel  `json:"model,omitempty"`
	ModelID        string                  `json:"modelId,omitempty"`
	OrganizationID string                  `json:"organizationId"`
	Period         contracts.PeriodContext `json:"period"`
	ManualValues   map[string]float64      `json:"manualValues,omitempty"`
	Persist        bool                    `json:"persist"`
}

// Calculate computes a rating
// POST /api/rating/calculate
func (h *RatingHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrganizationID == "" {
		respondError(w, http.StatusBadRequest, "organizationId is required")
		return
	}

	result, err := h.service.CalculateRating(r.Context(), rating.CalculateInput{
		Model:          req.Model,
		ModelID:        req.ModelID,
		OrganizationID: req.OrganizationID,
		Period:         req.Period,
		ManualValues:   req.ManualValues,
		Persist:        req.Persist,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Classify maps a score to its grade
// GET /api/rating/classify?score=
func (h *RatingHandler) Classify(w http.ResponseWriter, r *http.Request) {
	score, err := strconv.ParseFloat(r.URL.Query().Get("score"), 64)
	if err != nil || math.IsNaN(score) {
		respondError(w, http.StatusBadRequest, "score must be a number")
		return
	}

	respondJSON(w, http.StatusOK, h.service.Classify(score))
}

// ModelPayload is a model with its canvas layout
type ModelPayload struct {
	Model  *contracts.RatingModel `json:"model"`
	Layout *contracts.Layout      `json:"layout,omitempty"`
}

// SaveModel validates and stores a model
// POST /api/rating/models
func (h *RatingHandler) SaveModel(w http.ResponseWriter, r *http.Request) {
	var req ModelPayload
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Model == nil {
		respondError(w, http.StatusBadRequest, "model is required")
		return
	}

	id, err := h.service.SaveModel(r.Context(), req.Model, req.Layout)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

// GetModel loads a model and its layout
// GET /api/rating/models/{id}
func (h *RatingHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	model, layout, err := h.service.LoadModel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ModelPayload{Model: model, Layout: layout})
}

// ListModels lists active models visible to an organization
// GET /api/rating/models?organizationId=
func (h *RatingHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("organizationId")
	if org == "" {
		respondError(w, http.StatusBadRequest, "organizationId is required")
		return
	}

	models, err := h.service.ListModels(r.Context(), org)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if models == nil {
		models = []contracts.RatingModel{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"models": models,
		"count":  len(models),
	})
}

// DeleteModel deactivates a model
// DELETE /api/rating/models/{id}
func (h *RatingHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateModel(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History lists stored results
// GET /api/rating/results?organizationId=&modelId=&limit=
func (h *RatingHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	org := q.Get("organizationId")
	if org == "" {
		respondError(w, http.StatusBadRequest, "organizationId is required")
		return
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.service.History(r.Context(), org, q.Get("modelId"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if results == nil {
		results = []contracts.RatingResult{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// RecordQualitative stores a manual value for a qualitative metric
// PUT /api/rating/qualitative
func (h *RatingHandler) RecordQualitative(w http.ResponseWriter, r *http.Request) {
	var v contracts.QualitativeValue
	if err := decodeBody(w, r, &v); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v.MetricID == "" {
		respondError(w, http.StatusBadRequest, "metricId is required")
		return
	}

	if err := h.service.RecordQualitativeValue(r.Context(), v); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
