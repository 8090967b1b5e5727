package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/pkg/logger"
)

// History page sizes
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Service ties repositories, the value provider and the engine together.
// It is the surface used by the HTTP API and the CLI.
type Service struct {
	metrics     contracts.MetricRepository
	models      contracts.ModelRepository
	results     contracts.ResultRepository
	qualitative contracts.QualitativeValueRepository
	values      contracts.ValueProvider
	engine      *Engine
	now         func() time.Time
	logger      *logger.Logger
}

// Deps are the collaborators of a Service. Results and Qualitative may be nil.
type Deps struct {
	Metrics     contracts.MetricRepository
	Models      contracts.ModelRepository
	Results     contracts.ResultRepository
	Qualitative contracts.QualitativeValueRepository
	Values      contracts.ValueProvider
}

// NewService creates a new rating service
func NewService(deps Deps, engine *Engine, log *logger.Logger) *Service {
	if engine == nil {
		engine = NewEngine(WithLogger(log))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		metrics:     deps.Metrics,
		models:      deps.Models,
		results:     deps.Results,
		qualitative: deps.Qualitative,
		values:      deps.Values,
		engine:      engine,
		now:         engine.now,
		logger:      log.Module("rating_service"),
	}
}

// CalculateInput selects the model and context of a calculation.
// Model wins over ModelID; with neither, the organization's default model is used.
type CalculateInput struct {
	Model          *contracts.RatingModel
	ModelID        string
	OrganizationID string
	Period         contracts.PeriodContext
	ManualValues   map[string]float64
	Persist        bool
}

// ValidateModel checks a model without touching storage
func (s *Service) ValidateModel(model *contracts.RatingModel) ValidationOutcome {
	return Validate(model)
}

// Classify maps a score to its grade
func (s *Service) Classify(score float64) Classification {
	return Classify(score)
}

// CalculateRating resolves definitions and stored qualitative values,
// runs the engine and optionally stores the snapshot.
func (s *Service) CalculateRating(ctx context.Context, in CalculateInput) (*contracts.RatingResult, error) {
	model, err := s.resolveModel(ctx, in)
	if err != nil {
		return nil, err
	}

	if outcome := Validate(model); !outcome.OK {
		return nil, outcome.Err()
	}

	connected := model.ConnectedMetricNodes()
	ids := make([]string, 0, len(connected))
	for _, n := range connected {
		ids = append(ids, n.MetricID)
	}

	defs, err := s.metrics.Definitions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric definitions: %w", err)
	}

	manual, err := s.manualValues(ctx, in, connected, defs)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Calculate(ctx, CalculationRequest{
		Model:          model,
		OrganizationID: in.OrganizationID,
		Period:         in.Period,
		Definitions:    defs,
		ManualValues:   manual,
		Values:         s.values,
	})
	if err != nil {
		return nil, err
	}

	if in.Persist {
		if model.ID == "" {
			return nil, ErrUnsavedModel
		}
		if s.results == nil {
			return nil, errors.New("result persistence is not configured")
		}
		if err := s.results.Save(ctx, result); err != nil {
			if errors.Is(err, contracts.ErrUnknownModel) {
				return nil, fmt.Errorf("%w: model %s is not stored", ErrUnsavedModel, model.ID)
			}
			return nil, fmt.Errorf("failed to save rating result: %w", err)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"model_id":     result.ModelID,
		"organization": in.OrganizationID,
		"season":       in.Period.SeasonID,
		"scenario":     in.Period.ScenarioID,
		"final_score":  result.FinalScore,
		"grade":        result.LetterGrade,
		"degraded":     result.IsDegraded(),
		"persisted":    in.Persist,
	}).Info("Rating calculated")

	return result, nil
}

func (s *Service) resolveModel(ctx context.Context, in CalculateInput) (*contracts.RatingModel, error) {
	switch {
	case in.Model != nil:
		return in.Model, nil
	case in.ModelID != "":
		model, _, err := s.models.Load(ctx, in.ModelID)
		if err != nil {
			return nil, fmt.Errorf("failed to load model %s: %w", in.ModelID, err)
		}
		// 다른 조직의 모델은 없는 것으로 취급
		if model.OrganizationID != nil && *model.OrganizationID != in.OrganizationID {
			return nil, fmt.Errorf("failed to load model %s: %w", in.ModelID, contracts.ErrNotFound)
		}
		return model, nil
	case in.OrganizationID != "":
		model, err := s.models.DefaultFor(ctx, in.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to find default model for %s: %w", in.OrganizationID, err)
		}
		return model, nil
	default:
		return nil, ErrNoModel
	}
}

// manualValues merges stored period values under the request's own values.
// Stored values beat a node's own manual value; request values beat both.
func (s *Service) manualValues(
	ctx context.Context,
	in CalculateInput,
	connected []contracts.Node,
	defs map[string]contracts.MetricDefinition,
) (map[string]float64, error) {
	merged := make(map[string]float64, len(connected))
	for k, v := range in.ManualValues {
		merged[k] = v
	}

	if s.qualitative == nil || in.OrganizationID == "" {
		return merged, nil
	}

	var qualitativeIDs []string
	for _, n := range connected {
		if def, ok := defs[n.MetricID]; ok && def.Metric.Type == contracts.MetricTypeQualitative {
			qualitativeIDs = append(qualitativeIDs, n.MetricID)
		}
	}
	if len(qualitativeIDs) == 0 {
		return merged, nil
	}

	stored, err := s.qualitative.ForPeriod(ctx, in.OrganizationID, in.Period, qualitativeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load qualitative values: %w", err)
	}

	for _, n := range connected {
		if _, given := merged[n.ID]; given {
			continue
		}
		if v, ok := stored[n.MetricID]; ok {
			merged[n.ID] = v
		}
	}
	return merged, nil
}

// SaveModel validates then stores a model and its layout
func (s *Service) SaveModel(ctx context.Context, model *contracts.RatingModel, layout *contracts.Layout) (string, error) {
	if model == nil {
		return "", ErrNoModel
	}
	if outcome := Validate(model); !outcome.OK {
		return "", outcome.Err()
	}

	layout.Prune(model)

	id, err := s.models.Save(ctx, model, layout)
	if err != nil {
		return "", fmt.Errorf("failed to save model: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"model_id": id,
		"name":     model.Name,
		"default":  model.IsDefault,
	}).Info("Rating model saved")

	return id, nil
}

// LoadModel returns a model and its layout
func (s *Service) LoadModel(ctx context.Context, id string) (*contracts.RatingModel, *contracts.Layout, error) {
	return s.models.Load(ctx, id)
}

// ListModels returns the organization's and global active models
func (s *Service) ListModels(ctx context.Context, organizationID string) ([]contracts.RatingModel, error) {
	return s.models.ListByOrganization(ctx, organizationID)
}

// DeactivateModel soft-deletes a model
func (s *Service) DeactivateModel(ctx context.Context, id string) error {
	return s.models.Deactivate(ctx, id)
}

// DefaultModel returns the organization default, falling back to the global default
func (s *Service) DefaultModel(ctx context.Context, organizationID string) (*contracts.RatingModel, error) {
	return s.models.DefaultFor(ctx, organizationID)
}

// History lists stored results, newest first
func (s *Service) History(ctx context.Context, organizationID, modelID string, limit int) ([]contracts.RatingResult, error) {
	if s.results == nil {
		return nil, errors.New("result persistence is not configured")
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.results.List(ctx, organizationID, modelID, limit)
}

// RecordQualitativeValue stores a manual value for a qualitative metric
func (s *Service) RecordQualitativeValue(ctx context.Context, v contracts.QualitativeValue) error {
	if s.qualitative == nil {
		return errors.New("qualitative value storage is not configured")
	}
	if v.OrganizationID == "" {
		return fmt.Errorf("%w: organization id is required", ErrInvalidManualValue)
	}
	if math.IsNaN(v.Value) || v.Value < 0 || v.Value > 100 {
		return fmt.Errorf("%w: %v", ErrInvalidManualValue, v.Value)
	}

	metric, err := s.metrics.Get(ctx, v.MetricID)
	if err != nil {
		return fmt.Errorf("failed to load metric %s: %w", v.MetricID, err)
	}
	if metric.Type != contracts.MetricTypeQualitative {
		return fmt.Errorf("%w: %s", ErrNotQualitative, metric.Code)
	}

	v.UpdatedAt = s.now().UTC()
	if err := s.qualitative.Upsert(ctx, v); err != nil {
		return fmt.Errorf("failed to save qualitative value: %w", err)
	}
	return nil
}
