package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/pkg/logger"
)

// CalculationRequest is everything one calculation needs.
// The engine keeps no state between calls.
type CalculationRequest struct {
	Model          *contracts.RatingModel
	OrganizationID string
	Period         contracts.PeriodContext

	// Definitions by metric id; every connected node needs one
	Definitions map[string]contracts.MetricDefinition

	// ManualValues by node id, for qualitative metrics
	ManualValues map[string]float64

	// Values answers quantitative lookups
	Values contracts.ValueProvider
}

// Engine computes rating results
// ⭐ SSOT: 최종 점수 계산은 여기서만
type Engine struct {
	maxConcurrent int
	now           func() time.Time
	newID         func() string
	logger        *logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock injects the time source stamped on results
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator injects the result id source
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithMaxConcurrentLookups bounds parallel value lookups per calculation
func WithMaxConcurrentLookups(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log.Module("rating_engine")
		}
	}
}

// NewEngine creates an engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxConcurrent: 8,
		now:           time.Now,
		newID:         uuid.NewString,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type lookup struct {
	value float64
	err   error
}

// Calculate validates the model, scores every connected metric and aggregates.
//
// A failed or non-finite quantitative lookup degrades that metric to value 0 and
// score 0 instead of failing the calculation. Cancellation before aggregation
// returns the context error and no result.
func (e *Engine) Calculate(ctx context.Context, req CalculationRequest) (*contracts.RatingResult, error) {
	if req.Model == nil {
		return nil, ErrNoModel
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if outcome := Validate(req.Model); !outcome.OK {
		return nil, outcome.Err()
	}

	connected := req.Model.ConnectedMetricNodes()
	defs := make([]contracts.MetricDefinition, len(connected))
	for i, n := range connected {
		def, ok := req.Definitions[n.MetricID]
		if !ok {
			return nil, &ConfigurationError{NodeID: n.ID, MetricID: n.MetricID, Reason: "metric definition not found"}
		}
		if !def.Metric.Type.Valid() {
			return nil, &ConfigurationError{NodeID: n.ID, MetricID: n.MetricID, Reason: fmt.Sprintf("unknown metric type %q", def.Metric.Type)}
		}
		if def.Metric.Type == contracts.MetricTypeQuantitative && req.Values == nil {
			return nil, &ConfigurationError{NodeID: n.ID, MetricID: n.MetricID, Reason: "no value provider for quantitative metric"}
		}
		defs[i] = def
	}

	values := e.lookupValues(ctx, req, defs)

	// 집계 전에 취소 여부 확인 (부분 결과 금지)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &contracts.RatingResult{
		ID:             e.newID(),
		ModelID:        req.Model.ID,
		OrganizationID: req.OrganizationID,
		Period:         req.Period,
		Contributions:  make([]contracts.MetricContribution, 0, len(connected)),
		Warnings:       []contracts.Warning{},
	}

	var weighted, totalWeight float64
	for i, n := range connected {
		c, warnings := e.score(n, defs[i], values[i], req.ManualValues)
		result.Contributions = append(result.Contributions, c)
		result.Warnings = append(result.Warnings, warnings...)

		weighted += c.Score * c.Weight
		totalWeight += c.Weight
	}

	if totalWeight > 0 {
		result.FinalScore = clampScore(weighted / totalWeight)
	}

	grade := Classify(result.FinalScore)
	result.LetterGrade = grade.Letter
	result.ColorBand = grade.ColorBand
	result.Description = grade.Description
	result.CalculatedAt = e.now().UTC()

	e.logger.WithFields(map[string]interface{}{
		"model_id":     result.ModelID,
		"organization": result.OrganizationID,
		"final_score":  result.FinalScore,
		"grade":        result.LetterGrade,
		"warnings":     len(result.Warnings),
	}).Debug("Rating calculated")

	return result, nil
}

// lookupValues fans out quantitative lookups and returns them by node index
func (e *Engine) lookupValues(ctx context.Context, req CalculationRequest, defs []contracts.MetricDefinition) []lookup {
	values := make([]lookup, len(defs))

	var g errgroup.Group
	g.SetLimit(e.maxConcurrent)

	for i, def := range defs {
		if def.Metric.Type != contracts.MetricTypeQuantitative {
			continue
		}
		g.Go(func() error {
			values[i] = safeLookup(ctx, req, def.Metric.Code)
			return nil
		})
	}
	_ = g.Wait()

	return values
}

func safeLookup(ctx context.Context, req CalculationRequest, code string) (l lookup) {
	defer func() {
		if r := recover(); r != nil {
			l = lookup{err: fmt.Errorf("value provider panicked: %v", r)}
		}
	}()

	v, err := req.Values.MetricValue(ctx, req.OrganizationID, req.Period, code)
	return lookup{value: v, err: err}
}

func (e *Engine) score(
	n contracts.Node,
	def contracts.MetricDefinition,
	l lookup,
	manual map[string]float64,
) (contracts.MetricContribution, []contracts.Warning) {
	m := def.Metric
	c := contracts.MetricContribution{
		NodeID:     n.ID,
		MetricID:   m.ID,
		MetricCode: m.Code,
		MetricName: m.Name,
		Type:       m.Type,
		Weight:     n.Weight,
	}
	var warnings []contracts.Warning
	warn := func(kind contracts.WarningKind, format string, args ...any) {
		warnings = append(warnings, contracts.Warning{Kind: kind, MetricCode: m.Code, Message: fmt.Sprintf(format, args...)})
	}

	switch m.Type {
	case contracts.MetricTypeQuantitative:
		switch {
		case l.err != nil:
			c.Degraded = true
			warn(contracts.WarningDegradedMetric, "value lookup failed: %v", l.err)
			e.logLookupFailure(m.Code, l.err)
		case math.IsNaN(l.value) || math.IsInf(l.value, 0):
			c.Degraded = true
			warn(contracts.WarningDegradedMetric, "value lookup returned non-finite value %v", l.value)
			e.logLookupFailure(m.Code, errors.New("non-finite value"))
		case len(def.Bands) == 0:
			c.Value = l.value
			warn(contracts.WarningMissingThresholds, "metric has no threshold bands, scored 0")
		default:
			band, _ := ResolveBand(l.value, def.Bands)
			c.Value = l.value
			c.Score = band.Score
			c.Level = band.Level
		}

	case contracts.MetricTypeQualitative:
		v, ok := manual[n.ID]
		if !ok && n.ManualValue != nil {
			v, ok = *n.ManualValue, true
		}
		if !ok || math.IsNaN(v) {
			warn(contracts.WarningMissingManualValue, "no manual value entered, scored 0")
			v = 0
		}
		c.Value = clampScore(v)
		c.Score = c.Value
	}

	c.Contribution = c.Score * c.Weight / TotalWeight
	return c, warnings
}

func (e *Engine) logLookupFailure(code string, err error) {
	e.logger.WithFields(map[string]interface{}{
		"metric_code": code,
	}).WithError(err).Warn("Metric value lookup degraded")
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
