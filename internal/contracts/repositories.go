package contracts

import (
	"context"
	"errors"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

var (
	// ErrNotFound is returned by repositories when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateMetricCode is returned when a metric code is already used in the same scope
	ErrDuplicateMetricCode = errors.New("metric code already exists")
	// ErrUnknownMetric is returned when a saved model references a metric that does not exist
	ErrUnknownMetric = errors.New("model references an unknown metric")
	// ErrUnknownModel is returned when a result references a model that is not stored
	ErrUnknownModel = errors.New("result references an unknown model")
)

// MetricRepository is read-mostly configuration: metrics and their bands
type MetricRepository interface {
	Get(ctx context.Context, id string) (*Metric, error)
	BandsOf(ctx context.Context, metricID string) ([]ThresholdBand, error)
	// Definitions loads metrics with their bands; unknown ids are absent from the map.
	Definitions(ctx context.Context, ids []string) (map[string]MetricDefinition, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]Metric, error)
	// Upsert writes a metric and replaces its bands, enforcing CheckMetricUpdate.
	Upsert(ctx context.Context, def MetricDefinition) error
	IsReferenced(ctx context.Context, metricID string) (bool, error)
}

// ModelRepository persists rating models with their separate layout record
type ModelRepository interface {
	Save(ctx context.Context, model *RatingModel, layout *Layout) (string, error)
	Load(ctx context.Context, id string) (*RatingModel, *Layout, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]RatingModel, error)
	Deactivate(ctx context.Context, id string) error
	DefaultFor(ctx context.Context, organizationID string) (*RatingModel, error)
}

// ResultRepository stores rating result snapshots
type ResultRepository interface {
	Save(ctx context.Context, result *RatingResult) error
	List(ctx context.Context, organizationID, modelID string, limit int) ([]RatingResult, error)
}

// QualitativeValueRepository stores manual values per organization/metric/period
type QualitativeValueRepository interface {
	Upsert(ctx context.Context, v QualitativeValue) error
	// ForPeriod returns values keyed by metric id
	ForPeriod(ctx context.Context, organizationID string, period PeriodContext, metricIDs []string) (map[string]float64, error)
}
