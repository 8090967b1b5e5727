package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/safra/backend/internal/contracts"
)

// QualitativeValueRepository implements contracts.QualitativeValueRepository
type QualitativeValueRepository struct {
	pool *pgxpool.Pool
}

// NewQualitativeValueRepository creates a new qualitative value repository
func NewQualitativeValueRepository(pool *pgxpool.Pool) *QualitativeValueRepository {
	return &QualitativeValueRepository{pool: pool}
}

// Upsert records the value for one organization/metric/period
func (r *QualitativeValueRepository) Upsert(ctx context.Context, v contracts.QualitativeValue) error {
	updatedAt := v.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO qualitative_metric_values (
			organization_id, rating_metric_id, season_id, scenario_id, value, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, rating_metric_id, season_id, scenario_id) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		v.OrganizationID, v.MetricID, v.Period.SeasonID, v.Period.ScenarioID, v.Value, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert qualitative value for metric %s: %w", v.MetricID, err)
	}
	return nil
}

// ForPeriod returns stored values keyed by metric id. Metrics without a value are absent.
func (r *QualitativeValueRepository) ForPeriod(
	ctx context.Context,
	organizationID string,
	period contracts.PeriodContext,
	metricIDs []string,
) (map[string]float64, error) {
	values := make(map[string]float64, len(metricIDs))
	if len(metricIDs) == 0 {
		return values, nil
	}

	query := `
		SELECT rating_metric_id, value
		FROM qualitative_metric_values
		WHERE organization_id = $1 AND season_id = $2 AND scenario_id = $3
		  AND rating_metric_id = ANY($4)
	`
	rows, err := r.pool.Query(ctx, query, organizationID, period.SeasonID, period.ScenarioID, metricIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query qualitative values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			metricID string
			value    float64
		)
		if err := rows.Scan(&metricID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan qualitative value: %w", err)
		}
		values[metricID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating qualitative values: %w", err)
	}
	return values, nil
}
