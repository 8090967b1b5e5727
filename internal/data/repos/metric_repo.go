package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/safra/backend/internal/contracts"
)

// MetricRepository implements contracts.MetricRepository
// ⭐ SSOT: 지표/구간 저장/조회는 여기서만
type MetricRepository struct {
	pool *pgxpool.Pool
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(pool *pgxpool.Pool) *MetricRepository {
	return &MetricRepository{pool: pool}
}

const metricColumns = `
	id, organization_id, type, category, code, name, description, unit, is_predefined, is_active
`

func scanMetric(row scanner) (*contracts.Metric, error) {
	var (
		m              contracts.Metric
		metricType     string
		metricCategory string
	)
	err := row.Scan(
		&m.ID,
		&m.OrganizationID,
		&metricType,
		&metricCategory,
		&m.Code,
		&m.Name,
		&m.Description,
		&m.Unit,
		&m.IsPredefined,
		&m.IsActive,
	)
	if err != nil {
		return nil, err
	}
	m.Type = contracts.MetricType(metricType)
	m.Category = contracts.MetricCategory(metricCategory)
	return &m, nil
}

// Get retrieves a metric by id
func (r *MetricRepository) Get(ctx context.Context, id string) (*contracts.Metric, error) {
	return getMetric(ctx, r.pool, id, false)
}

func getMetric(ctx context.Context, db dbtx, id string, forUpdate bool) (*contracts.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM rating_metrics WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	m, err := scanMetric(db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "metric", id)
	}
	return m, nil
}

// BandsOf retrieves the threshold bands of a metric
func (r *MetricRepository) BandsOf(ctx context.Context, metricID string) ([]contracts.ThresholdBand, error) {
	bands, err := r.bandsFor(ctx, []string{metricID})
	if err != nil {
		return nil, err
	}
	return bands[metricID], nil
}

func (r *MetricRepository) bandsFor(ctx context.Context, metricIDs []string) (map[string][]contracts.ThresholdBand, error) {
	query := `
		SELECT id, rating_metric_id, level, value_min, value_max, score, description
		FROM rating_metric_thresholds
		WHERE rating_metric_id = ANY($1)
		ORDER BY rating_metric_id, score DESC, id
	`

	rows, err := r.pool.Query(ctx, query, metricIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query threshold bands: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]contracts.ThresholdBand, len(metricIDs))
	for rows.Next() {
		var b contracts.ThresholdBand
		if err := rows.Scan(&b.ID, &b.MetricID, &b.Level, &b.ValueMin, &b.ValueMax, &b.Score, &b.Description); err != nil {
			return nil, fmt.Errorf("failed to scan threshold band: %w", err)
		}
		out[b.MetricID] = append(out[b.MetricID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threshold bands: %w", err)
	}
	return out, nil
}

// Definitions loads metrics with their bands. Unknown ids are absent from the result.
func (r *MetricRepository) Definitions(ctx context.Context, ids []string) (map[string]contracts.MetricDefinition, error) {
	defs := make(map[string]contracts.MetricDefinition, len(ids))
	if len(ids) == 0 {
		return defs, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+metricColumns+` FROM rating_metrics WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		defs[m.ID] = contracts.MetricDefinition{Metric: *m}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}

	bands, err := r.bandsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, def := range defs {
		def.Bands = bands[id]
		defs[id] = def
	}
	return defs, nil
}

// ListByOrganization returns active organization metrics plus predefined ones
func (r *MetricRepository) ListByOrganization(ctx context.Context, organizationID string) ([]contracts.Metric, error) {
	query := `SELECT ` + metricColumns + `
		FROM rating_metrics
		WHERE is_active AND (organization_id = $1 OR organization_id IS NULL)
		ORDER BY is_predefined DESC, category, name
	`

	rows, err := r.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []contracts.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}
	return metrics, nil
}

// Upsert writes a metric and replaces its band set in one transaction.
// Identity changes of a referenced metric are rejected with contracts.ErrMetricInUse.
func (r *MetricRepository) Upsert(ctx context.Context, def contracts.MetricDefinition) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	m := def.Metric
	current, err := getMetric(ctx, tx, m.ID, true)
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		if err := contracts.CheckMetricUpdate(m, m, false); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		referenced, err := isReferenced(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		if err := contracts.CheckMetricUpdate(*current, m, referenced); err != nil {
			return err
		}
	}

	upsert := `
		INSERT INTO rating_metrics (
			id, organization_id, type, category, code, name, description, unit,
			is_predefined, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			category = EXCLUDED.category,
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			unit = EXCLUDED.unit,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`
	_, err = tx.Exec(ctx, upsert,
		m.ID, m.OrganizationID, string(m.Type), string(m.Category), m.Code, m.Name,
		m.Description, m.Unit, m.IsPredefined, m.IsActive, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", contracts.ErrDuplicateMetricCode, m.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert metric %s: %w", m.Code, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM rating_metric_thresholds WHERE rating_metric_id = $1`, m.ID); err != nil {
		return fmt.Errorf("failed to clear bands of %s: %w", m.Code, err)
	}

	batch := &pgx.Batch{}
	for _, b := range def.Bands {
		batch.Queue(`
			INSERT INTO rating_metric_thresholds (id, rating_metric_id, level, value_min, value_max, score, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, b.ID, m.ID, b.Level, b.ValueMin, b.ValueMax, b.Score, b.Description)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert bands of %s: %w", m.Code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsReferenced reports whether any saved model connects the metric
func (r *MetricRepository) IsReferenced(ctx context.Context, metricID string) (bool, error) {
	return isReferenced(ctx, r.pool, metricID)
}

func isReferenced(ctx context.Context, db dbtx, metricID string) (bool, error) {
	var referenced bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rating_model_metrics WHERE rating_metric_id = $1)`,
		metricID,
	).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("failed to check metric references: %w", err)
	}
	return referenced, nil
}
