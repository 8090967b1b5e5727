package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/internal/modeldoc"
)

// ModelRepository implements contracts.ModelRepository.
// The graph and the canvas layout are stored in separate JSONB columns;
// rating_model_metrics mirrors the connected metric set for reference checks.
type ModelRepository struct {
	pool *pgxpool.Pool
}

// NewModelRepository creates a new model repository
func NewModelRepository(pool *pgxpool.Pool) *ModelRepository {
	return &ModelRepository{pool: pool}
}

const modelColumns = `
	id, organization_id, name, description, is_default, is_active,
	graph_data, layout_data, created_at, updated_at
`

// Save inserts or updates a model and returns its id
func (r *ModelRepository) Save(ctx context.Context, model *contracts.RatingModel, layout *contracts.Layout) (string, error) {
	graph, err := modeldoc.Encode(model)
	if err != nil {
		return "", err
	}
	layoutData, err := modeldoc.EncodeLayout(layout)
	if err != nil {
		return "", err
	}

	id := model.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 기본 모델은 조직당 하나
	if model.IsDefault {
		_, err := tx.Exec(ctx, `
			UPDATE rating_models SET is_default = FALSE, updated_at = $3
			WHERE organization_id IS NOT DISTINCT FROM $1 AND id <> $2 AND is_default
		`, model.OrganizationID, id, now)
		if err != nil {
			return "", fmt.Errorf("failed to clear default model: %w", err)
		}
	}

	upsert := `
		INSERT INTO rating_models (
			id, organization_id, name, description, is_default, is_active,
			graph_version, graph_data, layout_data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_default = EXCLUDED.is_default,
			is_active = EXCLUDED.is_active,
			graph_version = EXCLUDED.graph_version,
			graph_data = EXCLUDED.graph_data,
			layout_data = EXCLUDED.layout_data,
			updated_at = EXCLUDED.updated_at
	`
	_, err = tx.Exec(ctx, upsert,
		id, model.OrganizationID, model.Name, model.Description, model.IsDefault, model.IsActive,
		modeldoc.CurrentVersion, graph, layoutData, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save model %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM rating_model_metrics WHERE rating_model_id = $1`, id); err != nil {
		return "", fmt.Errorf("failed to clear model metrics: %w", err)
	}

	batch := &pgx.Batch{}
	for _, n := range model.ConnectedMetricNodes() {
		batch.Queue(`
			INSERT INTO rating_model_metrics (rating_model_id, rating_metric_id, weight)
			VALUES ($1, $2, $3)
			ON CONFLICT (rating_model_id, rating_metric_id) DO UPDATE SET weight = EXCLUDED.weight
		`, id, n.MetricID, n.Weight)
	}
	if batch.Len() > 0 {
		err := tx.SendBatch(ctx, batch).Close()
		if isForeignKeyViolation(err) {
			return "", contracts.ErrUnknownMetric
		}
		if err != nil {
			return "", fmt.Errorf("failed to save model metrics: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

func scanModel(row scanner) (*contracts.RatingModel, *contracts.Layout, error) {
	var (
		m          contracts.RatingModel
		graphData  []byte
		layoutData []byte
	)
	err := row.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.Name,
		&m.Description,
		&m.IsDefault,
		&m.IsActive,
		&graphData,
		&layoutData,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	graph, legacyLayout, err := modeldoc.DecodeWithLayout(graphData)
	if err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", m.ID, err)
	}
	graph.Apply(&m)

	layout, err := modeldoc.DecodeLayout(layoutData)
	if err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", m.ID, err)
	}
	if layout == nil {
		layout = legacyLayout
	}
	return &m, layout, nil
}

// Load retrieves a model and its layout by id
func (r *ModelRepository) Load(ctx context.Context, id string) (*contracts.RatingModel, *contracts.Layout, error) {
	m, layout, err := scanModel(r.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM rating_models WHERE id = $1`, id))
	if err != nil {
		return nil, nil, notFound(err, "model", id)
	}
	return m, layout, nil
}

// ListByOrganization returns active models visible to an organization, default first
func (r *ModelRepository) ListByOrganization(ctx context.Context, organizationID string) ([]contracts.RatingModel, error) {
	query := `SELECT ` + modelColumns + `
		FROM rating_models
		WHERE is_active AND (organization_id = $1 OR organization_id IS NULL)
		ORDER BY is_default DESC, (organization_id IS NULL), name
	`

	rows, err := r.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models []contracts.RatingModel
	for rows.Next() {
		m, _, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}
	return models, nil
}

// Deactivate soft-deletes a model
func (r *ModelRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rating_models SET is_active = FALSE, is_default = FALSE, updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate model %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("model %s: %w", id, contracts.ErrNotFound)
	}
	return nil
}

// DefaultFor returns the organization's default model, falling back to the global default
func (r *ModelRepository) DefaultFor(ctx context.Context, organizationID string) (*contracts.RatingModel, error) {
	query := `SELECT ` + modelColumns + `
		FROM rating_models
		WHERE is_active AND is_default AND (organization_id = $1 OR organization_id IS NULL)
		ORDER BY (organization_id IS NULL)
		LIMIT 1
	`
	m, _, err := scanModel(r.pool.QueryRow(ctx, query, organizationID))
	if err != nil {
		return nil, notFound(err, "default model for organization", organizationID)
	}
	return m, nil
}
