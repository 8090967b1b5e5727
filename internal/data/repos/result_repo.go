package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/safra/backend/internal/contracts"
)

// DefaultHistoryLimit applies when List is called with a non-positive limit
const DefaultHistoryLimit = 20

// ResultRepository implements contracts.ResultRepository
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new result repository
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// resultDetails is the JSONB payload next to the indexed score columns
type resultDetails struct {
	ColorBand     string                         `json:"colorBand"`
	Description   string                         `json:"description"`
	Contributions []contracts.MetricContribution `json:"contributions"`
	Warnings      []contracts.Warning            `json:"warnings"`
}

// Save appends a result snapshot. Results are never updated.
func (r *ResultRepository) Save(ctx context.Context, result *contracts.RatingResult) error {
	details, err := json.Marshal(resultDetails{
		ColorBand:     result.ColorBand,
		Description:   result.Description,
		Contributions: result.Contributions,
		Warnings:      result.Warnings,
	})
	if err != nil {
		return fmt.Errorf("failed to encode result details: %w", err)
	}

	query := `
		INSERT INTO rating_calculations (
			id, organization_id, rating_model_id, season_id, scenario_id,
			final_score, letter_grade, details, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		result.ID,
		result.OrganizationID,
		result.ModelID,
		result.Period.SeasonID,
		result.Period.ScenarioID,
		result.FinalScore,
		result.LetterGrade,
		details,
		result.CalculatedAt,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("failed to save result %s: %w", result.ID, contracts.ErrUnknownModel)
	}
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", result.ID, err)
	}
	return nil
}

// List returns an organization's results newest first. An empty modelID matches every model.
func (r *ResultRepository) List(ctx context.Context, organizationID, modelID string, limit int) ([]contracts.RatingResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT id, organization_id, rating_model_id, season_id, scenario_id,
		       final_score, letter_grade, details, calculated_at
		FROM rating_calculations
		WHERE organization_id = $1 AND ($2 = '' OR rating_model_id = $2)
		ORDER BY calculated_at DESC, id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, organizationID, modelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []contracts.RatingResult
	for rows.Next() {
		var (
			res     contracts.RatingResult
			details []byte
		)
		err := rows.Scan(
			&res.ID,
			&res.OrganizationID,
			&res.ModelID,
			&res.Period.SeasonID,
			&res.Period.ScenarioID,
			&res.FinalScore,
			&res.LetterGrade,
			&details,
			&res.CalculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		var d resultDetails
		if err := json.Unmarshal(details, &d); err != nil {
			return nil, fmt.Errorf("failed to decode details of result %s: %w", res.ID, err)
		}
		res.ColorBand = d.ColorBand
		res.Description = d.Description
		res.Contributions = d.Contributions
		res.Warnings = d.Warnings

		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}
