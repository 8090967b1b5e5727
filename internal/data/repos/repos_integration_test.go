//go:build integration

package repos

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wonny/safra/backend/internal/catalog"
	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/internal/rating"
	"github.com/wonny/safra/backend/pkg/config"
	"github.com/wonny/safra/backend/pkg/database"
)

// startPostgres runs a migrated PostgreSQL container and returns a connected pool
func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		// init 단계에서 한 번, 실제 기동 후 한 번 출력됨
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://postgres@%s:%s/postgres?sslmode=disable", host, port.Port())

	status, err := database.Migrate(url, -1)
	require.NoError(t, err)
	assert.False(t, status.Dirty)

	db, err := database.Connect(ctx, config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func seedCatalog(t *testing.T, metrics *MetricRepository) []contracts.MetricDefinition {
	t.Helper()
	c, err := catalog.Predefined()
	require.NoError(t, err)

	defs := c.Definitions()
	for _, def := range defs {
		require.NoError(t, metrics.Upsert(context.Background(), def))
	}
	return defs
}

func TestRepositories(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	metrics := NewMetricRepository(db.Pool)
	models := NewModelRepository(db.Pool)
	results := NewResultRepository(db.Pool)
	qualitative := NewQualitativeValueRepository(db.Pool)

	defs := seedCatalog(t, metrics)
	liquidity := catalog.MetricID("LIQUIDEZ_CORRENTE")
	cashFlow := catalog.MetricID("ENTENDIMENTO_FLUXO_DE_CAIXA")
	org := "org-1"

	t.Run("seeding is idempotent", func(t *testing.T) {
		seedCatalog(t, metrics)

		list, err := metrics.ListByOrganization(ctx, org)
		require.NoError(t, err)
		assert.Len(t, list, len(defs))
	})

	t.Run("metric get and bands", func(t *testing.T) {
		m, err := metrics.Get(ctx, liquidity)
		require.NoError(t, err)
		assert.Equal(t, "LIQUIDEZ_CORRENTE", m.Code)
		assert.Equal(t, contracts.MetricTypeQuantitative, m.Type)
		assert.Nil(t, m.OrganizationID)

		bands, err := metrics.BandsOf(ctx, liquidity)
		require.NoError(t, err)
		require.NotEmpty(t, bands)
		for i := 1; i < len(bands); i++ {
			assert.GreaterOrEqual(t, bands[i-1].Score, bands[i].Score)
		}

		_, err = metrics.Get(ctx, "missing")
		assert.ErrorIs(t, err, contracts.ErrNotFound)
	})

	t.Run("definitions skip unknown ids", func(t *testing.T) {
		got, err := metrics.Definitions(ctx, []string{liquidity, cashFlow, "missing"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.NotEmpty(t, got[liquidity].Bands)
		assert.Empty(t, got[cashFlow].Bands)
	})

	model := rating.NewModel("Modelo padrão", &org)
	model.IsDefault = true
	model, liqNode, err := rating.AddMetricNode(model, liquidity)
	require.NoError(t, err)
	model, cashNode, err := rating.AddMetricNode(model, cashFlow)
	require.NoError(t, err)
	output, _ := model.OutputNode()
	model, err = rating.Connect(model, liqNode.ID, output.ID)
	require.NoError(t, err)
	model, err = rating.Connect(model, cashNode.ID, output.ID)
	require.NoError(t, err)
	model, err = rating.SetWeight(model, liqNode.ID, 60)
	require.NoError(t, err)
	model, err = rating.SetWeight(model, cashNode.ID, 40)
	require.NoError(t, err)

	layout := &contracts.Layout{
		Positions: map[string]contracts.Position{
			liqNode.ID: {X: 10, Y: 20},
			output.ID:  {X: 400, Y: 100},
		},
		Viewport: &contracts.Viewport{Zoom: 1.5},
	}

	modelID, err := models.Save(ctx, &model, layout)
	require.NoError(t, err)
	require.NotEmpty(t, modelID)

	t.Run("model round trip", func(t *testing.T) {
		loaded, loadedLayout, err := models.Load(ctx, modelID)
		require.NoError(t, err)
		assert.Equal(t, "Modelo padrão", loaded.Name)
		assert.Equal(t, &org, loaded.OrganizationID)
		assert.True(t, loaded.IsDefault)
		assert.ElementsMatch(t, model.Nodes, loaded.Nodes)
		assert.ElementsMatch(t, model.Edges, loaded.Edges)
		require.NotNil(t, loadedLayout)
		assert.Equal(t, contracts.Position{X: 10, Y: 20}, loadedLayout.Positions[liqNode.ID])
		assert.Equal(t, 1.5, loadedLayout.Viewport.Zoom)

		_, _, err = models.Load(ctx, "missing")
		assert.ErrorIs(t, err, contracts.ErrNotFound)
	})

	t.Run("referenced metric keeps identity", func(t *testing.T) {
		referenced, err := metrics.IsReferenced(ctx, liquidity)
		require.NoError(t, err)
		assert.True(t, referenced)

		def := defs[0]
		for _, d := range defs {
			if d.Metric.ID == liquidity {
				def = d
			}
		}

		renamed := def
		renamed.Metric.Name = "Liquidez"
		require.NoError(t, metrics.Upsert(ctx, renamed))

		recoded := def
		recoded.Metric.Code = "LIQUIDEZ"
		assert.ErrorIs(t, metrics.Upsert(ctx, recoded), contracts.ErrMetricInUse)
	})

	t.Run("constraint violations map to domain errors", func(t *testing.T) {
		dup := contracts.MetricDefinition{Metric: contracts.Metric{
			ID:       "custom-liq",
			Type:     contracts.MetricTypeQuantitative,
			Category: contracts.CategoryLiquidity,
			Code:     "LIQUIDEZ_CORRENTE",
			Name:     "Duplicada",
			IsActive: true,
		}}
		assert.ErrorIs(t, metrics.Upsert(ctx, dup), contracts.ErrDuplicateMetricCode)

		orphan := model.Clone()
		orphan.ID = ""
		orphan.IsDefault = false
		orphan.Nodes[1].MetricID = "missing-metric"
		_, err := models.Save(ctx, &orphan, nil)
		assert.ErrorIs(t, err, contracts.ErrUnknownMetric)

		err = results.Save(ctx, &contracts.RatingResult{
			ID:             "result-orphan",
			ModelID:        "missing-model",
			OrganizationID: org,
			LetterGrade:    "C",
			CalculatedAt:   time.Now().UTC(),
		})
		assert.ErrorIs(t, err, contracts.ErrUnknownModel)
	})

	t.Run("only one default per organization", func(t *testing.T) {
		second := rating.NewModel("Alternativo", &org)
		second.IsDefault = true
		secondID, err := models.Save(ctx, &second, nil)
		require.NoError(t, err)

		def, err := models.DefaultFor(ctx, org)
		require.NoError(t, err)
		assert.Equal(t, secondID, def.ID)

		first, _, err := models.Load(ctx, modelID)
		require.NoError(t, err)
		assert.False(t, first.IsDefault)

		require.NoError(t, models.Deactivate(ctx, secondID))
		_, err = models.DefaultFor(ctx, org)
		assert.ErrorIs(t, err, contracts.ErrNotFound)

		list, err := models.ListByOrganization(ctx, org)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, modelID, list[0].ID)

		assert.ErrorIs(t, models.Deactivate(ctx, "missing"), contracts.ErrNotFound)
	})

	t.Run("qualitative values per period", func(t *testing.T) {
		period := contracts.PeriodContext{SeasonID: "2025", ScenarioID: "base"}
		require.NoError(t, qualitative.Upsert(ctx, contracts.QualitativeValue{
			OrganizationID: org, MetricID: cashFlow, Period: period, Value: 50,
		}))
		require.NoError(t, qualitative.Upsert(ctx, contracts.QualitativeValue{
			OrganizationID: org, MetricID: cashFlow, Period: period, Value: 75,
		}))

		got, err := qualitative.ForPeriod(ctx, org, period, []string{cashFlow, liquidity})
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{cashFlow: 75}, got)

		other, err := qualitative.ForPeriod(ctx, org, contracts.PeriodContext{SeasonID: "2024"}, []string{cashFlow})
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("result history newest first", func(t *testing.T) {
		base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		for i := range 3 {
			require.NoError(t, results.Save(ctx, &contracts.RatingResult{
				ID:             fmt.Sprintf("result-%d", i),
				ModelID:        modelID,
				OrganizationID: org,
				Period:         contracts.PeriodContext{SeasonID: "2025"},
				FinalScore:     float64(70 + i),
				LetterGrade:    "A",
				ColorBand:      "lime-500",
				Contributions: []contracts.MetricContribution{
					{NodeID: liqNode.ID, MetricID: liquidity, MetricCode: "LIQUIDEZ_CORRENTE", Score: 80, Weight: 60, Contribution: 48},
				},
				Warnings:     []contracts.Warning{},
				CalculatedAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}

		list, err := results.List(ctx, org, modelID, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "result-2", list[0].ID)
		assert.Equal(t, "result-1", list[1].ID)
		assert.Equal(t, "lime-500", list[0].ColorBand)
		require.Len(t, list[0].Contributions, 1)
		assert.Equal(t, 48.0, list[0].Contributions[0].Contribution)

		all, err := results.List(ctx, org, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("service calculates against stored data", func(t *testing.T) {
		svc := rating.NewService(rating.Deps{
			Metrics:     metrics,
			Models:      models,
			Results:     results,
			Qualitative: qualitative,
			Values: contracts.ValueProviderFunc(func(context.Context, string, contracts.PeriodContext, string) (float64, error) {
				return 2.5, nil
			}),
		}, nil, nil)

		res, err := svc.CalculateRating(ctx, rating.CalculateInput{
			ModelID:        modelID,
			OrganizationID: org,
			Period:         contracts.PeriodContext{SeasonID: "2025", ScenarioID: "base"},
			Persist:        true,
		})
		require.NoError(t, err)
		assert.Len(t, res.Contributions, 2)
		assert.NotEmpty(t, res.LetterGrade)

		history, err := svc.History(ctx, org, modelID, 1)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, res.ID, history[0].ID)
	})
}
