package commands

import (
	"fmt"

	"github.com/wonny/safra/backend/internal/data/repos"
	"github.com/wonny/safra/backend/internal/external/fincalc"
	"github.com/wonny/safra/backend/internal/rating"
	"github.com/wonny/safra/backend/pkg/config"
	"github.com/wonny/safra/backend/pkg/database"
	"github.com/wonny/safra/backend/pkg/logger"
	"github.com/wonny/safra/backend/pkg/redis"
)

// app holds the wired dependencies shared by api, seed and calculate
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	redis   *redis.Client
	metrics *repos.MetricRepository
	service *rating.Service
}

// newApp loads config and wires database, redis, value provider and service
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		// 캐시/리밋은 선택 사항이므로 비활성으로 계속 진행
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rdb = redis.Disabled()
	}

	metrics := repos.NewMetricRepository(db.Pool)
	engine := rating.NewEngine(
		rating.WithLogger(log),
		rating.WithMaxConcurrentLookups(cfg.Rating.MaxConcurrentLookups),
	)
	service := rating.NewService(rating.Deps{
		Metrics:     metrics,
		Models:      repos.NewModelRepository(db.Pool),
		Results:     repos.NewResultRepository(db.Pool),
		Qualitative: repos.NewQualitativeValueRepository(db.Pool),
		Values:      fincalc.New(cfg, rdb, log),
	}, engine, log)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		redis:   rdb,
		metrics: metrics,
		service: service,
	}, nil
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}
