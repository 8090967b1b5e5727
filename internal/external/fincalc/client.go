package fincalc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/pkg/config"
	"github.com/wonny/safra/backend/pkg/httputil"
	"github.com/wonny/safra/backend/pkg/logger"
	"github.com/wonny/safra/backend/pkg/redis"
)

// ErrValueUnavailable is returned when the service has no value for a metric code
var ErrValueUnavailable = errors.New("metric value unavailable")

const (
	calculatePath = "/v1/rating-metrics/calculate"

	// defaultFetchTimeout bounds a shared period fetch, retries included
	defaultFetchTimeout = 30 * time.Second
)

// Client fetches quantitative metric values from the financial-calculation service.
// The service computes every metric of an organization/period in one call, so
// values are fetched per period, cached, and served per code.
// ⭐ SSOT: 재무 지표 값 조회는 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	cacheTTL   time.Duration
	logger     *logger.Logger
	baseURL    string

	// fetchTimeout bounds a shared fetch, which outlives any single caller's context
	fetchTimeout time.Duration

	group singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithCache caches period value sets. ttl <= 0 disables caching.
func WithCache(cache *redis.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithFetchTimeout bounds one period fetch including retries
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// NewClient creates a new client for the service at baseURL
func NewClient(baseURL string, httpClient *httputil.Client, log *logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		httpClient:   httpClient,
		fetchTimeout: defaultFetchTimeout,
		logger:       log.Module("fincalc"),
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New wires a client from application config: API key header, rate limit
// (shared through redis when enabled, in-process otherwise) and value cache.
func New(cfg *config.Config, rdb *redis.Client, log *logger.Logger) *Client {
	httpClient := httputil.New(cfg, log)
	if cfg.FinCalc.APIKey != "" {
		httpClient.WithHeader("X-API-Key", cfg.FinCalc.APIKey)
	}

	if cfg.FinCalc.RateLimit > 0 {
		if rdb.Enabled() {
			httpClient.WithRateLimiter(redis.NewRateLimiter(rdb, "safra"), redis.FinCalcRateLimit(cfg.FinCalc.RateLimit))
		} else {
			httpClient.WithLocalRateLimit(cfg.FinCalc.RateLimit)
		}
	}

	return NewClient(cfg.FinCalc.BaseURL, httpClient, log,
		WithCache(redis.NewCache(rdb, "safra"), cfg.FinCalc.CacheTTL),
	)
}

type calculateRequest struct {
	OrganizationID string `json:"organizationId"`
	SeasonID       string `json:"seasonId,omitempty"`
	ScenarioID     string `json:"scenarioId,omitempty"`
}

type calculateResponse struct {
	OrganizationID string              `json:"organizationId"`
	Values         map[string]*float64 `json:"values"`
}

// MetricValue implements contracts.ValueProvider
func (c *Client) MetricValue(ctx context.Context, organizationID string, period contracts.PeriodContext, metricCode string) (float64, error) {
	values, err := c.PeriodValues(ctx, organizationID, period)
	if err != nil {
		return 0, err
	}

	v, ok := values[metricCode]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrValueUnavailable, metricCode)
	}
	return *v, nil
}

// PeriodValues returns every metric value the service computes for an
// organization and period. A null value means the service could not compute it.
//
// Concurrent callers for the same period share one request. The request runs
// detached from every caller's cancellation, and each caller stops waiting
// only when its own context ends.
func (c *Client) PeriodValues(ctx context.Context, organizationID string, period contracts.PeriodContext) (map[string]*float64, error) {
	key := redis.PeriodValuesKey(organizationID, period.SeasonID, period.ScenarioID)

	// 동시 조회는 한 번의 요청으로 합침
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		if c.cache == nil {
			return c.fetch(fetchCtx, organizationID, period)
		}
		return redis.GetOrSet(fetchCtx, c.cache, key, c.cacheTTL, func() (map[string]*float64, error) {
			return c.fetch(fetchCtx, organizationID, period)
		})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]*float64), nil
	}
}

func (c *Client) fetch(ctx context.Context, organizationID string, period contracts.PeriodContext) (map[string]*float64, error) {
	start := time.Now()

	var resp calculateResponse
	err := c.httpClient.PostJSON(ctx, c.baseURL+calculatePath, calculateRequest{
		OrganizationID: organizationID,
		SeasonID:       period.SeasonID,
		ScenarioID:     period.ScenarioID,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate metrics for %s: %w", organizationID, err)
	}

	if resp.Values == nil {
		resp.Values = map[string]*float64{}
	}

	c.logger.WithFields(map[string]interface{}{
		"organization": organizationID,
		"season":       period.SeasonID,
		"scenario":     period.ScenarioID,
		"metrics":      len(resp.Values),
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Debug("Metric values fetched")

	return resp.Values, nil
}
