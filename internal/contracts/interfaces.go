package contracts

import "context"

// ValueProvider supplies quantitative metric values from the external
// financial-calculation service.
// ⭐ SSOT: 정량 지표 값은 이 인터페이스로만 조회
type ValueProvider interface {
	MetricValue(ctx context.Context, organizationID string, period PeriodContext, metricCode string) (float64, error)
}

// ValueProviderFunc adapts a function to ValueProvider
type ValueProviderFunc func(ctx context.Context, organizationID string, period PeriodContext, metricCode string) (float64, error)

// MetricValue calls f
func (f ValueProviderFunc) MetricValue(ctx context.Context, organizationID string, period PeriodContext, metricCode string) (float64, error) {
	return f(ctx, organizationID, period, metricCode)
}
