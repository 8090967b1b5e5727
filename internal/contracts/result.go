package contracts

import "time"

// PeriodContext identifies the season/scenario a rating is computed for.
// Opaque to the engine; forwarded to the value provider.
type PeriodContext struct {
	SeasonID   string `json:"seasonId,omitempty"`
	ScenarioID string `json:"scenarioId,omitempty"`
}

// WarningKind classifies non-fatal calculation issues
type WarningKind string

const (
	WarningDegradedMetric     WarningKind = "DEGRADED_METRIC"
	WarningMissingThresholds  WarningKind = "MISSING_THRESHOLDS"
	WarningMissingManualValue WarningKind = "MISSING_MANUAL_VALUE"
)

// Warning annotates a result without blocking it
type Warning struct {
	Kind       WarningKind `json:"kind"`
	MetricCode string      `json:"metricCode"`
	Message    string      `json:"message"`
}

// MetricContribution is the audit record of one connected metric
type MetricContribution struct {
	NodeID       string     `json:"nodeId"`
	MetricID     string     `json:"metricId"`
	MetricCode   string     `json:"metricCode"`
	MetricName   string     `json:"metricName"`
	Type         MetricType `json:"type"`
	Value        float64    `json:"value"`
	Score        float64    `json:"score"`
	Weight       float64    `json:"weight"`
	Contribution float64    `json:"contribution"`
	Level        string     `json:"level,omitempty"`
	Degraded     bool       `json:"degraded"`
}

// RatingResult is one immutable computed outcome
// ⭐ SSOT: 계산 결과 스냅샷은 엔진만 생성
type RatingResult struct {
	ID             string               `json:"id"`
	ModelID        string               `json:"modelId"`
	OrganizationID string               `json:"organizationId"`
	Period         PeriodContext        `json:"period"`
	FinalScore     float64              `json:"finalScore"`
	LetterGrade    string               `json:"letterGrade"`
	ColorBand      string               `json:"colorBand"`
	Description    string               `json:"description"`
	Contributions  []MetricContribution `json:"contributions"`
	Warnings       []Warning            `json:"warnings"`
	CalculatedAt   time.Time            `json:"calculatedAt"`
}

// IsDegraded reports whether any contribution used a fallback value
func (r *RatingResult) IsDegraded() bool {
	for _, c := range r.Contributions {
		if c.Degraded {
			return true
		}
	}
	return false
}

// QualitativeValue is a manually entered 0..100 value for one organization/metric/period
type QualitativeValue struct {
	OrganizationID string        `json:"organizationId"`
	MetricID       string        `json:"metricId"`
	Period         PeriodContext `json:"period"`
	Value          float64       `json:"value"`
	UpdatedAt      time.Time     `json:"updatedAt,omitempty"`
}
