package contracts

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// MetricType distinguishes externally computed metrics from manually scored ones
// ⭐ SSOT: 지표 유형은 닫힌 열거형
type MetricType string

const (
	MetricTypeQuantitative MetricType = "QUANTITATIVE" // 외부 서비스에서 값 조회
	MetricTypeQualitative  MetricType = "QUALITATIVE"  // 수동 입력 값 = 점수
)

// ParseMetricType parses a metric type, case-insensitively
func ParseMetricType(s string) (MetricType, error) {
	t := MetricType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown metric type %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known metric type
func (t MetricType) Valid() bool {
	return t == MetricTypeQuantitative || t == MetricTypeQualitative
}

// UnmarshalText rejects unknown values at the decoding boundary
func (t *MetricType) UnmarshalText(b []byte) error {
	parsed, err := ParseMetricType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MetricCategory is the taxonomy of a metric.
// Display labels belong to the presentation layer.
type MetricCategory string

const (
	CategoryLiquidity      MetricCategory = "LIQUIDITY"
	CategoryIndebtedness   MetricCategory = "INDEBTEDNESS"
	CategoryProfitability  MetricCategory = "PROFITABILITY"
	CategoryCollateral     MetricCategory = "COLLATERAL"
	CategoryManagement     MetricCategory = "MANAGEMENT"
	CategorySustainability MetricCategory = "SUSTAINABILITY"
	CategoryOther          MetricCategory = "OTHER"
)

var metricCategories = []MetricCategory{
	CategoryLiquidity,
	CategoryIndebtedness,
	CategoryProfitability,
	CategoryCollateral,
	CategoryManagement,
	CategorySustainability,
	CategoryOther,
}

// MetricCategories returns every known category in display order
func MetricCategories() []MetricCategory {
	out := make([]MetricCategory, len(metricCategories))
	copy(out, metricCategories)
	return out
}

// ParseMetricCategory parses a category, case-insensitively
func ParseMetricCategory(s string) (MetricCategory, error) {
	c := MetricCategory(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown metric category %q", s)
	}
	return c, nil
}

// Valid reports whether c is a known category
func (c MetricCategory) Valid() bool {
	for _, known := range metricCategories {
		if c == known {
			return true
		}
	}
	return false
}

// UnmarshalText rejects unknown values at the decoding boundary
func (c *MetricCategory) UnmarshalText(b []byte) error {
	parsed, err := ParseMetricCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Metric is a scoring dimension.
// OrganizationID is nil for predefined (global) metrics.
type Metric struct {
	ID             string         `json:"id"`
	OrganizationID *string        `json:"organizationId,omitempty"`
	Type           MetricType     `json:"type"`
	Category       MetricCategory `json:"category"`
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Unit           string         `json:"unit,omitempty"`
	IsPredefined   bool           `json:"isPredefined"`
	IsActive       bool           `json:"isActive"`
}

// ThresholdBand maps a value range to a score for one metric.
// A nil bound is open on that side; both bounds are inclusive.
type ThresholdBand struct {
	ID          string   `json:"id,omitempty"`
	MetricID    string   `json:"metricId,omitempty"`
	ValueMin    *float64 `json:"valueMin"`
	ValueMax    *float64 `json:"valueMax"`
	Score       float64  `json:"score"`
	Level       string   `json:"level"`
	Description string   `json:"description,omitempty"`
}

// Contains reports whether value falls inside the band. NaN is never inside.
func (b ThresholdBand) Contains(value float64) bool {
	if math.IsNaN(value) {
		return false
	}
	if b.ValueMin != nil && value < *b.ValueMin {
		return false
	}
	if b.ValueMax != nil && value > *b.ValueMax {
		return false
	}
	return true
}

// MetricDefinition is a metric together with its band set
type MetricDefinition struct {
	Metric Metric          `json:"metric"`
	Bands  []ThresholdBand `json:"bands"`
}

// ErrMetricInUse is returned when a referenced metric would change identity
var ErrMetricInUse = errors.New("metric is referenced by a saved rating model")

// CheckMetricUpdate guards metric mutation.
// Once referenced by a saved model only descriptive fields
// (name, description, unit, category, active flag) may change.
func CheckMetricUpdate(current, next Metric, referenced bool) error {
	if !next.Type.Valid() {
		return fmt.Errorf("invalid metric type %q", next.Type)
	}
	if !next.Category.Valid() {
		return fmt.Errorf("invalid metric category %q", next.Category)
	}
	if !referenced {
		return nil
	}
	if current.Type != next.Type {
		return fmt.Errorf("%w: type %s -> %s", ErrMetricInUse, current.Type, next.Type)
	}
	if current.Code != next.Code {
		return fmt.Errorf("%w: code %s -> %s", ErrMetricInUse, current.Code, next.Code)
	}
	return nil
}
