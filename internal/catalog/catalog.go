// Package catalog loads the predefined metric catalog shipped with the binary.
package catalog

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"slices"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/wonny/safra/backend/internal/contracts"
)

//go:embed predefined.yaml
var predefinedYAML []byte

// namespace for deterministic ids, so seeding is idempotent
var namespace = uuid.MustParse("6f1c2a9e-3b7d-4f5e-9a0c-52d1e8b7c431")

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Catalog is a versioned list of predefined metrics
type Catalog struct {
	Version string  `yaml:"version" json:"version"`
	Metrics []Entry `yaml:"metrics" json:"metrics"`
}

// Entry is one predefined metric
type Entry struct {
	Code        string                   `yaml:"code" json:"code"`
	Name        string                   `yaml:"name" json:"name"`
	Description string                   `yaml:"description" json:"description"`
	Type        contracts.MetricType     `yaml:"type" json:"type"`
	Category    contracts.MetricCategory `yaml:"category" json:"category"`
	Unit        string                   `yaml:"unit" json:"unit"`
	Bands       []Band                   `yaml:"bands" json:"bands"`
}

// Band is one threshold band of an entry
type Band struct {
	Level       string   `yaml:"level" json:"level"`
	Min         *float64 `yaml:"min" json:"min"`
	Max         *float64 `yaml:"max" json:"max"`
	Score       float64  `yaml:"score" json:"score"`
	Description string   `yaml:"description" json:"description"`
}

// ValidationError 카탈로그 검증 실패
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Predefined returns the embedded catalog
func Predefined() (*Catalog, error) {
	return Parse(predefinedYAML)
}

// Load reads a catalog file and returns it with its raw bytes
func Load(path string) (*Catalog, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return c, data, nil
}

// Parse decodes and validates catalog YAML. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks catalog constraints
func Validate(c *Catalog) error {
	if c.Version == "" {
		return ValidationError{"version", "required"}
	}
	if len(c.Metrics) == 0 {
		return ValidationError{"metrics", "at least one metric is required"}
	}

	seen := make(map[string]bool, len(c.Metrics))
	for i, m := range c.Metrics {
		field := fmt.Sprintf("metrics[%d]", i)

		if !codePattern.MatchString(m.Code) {
			return ValidationError{field + ".code", fmt.Sprintf("%q must be UPPER_SNAKE_CASE", m.Code)}
		}
		if seen[m.Code] {
			return ValidationError{field + ".code", fmt.Sprintf("duplicate code %s", m.Code)}
		}
		seen[m.Code] = true

		if m.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if !m.Type.Valid() {
			return ValidationError{field + ".type", fmt.Sprintf("invalid type %q", m.Type)}
		}
		if !m.Category.Valid() {
			return ValidationError{field + ".category", fmt.Sprintf("invalid category %q", m.Category)}
		}

		switch m.Type {
		case contracts.MetricTypeQuantitative:
			if len(m.Bands) == 0 {
				return ValidationError{field + ".bands", "quantitative metric needs at least one band"}
			}
		case contracts.MetricTypeQualitative:
			if len(m.Bands) > 0 {
				return ValidationError{field + ".bands", "qualitative metric is scored by its manual value and takes no bands"}
			}
		}

		for j, b := range m.Bands {
			bandField := fmt.Sprintf("%s.bands[%d]", field, j)
			if b.Level == "" {
				return ValidationError{bandField + ".level", "required"}
			}
			if b.Score < 0 || b.Score > 100 {
				return ValidationError{bandField + ".score", "must be in [0, 100]"}
			}
			if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
				return ValidationError{bandField, "min must be <= max"}
			}
		}
		if len(m.Bands) > 0 {
			if err := checkCoverage(m.Bands); err != nil {
				return ValidationError{field + ".bands", err.Error()}
			}
		}
	}
	return nil
}

// checkCoverage requires the bands to cover every value with no gap.
// Adjacent bands share their endpoint; the higher score wins there.
func checkCoverage(bands []Band) error {
	sorted := slices.Clone(bands)
	slices.SortStableFunc(sorted, func(a, b Band) int {
		return cmp.Compare(lowerBound(a), lowerBound(b))
	})

	if sorted[0].Min != nil {
		return fmt.Errorf("no band covers values below %v", *sorted[0].Min)
	}
	reach := upperBound(sorted[0])
	for _, b := range sorted[1:] {
		if math.IsInf(reach, 1) {
			return nil
		}
		if lowerBound(b) > reach {
			return fmt.Errorf("gap between %v and %v", reach, lowerBound(b))
		}
		reach = math.Max(reach, upperBound(b))
	}
	if !math.IsInf(reach, 1) {
		return fmt.Errorf("no band covers values above %v", reach)
	}
	return nil
}

func lowerBound(b Band) float64 {
	if b.Min == nil {
		return math.Inf(-1)
	}
	return *b.Min
}

func upperBound(b Band) float64 {
	if b.Max == nil {
		return math.Inf(1)
	}
	return *b.Max
}

// Hash generates SHA256 hash from the catalog (canonical JSON)
func Hash(c *Catalog) (string, error) {
	jsonBytes, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// MetricID is the deterministic id of a predefined metric code
func MetricID(code string) string {
	return uuid.NewSHA1(namespace, []byte("metric:"+code)).String()
}

// Definitions converts the catalog into global, predefined metric definitions
func (c *Catalog) Definitions() []contracts.MetricDefinition {
	defs := make([]contracts.MetricDefinition, 0, len(c.Metrics))
	for _, m := range c.Metrics {
		id := MetricID(m.Code)
		def := contracts.MetricDefinition{
			Metric: contracts.Metric{
				ID:           id,
				Type:         m.Type,
				Category:     m.Category,
				Code:         m.Code,
				Name:         m.Name,
				Description:  m.Description,
				Unit:         m.Unit,
				IsPredefined: true,
				IsActive:     true,
			},
			Bands: make([]contracts.ThresholdBand, 0, len(m.Bands)),
		}
		for j, b := range m.Bands {
			def.Bands = append(def.Bands, contracts.ThresholdBand{
				ID:          uuid.NewSHA1(namespace, []byte(fmt.Sprintf("band:%s:%d", m.Code, j))).String(),
				MetricID:    id,
				ValueMin:    b.Min,
				ValueMax:    b.Max,
				Score:       b.Score,
				Level:       b.Level,
				Description: b.Description,
			})
		}
		defs = append(defs, def)
	}
	return defs
}
