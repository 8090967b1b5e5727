package rating

import (
	"context"
	"sort"
	"sync"

	"github.com/wonny/safra/backend/internal/contracts"
)

func f(v float64) *float64 { return &v }

func ptr(s string) *string { return &s }

func band(min, max *float64, level string, score float64) contracts.ThresholdBand {
	return contracts.ThresholdBand{ValueMin: min, ValueMax: max, Level: level, Score: score}
}

func quantitative(id, code string, bands ...contracts.ThresholdBand) contracts.MetricDefinition {
	return contracts.MetricDefinition{
		Metric: contracts.Metric{ID: id, Code: code, Name: code, Type: contracts.MetricTypeQuantitative, Category: contracts.CategoryOther, IsActive: true},
		Bands:  bands,
	}
}

func qualitative(id, code string) contracts.MetricDefinition {
	return contracts.MetricDefinition{
		Metric: contracts.Metric{ID: id, Code: code, Name: code, Type: contracts.MetricTypeQualitative, Category: contracts.CategoryManagement, IsActive: true},
	}
}

type weighted struct {
	metricID string
	weight   float64
}

// buildModel creates a model with output "out" and nodes "n<i>" connected in order
func buildModel(nodes ...weighted) *contracts.RatingModel {
	m := &contracts.RatingModel{
		ID:       "model-1",
		Name:     "test",
		IsActive: true,
		Nodes:    []contracts.Node{{ID: "out", Kind: contracts.NodeKindOutput, Label: "Rating"}},
	}
	for i, n := range nodes {
		id := nodeID(i)
		m.Nodes = append(m.Nodes, contracts.Node{ID: id, Kind: contracts.NodeKindMetric, MetricID: n.metricID, Weight: n.weight})
		m.Edges = append(m.Edges, contracts.Edge{ID: "e-" + id, Source: id, Target: "out"})
	}
	return m
}

func nodeID(i int) string { return "n" + string(rune('1'+i)) }

func defsOf(defs ...contracts.MetricDefinition) map[string]contracts.MetricDefinition {
	out := make(map[string]contracts.MetricDefinition, len(defs))
	for _, d := range defs {
		out[d.Metric.ID] = d
	}
	return out
}

// staticValues answers lookups from a map; codes in errs fail
type staticValues struct {
	mu     sync.Mutex
	values map[string]float64
	errs   map[string]error
	calls  []string
}

func (s *staticValues) MetricValue(_ context.Context, _ string, _ contracts.PeriodContext, code string) (float64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, code)
	s.mu.Unlock()
	if err, ok := s.errs[code]; ok {
		return 0, err
	}
	return s.values[code], nil
}

func (s *staticValues) sortedCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.calls...)
	sort.Strings(out)
	return out
}

type fakeMetrics struct {
	defs       map[string]contracts.MetricDefinition
	referenced map[string]bool
}

func (f *fakeMetrics) Get(_ context.Context, id string) (*contracts.Metric, error) {
	d, ok := f.defs[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	m := d.Metric
	return &m, nil
}

func (f *fakeMetrics) BandsOf(_ context.Context, id string) ([]contracts.ThresholdBand, error) {
	return f.defs[id].Bands, nil
}

func (f *fakeMetrics) Definitions(_ context.Context, ids []string) (map[string]contracts.MetricDefinition, error) {
	out := map[string]contracts.MetricDefinition{}
	for _, id := range ids {
		if d, ok := f.defs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (f *fakeMetrics) ListByOrganization(context.Context, string) ([]contracts.Metric, error) {
	var out []contracts.Metric
	for _, d := range f.defs {
		out = append(out, d.Metric)
	}
	return out, nil
}

func (f *fakeMetrics) Upsert(_ context.Context, def contracts.MetricDefinition) error {
	if cur, ok := f.defs[def.Metric.ID]; ok {
		if err := contracts.CheckMetricUpdate(cur.Metric, def.Metric, f.referenced[def.Metric.ID]); err != nil {
			return err
		}
	}
	f.defs[def.Metric.ID] = def
	return nil
}

func (f *fakeMetrics) IsReferenced(_ context.Context, id string) (bool, error) {
	return f.referenced[id], nil
}

type fakeModels struct {
	models  map[string]contracts.RatingModel
	layouts map[string]*contracts.Layout
	saved   int
}

func newFakeModels() *fakeModels {
	return &fakeModels{models: map[string]contracts.RatingModel{}, layouts: map[string]*contracts.Layout{}}
}

func (f *fakeModels) Save(_ context.Context, m *contracts.RatingModel, l *contracts.Layout) (string, error) {
	f.saved++
	f.models[m.ID] = m.Clone()
	f.layouts[m.ID] = l
	return m.ID, nil
}

func (f *fakeModels) Load(_ context.Context, id string) (*contracts.RatingModel, *contracts.Layout, error) {
	m, ok := f.models[id]
	if !ok {
		return nil, nil, contracts.ErrNotFound
	}
	return &m, f.layouts[id], nil
}

func (f *fakeModels) ListByOrganization(context.Context, string) ([]contracts.RatingModel, error) {
	var out []contracts.RatingModel
	for _, m := range f.models {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeModels) Deactivate(_ context.Context, id string) error {
	m, ok := f.models[id]
	if !ok {
		return contracts.ErrNotFound
	}
	m.IsActive = false
	f.models[id] = m
	return nil
}

func (f *fakeModels) DefaultFor(context.Context, string) (*contracts.RatingModel, error) {
	for _, m := range f.models {
		if m.IsDefault && m.IsActive {
			return &m, nil
		}
	}
	return nil, contracts.ErrNotFound
}

type fakeResults struct {
	saved []contracts.RatingResult
	err   error
}

func (f *fakeResults) Save(_ context.Context, r *contracts.RatingResult) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *r)
	return nil
}

func (f *fakeResults) List(_ context.Context, _, _ string, limit int) ([]contracts.RatingResult, error) {
	out := make([]contracts.RatingResult, 0, len(f.saved))
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.saved[i])
	}
	return out, nil
}

type fakeQualitative struct {
	values map[string]float64 // by metric id
	upsert []contracts.QualitativeValue
}

func (f *fakeQualitative) Upsert(_ context.Context, v contracts.QualitativeValue) error {
	f.upsert = append(f.upsert, v)
	return nil
}

func (f *fakeQualitative) ForPeriod(_ context.Context, _ string, _ contracts.PeriodContext, ids []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, id := range ids {
		if v, ok := f.values[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}
