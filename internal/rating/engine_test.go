package rating

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/safra/backend/internal/contracts"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewEngine(
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "result-1" }),
	)
}

// scoreBands gives a metric a single open band so any value scores s
func scoreBands(s float64) []contracts.ThresholdBand {
	return []contracts.ThresholdBand{band(nil, nil, "X", s)}
}

func TestCalculate_WeightedAggregation(t *testing.T) {
	model := buildModel(weighted{"m1", 60}, weighted{"m2", 40})
	values := &staticValues{values: map[string]float64{"LC": 1.5, "DE": 3}}

	result, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model:          model,
		OrganizationID: "org-1",
		Period:         contracts.PeriodContext{SeasonID: "24/25", ScenarioID: "base"},
		Definitions: defsOf(
			quantitative("m1", "LC", scoreBands(80)...),
			quantitative("m2", "DE", scoreBands(50)...),
		),
		Values: values,
	})
	require.NoError(t, err)

	assert.Equal(t, 68.0, result.FinalScore)
	assert.Equal(t, "BBB", result.LetterGrade)
	assert.Equal(t, "yellow-500", result.ColorBand)
	assert.Equal(t, "result-1", result.ID)
	assert.Equal(t, "model-1", result.ModelID)
	assert.Equal(t, fixedNow, result.CalculatedAt)
	assert.Empty(t, result.Warnings)

	require.Len(t, result.Contributions, 2)
	assert.Equal(t, "LC", result.Contributions[0].MetricCode)
	assert.Equal(t, 1.5, result.Contributions[0].Value)
	assert.Equal(t, 48.0, result.Contributions[0].Contribution)
	assert.Equal(t, 20.0, result.Contributions[1].Contribution)
	assert.Equal(t, []string{"DE", "LC"}, values.sortedCalls())
}

func TestCalculate_ContributionOrderFollowsEdges(t *testing.T) {
	model := buildModel(weighted{"m1", 50}, weighted{"m2", 50})
	model.Edges[0], model.Edges[1] = model.Edges[1], model.Edges[0]

	result, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model:       model,
		Definitions: defsOf(qualitative("m1", "Q1"), qualitative("m2", "Q2")),
	})
	require.NoError(t, err)

	assert.Equal(t, "n2", result.Contributions[0].NodeID)
	assert.Equal(t, "n1", result.Contributions[1].NodeID)
}

func TestCalculate_RejectsInvalidWeights(t *testing.T) {
	for _, weights := range [][]float64{{50, 40}, {70, 40}, {0}} {
		var nodes []weighted
		defs := map[string]contracts.MetricDefinition{}
		for i, w := range weights {
			id := nodeID(i)
			nodes = append(nodes, weighted{id, w})
			defs[id] = qualitative(id, id)
		}

		result, err := testEngine().Calculate(context.Background(), CalculationRequest{
			Model:       buildModel(nodes...),
			Definitions: defs,
		})

		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "weights %v", weights)
		assert.Nil(t, result)
	}
}

func TestCalculate_DegradedMetricHalvesScore(t *testing.T) {
	model := buildModel(weighted{"m1", 50}, weighted{"m2", 50})
	values := &staticValues{
		values: map[string]float64{"OK": 10},
		errs:   map[string]error{"BROKEN": errors.New("service unavailable")},
	}

	result, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model: model,
		Definitions: defsOf(
			quantitative("m1", "OK", scoreBands(84)...),
			quantitative("m2", "BROKEN", scoreBands(100)...),
		),
		Values: values,
	})
	require.NoError(t, err)

	assert.Equal(t, 42.0, result.FinalScore)
	assert.True(t, result.IsDegraded())

	broken := result.Contributions[1]
	assert.True(t, broken.Degraded)
	assert.Equal(t, 0.0, broken.Value)
	assert.Equal(t, 0.0, broken.Score)
	assert.False(t, result.Contributions[0].Degraded)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, contracts.WarningDegradedMetric, result.Warnings[0].Kind)
	assert.Equal(t, "BROKEN", result.Warnings[0].MetricCode)
}

func TestCalculate_NonFiniteAndPanickingLookupsDegrade(t *testing.T) {
	model := buildModel(weighted{"m1", 25}, weighted{"m2", 25}, weighted{"m3", 25}, weighted{"m4", 25})
	provider := contracts.ValueProviderFunc(func(_ context.Context, _ string, _ contracts.PeriodContext, code string) (float64, error) {
		switch code {
		case "NAN":
			return math.NaN(), nil
		case "INF":
			return math.Inf(1), nil
		case "PANIC":
			panic("boom")
		}
		return 1, nil
	})

	result, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model: model,
		Definitions: defsOf(
			quantitative("m1", "NAN", scoreBands(100)...),
			quantitative("m2", "INF", scoreBands(100)...),
			quantitative("m3", "PANIC", scoreBands(100)...),
			quantitative("m4", "FINE", scoreBands(100)...),
		),
		Values: provider,
	})
	require.NoError(t, err)

	assert.Equal(t, 25.0, result.FinalScore)
	for _, c := range result.Contributions[:3] {
		assert.True(t, c.Degraded, c.MetricCode)
	}
	assert.Len(t, result.Warnings, 3)
}

func TestCalculate_MissingThresholdsScoresZeroWithWarning(t *testing.T) {
	model := buildModel(weighted{"m1", 100})

	result, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model:       model,
		Definitions: defsOf(quantitative("m1", "LTV")),
		Values:      &staticValues{values: map[string]float64{"LTV": 45}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.FinalScore)
	assert.Equal(t, "C", result.LetterGrade)
	assert.Equal(t, 45.0, result.Contributions[0].Value)
	assert.False(t, result.Contributions[0].Degraded)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, contracts.WarningMissingThresholds, result.Warnings[0].Kind)
}

func TestCalculate_QualitativeManualValues(t *testing.T) {
	model := buildModel(weighted{"q1", 40}, weighted{"q2", 30}, weighted{"q3", 30})
	model.Nodes[2].ManualValue = f(50) // n2 has a node-level value

	result, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model:        model,
		Definitions:  defsOf(qualitative("q1", "A"), qualitative("q2", "B"), qualitative("q3", "C")),
		ManualValues: map[string]float64{"n1": 150},
	})
	require.NoError(t, err)

	c := result.Contributions
	assert.Equal(t, 100.0, c[0].Score, "request value clamped to 100")
	assert.Equal(t, 50.0, c[1].Score, "falls back to node manual value")
	assert.Equal(t, 0.0, c[2].Score, "missing manual value scores 0")
	assert.InDelta(t, 55.0, result.FinalScore, 1e-9)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, contracts.WarningMissingManualValue, result.Warnings[0].Kind)
	assert.Equal(t, "C", result.Warnings[0].MetricCode)
}

func TestCalculate_RequestValueOverridesNodeValue(t *testing.T) {
	model := buildModel(weighted{"q1", 100})
	model.Nodes[1].ManualValue = f(10)

	result, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model:        model,
		Definitions:  defsOf(qualitative("q1", "A")),
		ManualValues: map[string]float64{"n1": -20},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.FinalScore)
	assert.Empty(t, result.Warnings)
}

func TestCalculate_MissingDefinitionIsConfigurationError(t *testing.T) {
	_, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model:       buildModel(weighted{"m1", 100}),
		Definitions: map[string]contracts.MetricDefinition{},
	})

	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "m1", cerr.MetricID)
}

func TestCalculate_QuantitativeWithoutProvider(t *testing.T) {
	_, err := testEngine().Calculate(context.Background(), CalculationRequest{
		Model:       buildModel(weighted{"m1", 100}),
		Definitions: defsOf(quantitative("m1", "LC", scoreBands(10)...)),
	})

	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestCalculate_NilModel(t *testing.T) {
	_, err := testEngine().Calculate(context.Background(), CalculationRequest{})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestCalculate_Idempotent(t *testing.T) {
	model := buildModel(weighted{"m1", 33.3}, weighted{"m2", 33.3}, weighted{"m3", 33.4})
	req := CalculationRequest{
		Model: model,
		Definitions: defsOf(
			quantitative("m1", "A", band(f(0), f(1), "L", 17.3), band(f(1), nil, "H", 91.7)),
			quantitative("m2", "B", scoreBands(63.1)...),
			qualitative("m3", "C"),
		),
		ManualValues: map[string]float64{"n3": 71.9},
		Values:       &staticValues{values: map[string]float64{"A": 0.4, "B": 7}},
	}

	first, err := testEngine().Calculate(context.Background(), req)
	require.NoError(t, err)
	second, err := NewEngine(WithMaxConcurrentLookups(1)).Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(first.FinalScore), math.Float64bits(second.FinalScore))
	assert.Equal(t, first.LetterGrade, second.LetterGrade)
}

func TestCalculate_CancelledBeforeAggregation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := contracts.ValueProviderFunc(func(ctx context.Context, _ string, _ contracts.PeriodContext, _ string) (float64, error) {
		cancel()
		<-ctx.Done()
		return 0, ctx.Err()
	})

	result, err := testEngine().Calculate(ctx, CalculationRequest{
		Model:       buildModel(weighted{"m1", 100}),
		Definitions: defsOf(quantitative("m1", "LC", scoreBands(10)...)),
		Values:      provider,
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestCalculate_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := testEngine().Calculate(ctx, CalculationRequest{
		Model:       buildModel(weighted{"q1", 100}),
		Definitions: defsOf(qualitative("q1", "A")),
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestCalculate_LookupsRunConcurrentlyWithinLimit(t *testing.T) {
	const n = 10
	var inFlight, peak atomic.Int32
	release := make(chan struct{})

	provider := contracts.ValueProviderFunc(func(context.Context, string, contracts.PeriodContext, string) (float64, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return 1, nil
	})

	var nodes []weighted
	var defs []contracts.MetricDefinition
	for i := 0; i < n; i++ {
		id := nodeID(i)
		nodes = append(nodes, weighted{id, 10})
		defs = append(defs, quantitative(id, id, scoreBands(50)...))
	}

	done := make(chan struct{})
	var result *contracts.RatingResult
	var err error
	go func() {
		defer close(done)
		result, err = NewEngine(WithMaxConcurrentLookups(3)).Calculate(context.Background(), CalculationRequest{
			Model:       buildModel(nodes...),
			Definitions: defsOf(defs...),
			Values:      provider,
		})
	}()

	require.Eventually(t, func() bool { return inFlight.Load() == 3 }, time.Second, time.Millisecond)
	close(release)
	<-done

	require.NoError(t, err)
	assert.Equal(t, int32(3), peak.Load())
	assert.Equal(t, 50.0, result.FinalScore)
}
