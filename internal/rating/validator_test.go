package rating

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/safra/backend/internal/contracts"
)

func TestValidate_OK(t *testing.T) {
	outcome := Validate(buildModel(weighted{"m1", 60}, weighted{"m2", 40}))

	assert.True(t, outcome.OK)
	assert.Empty(t, outcome.Issues)
	assert.Equal(t, 100.0, outcome.TotalWeight)
	assert.Equal(t, 0.0, outcome.Remaining)
	assert.NoError(t, outcome.Err())
}

func TestValidate_WeightStates(t *testing.T) {
	tests := []struct {
		name    string
		model   *contracts.RatingModel
		reason  Reason
		message string
	}{
		{
			name:    "nothing connected",
			model:   buildModel(),
			reason:  ReasonNoMetricsConnected,
			message: "no metrics connected",
		},
		{
			name:    "connected with zero weight",
			model:   buildModel(weighted{"m1", 0}),
			reason:  ReasonNoMetricsConnected,
			message: "no metrics connected",
		},
		{
			name:    "incomplete",
			model:   buildModel(weighted{"m1", 50}, weighted{"m2", 20}),
			reason:  ReasonWeightIncomplete,
			message: "incomplete, 30% remaining",
		},
		{
			name:    "incomplete fractional",
			model:   buildModel(weighted{"m1", 33.33}, weighted{"m2", 33.33}),
			reason:  ReasonWeightIncomplete,
			message: "incomplete, 33.34% remaining",
		},
		{
			name:    "exceeded",
			model:   buildModel(weighted{"m1", 80}, weighted{"m2", 45}),
			reason:  ReasonWeightExceeded,
			message: "exceeds 100%, over by 25%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Validate(tt.model)

			require.False(t, outcome.OK)
			assert.Equal(t, tt.reason, outcome.Reason)
			assert.Equal(t, tt.message, outcome.Message)

			var verr *ValidationError
			require.True(t, errors.As(outcome.Err(), &verr))
			assert.Equal(t, tt.reason, verr.Outcome.Reason)
		})
	}
}

func TestValidate_FloatingPointSumWithinTolerance(t *testing.T) {
	model := buildModel(weighted{"m1", 33.3333333}, weighted{"m2", 33.3333333}, weighted{"m3", 33.3333334})

	assert.True(t, Validate(model).OK)
}

func TestValidate_UnconnectedNodesDoNotCount(t *testing.T) {
	model := buildModel(weighted{"m1", 100})
	model.Nodes = append(model.Nodes, contracts.Node{ID: "loose", Kind: contracts.NodeKindMetric, MetricID: "m9", Weight: 50})

	outcome := Validate(model)
	assert.True(t, outcome.OK)
	assert.Equal(t, 100.0, outcome.TotalWeight)
}

func TestValidate_OutputRules(t *testing.T) {
	noOutput := &contracts.RatingModel{Nodes: []contracts.Node{
		{ID: "n1", Kind: contracts.NodeKindMetric, MetricID: "m1", Weight: 100},
	}}
	outcome := Validate(noOutput)
	assert.Equal(t, ReasonNoOutput, outcome.Reason)
	assert.Len(t, outcome.Issues, 1, "weight rule is skipped without a single output")

	twoOutputs := buildModel(weighted{"m1", 100})
	twoOutputs.Nodes = append(twoOutputs.Nodes, contracts.Node{ID: "out2", Kind: contracts.NodeKindOutput})
	assert.Equal(t, ReasonMultipleOutputs, Validate(twoOutputs).Reason)
}

func TestValidate_EdgeRules(t *testing.T) {
	t.Run("unknown source", func(t *testing.T) {
		m := buildModel(weighted{"m1", 100})
		m.Edges = append(m.Edges, contracts.Edge{ID: "bad", Source: "ghost", Target: "out"})

		outcome := Validate(m)
		assert.Equal(t, ReasonInvalidEdge, outcome.Reason)
		assert.Equal(t, "bad", outcome.Issues[0].EdgeID)
	})

	t.Run("output as source", func(t *testing.T) {
		m := buildModel(weighted{"m1", 100})
		m.Edges = append(m.Edges, contracts.Edge{ID: "loop", Source: "out", Target: "out"})

		assert.Equal(t, ReasonInvalidEdge, Validate(m).Reason)
	})

	t.Run("metric to metric", func(t *testing.T) {
		m := buildModel(weighted{"m1", 50}, weighted{"m2", 50})
		m.Edges = append(m.Edges, contracts.Edge{ID: "mm", Source: "n1", Target: "n2"})

		assert.Equal(t, ReasonInvalidEdge, Validate(m).Reason)
	})
}

func TestValidate_DuplicateMetric(t *testing.T) {
	m := buildModel(weighted{"m1", 50}, weighted{"m1", 50})

	outcome := Validate(m)
	assert.False(t, outcome.OK)
	assert.Equal(t, ReasonDuplicateMetric, outcome.Reason)
	assert.Equal(t, "n2", outcome.Issues[0].NodeID)
}

func TestValidate_InvalidNodes(t *testing.T) {
	m := buildModel(weighted{"m1", 100})
	m.Nodes = append(m.Nodes,
		contracts.Node{ID: "n1", Kind: contracts.NodeKindMetric, MetricID: "mx"},
		contracts.Node{ID: "blank", Kind: contracts.NodeKindMetric},
		contracts.Node{ID: "heavy", Kind: contracts.NodeKindMetric, MetricID: "m7", Weight: 120},
		contracts.Node{ID: "odd", Kind: "GROUP"},
	)

	outcome := Validate(m)
	require.False(t, outcome.OK)
	assert.Equal(t, ReasonInvalidNode, outcome.Reason)

	nodes := map[string]bool{}
	for _, issue := range outcome.Issues {
		if issue.Reason == ReasonInvalidNode {
			nodes[issue.NodeID] = true
		}
	}
	assert.Equal(t, map[string]bool{"n1": true, "blank": true, "heavy": true, "odd": true}, nodes)
}
