package rating

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wonny/safra/backend/internal/contracts"
)

// Reason is the machine-readable cause of a failed validation
type Reason string

const (
	ReasonNoOutput           Reason = "NO_OUTPUT"
	ReasonMultipleOutputs    Reason = "MULTIPLE_OUTPUTS"
	ReasonInvalidNode        Reason = "INVALID_NODE"
	ReasonInvalidEdge        Reason = "INVALID_EDGE"
	ReasonDuplicateMetric    Reason = "DUPLICATE_METRIC"
	ReasonNoMetricsConnected Reason = "NO_METRICS_CONNECTED"
	ReasonWeightIncomplete   Reason = "WEIGHT_INCOMPLETE"
	ReasonWeightExceeded     Reason = "WEIGHT_EXCEEDED"
)

const (
	// TotalWeight is the exact sum connected weights must reach
	TotalWeight = 100.0

	weightEpsilon = 1e-6
)

// Issue is one violated rule
type Issue struct {
	Reason  Reason `json:"reason"`
	NodeID  string `json:"nodeId,omitempty"`
	EdgeID  string `json:"edgeId,omitempty"`
	Message string `json:"message"`
}

// ValidationOutcome is the advisory result of Validate.
// Reason and Message describe the first issue; Issues holds all of them.
type ValidationOutcome struct {
	OK          bool    `json:"ok"`
	Reason      Reason  `json:"reason,omitempty"`
	Message     string  `json:"message,omitempty"`
	TotalWeight float64 `json:"totalWeight"`
	Remaining   float64 `json:"remaining"`
	Issues      []Issue `json:"issues,omitempty"`
}

// Err returns a *ValidationError for a failed outcome, nil otherwise
func (o ValidationOutcome) Err() error {
	if o.OK {
		return nil
	}
	return &ValidationError{Outcome: o}
}

// Validate checks topology and weight invariants of a model.
// Rules are checked in order: nodes, output, edges, duplicate metrics, weights.
func Validate(model *contracts.RatingModel) ValidationOutcome {
	var issues []Issue
	add := func(reason Reason, nodeID, edgeID, format string, args ...any) {
		issues = append(issues, Issue{
			Reason:  reason,
			NodeID:  nodeID,
			EdgeID:  edgeID,
			Message: fmt.Sprintf(format, args...),
		})
	}

	nodes := make(map[string]contracts.Node, len(model.Nodes))
	var outputs []contracts.Node
	for _, n := range model.Nodes {
		switch {
		case n.ID == "":
			add(ReasonInvalidNode, "", "", "node without id")
			continue
		case nodes[n.ID].ID != "":
			add(ReasonInvalidNode, n.ID, "", "duplicate node id %s", n.ID)
			continue
		}
		nodes[n.ID] = n

		switch n.Kind {
		case contracts.NodeKindOutput:
			outputs = append(outputs, n)
		case contracts.NodeKindMetric:
			if n.MetricID == "" {
				add(ReasonInvalidNode, n.ID, "", "metric node %s has no metric", n.ID)
			}
			if math.IsNaN(n.Weight) || n.Weight < 0 || n.Weight > TotalWeight {
				add(ReasonInvalidNode, n.ID, "", "metric node %s weight %s is outside [0, 100]", n.ID, formatPct(n.Weight))
			}
		default:
			add(ReasonInvalidNode, n.ID, "", "node %s has unknown kind %q", n.ID, n.Kind)
		}
	}

	switch len(outputs) {
	case 0:
		add(ReasonNoOutput, "", "", "model has no output node")
	case 1:
	default:
		add(ReasonMultipleOutputs, "", "", "model has %d output nodes, expected exactly one", len(outputs))
	}

	for _, e := range model.Edges {
		src, ok := nodes[e.Source]
		switch {
		case !ok:
			add(ReasonInvalidEdge, "", e.ID, "edge %s source %s does not exist", e.ID, e.Source)
		case !src.IsMetric():
			add(ReasonInvalidEdge, e.Source, e.ID, "edge %s source %s is not a metric node", e.ID, e.Source)
		}
		if len(outputs) == 1 && e.Target != outputs[0].ID {
			add(ReasonInvalidEdge, "", e.ID, "edge %s target %s is not the output node", e.ID, e.Target)
		}
	}

	byMetric := make(map[string]string)
	for _, n := range model.Nodes {
		if !n.IsMetric() || n.MetricID == "" {
			continue
		}
		if first, dup := byMetric[n.MetricID]; dup && first != n.ID {
			add(ReasonDuplicateMetric, n.ID, "", "metric %s is already used by node %s", n.MetricID, first)
			continue
		}
		byMetric[n.MetricID] = n.ID
	}

	var total float64
	for _, n := range model.ConnectedMetricNodes() {
		total += n.Weight
	}

	if len(outputs) == 1 {
		switch {
		case math.Abs(total) <= weightEpsilon:
			add(ReasonNoMetricsConnected, "", "", "no metrics connected")
		case total < TotalWeight-weightEpsilon:
			add(ReasonWeightIncomplete, "", "", "incomplete, %s%% remaining", formatPct(TotalWeight-total))
		case total > TotalWeight+weightEpsilon:
			add(ReasonWeightExceeded, "", "", "exceeds 100%%, over by %s%%", formatPct(total-TotalWeight))
		}
	}

	outcome := ValidationOutcome{
		OK:          len(issues) == 0,
		TotalWeight: total,
		Remaining:   TotalWeight - total,
		Issues:      issues,
	}
	if !outcome.OK {
		outcome.Reason = issues[0].Reason
		outcome.Message = issues[0].Message
	}
	return outcome
}

// formatPct prints a percentage with at most two decimals and no trailing zeros
func formatPct(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
