package rating

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/wonny/safra/backend/internal/contracts"
)

// DefaultMetricWeight is the weight a freshly added metric node starts with
const DefaultMetricWeight = 20.0

// DefaultOutputLabel labels the output node of a new model
const DefaultOutputLabel = "Rating Final"

// Editor operations are copy-on-write: the input model is never mutated and
// the edited copy is returned. They back the external graph editor.

// NewModel creates an active model holding only its output node
func NewModel(name string, organizationID *string) contracts.RatingModel {
	return contracts.RatingModel{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Name:           name,
		IsActive:       true,
		Nodes: []contracts.Node{
			{ID: uuid.NewString(), Kind: contracts.NodeKindOutput, Label: DefaultOutputLabel},
		},
		Edges: []contracts.Edge{},
	}
}

// AddMetricNode appends a metric node with the default weight.
// A metric already present in the model is rejected immediately.
func AddMetricNode(model contracts.RatingModel, metricID string) (contracts.RatingModel, contracts.Node, error) {
	if metricID == "" {
		return model, contracts.Node{}, fmt.Errorf("metric id is required")
	}
	for _, n := range model.Nodes {
		if n.IsMetric() && n.MetricID == metricID {
			return model, contracts.Node{}, fmt.Errorf("%w: %s", ErrMetricAlreadyAdded, metricID)
		}
	}

	node := contracts.Node{
		ID:       uuid.NewString(),
		Kind:     contracts.NodeKindMetric,
		MetricID: metricID,
		Weight:   DefaultMetricWeight,
	}

	next := model.Clone()
	next.Nodes = append(next.Nodes, node)
	return next, node, nil
}

// Connect adds a metric -> output edge. Connecting an already connected pair is a no-op.
func Connect(model contracts.RatingModel, sourceID, targetID string) (contracts.RatingModel, error) {
	src, ok := model.NodeByID(sourceID)
	if !ok {
		return model, fmt.Errorf("%w: %s", ErrNodeNotFound, sourceID)
	}
	dst, ok := model.NodeByID(targetID)
	if !ok {
		return model, fmt.Errorf("%w: %s", ErrNodeNotFound, targetID)
	}
	if !src.IsMetric() || !dst.IsOutput() {
		return model, fmt.Errorf("%w: %s(%s) -> %s(%s)", ErrIllegalEdge, src.ID, src.Kind, dst.ID, dst.Kind)
	}

	for _, e := range model.Edges {
		if e.Source == sourceID && e.Target == targetID {
			return model.Clone(), nil
		}
	}

	next := model.Clone()
	next.Edges = append(next.Edges, contracts.Edge{ID: uuid.NewString(), Source: sourceID, Target: targetID})
	return next, nil
}

// Disconnect removes an edge by id
func Disconnect(model contracts.RatingModel, edgeID string) (contracts.RatingModel, error) {
	next := model.Clone()
	for i, e := range next.Edges {
		if e.ID == edgeID {
			next.Edges = append(next.Edges[:i], next.Edges[i+1:]...)
			return next, nil
		}
	}
	return model, fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
}

// RemoveNode deletes a metric node together with its edges
func RemoveNode(model contracts.RatingModel, nodeID string) (contracts.RatingModel, error) {
	n, ok := model.NodeByID(nodeID)
	if !ok {
		return model, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if n.IsOutput() {
		return model, ErrOutputNodeRemoval
	}

	next := model.Clone()
	nodes := next.Nodes[:0]
	for _, node := range next.Nodes {
		if node.ID != nodeID {
			nodes = append(nodes, node)
		}
	}
	next.Nodes = nodes

	edges := next.Edges[:0]
	for _, e := range next.Edges {
		if e.Source != nodeID && e.Target != nodeID {
			edges = append(edges, e)
		}
	}
	next.Edges = edges
	return next, nil
}

// SetWeight changes a metric node's weight
func SetWeight(model contracts.RatingModel, nodeID string, weight float64) (contracts.RatingModel, error) {
	if math.IsNaN(weight) || weight < 0 || weight > TotalWeight {
		return model, fmt.Errorf("%w: %v", ErrInvalidWeight, weight)
	}
	return updateMetricNode(model, nodeID, func(n *contracts.Node) { n.Weight = weight })
}

// SetManualValue sets or clears (nil) a metric node's manual value
func SetManualValue(model contracts.RatingModel, nodeID string, value *float64) (contracts.RatingModel, error) {
	if value != nil && (math.IsNaN(*value) || *value < 0 || *value > 100) {
		return model, fmt.Errorf("%w: %v", ErrInvalidManualValue, *value)
	}
	return updateMetricNode(model, nodeID, func(n *contracts.Node) {
		if value == nil {
			n.ManualValue = nil
			return
		}
		v := *value
		n.ManualValue = &v
	})
}

func updateMetricNode(model contracts.RatingModel, nodeID string, fn func(*contracts.Node)) (contracts.RatingModel, error) {
	next := model.Clone()
	for i := range next.Nodes {
		if next.Nodes[i].ID != nodeID {
			continue
		}
		if !next.Nodes[i].IsMetric() {
			return model, fmt.Errorf("%w: %s is not a metric node", ErrNodeNotFound, nodeID)
		}
		fn(&next.Nodes[i])
		return next, nil
	}
	return model, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
}
