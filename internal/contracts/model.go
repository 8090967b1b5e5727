package contracts

import (
	"time"
)

// NodeKind distinguishes metric nodes from the output node
type NodeKind string

const (
	NodeKindMetric NodeKind = "METRIC"
	NodeKindOutput NodeKind = "OUTPUT"
)

// Node is one vertex of a rating model graph.
// Layout (canvas position) is kept in Layout, never here.
type Node struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"kind"`
	MetricID    string   `json:"metricId,omitempty"`    // METRIC only
	Weight      float64  `json:"weight,omitempty"`      // METRIC only, 0..100
	ManualValue *float64 `json:"manualValue,omitempty"` // METRIC only, qualitative metrics
	Label       string   `json:"label,omitempty"`       // OUTPUT only
	Score       *float64 `json:"score,omitempty"`       // OUTPUT only, last computed score
}

// IsMetric reports whether n is a metric node
func (n Node) IsMetric() bool { return n.Kind == NodeKindMetric }

// IsOutput reports whether n is the output node
func (n Node) IsOutput() bool { return n.Kind == NodeKindOutput }

// Edge connects a metric node to the output node
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// RatingModel is the aggregate root of a scoring configuration.
// OrganizationID is nil for global models.
type RatingModel struct {
	ID             string    `json:"id"`
	OrganizationID *string   `json:"organizationId,omitempty"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	IsDefault      bool      `json:"isDefault"`
	IsActive       bool      `json:"isActive"`
	Nodes          []Node    `json:"nodes"`
	Edges          []Edge    `json:"edges"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// NodeByID finds a node by id
func (m *RatingModel) NodeByID(id string) (Node, bool) {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// OutputNode returns the first output node
func (m *RatingModel) OutputNode() (Node, bool) {
	for _, n := range m.Nodes {
		if n.IsOutput() {
			return n, true
		}
	}
	return Node{}, false
}

// ConnectedMetricNodes returns metric nodes with an edge into the output node,
// ordered by each node's first such edge.
func (m *RatingModel) ConnectedMetricNodes() []Node {
	out, ok := m.OutputNode()
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(m.Edges))
	var connected []Node
	for _, e := range m.Edges {
		if e.Target != out.ID || seen[e.Source] {
			continue
		}
		n, ok := m.NodeByID(e.Source)
		if !ok || !n.IsMetric() {
			continue
		}
		seen[e.Source] = true
		connected = append(connected, n)
	}
	return connected
}

// Clone returns a deep copy so callers can mutate without sharing state
func (m RatingModel) Clone() RatingModel {
	c := m
	if m.OrganizationID != nil {
		org := *m.OrganizationID
		c.OrganizationID = &org
	}
	c.Nodes = make([]Node, len(m.Nodes))
	for i, n := range m.Nodes {
		if n.ManualValue != nil {
			v := *n.ManualValue
			n.ManualValue = &v
		}
		if n.Score != nil {
			s := *n.Score
			n.Score = &s
		}
		c.Nodes[i] = n
	}
	c.Edges = append([]Edge(nil), m.Edges...)
	return c
}

// Position is a node's canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the editor camera
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Layout is the presentation record of a model, joined to nodes by id.
// The scoring engine never reads it.
type Layout struct {
	Positions map[string]Position `json:"positions"`
	Viewport  *Viewport           `json:"viewport,omitempty"`
}

// Prune drops positions of nodes that no longer exist in the model
func (l *Layout) Prune(model *RatingModel) {
	if l == nil {
		return
	}
	for id := range l.Positions {
		if _, ok := model.NodeByID(id); !ok {
			delete(l.Positions, id)
		}
	}
}
