package contracts

import (
	"testing"
)

func sampleModel() RatingModel {
	return RatingModel{
		ID:   "model-1",
		Name: "Crédito safra",
		Nodes: []Node{
			{ID: "out", Kind: NodeKindOutput, Label: "Rating"},
			{ID: "n1", Kind: NodeKindMetric, MetricID: "m1", Weight: 60},
			{ID: "n2", Kind: NodeKindMetric, MetricID: "m2", Weight: 40, ManualValue: ptr(70)},
			{ID: "n3", Kind: NodeKindMetric, MetricID: "m3", Weight: 10},
		},
		Edges: []Edge{
			{ID: "e2", Source: "n2", Target: "out"},
			{ID: "e1", Source: "n1", Target: "out"},
			{ID: "e2b", Source: "n2", Target: "out"},
		},
	}
}

func TestConnectedMetricNodes_OrderOfFirstEdge(t *testing.T) {
	m := sampleModel()

	got := m.ConnectedMetricNodes()
	if len(got) != 2 {
		t.Fatalf("expected 2 connected nodes, got %d", len(got))
	}
	if got[0].ID != "n2" || got[1].ID != "n1" {
		t.Errorf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestConnectedMetricNodes_NoOutput(t *testing.T) {
	m := RatingModel{Nodes: []Node{{ID: "n1", Kind: NodeKindMetric}}}

	if got := m.ConnectedMetricNodes(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestNodeByIDAndOutputNode(t *testing.T) {
	m := sampleModel()

	if n, ok := m.NodeByID("n3"); !ok || n.MetricID != "m3" {
		t.Errorf("NodeByID(n3) = %+v, %v", n, ok)
	}
	if _, ok := m.NodeByID("missing"); ok {
		t.Error("expected missing node")
	}
	if out, ok := m.OutputNode(); !ok || out.ID != "out" {
		t.Errorf("OutputNode() = %+v, %v", out, ok)
	}
}

func TestClone_IsDeep(t *testing.T) {
	m := sampleModel()
	org := "org-1"
	m.OrganizationID = &org

	c := m.Clone()
	*c.Nodes[2].ManualValue = 5
	c.Nodes[1].Weight = 99
	c.Edges[0].Target = "elsewhere"
	*c.OrganizationID = "org-2"

	if *m.Nodes[2].ManualValue != 70 || m.Nodes[1].Weight != 60 {
		t.Error("clone shares node state with original")
	}
	if m.Edges[0].Target != "out" {
		t.Error("clone shares edges with original")
	}
	if *m.OrganizationID != "org-1" {
		t.Error("clone shares organization id with original")
	}
}

func TestLayout_Prune(t *testing.T) {
	m := sampleModel()
	l := &Layout{Positions: map[string]Position{
		"out":  {X: 400, Y: 200},
		"n1":   {X: 100, Y: 100},
		"gone": {X: 1, Y: 1},
	}}

	l.Prune(&m)

	if _, ok := l.Positions["gone"]; ok {
		t.Error("expected stale position to be pruned")
	}
	if len(l.Positions) != 2 {
		t.Errorf("expected 2 positions, got %d", len(l.Positions))
	}

	var nilLayout *Layout
	nilLayout.Prune(&m)
}
