package modeldoc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wonny/safra/backend/internal/contracts"
)

// v1 flow document as written by the first canvas editor

type legacyDocument struct {
	Nodes    []legacyNode        `json:"nodes"`
	Edges    []legacyEdge        `json:"edges"`
	Viewport *contracts.Viewport `json:"viewport,omitempty"`
}

type legacyNode struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Position *contracts.Position `json:"position"`
	Data     legacyNodeData      `json:"data"`
}

type legacyNodeData struct {
	Metric json.RawMessage `json:"metric"`
	Weight *float64        `json:"weight"`
	Value  *float64        `json:"value"`
	Score  *float64        `json:"score"`
	Label  string          `json:"label"`
}

type legacyMetric struct {
	ID   string `json:"id"`
	Tipo string `json:"tipo"`
	Type string `json:"type"`
}

type legacyEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

func decodeLegacy(data []byte) (Graph, *contracts.Layout, error) {
	var doc legacyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Graph{}, nil, fmt.Errorf("failed to decode legacy graph document: %w", err)
	}

	layout := &contracts.Layout{
		Positions: make(map[string]contracts.Position, len(doc.Nodes)),
		Viewport:  doc.Viewport,
	}
	g := Graph{
		Nodes: make([]contracts.Node, 0, len(doc.Nodes)),
		Edges: make([]contracts.Edge, 0, len(doc.Edges)),
	}

	for _, ln := range doc.Nodes {
		node, err := ln.upgrade()
		if err != nil {
			return Graph{}, nil, err
		}
		g.Nodes = append(g.Nodes, node)
		if ln.Position != nil {
			layout.Positions[ln.ID] = *ln.Position
		}
	}

	for _, le := range doc.Edges {
		id := le.ID
		if id == "" {
			id = fmt.Sprintf("e-%s-%s", le.Source, le.Target)
		}
		g.Edges = append(g.Edges, contracts.Edge{ID: id, Source: le.Source, Target: le.Target})
	}

	return g, layout, nil
}

func (ln legacyNode) upgrade() (contracts.Node, error) {
	switch strings.ToLower(ln.Type) {
	case "output":
		return contracts.Node{
			ID:    ln.ID,
			Kind:  contracts.NodeKindOutput,
			Label: ln.Data.Label,
			Score: ln.Data.Score,
		}, nil

	case "metric":
		metric, err := parseLegacyMetric(ln.Data.Metric)
		if err != nil {
			return contracts.Node{}, fmt.Errorf("legacy node %s: %w", ln.ID, err)
		}
		node := contracts.Node{
			ID:       ln.ID,
			Kind:     contracts.NodeKindMetric,
			MetricID: metric.ID,
		}
		if ln.Data.Weight != nil {
			node.Weight = *ln.Data.Weight
		}
		// value은 정성 지표에서만 의미가 있음 (정량은 외부 조회)
		if ln.Data.Value != nil && metric.qualitative() {
			v := *ln.Data.Value
			node.ManualValue = &v
		}
		return node, nil

	default:
		return contracts.Node{}, fmt.Errorf("legacy node %s has unknown type %q", ln.ID, ln.Type)
	}
}

func (m legacyMetric) qualitative() bool {
	t := m.Tipo
	if t == "" {
		t = m.Type
	}
	return strings.EqualFold(t, string(contracts.MetricTypeQualitative))
}

// parseLegacyMetric accepts the embedded metric object or a bare id
func parseLegacyMetric(raw json.RawMessage) (legacyMetric, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return legacyMetric{}, nil
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return legacyMetric{}, fmt.Errorf("invalid metric reference: %w", err)
		}
		return legacyMetric{ID: id}, nil
	}
	var m legacyMetric
	if err := json.Unmarshal(raw, &m); err != nil {
		return legacyMetric{}, fmt.Errorf("invalid metric reference: %w", err)
	}
	return m, nil
}
