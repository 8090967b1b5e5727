// Package modeldoc encodes the persisted shape of a rating model graph.
//
// The graph document holds domain fields only (metric, weight, manual value).
// Canvas layout is a separate document joined by node id. Documents written
// by the first editor release (version 1, nodes with interleaved positions) are
// upgraded on read.
package modeldoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wonny/safra/backend/internal/contracts"
)

// CurrentVersion is the graph document version written by Encode
const CurrentVersion = 2

const legacyVersion = 1

// ErrUnsupportedVersion is returned for documents newer than this package understands
var ErrUnsupportedVersion = errors.New("unsupported graph document version")

// Graph is the domain part of a rating model
type Graph struct {
	Nodes []contracts.Node
	Edges []contracts.Edge
}

type document struct {
	Version int              `json:"version"`
	Nodes   []contracts.Node `json:"nodes"`
	Edges   []contracts.Edge `json:"edges"`
}

// Encode serializes a model's nodes and edges as a current-version document
func Encode(model *contracts.RatingModel) ([]byte, error) {
	doc := document{
		Version: CurrentVersion,
		Nodes:   model.Nodes,
		Edges:   model.Edges,
	}
	if doc.Nodes == nil {
		doc.Nodes = []contracts.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []contracts.Edge{}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph document: %w", err)
	}
	return data, nil
}

// Decode reads a graph document of any supported version
func Decode(data []byte) (Graph, error) {
	g, _, err := DecodeWithLayout(data)
	return g, err
}

// DecodeWithLayout reads a graph document. For legacy documents the layout
// embedded in the nodes is extracted and returned; for current documents the
// returned layout is nil.
func DecodeWithLayout(data []byte) (Graph, *contracts.Layout, error) {
	data, err := unwrapString(data)
	if err != nil {
		return Graph{}, nil, err
	}

	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Graph{}, nil, fmt.Errorf("failed to read graph document: %w", err)
	}

	switch {
	case probe.Version == 0 || probe.Version == legacyVersion:
		return decodeLegacy(data)
	case probe.Version == CurrentVersion:
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return Graph{}, nil, fmt.Errorf("failed to decode graph document: %w", err)
		}
		return Graph{Nodes: doc.Nodes, Edges: doc.Edges}, nil, nil
	default:
		return Graph{}, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, probe.Version)
	}
}

// Apply copies a decoded graph onto a model
func (g Graph) Apply(model *contracts.RatingModel) {
	model.Nodes = g.Nodes
	model.Edges = g.Edges
	if model.Nodes == nil {
		model.Nodes = []contracts.Node{}
	}
	if model.Edges == nil {
		model.Edges = []contracts.Edge{}
	}
}

// EncodeLayout serializes the presentation record. A nil layout encodes as nil.
func EncodeLayout(layout *contracts.Layout) ([]byte, error) {
	if layout == nil {
		return nil, nil
	}
	data, err := json.Marshal(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to encode layout: %w", err)
	}
	return data, nil
}

// DecodeLayout reads the presentation record. Empty input is a nil layout.
func DecodeLayout(data []byte) (*contracts.Layout, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	var layout contracts.Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("failed to decode layout: %w", err)
	}
	if layout.Positions == nil {
		layout.Positions = map[string]contracts.Position{}
	}
	return &layout, nil
}

// unwrapString accepts a document stored as a JSON string (double encoded)
func unwrapString(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty graph document")
	}
	if trimmed[0] != '"' {
		return trimmed, nil
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return nil, fmt.Errorf("failed to unwrap graph document: %w", err)
	}
	return []byte(inner), nil
}
