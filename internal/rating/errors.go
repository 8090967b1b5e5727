package rating

import (
	"errors"
	"fmt"
)

// Editor and input errors. All are recoverable by the caller.
var (
	ErrMetricAlreadyAdded = errors.New("metric already added")
	ErrIllegalEdge        = errors.New("only metric -> output edges are allowed")
	ErrNodeNotFound       = errors.New("node not found")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrOutputNodeRemoval  = errors.New("output node cannot be removed")
	ErrInvalidWeight      = errors.New("weight must be within [0, 100]")
	ErrInvalidManualValue = errors.New("manual value must be within [0, 100]")
	ErrNotQualitative     = errors.New("metric is not qualitative")
	ErrUnsavedModel       = errors.New("model must be saved before its results can be persisted")
	ErrNoModel            = errors.New("no rating model given")
)

// ValidationError blocks save and calculate. It carries the full outcome
// so callers can show the specific guidance for the failure reason.
type ValidationError struct {
	Outcome ValidationOutcome
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rating model: %s", e.Outcome.Message)
}

// ConfigurationError reports a connected node the engine cannot evaluate at all,
// e.g. a metric with no definition.
type ConfigurationError struct {
	NodeID   string
	MetricID string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("rating configuration error (node %s, metric %s): %s", e.NodeID, e.MetricID, e.Reason)
}
