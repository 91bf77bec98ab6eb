package node_builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"go.uber.org/multierr"
)

// TypeError reports a node whose inputs have the wrong arity or type.
type TypeError struct {
	NodeID uint64
	Kind   string
	Stage  node.Stage
	Target node.Target
	Msg    string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error: %s node %d (%s, %s): %s", e.Kind, e.NodeID, e.Stage, e.Target, e.Msg)
}

// StageError reports a node used in a stage it is not available in.
type StageError struct {
	NodeID  uint64
	Kind    string
	Stage   node.Stage
	Target  node.Target
	Allowed []node.Stage
}

func (e *StageError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = s.String()
	}
	return fmt.Sprintf("stage error: %s node %d used in the %s stage (%s), allowed in %s",
		e.Kind, e.NodeID, e.Stage, e.Target, strings.Join(allowed, ", "))
}

// CycleError reports a graph that references one of its own ancestors. Path lists the node IDs from the first
// repeated node back to itself.
type CycleError struct {
	Path  []uint64
	Kinds []string
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = fmt.Sprintf("%s#%d", e.Kinds[i], id)
	}
	return "cycle error: " + strings.Join(parts, " -> ")
}

// UnsupportedFeatureError reports a node that needs a capability the target or backend lacks. It is terminal:
// compiling the same graph again fails the same way.
type UnsupportedFeatureError struct {
	NodeID  uint64
	Kind    string
	Stage   node.Stage
	Target  node.Target
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature: %s node %d needs %q, not available for %s in the %s stage",
		e.Kind, e.NodeID, e.Feature, e.Target, e.Stage)
}

// CompileError aggregates every diagnostic of one failed compile.
type CompileError struct {
	Label  string
	Target node.Target
	Err    error
}

func (e *CompileError) Error() string {
	errs := multierr.Errors(e.Err)
	if len(errs) == 1 {
		return fmt.Sprintf("compile %q (%s): %v", e.Label, e.Target, errs[0])
	}
	return fmt.Sprintf("compile %q (%s): %d errors: %v", e.Label, e.Target, len(errs), e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Diagnostics returns the individual errors in the order they were found.
func (e *CompileError) Diagnostics() []error {
	return multierr.Errors(e.Err)
}

// ValidationError reports generated source rejected by the WGSL validator.
type ValidationError struct {
	Stage    node.Stage
	Source   string
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation of the %s stage failed: %s", e.Stage, strings.Join(e.Messages, "; "))
}

// IsTerminal reports whether err comes from the graph itself, so retrying without changing the graph fails again.
//
// Parameters:
//   - err: the error to classify
//
// Returns:
//   - bool: true for type, stage, cycle, unsupported-feature and validation errors
func IsTerminal(err error) bool {
	var (
		te *TypeError
		se *StageError
		ce *CycleError
		ue *UnsupportedFeatureError
		ve *ValidationError
	)
	return errors.As(err, &te) || errors.As(err, &se) || errors.As(err, &ce) || errors.As(err, &ue) ||
		errors.As(err, &ve)
}
