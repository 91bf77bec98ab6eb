package node_builder

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// NodeBuilderOption is a functional option for configuring a NodeBuilder.
type NodeBuilderOption func(*nodeBuilder)

// WithTarget sets the language the builder emits. The default is WGSL.
func WithTarget(t node.Target) NodeBuilderOption {
	return func(nb *nodeBuilder) {
		nb.target = t
	}
}

// WithFeatures sets the optional capabilities of the backend the programs run on.
//
// Parameters:
//   - features: the backend features
//
// Returns:
//   - NodeBuilderOption: a function that applies the features to a builder
func WithFeatures(features node.Features) NodeBuilderOption {
	return func(nb *nodeBuilder) {
		nb.features = features
	}
}

// WithLogger sets the logger. The default is the process logger.
func WithLogger(l *zap.Logger) NodeBuilderOption {
	return func(nb *nodeBuilder) {
		if l != nil {
			nb.logger = l
		}
	}
}

// WithTracer sets the tracer compile spans are recorded with.
func WithTracer(t trace.Tracer) NodeBuilderOption {
	return func(nb *nodeBuilder) {
		if t != nil {
			nb.tracer = t
		}
	}
}

// WithValidator runs every generated WGSL stage through v before the program is returned.
func WithValidator(v Validator) NodeBuilderOption {
	return func(nb *nodeBuilder) {
		nb.validator = v
	}
}
