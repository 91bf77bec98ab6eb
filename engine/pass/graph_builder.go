package pass

import "go.uber.org/zap"

// GraphBuilderOption is a functional option applied to a graph during construction via NewGraph.
type GraphBuilderOption func(*graph)

// WithLogger sets the logger. Defaults to the shared engine logger named "pass".
func WithLogger(l *zap.Logger) GraphBuilderOption {
	return func(g *graph) {
		if l != nil {
			g.logger = l
		}
	}
}
