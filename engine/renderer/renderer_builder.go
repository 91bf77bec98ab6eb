package renderer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLogger sets the logger. The default is the package logger named "renderer".
func WithLogger(l *zap.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer sets the tracer used for compile spans.
func WithTracer(t trace.Tracer) RendererBuilderOption {
	return func(r *renderer) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMetricsRegistry registers the renderer's prometheus collectors with reg. Without it the collectors are
// created but not registered.
//
// Parameters:
//   - reg: the registry
//
// Returns:
//   - RendererBuilderOption: a function that applies the registry option to a renderer
func WithMetricsRegistry(reg prometheus.Registerer) RendererBuilderOption {
	return func(r *renderer) {
		r.registry = reg
	}
}

// WithExecutor runs asynchronous compiles on e instead of a renderer-owned executor. The renderer does not stop
// an executor it was given.
func WithExecutor(e *common.Executor) RendererBuilderOption {
	return func(r *renderer) {
		r.executor = e
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the canvas.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.msaa = count
	}
}

// WithSize sets the initial canvas size in logical pixels.
func WithSize(width, height uint32) RendererBuilderOption {
	return func(r *renderer) {
		r.width, r.height = max(width, 1), max(height, 1)
	}
}

// WithPixelRatio sets the initial ratio of physical to logical pixels.
func WithPixelRatio(ratio float32) RendererBuilderOption {
	return func(r *renderer) {
		if ratio > 0 {
			r.pixelRatio = ratio
		}
	}
}

// WithClearColor sets the canvas clear color.
func WithClearColor(c gputypes.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithAutoClear sets whether Render clears its target first. Defaults to true.
func WithAutoClear(clear bool) RendererBuilderOption {
	return func(r *renderer) {
		r.autoClear = clear
	}
}

// WithIdleFrames sets how many frames a render object may go undrawn before its GPU state is released.
// Zero keeps render objects until their material or geometry is disposed.
func WithIdleFrames(frames uint64) RendererBuilderOption {
	return func(r *renderer) {
		r.idleFrames = frames
	}
}

// WithValidator runs generated shader source through v before programs are cached.
func WithValidator(v node_builder.Validator) RendererBuilderOption {
	return func(r *renderer) {
		r.validator = v
	}
}

// WithClock replaces the frame clock, typically with a fixed-step clock for offline rendering.
func WithClock(now func() time.Time) RendererBuilderOption {
	return func(r *renderer) {
		r.frameOpts = append(r.frameOpts, node.WithClock(now))
	}
}
