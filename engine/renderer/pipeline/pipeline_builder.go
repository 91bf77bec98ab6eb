package pipeline

import (
	"slices"

	"github.com/gogpu/gputypes"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithLabel overrides the debug label, which defaults to the program label.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - PipelineBuilderOption: a function that sets the label
func WithLabel(label string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.label = label
	}
}

// WithRenderState sets the fixed-function state for this pipeline.
//
// Parameters:
//   - s: the render state
//
// Returns:
//   - PipelineBuilderOption: a function that sets the render state for this pipeline
func WithRenderState(s RenderState) PipelineBuilderOption {
	return func(p *pipeline) {
		s.Blending = slices.Clone(s.Blending)
		p.state = s
	}
}

// WithTargets sets the attachment layout for this pipeline.
//
// Parameters:
//   - t: the attachment layout
//
// Returns:
//   - PipelineBuilderOption: a function that sets the attachment layout for this pipeline
func WithTargets(t TargetLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		t.Formats = slices.Clone(t.Formats)
		if t.SampleCount == 0 {
			t.SampleCount = 1
		}
		p.targets = t
	}
}

// WithVertexLayouts overrides the program's vertex layouts, for geometry whose attributes step per instance.
func WithVertexLayouts(layouts []gputypes.VertexBufferLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertex = slices.Clone(layouts)
	}
}
