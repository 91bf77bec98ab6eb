package material

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithColor is an option builder that sets the diffuse color of the material.
//
// Parameters:
//   - color: the color as RGB float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the color option to a material
func WithColor(color [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.color.SetValue(color)
	}
}

// WithOpacity sets the opacity.
func WithOpacity(opacity float32) MaterialBuilderOption {
	return func(m *material) {
		m.opacity.SetValue(opacity)
	}
}

// WithMap attaches a color map sampled at the "uv" attribute.
//
// Parameters:
//   - t: the texture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the map option to a material
func WithMap(t resource.Texture) MaterialBuilderOption {
	return func(m *material) {
		if t != nil {
			m.mapNode = node.Texture(t)
		}
	}
}

// WithAlphaTest enables alpha testing against threshold.
func WithAlphaTest(threshold float32) MaterialBuilderOption {
	return func(m *material) {
		if threshold > 0 {
			m.alphaTest = node.Uniform("alphaTest", node.Float, threshold)
		}
	}
}

// WithNode fills a node slot.
//
// Parameters:
//   - slot: the slot
//   - n: the node
//
// Returns:
//   - MaterialBuilderOption: a function that fills the slot
func WithNode(slot Slot, n node.Node) MaterialBuilderOption {
	return func(m *material) {
		m.slots[slot] = n
	}
}

// WithTransparent enables blending.
func WithTransparent(transparent bool) MaterialBuilderOption {
	return func(m *material) {
		m.transparent = transparent
	}
}

// WithSide sets the faces drawn.
func WithSide(side Side) MaterialBuilderOption {
	return func(m *material) {
		m.side = side
	}
}

// WithRenderState replaces the default pipeline state.
//
// Parameters:
//   - s: the render state
//
// Returns:
//   - MaterialBuilderOption: a function that applies the render state to a material
func WithRenderState(s pipeline.RenderState) MaterialBuilderOption {
	return func(m *material) {
		s.Blending = slices.Clone(s.Blending)
		m.renderState = s
	}
}
