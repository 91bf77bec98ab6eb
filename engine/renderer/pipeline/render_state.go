package pipeline

import (
	"github.com/gogpu/gputypes"
	"github.com/mitchellh/hashstructure/v2"
)

// AttachmentBlend is the blend and write mask of one color attachment.
type AttachmentBlend struct {
	Enabled   bool
	State     gputypes.BlendState
	WriteMask gputypes.ColorWriteMask
}

// StencilState is the stencil test applied to both faces.
type StencilState struct {
	Compare     gputypes.CompareFunction
	Reference   uint32
	ReadMask    uint32
	WriteMask   uint32
	FailOp      gputypes.StencilOperation
	DepthFailOp gputypes.StencilOperation
	PassOp      gputypes.StencilOperation
}

// RenderState is the fixed-function state of a render pipeline.
type RenderState struct {
	DepthTest           bool
	DepthWrite          bool
	DepthCompare        gputypes.CompareFunction
	DepthBias           int32
	DepthBiasSlopeScale float32

	CullMode  gputypes.CullMode
	FrontFace gputypes.FrontFace
	Topology  gputypes.PrimitiveTopology

	// Blending holds one entry per color attachment. Attachments past the end use the last entry.
	Blending []AttachmentBlend

	// Stencil enables the stencil test when set.
	Stencil *StencilState

	AlphaToCoverage bool
}

// DefaultRenderState returns opaque, depth-tested, back-face-culled triangle rendering.
func DefaultRenderState() RenderState {
	return RenderState{
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: gputypes.CompareFunctionLessEqual,
		CullMode:     gputypes.CullModeBack,
		FrontFace:    gputypes.FrontFaceCCW,
		Topology:     gputypes.PrimitiveTopologyTriangleList,
		Blending: []AttachmentBlend{{
			State:     gputypes.BlendStateAlpha(),
			WriteMask: gputypes.ColorWriteMaskAll,
		}},
	}
}

// Blend returns the blend of attachment index.
//
// Parameters:
//   - index: the color attachment index
//
// Returns:
//   - AttachmentBlend: the attachment's blend, opaque with all channels written when none is set
func (s RenderState) Blend(index int) AttachmentBlend {
	if len(s.Blending) == 0 {
		return AttachmentBlend{State: gputypes.BlendStateReplace(), WriteMask: gputypes.ColorWriteMaskAll}
	}
	if index >= len(s.Blending) {
		return s.Blending[len(s.Blending)-1]
	}
	return s.Blending[index]
}

// EffectiveDepthCompare returns the depth compare the pipeline uses: Always when the depth test is off.
func (s RenderState) EffectiveDepthCompare() gputypes.CompareFunction {
	if !s.DepthTest {
		return gputypes.CompareFunctionAlways
	}
	if s.DepthCompare == gputypes.CompareFunctionUndefined {
		return gputypes.CompareFunctionLessEqual
	}
	return s.DepthCompare
}

// ColorTargets expands the state into one color target per format.
//
// Parameters:
//   - formats: the attachment formats in location order
//
// Returns:
//   - []gputypes.ColorTargetState: the color targets
func (s RenderState) ColorTargets(formats []gputypes.TextureFormat) []gputypes.ColorTargetState {
	out := make([]gputypes.ColorTargetState, len(formats))
	for i, f := range formats {
		b := s.Blend(i)
		out[i] = gputypes.ColorTargetState{Format: f, WriteMask: b.WriteMask}
		if b.Enabled {
			state := b.State
			out[i].Blend = &state
		}
	}
	return out
}

// Key hashes the state.
//
// Returns:
//   - uint64: the hash
//   - error: a hashing error
func (s RenderState) Key() (uint64, error) {
	return hashstructure.Hash(s, hashstructure.FormatV2, nil)
}
