package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/gl_driver"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
)

// countingDriver records the state calls glState makes. Calls it does not override panic through the nil
// embedded Driver.
type countingDriver struct {
	gl_driver.Driver
	calls map[string]int
}

func newCountingDriver() *countingDriver {
	return &countingDriver{calls: map[string]int{}}
}

func (d *countingDriver) Enable(gl_driver.Capability, bool) { d.calls["Enable"]++ }
func (d *countingDriver) EnableBlend(int, bool) { d.calls["EnableBlend"]++ }
func (d *countingDriver) BlendState(int, gputypes.BlendState) { d.calls["BlendState"]++ }
func (d *countingDriver) ColorMask(int, gputypes.ColorWriteMask) { d.calls["ColorMask"]++ }
func (d *countingDriver) DepthFunc(gputypes.CompareFunction) { d.calls["DepthFunc"]++ }
func (d *countingDriver) DepthMask(bool) { d.calls["DepthMask"]++ }
func (d *countingDriver) CullFace(gputypes.CullMode) { d.calls["CullFace"]++ }
func (d *countingDriver) FrontFace(gputypes.FrontFace) { d.calls["FrontFace"]++ }
func (d *countingDriver) Viewport(int32, int32, int32, int32) { d.calls["Viewport"]++ }
func (d *countingDriver) Scissor(int32, int32, int32, int32) { d.calls["Scissor"]++ }
func (d *countingDriver) UseProgram(gl_driver.Handle) { d.calls["UseProgram"]++ }
func (d *countingDriver) BindVertexArray(gl_driver.Handle) { d.calls["BindVertexArray"]++ }
func (d *countingDriver) BindFramebuffer(gl_driver.Handle) { d.calls["BindFramebuffer"]++ }
func (d *countingDriver) BindSampler(uint32, gl_driver.Handle) { d.calls["BindSampler"]++ }
func (d *countingDriver) PolygonOffset(float32, float32) { d.calls["PolygonOffset"]++ }
func (d *countingDriver) StencilMask(uint32) { d.calls["StencilMask"]++ }
func (d *countingDriver) BindBufferBase(gl_driver.BufferTarget, uint32, gl_driver.Handle) {
	d.calls["BindBufferBase"]++
}
func (d *countingDriver) BindTexture(uint32, gputypes.TextureViewDimension, gl_driver.Handle) {
	d.calls["BindTexture"]++
}

var alphaBlend = gputypes.BlendState{
	Color: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorSrcAlpha,
		DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
		Operation: gputypes.BlendOperationAdd,
	},
	Alpha: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorOne,
		DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
		Operation: gputypes.BlendOperationAdd,
	},
}

func TestGLState_EqualStateIssuesNoCalls(t *testing.T) {
	d := newCountingDriver()
	s := newGLState(d, 2, 4)

	for range 3 {
		s.setBlend(0, true, alphaBlend, gputypes.ColorWriteMaskAll)
		s.setDepth(true, gputypes.CompareFunctionLess, true)
		s.setCull(gputypes.CullModeBack, gputypes.FrontFaceCCW)
		s.setViewport(0, 0, 640, 480)
		s.useProgram(7)
		s.bindVertexArray(3)
	}

	assert.Equal(t, 1, d.calls["EnableBlend"])
	assert.Equal(t, 1, d.calls["BlendState"])
	assert.Equal(t, 1, d.calls["ColorMask"])
	assert.Equal(t, 1, d.calls["DepthFunc"])
	assert.Equal(t, 1, d.calls["DepthMask"])
	assert.Equal(t, 1, d.calls["CullFace"])
	assert.Equal(t, 1, d.calls["FrontFace"])
	assert.Equal(t, 1, d.calls["Viewport"])
	assert.Equal(t, 1, d.calls["UseProgram"])
	assert.Equal(t, 1, d.calls["BindVertexArray"])

	applied, skipped := s.takeCounts()
	assert.Positive(t, applied)
	assert.Equal(t, 2*applied, skipped)

	applied, skipped = s.takeCounts()
	assert.Zero(t, applied)
	assert.Zero(t, skipped)
}

func TestGLState_ChangesReachTheDriver(t *testing.T) {
	d := newCountingDriver()
	s := newGLState(d, 2, 4)

	s.setBlend(0, true, alphaBlend, gputypes.ColorWriteMaskAll)
	additive := alphaBlend
	additive.Color.DstFactor = gputypes.BlendFactorOne
	s.setBlend(0, true, additive, gputypes.ColorWriteMaskAll)
	assert.Equal(t, 2, d.calls["BlendState"])

	// A disabled draw buffer keeps its factors, so re-enabling with the same ones only toggles.
	s.setBlend(0, false, additive, gputypes.ColorWriteMaskAll)
	s.setBlend(0, true, additive, gputypes.ColorWriteMaskAll)
	assert.Equal(t, 3, d.calls["EnableBlend"])
	assert.Equal(t, 2, d.calls["BlendState"])

	// Draw buffers are tracked independently.
	s.setBlend(1, true, alphaBlend, gputypes.ColorWriteMaskAll)
	assert.Equal(t, 3, d.calls["BlendState"])

	// Indices past the context's draw buffers are ignored.
	s.setBlend(5, true, alphaBlend, gputypes.ColorWriteMaskAll)
	assert.Equal(t, 3, d.calls["BlendState"])
}

func TestGLState_CullNoneOnlyDisables(t *testing.T) {
	d := newCountingDriver()
	s := newGLState(d, 1, 1)

	s.setCull(gputypes.CullModeNone, gputypes.FrontFaceCCW)
	assert.Zero(t, d.calls["CullFace"])
	assert.Equal(t, 1, d.calls["Enable"])

	s.setCull(gputypes.CullModeFront, gputypes.FrontFaceCCW)
	assert.Equal(t, 1, d.calls["CullFace"])
	assert.Equal(t, 2, d.calls["Enable"])
	assert.Equal(t, 1, d.calls["FrontFace"])
}

func TestGLState_ForgottenHandlesRebind(t *testing.T) {
	d := newCountingDriver()
	s := newGLState(d, 1, 2)

	s.bindTexture(0, gputypes.TextureViewDimension2D, 9)
	s.bindTexture(1, gputypes.TextureViewDimension2D, 9)
	s.bindTexture(0, gputypes.TextureViewDimension2D, 9)
	assert.Equal(t, 2, d.calls["BindTexture"])

	// A deleted handle may be recycled by the driver, so the next bind must reach it.
	s.forgetTexture(9)
	s.bindTexture(0, gputypes.TextureViewDimension2D, 9)
	s.bindTexture(1, gputypes.TextureViewDimension2D, 9)
	assert.Equal(t, 4, d.calls["BindTexture"])

	s.bindTexture(0, gputypes.TextureViewDimensionCube, 9)
	assert.Equal(t, 5, d.calls["BindTexture"])

	s.bindUniformBuffer(0, 4)
	s.bindUniformBuffer(0, 4)
	s.forgetUniformBuffer(4)
	s.bindUniformBuffer(0, 4)
	assert.Equal(t, 2, d.calls["BindBufferBase"])

	s.bindSampler(1, 2)
	s.forgetSampler(2)
	s.bindSampler(1, 2)
	assert.Equal(t, 2, d.calls["BindSampler"])
}

func TestGLState_ScissorAndPolygonOffset(t *testing.T) {
	d := newCountingDriver()
	s := newGLState(d, 1, 1)

	r := [4]int32{0, 0, 10, 10}
	s.setScissor(&r)
	s.setScissor(&r)
	s.setScissor(nil)
	assert.Equal(t, 1, d.calls["Scissor"])
	assert.Equal(t, 2, d.calls["Enable"])

	s.setPolygonOffset(0, 0)
	assert.Zero(t, d.calls["PolygonOffset"])
	s.setPolygonOffset(1, 2)
	s.setPolygonOffset(1, 2)
	assert.Equal(t, 1, d.calls["PolygonOffset"])
}
