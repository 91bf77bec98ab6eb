package renderer

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/gl_driver"
	"github.com/gogpu/gputypes"
)

// cached is one shadowed piece of context state. The zero value is unknown, so the first set always applies.
type cached[T comparable] struct {
	v     T
	valid bool
}

// set records v and reports whether it differs from the shadowed value.
func (c *cached[T]) set(v T) bool {
	if c.valid && c.v == v {
		return false
	}
	c.v, c.valid = v, true
	return true
}

func (c *cached[T]) invalidate() {
	c.valid = false
}

type stencilFunc struct {
	compare   gputypes.CompareFunction
	ref, mask uint32
}

type stencilOps struct {
	fail, depthFail, pass gputypes.StencilOperation
}

type boundTexture struct {
	dim    gputypes.TextureViewDimension
	handle gl_driver.Handle
}

// glState shadows the context state the GL backend touches. Every setter calls the driver only when the value
// differs from the last one applied, so consecutive draws with equal state issue no state calls.
type glState struct {
	d gl_driver.Driver

	caps [gl_driver.CapFramebufferSRGB + 1]cached[bool]

	blendEnabled []cached[bool]
	blend        []cached[gputypes.BlendState]
	colorMask    []cached[gputypes.ColorWriteMask]

	depthFunc     cached[gputypes.CompareFunction]
	depthMask     cached[bool]
	cullFace      cached[gputypes.CullMode]
	frontFace     cached[gputypes.FrontFace]
	polygonOffset cached[[2]float32]
	stencilFunc   cached[stencilFunc]
	stencilOp     cached[stencilOps]
	stencilMask   cached[uint32]
	viewport      cached[[4]int32]
	scissor       cached[[4]int32]

	program     cached[gl_driver.Handle]
	vertexArray cached[gl_driver.Handle]
	framebuffer cached[gl_driver.Handle]
	textures    []cached[boundTexture]
	samplers    []cached[gl_driver.Handle]
	uniforms    map[uint32]gl_driver.Handle

	// applied and skipped count state changes sent to and filtered from the driver.
	applied, skipped int
}

func newGLState(d gl_driver.Driver, drawBuffers, textureUnits int) *glState {
	drawBuffers, textureUnits = max(drawBuffers, 1), max(textureUnits, 1)
	return &glState{
		d:            d,
		blendEnabled: make([]cached[bool], drawBuffers),
		blend:        make([]cached[gputypes.BlendState], drawBuffers),
		colorMask:    make([]cached[gputypes.ColorWriteMask], drawBuffers),
		textures:     make([]cached[boundTexture], textureUnits),
		samplers:     make([]cached[gl_driver.Handle], textureUnits),
		uniforms:     map[uint32]gl_driver.Handle{},
	}
}

func (s *glState) track(changed bool) bool {
	if changed {
		s.applied++
	} else {
		s.skipped++
	}
	return changed
}

func (s *glState) enable(c gl_driver.Capability, on bool) {
	if s.track(s.caps[c].set(on)) {
		s.d.Enable(c, on)
	}
}

func (s *glState) setBlend(index int, enabled bool, state gputypes.BlendState, mask gputypes.ColorWriteMask) {
	if index >= len(s.blend) {
		return
	}
	if s.track(s.blendEnabled[index].set(enabled)) {
		s.d.EnableBlend(index, enabled)
	}
	if enabled && s.track(s.blend[index].set(state)) {
		s.d.BlendState(index, state)
	}
	s.setColorMask(index, mask)
}

func (s *glState) setColorMask(index int, mask gputypes.ColorWriteMask) {
	if index < len(s.colorMask) && s.track(s.colorMask[index].set(mask)) {
		s.d.ColorMask(index, mask)
	}
}

func (s *glState) setDepth(test bool, compare gputypes.CompareFunction, write bool) {
	s.enable(gl_driver.CapDepthTest, test)
	if test && s.track(s.depthFunc.set(compare)) {
		s.d.DepthFunc(compare)
	}
	s.setDepthMask(write)
}

func (s *glState) setDepthMask(write bool) {
	if s.track(s.depthMask.set(write)) {
		s.d.DepthMask(write)
	}
}

func (s *glState) setCull(mode gputypes.CullMode, front gputypes.FrontFace) {
	s.enable(gl_driver.CapCullFace, mode != gputypes.CullModeNone)
	if mode != gputypes.CullModeNone && s.track(s.cullFace.set(mode)) {
		s.d.CullFace(mode)
	}
	if s.track(s.frontFace.set(front)) {
		s.d.FrontFace(front)
	}
}

func (s *glState) setPolygonOffset(slope, constant float32) {
	on := slope != 0 || constant != 0
	s.enable(gl_driver.CapPolygonOffsetFill, on)
	if on && s.track(s.polygonOffset.set([2]float32{slope, constant})) {
		s.d.PolygonOffset(slope, constant)
	}
}

func (s *glState) setStencil(f stencilFunc, ops stencilOps, writeMask uint32) {
	s.enable(gl_driver.CapStencilTest, true)
	if s.track(s.stencilFunc.set(f)) {
		s.d.StencilFunc(f.compare, f.ref, f.mask)
	}
	if s.track(s.stencilOp.set(ops)) {
		s.d.StencilOp(ops.fail, ops.depthFail, ops.pass)
	}
	s.setStencilMask(writeMask)
}

func (s *glState) setStencilMask(mask uint32) {
	if s.track(s.stencilMask.set(mask)) {
		s.d.StencilMask(mask)
	}
}

func (s *glState) setViewport(x, y, w, h int32) {
	if s.track(s.viewport.set([4]int32{x, y, w, h})) {
		s.d.Viewport(x, y, w, h)
	}
}

// setScissor enables the scissor test for the rectangle, or disables it when r is nil.
func (s *glState) setScissor(r *[4]int32) {
	s.enable(gl_driver.CapScissorTest, r != nil)
	if r != nil && s.track(s.scissor.set(*r)) {
		s.d.Scissor(r[0], r[1], r[2], r[3])
	}
}

func (s *glState) useProgram(p gl_driver.Handle) {
	if s.track(s.program.set(p)) {
		s.d.UseProgram(p)
	}
}

func (s *glState) bindVertexArray(v gl_driver.Handle) {
	if s.track(s.vertexArray.set(v)) {
		s.d.BindVertexArray(v)
	}
}

func (s *glState) bindFramebuffer(f gl_driver.Handle) {
	if s.track(s.framebuffer.set(f)) {
		s.d.BindFramebuffer(f)
	}
}

func (s *glState) bindTexture(unit int, dim gputypes.TextureViewDimension, t gl_driver.Handle) {
	if unit >= len(s.textures) {
		return
	}
	if s.track(s.textures[unit].set(boundTexture{dim: dim, handle: t})) {
		s.d.BindTexture(uint32(unit), dim, t)
	}
}

func (s *glState) bindSampler(unit int, sm gl_driver.Handle) {
	if unit < len(s.samplers) && s.track(s.samplers[unit].set(sm)) {
		s.d.BindSampler(uint32(unit), sm)
	}
}

func (s *glState) bindUniformBuffer(index uint32, b gl_driver.Handle) {
	if cur, ok := s.uniforms[index]; ok && cur == b {
		s.skipped++
		return
	}
	s.applied++
	s.uniforms[index] = b
	s.d.BindBufferBase(gl_driver.BufferUniform, index, b)
}

// invalidateTextures forgets every unit. Texture creation and uploads bind through the active unit.
func (s *glState) invalidateTextures() {
	for i := range s.textures {
		s.textures[i].invalidate()
	}
}

// forgetTexture drops t from every unit so a recycled handle is rebound.
func (s *glState) forgetTexture(t gl_driver.Handle) {
	for i := range s.textures {
		if s.textures[i].valid && s.textures[i].v.handle == t {
			s.textures[i].invalidate()
		}
	}
}

func (s *glState) forgetSampler(sm gl_driver.Handle) {
	for i := range s.samplers {
		if s.samplers[i].valid && s.samplers[i].v == sm {
			s.samplers[i].invalidate()
		}
	}
}

func (s *glState) forgetUniformBuffer(b gl_driver.Handle) {
	for k, v := range s.uniforms {
		if v == b {
			delete(s.uniforms, k)
		}
	}
}

// takeCounts returns and resets the applied and skipped counters.
func (s *glState) takeCounts() (applied, skipped int) {
	applied, skipped = s.applied, s.skipped
	s.applied, s.skipped = 0, 0
	return applied, skipped
}
