package renderer

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/gl_driver"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// glTestDriver completes countingDriver with the object calls a whole frame makes. Every call is counted and
// created objects get increasing handles.
type glTestDriver struct {
	*countingDriver
	next gl_driver.Handle
}

var _ gl_driver.Driver = &glTestDriver{}

func newGLTestDriver() *glTestDriver {
	return &glTestDriver{countingDriver: newCountingDriver()}
}

func (d *glTestDriver) handle(call string) gl_driver.Handle {
	d.calls[call]++
	d.next++
	return d.next
}

func (d *glTestDriver) Init() error { return nil }
func (d *glTestDriver) Info() gl_driver.Info {
	return gl_driver.Info{Vendor: "test", MaxColorAttachments: 4, MaxTextureSize: 4096, MaxAnisotropy: 1, MaxUniformBindings: 36, MaxTextureUnits: 8}
}
func (d *glTestDriver) StencilFunc(gputypes.CompareFunction, uint32, uint32) { d.calls["StencilFunc"]++ }
func (d *glTestDriver) StencilOp(gputypes.StencilOperation, gputypes.StencilOperation, gputypes.StencilOperation) {
	d.calls["StencilOp"]++
}
func (d *glTestDriver) Clear(*gputypes.Color, *float32, *uint32) { d.calls["Clear"]++ }
func (d *glTestDriver) ClearBuffer(int, gputypes.Color) { d.calls["ClearBuffer"]++ }
func (d *glTestDriver) CreateProgram(string, string) (gl_driver.Handle, error) {
	return d.handle("CreateProgram"), nil
}
func (d *glTestDriver) DeleteProgram(gl_driver.Handle) { d.calls["DeleteProgram"]++ }
func (d *glTestDriver) UniformBlockBinding(gl_driver.Handle, string, uint32) { d.calls["UniformBlockBinding"]++ }
func (d *glTestDriver) SamplerUnit(gl_driver.Handle, string, int32) { d.calls["SamplerUnit"]++ }
func (d *glTestDriver) CreateBuffer(gl_driver.BufferTarget, []byte, bool) gl_driver.Handle {
	return d.handle("CreateBuffer")
}
func (d *glTestDriver) BufferSubData(gl_driver.BufferTarget, gl_driver.Handle, int, []byte) {
	d.calls["BufferSubData"]++
}
func (d *glTestDriver) DeleteBuffer(gl_driver.Handle) { d.calls["DeleteBuffer"]++ }
func (d *glTestDriver) ReadBuffer(_ gl_driver.BufferTarget, _ gl_driver.Handle, _, size int) ([]byte, error) {
	return make([]byte, size), nil
}
func (d *glTestDriver) CreateVertexArray([]gl_driver.VertexAttribute, gl_driver.Handle) gl_driver.Handle {
	return d.handle("CreateVertexArray")
}
func (d *glTestDriver) DeleteVertexArray(gl_driver.Handle) { d.calls["DeleteVertexArray"]++ }
func (d *glTestDriver) CreateTexture(gputypes.TextureDescriptor, gputypes.TextureViewDimension) (gl_driver.Handle, error) {
	return d.handle("CreateTexture"), nil
}
func (d *glTestDriver) TexImage(gl_driver.Handle, gputypes.TextureViewDimension, gputypes.TextureFormat, int, int, uint32, uint32, []byte) error {
	d.calls["TexImage"]++
	return nil
}
func (d *glTestDriver) GenerateMipmap(gl_driver.Handle, gputypes.TextureViewDimension) {
	d.calls["GenerateMipmap"]++
}
func (d *glTestDriver) DeleteTexture(gl_driver.Handle) { d.calls["DeleteTexture"]++ }
func (d *glTestDriver) CreateSampler(gputypes.SamplerDescriptor) gl_driver.Handle {
	return d.handle("CreateSampler")
}
func (d *glTestDriver) DeleteSampler(gl_driver.Handle) { d.calls["DeleteSampler"]++ }
func (d *glTestDriver) CreateFramebuffer([]gl_driver.Handle, gl_driver.Handle, gputypes.TextureFormat, uint32) (gl_driver.Handle, error) {
	return d.handle("CreateFramebuffer"), nil
}
func (d *glTestDriver) DeleteFramebuffer(gl_driver.Handle) { d.calls["DeleteFramebuffer"]++ }
func (d *glTestDriver) ReadPixels(_ int, _, _, width, height int32, _ gputypes.TextureFormat) ([]byte, error) {
	return make([]byte, width*height*4), nil
}
func (d *glTestDriver) DrawArrays(gputypes.PrimitiveTopology, int, int, int) { d.calls["DrawArrays"]++ }
func (d *glTestDriver) DrawElements(gputypes.PrimitiveTopology, gputypes.IndexFormat, int, int, int) {
	d.calls["DrawElements"]++
}
func (d *glTestDriver) Flush() { d.calls["Flush"]++ }

func newGLRenderer(t *testing.T) (Renderer, *glTestDriver, *glBackend) {
	t.Helper()
	d := newGLTestDriver()
	b := NewGLBackend(d).(*glBackend)
	r, err := NewRenderer(b, WithLogger(zap.NewNop()), WithSize(32, 32), WithMSAA(MSAAOff))
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))
	return r, d, b
}

func TestGL_EqualDrawsRepeatNoState(t *testing.T) {
	r, d, _ := newGLRenderer(t)
	defer r.Dispose()
	m := material.NewMaterial(material.WithName("glass"))
	m.SetTransparent(true)
	geo := quadGeometry()
	s := testScene{&testObject{id: 1, geo: geo, mat: m}, &testObject{id: 2, geo: geo, mat: m}}

	renderFrame(t, r, s)
	renderFrame(t, r, s)

	assert.Equal(t, 4, d.calls["DrawElements"])
	assert.Zero(t, d.calls["DrawArrays"], "indexed geometry draws with elements")
	assert.Equal(t, 1, d.calls["CreateProgram"])
	assert.Equal(t, 1, d.calls["UseProgram"])
	assert.Equal(t, 1, d.calls["EnableBlend"])
	assert.Equal(t, 1, d.calls["BlendState"])
	assert.Equal(t, 2, d.calls["Flush"])
}

func TestGL_BlendIsDiffedPerAttachment(t *testing.T) {
	r, d, b := newGLRenderer(t)
	defer r.Dispose()
	d.calls = map[string]int{}

	additive := gputypes.BlendState{
		Color: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne, Operation: gputypes.BlendOperationAdd},
		Alpha: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne, Operation: gputypes.BlendOperationAdd},
	}
	rc := &RenderContext{
		Formats: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA16Float},
		Width:   32,
		Height:  32,
	}
	state := pipeline.DefaultRenderState()
	state.Blending = []pipeline.AttachmentBlend{
		{Enabled: true, State: alphaBlend, WriteMask: gputypes.ColorWriteMaskAll},
		{Enabled: false, State: gputypes.BlendStateReplace(), WriteMask: gputypes.ColorWriteMaskAll},
	}
	gp := &glPipeline{state: state}

	b.applyRenderState(gp, rc)
	b.applyRenderState(gp, rc)
	assert.Equal(t, 2, d.calls["EnableBlend"])
	assert.Equal(t, 1, d.calls["BlendState"], "a disabled attachment sets no equation")
	assert.Equal(t, 2, d.calls["ColorMask"])

	// Enabling attachment 1 touches only index 1.
	state.Blending = []pipeline.AttachmentBlend{state.Blending[0], {Enabled: true, State: additive, WriteMask: gputypes.ColorWriteMaskAll}}
	gp.state = state
	b.applyRenderState(gp, rc)
	assert.Equal(t, 3, d.calls["EnableBlend"])
	assert.Equal(t, 2, d.calls["BlendState"])

	// Changing only the equation of attachment 1 issues one BlendState.
	state.Blending = []pipeline.AttachmentBlend{state.Blending[0], {Enabled: true, State: alphaBlend, WriteMask: gputypes.ColorWriteMaskAll}}
	gp.state = state
	b.applyRenderState(gp, rc)
	assert.Equal(t, 3, d.calls["EnableBlend"])
	assert.Equal(t, 3, d.calls["BlendState"])
	assert.Equal(t, 2, d.calls["ColorMask"])

	// A single entry covers every attachment, which already matches.
	state.Blending = state.Blending[:1]
	gp.state = state
	b.applyRenderState(gp, rc)
	assert.Equal(t, 3, d.calls["EnableBlend"])
	assert.Equal(t, 3, d.calls["BlendState"])

	// A mask change on attachment 0 leaves attachment 1 alone.
	state.Blending = []pipeline.AttachmentBlend{
		{Enabled: true, State: alphaBlend, WriteMask: gputypes.ColorWriteMaskRed},
		{Enabled: true, State: alphaBlend, WriteMask: gputypes.ColorWriteMaskAll},
	}
	gp.state = state
	b.applyRenderState(gp, rc)
	assert.Equal(t, 3, d.calls["ColorMask"])
	assert.Equal(t, 3, d.calls["BlendState"])
}
