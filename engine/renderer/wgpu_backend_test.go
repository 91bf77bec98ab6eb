package renderer

import (
	"context"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/wgpu_device"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeObject stands in for every GPU object kind.
type fakeObject struct {
	dev      *fakeDevice
	kind     string
	label    string
	size     uint64
	released bool
}

func (o *fakeObject) Release() {
	if o.released {
		o.dev.doubleReleases++
	}
	o.released = true
}

func (o *fakeObject) Size() uint64 { return o.size }

func (o *fakeObject) CreateView(*gputypes.TextureViewDescriptor) (wgpu_device.TextureView, error) {
	return o.dev.object("view", o.label, 0), nil
}

// fakeDevice records every object it creates and the commands submitted to it.
type fakeDevice struct {
	objects        []*fakeObject
	textureWrites  int
	bufferWrites   int
	draws          int
	submits        int
	doubleReleases int
	failPipelines  bool
	released       bool
}

var _ wgpu_device.Device = &fakeDevice{}

func (d *fakeDevice) object(kind, label string, size uint64) *fakeObject {
	o := &fakeObject{dev: d, kind: kind, label: label, size: size}
	d.objects = append(d.objects, o)
	return o
}

// created counts objects of kind, live returns those not yet released.
func (d *fakeDevice) created(kind string) (n int) {
	for _, o := range d.objects {
		if o.kind == kind {
			n++
		}
	}
	return n
}

func (d *fakeDevice) live(kind string) (n int) {
	for _, o := range d.objects {
		if o.kind == kind && !o.released {
			n++
		}
	}
	return n
}

func (d *fakeDevice) CreateBuffer(desc *gputypes.BufferDescriptor) (wgpu_device.Buffer, error) {
	return d.object("buffer", desc.Label, desc.Size), nil
}
func (d *fakeDevice) WriteBuffer(wgpu_device.Buffer, uint64, []byte) { d.bufferWrites++ }
func (d *fakeDevice) CreateTexture(desc *gputypes.TextureDescriptor) (wgpu_device.Texture, error) {
	return d.object("texture", desc.Label, 0), nil
}
func (d *fakeDevice) WriteTexture(wgpu_device.TextureCopy, []byte, wgpu_device.TextureDataLayout, gputypes.Extent3D) {
	d.textureWrites++
}
func (d *fakeDevice) CreateSampler(desc *gputypes.SamplerDescriptor) (wgpu_device.Sampler, error) {
	return d.object("sampler", desc.Label, 0), nil
}
func (d *fakeDevice) CreateShaderModule(desc *gputypes.ShaderModuleDescriptor) (wgpu_device.ShaderModule, error) {
	return d.object("module", desc.Label, 0), nil
}
func (d *fakeDevice) CreateBindGroupLayout(desc *gputypes.BindGroupLayoutDescriptor) (wgpu_device.BindGroupLayout, error) {
	return d.object("layout", desc.Label, 0), nil
}
func (d *fakeDevice) CreatePipelineLayout(desc *wgpu_device.PipelineLayoutDescriptor) (wgpu_device.PipelineLayout, error) {
	return d.object("pipeline-layout", desc.Label, 0), nil
}
func (d *fakeDevice) CreateBindGroup(desc *wgpu_device.BindGroupDescriptor) (wgpu_device.BindGroup, error) {
	return d.object("bind-group", desc.Label, 0), nil
}
func (d *fakeDevice) CreateRenderPipeline(desc *wgpu_device.RenderPipelineDescriptor) (wgpu_device.RenderPipeline, error) {
	if d.failPipelines {
		return nil, errors.New("validation error: bad vertex layout")
	}
	return d.object("render-pipeline", desc.Label, 0), nil
}
func (d *fakeDevice) CreateComputePipeline(desc *wgpu_device.ComputePipelineDescriptor) (wgpu_device.ComputePipeline, error) {
	return d.object("compute-pipeline", desc.Label, 0), nil
}
func (d *fakeDevice) CreateCommandEncoder(label string) (wgpu_device.CommandEncoder, error) {
	return &fakeEncoder{dev: d}, nil
}
func (d *fakeDevice) Submit(wgpu_device.CommandBuffer) { d.submits++ }
func (d *fakeDevice) ReadBuffer(context.Context, wgpu_device.Buffer, uint64, uint64) ([]byte, error) {
	return nil, errors.New("not mapped")
}
func (d *fakeDevice) HasFeature(gputypes.Feature) bool { return false }
func (d *fakeDevice) Limits() gputypes.Limits { return gputypes.Limits{} }
func (d *fakeDevice) MaxColorAttachments() int { return 8 }
func (d *fakeDevice) Release() { d.released = true }

type fakeEncoder struct {
	dev *fakeDevice
}

func (e *fakeEncoder) BeginRenderPass(*wgpu_device.RenderPassDescriptor) wgpu_device.RenderPass {
	return &fakePass{dev: e.dev}
}
func (e *fakeEncoder) BeginComputePass(string) wgpu_device.ComputePass { return nil }
func (e *fakeEncoder) CopyTextureToBuffer(wgpu_device.TextureCopy, wgpu_device.Buffer, wgpu_device.TextureDataLayout, gputypes.Extent3D) {
}
func (e *fakeEncoder) CopyBufferToBuffer(wgpu_device.Buffer, uint64, wgpu_device.Buffer, uint64, uint64) {}
func (e *fakeEncoder) Finish() (wgpu_device.CommandBuffer, error) {
	return e.dev.object("command-buffer", "", 0), nil
}
func (e *fakeEncoder) Release() {}

type fakePass struct {
	dev *fakeDevice
}

func (p *fakePass) SetPipeline(wgpu_device.RenderPipeline) {}
func (p *fakePass) SetBindGroup(uint32, wgpu_device.BindGroup) {}
func (p *fakePass) SetVertexBuffer(uint32, wgpu_device.Buffer) {}
func (p *fakePass) SetIndexBuffer(wgpu_device.Buffer, gputypes.IndexFormat) {}
func (p *fakePass) SetViewport(float32, float32, float32, float32, float32, float32) {}
func (p *fakePass) SetScissorRect(uint32, uint32, uint32, uint32) {}
func (p *fakePass) SetStencilReference(uint32) {}
func (p *fakePass) Draw(uint32, uint32, uint32, uint32) { p.dev.draws++ }
func (p *fakePass) DrawIndexed(uint32, uint32, uint32, int32, uint32) { p.dev.draws++ }
func (p *fakePass) End() {}

func newHeadlessRenderer(t *testing.T) (Renderer, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{}
	open := func(context.Context) (wgpu_device.Device, wgpu_device.Surface, error) {
		return dev, nil, nil
	}
	r, err := NewRenderer(NewWGPUBackend(open), WithLogger(zap.NewNop()), WithSize(32, 32), WithMSAA(MSAAOff))
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))
	return r, dev
}

func TestWGPU_ObjectsAreBuiltOnce(t *testing.T) {
	r, dev := newHeadlessRenderer(t)
	defer r.Dispose()
	m := material.NewMaterial(material.WithName("flat"))
	geo := quadGeometry()
	s := testScene{&testObject{id: 1, geo: geo, mat: m}, &testObject{id: 2, geo: geo, mat: m}}

	for range 3 {
		renderFrame(t, r, s)
	}

	assert.Equal(t, 6, dev.draws)
	assert.Equal(t, 3, dev.submits)
	assert.Equal(t, 1, dev.created("render-pipeline"))
	assert.Equal(t, 2, dev.created("module"))
	assert.Equal(t, 1, dev.created("pipeline-layout"))
	assert.Equal(t, 4, dev.created("bind-group"), "render, material and one object group per renderable")
	assert.LessOrEqual(t, dev.created("layout"), 3, "equal group layouts share one object")

	m.SetColor([3]float32{1, 1, 0})
	writes := dev.bufferWrites
	renderFrame(t, r, s)
	assert.Greater(t, dev.bufferWrites, writes)
	assert.Equal(t, 4, dev.created("bind-group"), "uniform writes keep the bind group")
}

func TestWGPU_TextureChangeRebuildsTheMaterialGroupAndDefersRelease(t *testing.T) {
	r, dev := newHeadlessRenderer(t)
	defer r.Dispose()
	tex := resource.NewTexture(
		resource.WithTextureLabel("albedo"),
		resource.WithFormat(gputypes.TextureFormatRGBA8Unorm),
		resource.WithImage(pixels(gputypes.TextureFormatRGBA8Unorm, 1)),
	)
	m := material.NewMaterial(material.WithName("mapped"), material.WithMap(tex))
	s := testScene{&testObject{id: 1, geo: quadGeometry(), mat: m}}

	renderFrame(t, r, s)
	groups, textures := dev.created("bind-group"), dev.created("texture")
	writes := dev.textureWrites

	// Same size: the pixels are rewritten in place and only the material group is rebuilt.
	require.NoError(t, tex.SetImage(pixels(gputypes.TextureFormatRGBA8Unorm, 2)))
	renderFrame(t, r, s)
	assert.Equal(t, writes+1, dev.textureWrites)
	assert.Equal(t, textures, dev.created("texture"))
	assert.Equal(t, groups+1, dev.created("bind-group"))
	assert.Equal(t, groups+1, dev.live("bind-group"), "the replaced group waits for the frames in flight")

	renderFrame(t, r, s)
	assert.Equal(t, groups, dev.live("bind-group"))

	// A new size reallocates the texture; the old one is released frames later.
	require.NoError(t, tex.SetImage(common4x4()))
	renderFrame(t, r, s)
	assert.Equal(t, textures+1, dev.created("texture"))
	live := dev.live("texture")
	renderFrame(t, r, s)
	renderFrame(t, r, s)
	assert.Equal(t, live-1, dev.live("texture"))
	assert.Equal(t, 1, dev.created("render-pipeline"))
}

func TestWGPU_RejectedPipelineDisablesTheObject(t *testing.T) {
	r, dev := newHeadlessRenderer(t)
	defer r.Dispose()
	dev.failPipelines = true
	m := material.NewMaterial(material.WithName("rejected"))
	s := testScene{&testObject{id: 1, geo: quadGeometry(), mat: m}}

	renderFrame(t, r, s)
	renderFrame(t, r, s)
	assert.Zero(t, dev.draws)

	dev.failPipelines = false
	m.SetTransparent(true)
	renderFrame(t, r, s)
	assert.Equal(t, 1, dev.draws)
}

func TestWGPU_DisposeReleasesEverything(t *testing.T) {
	r, dev := newHeadlessRenderer(t)
	m := material.NewMaterial(material.WithName("flat"))
	renderFrame(t, r, testScene{&testObject{id: 1, geo: quadGeometry(), mat: m}})

	r.Dispose()
	assert.True(t, dev.released)
	for _, o := range dev.objects {
		assert.Truef(t, o.released, "%s %q still alive", o.kind, o.label)
	}
	assert.Zero(t, dev.doubleReleases)
}

func common4x4() common.TextureStagingData {
	return common.TextureStagingData{Pixels: make([]byte, 4*4*4), Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm}
}
