package renderer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingBackend accepts everything and counts what the renderer asks of it. Binding rebuilds are counted per
// group kind, the last segment of the provider label.
type recordingBackend struct {
	calls    map[string]int
	rebuilds map[string]int
	created  []string
	draws    int
}

var _ Backend = &recordingBackend{}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{calls: map[string]int{}, rebuilds: map[string]int{}}
}

func groupKind(p bind_group_provider.BindGroupProvider) string {
	kind := p.Label()[strings.LastIndex(p.Label(), "/")+1:]
	if strings.HasPrefix(kind, "object") {
		return "object"
	}
	return kind
}

func (b *recordingBackend) Type() RendererBackendType { return BackendTypeWGPU }
func (b *recordingBackend) Init(context.Context, BackendHost) error { return nil }
func (b *recordingBackend) CodeTarget() node.Target { return node.TargetWGSL }
func (b *recordingBackend) HasFeature(node.Feature) bool { return false }
func (b *recordingBackend) GetMaxAnisotropy() uint16 { return 1 }
func (b *recordingBackend) ResizeSurface(uint32, uint32) {}
func (b *recordingBackend) InitTimestampQuery(TimestampQuery, uint64) {}
func (b *recordingBackend) EndFrame() { b.calls["EndFrame"]++ }
func (b *recordingBackend) Dispose() {}

func (b *recordingBackend) Capabilities() Capabilities {
	return Capabilities{
		MaxAnisotropy:       1,
		MaxColorAttachments: 4,
		SurfaceFormat:       gputypes.TextureFormatBGRA8Unorm,
		DepthFormat:         gputypes.TextureFormatDepth24Plus,
	}
}

func (b *recordingBackend) HasFeatureAsync(node.Feature) *common.Future[bool] {
	return common.Resolved(false, nil)
}

func (b *recordingBackend) BeginRender(*RenderContext) error { b.calls["BeginRender"]++; return nil }
func (b *recordingBackend) FinishRender(*RenderContext) error { b.calls["FinishRender"]++; return nil }
func (b *recordingBackend) BeginCompute(*ComputeGroup) error { return nil }
func (b *recordingBackend) FinishCompute(*ComputeGroup) error { return nil }

func (b *recordingBackend) CreateTexture(t resource.Texture) error {
	b.calls["CreateTexture"]++
	b.created = append(b.created, t.Label())
	return nil
}
func (b *recordingBackend) UpdateTexture(resource.Texture) error { b.calls["UpdateTexture"]++; return nil }
func (b *recordingBackend) DestroyTexture(resource.Texture) { b.calls["DestroyTexture"]++ }
func (b *recordingBackend) GenerateMipmaps(resource.Texture) error { return nil }
func (b *recordingBackend) CreateSampler(resource.Texture) error { return nil }

func (b *recordingBackend) CreateAttribute(*resource.Attribute) error { b.calls["CreateAttribute"]++; return nil }
func (b *recordingBackend) UpdateAttribute(*resource.Attribute) error { b.calls["UpdateAttribute"]++; return nil }
func (b *recordingBackend) DestroyAttribute(*resource.Attribute) {}
func (b *recordingBackend) CreateIndexAttribute(*resource.Attribute) error {
	b.calls["CreateIndexAttribute"]++
	return nil
}
func (b *recordingBackend) CreateStorageAttribute(*resource.Attribute) error { return nil }

func (b *recordingBackend) CreateBindings(p bind_group_provider.BindGroupProvider) error {
	b.calls["CreateBindings"]++
	p.SetHandle(p.Label(), p.ResourceKey())
	return nil
}

func (b *recordingBackend) UpdateBindings(p bind_group_provider.BindGroupProvider) error {
	if _, key := p.Handle(); key != p.ResourceKey() {
		b.rebuilds[groupKind(p)]++
		p.SetHandle(p.Label(), p.ResourceKey())
	}
	return nil
}

func (b *recordingBackend) CreateRenderPipeline(ro *RenderObject) error {
	b.calls["CreateRenderPipeline"]++
	ro.Pipeline.SetHandle(ro.Pipeline.Key())
	return nil
}
func (b *recordingBackend) CreateComputePipeline(pipeline.Pipeline) error { return nil }
func (b *recordingBackend) NeedsRenderUpdate(*RenderObject) bool { return false }
func (b *recordingBackend) CacheKey(ro *RenderObject) uint64 { return ro.Pipeline.Key() }

func (b *recordingBackend) Draw(*RenderObject) error {
	b.draws++
	return nil
}

func (b *recordingBackend) Compute(*ComputeGroup, pipeline.Pipeline, []bind_group_provider.BindGroupProvider, [3]uint32) error {
	return nil
}

func (b *recordingBackend) ResolveTimestampsAsync(TimestampQuery) *common.Future[time.Duration] {
	return common.Resolved(time.Duration(0), nil)
}

func (b *recordingBackend) CopyTextureToBufferAsync(resource.Texture, uint32, uint32, uint32, uint32) *common.Future[[]byte] {
	return common.Resolved[[]byte](nil, ErrUnsupportedBackend)
}

func (b *recordingBackend) GetArrayBufferAsync(*resource.Attribute) *common.Future[[]byte] {
	return common.Resolved[[]byte](nil, ErrUnsupportedBackend)
}

type testObject struct {
	id  uint64
	geo resource.Geometry
	mat material.Material
}

func (o *testObject) ID() uint64 { return o.id }
func (o *testObject) Geometry() resource.Geometry { return o.geo }
func (o *testObject) Material() material.Material { return o.mat }
func (o *testObject) ModelMatrix() common.Mat4 { return common.Identity4() }

type testScene []Renderable

func (s testScene) Renderables() []Renderable { return s }

type testCamera struct{}

func (testCamera) ViewMatrix() common.Mat4 { return common.Identity4() }
func (testCamera) ProjectionMatrix() common.Mat4 { return common.Identity4() }
func (testCamera) Position() [3]float32          { return [3]float32{0, 0, 1} }

func quadGeometry() resource.Geometry {
	return resource.NewGeometry("quad",
		resource.NewFloat32Attribute("position", 3, []float32{-1, -1, 0, 1, -1, 0, 1, 1, 0, -1, 1, 0}),
		resource.NewFloat32Attribute("uv", 2, []float32{0, 1, 1, 1, 1, 0, 0, 0}),
		resource.NewIndexAttribute([]uint32{0, 1, 2, 0, 2, 3}),
	)
}

func pixels(format gputypes.TextureFormat, fill byte) common.TextureStagingData {
	px := make([]byte, 2*2*4)
	for i := range px {
		px[i] = fill
	}
	return common.TextureStagingData{Pixels: px, Width: 2, Height: 2, Format: format}
}

func newTestRenderer(t *testing.T) (Renderer, *recordingBackend) {
	t.Helper()
	b := newRecordingBackend()
	r, err := NewRenderer(b, WithLogger(zap.NewNop()), WithSize(64, 64))
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))
	t.Cleanup(r.Dispose)
	return r, b
}

func renderFrame(t *testing.T, r Renderer, s Scene) {
	t.Helper()
	r.BeginFrame()
	require.NoError(t, r.Render(s, testCamera{}))
	r.EndFrame()
}

func TestRender_BeforeInit(t *testing.T) {
	r, err := NewRenderer(newRecordingBackend(), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer r.Dispose()

	assert.ErrorIs(t, r.Render(testScene{}, testCamera{}), ErrBackendNotInitialized)
}

func TestRender_ReusesEverythingAcrossFrames(t *testing.T) {
	r, b := newTestRenderer(t)
	m := material.NewMaterial(material.WithName("flat"))
	geo := quadGeometry()
	s := testScene{&testObject{id: 1, geo: geo, mat: m}, &testObject{id: 2, geo: geo, mat: m}}

	for range 3 {
		renderFrame(t, r, s)
	}

	assert.Equal(t, 6, b.draws)
	assert.Equal(t, 1, b.calls["CreateRenderPipeline"])
	assert.Equal(t, 1, b.calls["CreateIndexAttribute"])
	assert.Equal(t, 1, b.calls["CreateAttribute"], "only the attributes the program reads are uploaded")
	// One render group, one material group and an object group per renderable.
	assert.Equal(t, 4, b.calls["CreateBindings"])
	assert.Empty(t, b.rebuilds)
	assert.EqualValues(t, 1, r.Info().Stats().Compiles)
}

func TestRender_UniformChangeDoesNotRecompile(t *testing.T) {
	r, b := newTestRenderer(t)
	m := material.NewMaterial(material.WithName("flat"))
	s := testScene{&testObject{id: 1, geo: quadGeometry(), mat: m}}

	renderFrame(t, r, s)
	m.SetColor([3]float32{0, 1, 0})
	m.SetOpacity(0.5)
	renderFrame(t, r, s)

	assert.EqualValues(t, 1, r.Info().Stats().Compiles)
	assert.Equal(t, 1, b.calls["CreateRenderPipeline"])
	assert.Empty(t, b.rebuilds, "uniform writes never rebuild a group")
}

func TestRender_ColorNodeSwapRecompiles(t *testing.T) {
	r, b := newTestRenderer(t)
	m := material.NewMaterial(material.WithName("swap"))
	s := testScene{&testObject{id: 1, geo: quadGeometry(), mat: m}}

	renderFrame(t, r, s)
	red := node.Color(1, 0, 0)
	m.SetNode(material.SlotColor, red)
	renderFrame(t, r, s)
	assert.EqualValues(t, 2, r.Info().Stats().Compiles)
	assert.Equal(t, 2, b.calls["CreateRenderPipeline"])

	// An equal graph built from new nodes hits the program cache.
	m.SetNode(material.SlotColor, node.Color(1, 0, 0))
	renderFrame(t, r, s)
	assert.EqualValues(t, 2, r.Info().Stats().Compiles)
	assert.Equal(t, 3, b.draws)
}

func TestRender_TextureVersionRebuildsOnlyTheMaterialGroup(t *testing.T) {
	r, b := newTestRenderer(t)
	tex := resource.NewTexture(
		resource.WithTextureLabel("albedo"),
		resource.WithFormat(gputypes.TextureFormatRGBA8Unorm),
		resource.WithImage(pixels(gputypes.TextureFormatRGBA8Unorm, 0x10)),
	)
	m := material.NewMaterial(material.WithName("mapped"), material.WithMap(tex))
	s := testScene{&testObject{id: 1, geo: quadGeometry(), mat: m}}

	renderFrame(t, r, s)
	assert.Equal(t, 1, b.calls["CreateTexture"])

	require.NoError(t, tex.SetImage(pixels(gputypes.TextureFormatRGBA8Unorm, 0x20)))
	renderFrame(t, r, s)

	assert.Equal(t, 1, b.calls["UpdateTexture"])
	assert.Equal(t, map[string]int{"material": 1}, b.rebuilds)
	assert.Equal(t, 1, b.calls["CreateRenderPipeline"])

	renderFrame(t, r, s)
	assert.Equal(t, 1, b.calls["UpdateTexture"])
	assert.Equal(t, map[string]int{"material": 1}, b.rebuilds)
}

func TestRender_LoadingTextureDrawsWithAPlaceholder(t *testing.T) {
	r, b := newTestRenderer(t)
	load := common.NewFuture[common.TextureStagingData]()
	tex := resource.NewTexture(
		resource.WithTextureLabel("streamed"),
		resource.WithFormat(gputypes.TextureFormatRGBA8Unorm),
		resource.WithLoad(load),
	)
	m := material.NewMaterial(material.WithName("streamed"), material.WithMap(tex))
	s := testScene{&testObject{id: 1, geo: quadGeometry(), mat: m}}

	renderFrame(t, r, s)
	assert.Equal(t, 1, b.draws)
	require.Len(t, b.created, 1)
	assert.True(t, strings.HasPrefix(b.created[0], "placeholder/"))

	load.Resolve(pixels(gputypes.TextureFormatRGBA8Unorm, 0xff), nil)
	renderFrame(t, r, s)

	assert.Equal(t, []string{b.created[0], "streamed"}, b.created)
	assert.Equal(t, map[string]int{"material": 1}, b.rebuilds)
	assert.Equal(t, 1, b.calls["CreateRenderPipeline"], "the swap keeps the pipeline")
}

func TestRender_BrokenMaterialIsSkippedUntilItChanges(t *testing.T) {
	r, b := newTestRenderer(t)
	m := material.NewMaterial(material.WithName("broken"), material.WithNode(material.SlotColor, node.ModelMatrix))
	good := material.NewMaterial(material.WithName("good"))
	s := testScene{
		&testObject{id: 1, geo: quadGeometry(), mat: m},
		&testObject{id: 2, geo: quadGeometry(), mat: good},
	}

	renderFrame(t, r, s)
	misses := r.Info().Stats().CacheMisses
	renderFrame(t, r, s)
	assert.Equal(t, 2, b.draws, "the good object keeps drawing")
	assert.Equal(t, misses, r.Info().Stats().CacheMisses, "the broken graph is not retried while unchanged")

	m.SetNode(material.SlotColor, node.Color(0, 0, 1))
	renderFrame(t, r, s)
	assert.Equal(t, 4, b.draws)
}
