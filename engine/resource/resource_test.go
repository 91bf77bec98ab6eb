package resource

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTexture_SetImageBumpsVersion(t *testing.T) {
	tex := NewTexture(WithSize(2, 2))
	assert.False(t, tex.Ready())
	v := tex.Version()

	err := tex.SetImage(common.TextureStagingData{Pixels: make([]byte, 16), Width: 2, Height: 2})
	require.NoError(t, err)
	assert.True(t, tex.Ready())
	assert.Greater(t, tex.Version(), v)
}

func TestTexture_SetImageRejectsMismatch(t *testing.T) {
	tex := NewTexture(WithFormat(gputypes.TextureFormatR8Unorm))

	err := tex.SetImage(common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm})
	assert.Error(t, err)

	err = tex.SetImage(common.TextureStagingData{Pixels: make([]byte, 3), Width: 2, Height: 2})
	assert.Error(t, err)
	assert.False(t, tex.Ready())
}

func TestTexture_LoadAndPoll(t *testing.T) {
	f := common.NewFuture[common.TextureStagingData]()
	tex := NewTexture(WithLoad(f))

	assert.False(t, tex.Poll())
	assert.False(t, tex.Ready())

	f.Resolve(common.TextureStagingData{Pixels: make([]byte, 4*4*4), Width: 4, Height: 4}, nil)
	assert.True(t, tex.Poll())
	assert.True(t, tex.Ready())
	assert.Equal(t, uint32(4), tex.Width())
	assert.False(t, tex.Poll(), "load is applied once")
}

func TestTexture_LoadFailure(t *testing.T) {
	tex := NewTexture()
	tex.Load(common.Resolved(common.TextureStagingData{}, errors.New("decode failed")))

	assert.False(t, tex.Poll())
	assert.False(t, tex.Ready())
	assert.EqualError(t, tex.LoadError(), "decode failed")
}

func TestTexture_Descriptor(t *testing.T) {
	tex := NewTexture(WithSize(256, 128), WithMipmaps(true), WithDimension(TextureCube, 1))
	d := tex.Descriptor()
	assert.Equal(t, uint32(9), d.MipLevelCount)
	assert.Equal(t, uint32(6), d.Size.DepthOrArrayLayers)
	assert.Equal(t, gputypes.TextureViewDimensionCube, tex.ViewDimension())
	assert.Equal(t, gputypes.TextureSampleTypeFloat, tex.SampleType())
}

func TestTexture_DisposeNotifiesOnce(t *testing.T) {
	tex := NewTexture()
	calls := 0
	tex.OnDispose(func(Texture) { calls++ })
	tex.Dispose()
	tex.Dispose()
	assert.Equal(t, 1, calls)
	assert.True(t, tex.Disposed())
}

func TestAttribute(t *testing.T) {
	a := NewFloat32Attribute("position", 3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	assert.Equal(t, 3, a.Count())
	assert.Equal(t, 12, a.Stride())

	f, err := a.VertexFormat()
	require.NoError(t, err)
	assert.Equal(t, gputypes.VertexFormatFloat32x3, f)

	v := a.Version()
	require.NoError(t, a.Update(12, make([]byte, 12)))
	assert.Greater(t, a.Version(), v)
	assert.Equal(t, [][2]int{{12, 12}}, a.TakeUpdateRanges())
	assert.Empty(t, a.TakeUpdateRanges())

	assert.Error(t, a.Update(30, make([]byte, 12)))

	bad := NewAttribute("m", AttributeInstanced, ComponentFloat32, 16, nil)
	_, err = bad.VertexFormat()
	assert.Error(t, err)
}

func TestGeometry_DrawCountAndBounds(t *testing.T) {
	pos := NewFloat32Attribute("position", 3, []float32{-1, 0, 0, 1, 0, 0, 0, 2, 0, 0, -2, 0})
	g := NewGeometry("quad", pos)
	assert.Equal(t, 4, g.DrawCount())

	g.SetIndex(NewIndexAttribute([]uint32{0, 1, 2, 0, 2, 3}))
	assert.Equal(t, 6, g.DrawCount())
	g.SetDrawRange(3, -1)
	assert.Equal(t, 3, g.DrawCount())

	center, radius := g.BoundingSphere()
	assert.Equal(t, [3]float32{0, 0, 0}, center)
	assert.InDelta(t, 2.0, radius, 1e-6)

	v := g.Version()
	g.SetAttribute(NewFloat32Attribute("uv", 2, make([]float32, 8)))
	assert.Greater(t, g.Version(), v)
	assert.Len(t, g.Attributes(), 2)
	assert.Equal(t, "position", g.Attributes()[0].Name())
}

func TestGeometry_IndexAttributeBecomesTheIndex(t *testing.T) {
	pos := NewFloat32Attribute("position", 3, []float32{-1, -1, 0, 1, -1, 0, 1, 1, 0, -1, 1, 0})
	idx := NewIndexAttribute([]uint32{0, 1, 2, 0, 2, 3})
	g := NewGeometry("quad", pos, idx)

	assert.Same(t, idx, g.Index())
	require.Len(t, g.Attributes(), 1)
	assert.Same(t, pos, g.Attributes()[0])
	assert.Equal(t, 6, g.DrawCount())
}

func TestRenderTarget(t *testing.T) {
	rt, err := NewRenderTarget(64, 32,
		WithColorFormats(gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatRGBA8Unorm),
		WithAttachmentNames("output", "normal"),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, rt.Count())
	assert.Equal(t, gputypes.TextureFormatDepth24Plus, rt.DepthFormat())
	assert.True(t, rt.Texture().Ready())
	assert.Equal(t, rt.Textures()[1], rt.TextureByName("normal"))

	v, tv := rt.Version(), rt.Texture().Version()
	rt.SetSize(64, 32)
	assert.Equal(t, v, rt.Version(), "same size is a no-op")
	rt.SetSize(128, 64)
	assert.Greater(t, rt.Version(), v)
	assert.Greater(t, rt.Texture().Version(), tv)
	assert.Equal(t, uint32(128), rt.DepthTexture().Width())

	rt.Dispose()
	assert.True(t, rt.Texture().Disposed())
}

func TestRenderTarget_Invalid(t *testing.T) {
	_, err := NewRenderTarget(1, 1, WithColorFormats(gputypes.TextureFormatDepth32Float))
	assert.Error(t, err)

	_, err = NewRenderTarget(1, 1, WithDepthFormat(gputypes.TextureFormatRGBA8Unorm))
	assert.Error(t, err)

	rt, err := NewRenderTarget(1, 1, WithDepth(false))
	require.NoError(t, err)
	assert.Nil(t, rt.DepthTexture())
	assert.Equal(t, gputypes.TextureFormatUndefined, rt.DepthFormat())
}
