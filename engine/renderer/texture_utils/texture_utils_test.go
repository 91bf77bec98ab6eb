package texture_utils

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMipLevelCount(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 2, 2},
		{256, 256, 9},
		{256, 64, 9},
		{3, 5, 3},
		{0, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MipLevelCount(tt.w, tt.h), "%dx%d", tt.w, tt.h)
	}
}

func TestBytesPerPixel(t *testing.T) {
	assert.Equal(t, 1, BytesPerPixel(gputypes.TextureFormatR8Unorm))
	assert.Equal(t, 4, BytesPerPixel(gputypes.TextureFormatBGRA8UnormSrgb))
	assert.Equal(t, 8, BytesPerPixel(gputypes.TextureFormatRGBA16Float))
	assert.Equal(t, 16, BytesPerPixel(gputypes.TextureFormatRGBA32Float))
	assert.Equal(t, 4, BytesPerPixel(gputypes.TextureFormatDepth32Float))
}

func TestSampleType(t *testing.T) {
	assert.Equal(t, gputypes.TextureSampleTypeDepth, SampleType(gputypes.TextureFormatDepth24Plus))
	assert.Equal(t, gputypes.TextureSampleTypeFloat, SampleType(gputypes.TextureFormatRGBA8Unorm))
	assert.Equal(t, gputypes.TextureSampleTypeUint, SampleType(gputypes.TextureFormatR32Uint))
	assert.Equal(t, gputypes.TextureSampleTypeUnfilterableFloat, SampleType(gputypes.TextureFormatRGBA32Float))
}

func TestGenerateMipmaps_RGBA8(t *testing.T) {
	px := make([]byte, 4*4*4)
	for i := range px {
		px[i] = 200
	}
	levels, err := GenerateMipmaps(common.TextureStagingData{Pixels: px, Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	require.Len(t, levels, 2)

	assert.Equal(t, uint32(2), levels[0].Width)
	assert.Len(t, levels[0].Pixels, 2*2*4)
	assert.Equal(t, uint32(1), levels[1].Height)
	assert.Len(t, levels[1].Pixels, 4)
	// a flat image stays flat
	assert.Equal(t, byte(200), levels[1].Pixels[0])
}

func TestGenerateMipmaps_BoxFilters(t *testing.T) {
	levels, err := GenerateMipmaps(common.TextureStagingData{
		Pixels: []byte{0, 100, 200, 100},
		Width:  2, Height: 2,
		Format: gputypes.TextureFormatR8Unorm,
	})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, []byte{100}, levels[0].Pixels)

	f := make([]byte, 16)
	for i, v := range []float32{1, 2, 3, 6} {
		binary.LittleEndian.PutUint32(f[i*4:], math.Float32bits(v))
	}
	levels, err = GenerateMipmaps(common.TextureStagingData{Pixels: f, Width: 2, Height: 2, Format: gputypes.TextureFormatR32Float})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, math.Float32frombits(binary.LittleEndian.Uint32(levels[0].Pixels)), 1e-6)
}

func TestGenerateMipmaps_Rejects(t *testing.T) {
	_, err := GenerateMipmaps(common.TextureStagingData{Pixels: make([]byte, 16), Width: 2, Height: 2, Format: gputypes.TextureFormatDepth32Float})
	assert.Error(t, err)

	_, err = GenerateMipmaps(common.TextureStagingData{Pixels: make([]byte, 3), Width: 2, Height: 2, Format: gputypes.TextureFormatRGBA8Unorm})
	assert.Error(t, err)
}

func TestConvertFormat(t *testing.T) {
	src := common.TextureStagingData{Pixels: []byte{10, 20, 30, 255}, Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm}

	bgra, err := ConvertFormat(src, gputypes.TextureFormatBGRA8Unorm)
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 20, 10, 255}, bgra.Pixels)
	assert.Equal(t, []byte{10, 20, 30, 255}, src.Pixels, "source untouched")

	r8, err := ConvertFormat(src, gputypes.TextureFormatR8Unorm)
	require.NoError(t, err)
	assert.Equal(t, []byte{10}, r8.Pixels)

	f32, err := ConvertFormat(src, gputypes.TextureFormatRGBA32Float)
	require.NoError(t, err)
	require.Len(t, f32.Pixels, 16)
	assert.InDelta(t, 1.0, math.Float32frombits(binary.LittleEndian.Uint32(f32.Pixels[12:])), 1e-6)

	f16, err := ConvertFormat(src, gputypes.TextureFormatRGBA16Float)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3c00), binary.LittleEndian.Uint16(f16.Pixels[6:]))

	_, err = ConvertFormat(src, gputypes.TextureFormatDepth24Plus)
	assert.Error(t, err)
}

func TestConvertFormat_Srgb(t *testing.T) {
	src := common.TextureStagingData{Pixels: []byte{0, 128, 255, 128}, Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8UnormSrgb}
	lin, err := ConvertFormat(src, gputypes.TextureFormatRGBA8Unorm)
	require.NoError(t, err)
	assert.Equal(t, byte(0), lin.Pixels[0])
	assert.Equal(t, byte(55), lin.Pixels[1])
	assert.Equal(t, byte(255), lin.Pixels[2])
	assert.Equal(t, byte(128), lin.Pixels[3], "alpha is linear")
}

func TestHalfRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, -2, 0.5, 65504, 6.1035156e-05, 5.9604645e-08} {
		assert.Equal(t, v, HalfToFloat32(Float32ToHalf(v)), "%g", v)
	}
	assert.True(t, math.IsInf(float64(HalfToFloat32(Float32ToHalf(1e6))), 1))
}

func TestFromImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(2, 3, 4, 4))
	src.Set(2, 3, color.RGBA{R: 255, A: 255})
	src.Set(3, 3, color.RGBA{G: 128, B: 64, A: 255})

	img := FromImage(src, true)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(1), img.Height)
	assert.Equal(t, gputypes.TextureFormatRGBA8UnormSrgb, img.Format)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 128, 64, 255}, img.Pixels)

	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, FromImage(src, false).Format)
}
