package gogl

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/gl_driver"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/gputypes"
)

// EXT_texture_filter_anisotropic, not part of the core profile headers.
const (
	textureMaxAnisotropy    = 0x84FE
	maxTextureMaxAnisotropy = 0x84FF
)

// pixelFormat is the internal format, client format and client type of a texture format.
type pixelFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

var pixelFormats = map[gputypes.TextureFormat]pixelFormat{
	gputypes.TextureFormatR8Unorm:             {gl.R8, gl.RED, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatR8Uint:              {gl.R8UI, gl.RED_INTEGER, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatR8Sint:              {gl.R8I, gl.RED_INTEGER, gl.BYTE},
	gputypes.TextureFormatRG8Unorm:            {gl.RG8, gl.RG, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatR16Float:            {gl.R16F, gl.RED, gl.HALF_FLOAT},
	gputypes.TextureFormatRG16Float:           {gl.RG16F, gl.RG, gl.HALF_FLOAT},
	gputypes.TextureFormatR32Float:            {gl.R32F, gl.RED, gl.FLOAT},
	gputypes.TextureFormatR32Uint:             {gl.R32UI, gl.RED_INTEGER, gl.UNSIGNED_INT},
	gputypes.TextureFormatR32Sint:             {gl.R32I, gl.RED_INTEGER, gl.INT},
	gputypes.TextureFormatRG32Float:           {gl.RG32F, gl.RG, gl.FLOAT},
	gputypes.TextureFormatRGBA8Unorm:          {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatRGBA8UnormSrgb:      {gl.SRGB8_ALPHA8, gl.RGBA, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatRGBA8Uint:           {gl.RGBA8UI, gl.RGBA_INTEGER, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatRGBA8Sint:           {gl.RGBA8I, gl.RGBA_INTEGER, gl.BYTE},
	gputypes.TextureFormatBGRA8Unorm:          {gl.RGBA8, gl.BGRA, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatBGRA8UnormSrgb:      {gl.SRGB8_ALPHA8, gl.BGRA, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatRGB10A2Unorm:        {gl.RGB10_A2, gl.RGBA, gl.UNSIGNED_INT_2_10_10_10_REV},
	gputypes.TextureFormatRG11B10Ufloat:       {gl.R11F_G11F_B10F, gl.RGB, gl.UNSIGNED_INT_10F_11F_11F_REV},
	gputypes.TextureFormatRGBA16Float:         {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT},
	gputypes.TextureFormatRGBA32Float:         {gl.RGBA32F, gl.RGBA, gl.FLOAT},
	gputypes.TextureFormatRGBA32Uint:          {gl.RGBA32UI, gl.RGBA_INTEGER, gl.UNSIGNED_INT},
	gputypes.TextureFormatDepth16Unorm:        {gl.DEPTH_COMPONENT16, gl.DEPTH_COMPONENT, gl.UNSIGNED_SHORT},
	gputypes.TextureFormatDepth24Plus:         {gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT},
	gputypes.TextureFormatDepth24PlusStencil8: {gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8},
	gputypes.TextureFormatDepth32Float:        {gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT},
}

func lookupFormat(f gputypes.TextureFormat) (pixelFormat, error) {
	pf, ok := pixelFormats[f]
	if !ok {
		return pixelFormat{}, fmt.Errorf("%w: texture format %s", gl_driver.ErrUnsupported, f)
	}
	return pf, nil
}

func textureTarget(dim gputypes.TextureViewDimension, samples uint32) uint32 {
	switch dim {
	case gputypes.TextureViewDimension2DArray:
		return gl.TEXTURE_2D_ARRAY
	case gputypes.TextureViewDimensionCube:
		return gl.TEXTURE_CUBE_MAP
	case gputypes.TextureViewDimension3D:
		return gl.TEXTURE_3D
	}
	if samples > 1 {
		return gl.TEXTURE_2D_MULTISAMPLE
	}
	return gl.TEXTURE_2D
}

func capability(c gl_driver.Capability) uint32 {
	switch c {
	case gl_driver.CapCullFace:
		return gl.CULL_FACE
	case gl_driver.CapStencilTest:
		return gl.STENCIL_TEST
	case gl_driver.CapScissorTest:
		return gl.SCISSOR_TEST
	case gl_driver.CapPolygonOffsetFill:
		return gl.POLYGON_OFFSET_FILL
	case gl_driver.CapSampleAlphaToCoverage:
		return gl.SAMPLE_ALPHA_TO_COVERAGE
	case gl_driver.CapFramebufferSRGB:
		return gl.FRAMEBUFFER_SRGB
	}
	return gl.DEPTH_TEST
}

func bufferTarget(t gl_driver.BufferTarget) uint32 {
	switch t {
	case gl_driver.BufferElementArray:
		return gl.ELEMENT_ARRAY_BUFFER
	case gl_driver.BufferUniform:
		return gl.UNIFORM_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func compareFunc(f gputypes.CompareFunction) uint32 {
	switch f {
	case gputypes.CompareFunctionNever:
		return gl.NEVER
	case gputypes.CompareFunctionLess:
		return gl.LESS
	case gputypes.CompareFunctionEqual:
		return gl.EQUAL
	case gputypes.CompareFunctionLessEqual:
		return gl.LEQUAL
	case gputypes.CompareFunctionGreater:
		return gl.GREATER
	case gputypes.CompareFunctionNotEqual:
		return gl.NOTEQUAL
	case gputypes.CompareFunctionGreaterEqual:
		return gl.GEQUAL
	}
	return gl.ALWAYS
}

func stencilOp(op gputypes.StencilOperation) uint32 {
	switch op {
	case gputypes.StencilOperationZero:
		return gl.ZERO
	case gputypes.StencilOperationReplace:
		return gl.REPLACE
	case gputypes.StencilOperationInvert:
		return gl.INVERT
	case gputypes.StencilOperationIncrementClamp:
		return gl.INCR
	case gputypes.StencilOperationDecrementClamp:
		return gl.DECR
	case gputypes.StencilOperationIncrementWrap:
		return gl.INCR_WRAP
	case gputypes.StencilOperationDecrementWrap:
		return gl.DECR_WRAP
	}
	return gl.KEEP
}

func blendFactor(f gputypes.BlendFactor) uint32 {
	switch f {
	case gputypes.BlendFactorZero:
		return gl.ZERO
	case gputypes.BlendFactorSrc:
		return gl.SRC_COLOR
	case gputypes.BlendFactorOneMinusSrc:
		return gl.ONE_MINUS_SRC_COLOR
	case gputypes.BlendFactorSrcAlpha:
		return gl.SRC_ALPHA
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case gputypes.BlendFactorDst:
		return gl.DST_COLOR
	case gputypes.BlendFactorOneMinusDst:
		return gl.ONE_MINUS_DST_COLOR
	case gputypes.BlendFactorDstAlpha:
		return gl.DST_ALPHA
	case gputypes.BlendFactorOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	case gputypes.BlendFactorSrcAlphaSaturated:
		return gl.SRC_ALPHA_SATURATE
	case gputypes.BlendFactorConstant:
		return gl.CONSTANT_COLOR
	case gputypes.BlendFactorOneMinusConstant:
		return gl.ONE_MINUS_CONSTANT_COLOR
	}
	return gl.ONE
}

func blendEquation(op gputypes.BlendOperation) uint32 {
	switch op {
	case gputypes.BlendOperationSubtract:
		return gl.FUNC_SUBTRACT
	case gputypes.BlendOperationReverseSubtract:
		return gl.FUNC_REVERSE_SUBTRACT
	case gputypes.BlendOperationMin:
		return gl.MIN
	case gputypes.BlendOperationMax:
		return gl.MAX
	}
	return gl.FUNC_ADD
}

func addressMode(m gputypes.AddressMode) int32 {
	switch m {
	case gputypes.AddressModeClampToEdge:
		return gl.CLAMP_TO_EDGE
	case gputypes.AddressModeMirrorRepeat:
		return gl.MIRRORED_REPEAT
	}
	return gl.REPEAT
}

func minFilter(min gputypes.FilterMode, mip gputypes.MipmapFilterMode) int32 {
	switch {
	case min == gputypes.FilterModeNearest && mip == gputypes.MipmapFilterModeNearest:
		return gl.NEAREST_MIPMAP_NEAREST
	case min == gputypes.FilterModeNearest:
		return gl.NEAREST_MIPMAP_LINEAR
	case mip == gputypes.MipmapFilterModeNearest:
		return gl.LINEAR_MIPMAP_NEAREST
	}
	return gl.LINEAR_MIPMAP_LINEAR
}

func magFilter(f gputypes.FilterMode) int32 {
	if f == gputypes.FilterModeNearest {
		return gl.NEAREST
	}
	return gl.LINEAR
}

func drawMode(t gputypes.PrimitiveTopology) uint32 {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return gl.POINTS
	case gputypes.PrimitiveTopologyLineList:
		return gl.LINES
	case gputypes.PrimitiveTopologyLineStrip:
		return gl.LINE_STRIP
	case gputypes.PrimitiveTopologyTriangleStrip:
		return gl.TRIANGLE_STRIP
	}
	return gl.TRIANGLES
}

// vertexFormat returns the component count, component type, whether the type is normalized and whether it is
// an integer attribute read with VertexAttribIPointer.
func vertexFormat(f gputypes.VertexFormat) (size int32, xtype uint32, normalized, integer bool, err error) {
	switch f {
	case gputypes.VertexFormatFloat32:
		return 1, gl.FLOAT, false, false, nil
	case gputypes.VertexFormatFloat32x2:
		return 2, gl.FLOAT, false, false, nil
	case gputypes.VertexFormatFloat32x3:
		return 3, gl.FLOAT, false, false, nil
	case gputypes.VertexFormatFloat32x4:
		return 4, gl.FLOAT, false, false, nil
	case gputypes.VertexFormatUint32:
		return 1, gl.UNSIGNED_INT, false, true, nil
	case gputypes.VertexFormatUint32x2:
		return 2, gl.UNSIGNED_INT, false, true, nil
	case gputypes.VertexFormatUint32x3:
		return 3, gl.UNSIGNED_INT, false, true, nil
	case gputypes.VertexFormatUint32x4:
		return 4, gl.UNSIGNED_INT, false, true, nil
	case gputypes.VertexFormatSint32:
		return 1, gl.INT, false, true, nil
	case gputypes.VertexFormatSint32x2:
		return 2, gl.INT, false, true, nil
	case gputypes.VertexFormatSint32x3:
		return 3, gl.INT, false, true, nil
	case gputypes.VertexFormatSint32x4:
		return 4, gl.INT, false, true, nil
	case gputypes.VertexFormatUnorm8x4:
		return 4, gl.UNSIGNED_BYTE, true, false, nil
	case gputypes.VertexFormatFloat16x2:
		return 2, gl.HALF_FLOAT, false, false, nil
	case gputypes.VertexFormatFloat16x4:
		return 4, gl.HALF_FLOAT, false, false, nil
	}
	return 0, 0, false, false, fmt.Errorf("%w: vertex format %d", gl_driver.ErrUnsupported, f)
}

func indexType(f gputypes.IndexFormat) (uint32, int) {
	if f == gputypes.IndexFormatUint16 {
		return gl.UNSIGNED_SHORT, 2
	}
	return gl.UNSIGNED_INT, 4
}
