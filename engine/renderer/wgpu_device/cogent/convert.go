package cogent

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// gputypes numbers its enums independently of webgpu.h, so every enum crosses through a table. Flag sets
// (usages, stages, write masks) share bit values and are cast.

var textureFormats = map[gputypes.TextureFormat]wgpu.TextureFormat{
	gputypes.TextureFormatR8Unorm:              wgpu.TextureFormatR8Unorm,
	gputypes.TextureFormatR8Snorm:              wgpu.TextureFormatR8Snorm,
	gputypes.TextureFormatR8Uint:               wgpu.TextureFormatR8Uint,
	gputypes.TextureFormatR8Sint:               wgpu.TextureFormatR8Sint,
	gputypes.TextureFormatR16Uint:              wgpu.TextureFormatR16Uint,
	gputypes.TextureFormatR16Sint:              wgpu.TextureFormatR16Sint,
	gputypes.TextureFormatR16Float:             wgpu.TextureFormatR16Float,
	gputypes.TextureFormatRG8Unorm:             wgpu.TextureFormatRG8Unorm,
	gputypes.TextureFormatRG8Snorm:             wgpu.TextureFormatRG8Snorm,
	gputypes.TextureFormatRG8Uint:              wgpu.TextureFormatRG8Uint,
	gputypes.TextureFormatRG8Sint:              wgpu.TextureFormatRG8Sint,
	gputypes.TextureFormatR32Float:             wgpu.TextureFormatR32Float,
	gputypes.TextureFormatR32Uint:              wgpu.TextureFormatR32Uint,
	gputypes.TextureFormatR32Sint:              wgpu.TextureFormatR32Sint,
	gputypes.TextureFormatRG16Uint:             wgpu.TextureFormatRG16Uint,
	gputypes.TextureFormatRG16Sint:             wgpu.TextureFormatRG16Sint,
	gputypes.TextureFormatRG16Float:            wgpu.TextureFormatRG16Float,
	gputypes.TextureFormatRGBA8Unorm:           wgpu.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA8UnormSrgb:       wgpu.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatRGBA8Snorm:           wgpu.TextureFormatRGBA8Snorm,
	gputypes.TextureFormatRGBA8Uint:            wgpu.TextureFormatRGBA8Uint,
	gputypes.TextureFormatRGBA8Sint:            wgpu.TextureFormatRGBA8Sint,
	gputypes.TextureFormatBGRA8Unorm:           wgpu.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatBGRA8UnormSrgb:       wgpu.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGB10A2Unorm:         wgpu.TextureFormatRGB10A2Unorm,
	gputypes.TextureFormatRG32Float:            wgpu.TextureFormatRG32Float,
	gputypes.TextureFormatRG32Uint:             wgpu.TextureFormatRG32Uint,
	gputypes.TextureFormatRG32Sint:             wgpu.TextureFormatRG32Sint,
	gputypes.TextureFormatRGBA16Uint:           wgpu.TextureFormatRGBA16Uint,
	gputypes.TextureFormatRGBA16Sint:           wgpu.TextureFormatRGBA16Sint,
	gputypes.TextureFormatRGBA16Float:          wgpu.TextureFormatRGBA16Float,
	gputypes.TextureFormatRGBA32Float:          wgpu.TextureFormatRGBA32Float,
	gputypes.TextureFormatRGBA32Uint:           wgpu.TextureFormatRGBA32Uint,
	gputypes.TextureFormatRGBA32Sint:           wgpu.TextureFormatRGBA32Sint,
	gputypes.TextureFormatStencil8:             wgpu.TextureFormatStencil8,
	gputypes.TextureFormatDepth16Unorm:         wgpu.TextureFormatDepth16Unorm,
	gputypes.TextureFormatDepth24Plus:          wgpu.TextureFormatDepth24Plus,
	gputypes.TextureFormatDepth24PlusStencil8:  wgpu.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth32Float:         wgpu.TextureFormatDepth32Float,
	gputypes.TextureFormatDepth32FloatStencil8: wgpu.TextureFormatDepth32FloatStencil8,
}

func textureFormat(f gputypes.TextureFormat) wgpu.TextureFormat {
	return textureFormats[f]
}

// fromTextureFormat maps a native format back, Undefined when the format has no gputypes counterpart.
func fromTextureFormat(f wgpu.TextureFormat) gputypes.TextureFormat {
	for g, w := range textureFormats {
		if w == f {
			return g
		}
	}
	return gputypes.TextureFormatUndefined
}

var vertexFormats = map[gputypes.VertexFormat]wgpu.VertexFormat{
	gputypes.VertexFormatUint8x2:   wgpu.VertexFormatUint8x2,
	gputypes.VertexFormatUint8x4:   wgpu.VertexFormatUint8x4,
	gputypes.VertexFormatSint8x2:   wgpu.VertexFormatSint8x2,
	gputypes.VertexFormatSint8x4:   wgpu.VertexFormatSint8x4,
	gputypes.VertexFormatUnorm8x2:  wgpu.VertexFormatUnorm8x2,
	gputypes.VertexFormatUnorm8x4:  wgpu.VertexFormatUnorm8x4,
	gputypes.VertexFormatUint16x2:  wgpu.VertexFormatUint16x2,
	gputypes.VertexFormatUint16x4:  wgpu.VertexFormatUint16x4,
	gputypes.VertexFormatSint16x2:  wgpu.VertexFormatSint16x2,
	gputypes.VertexFormatSint16x4:  wgpu.VertexFormatSint16x4,
	gputypes.VertexFormatUnorm16x2: wgpu.VertexFormatUnorm16x2,
	gputypes.VertexFormatUnorm16x4: wgpu.VertexFormatUnorm16x4,
	gputypes.VertexFormatFloat16x2: wgpu.VertexFormatFloat16x2,
	gputypes.VertexFormatFloat16x4: wgpu.VertexFormatFloat16x4,
	gputypes.VertexFormatFloat32:   wgpu.VertexFormatFloat32,
	gputypes.VertexFormatFloat32x2: wgpu.VertexFormatFloat32x2,
	gputypes.VertexFormatFloat32x3: wgpu.VertexFormatFloat32x3,
	gputypes.VertexFormatFloat32x4: wgpu.VertexFormatFloat32x4,
	gputypes.VertexFormatUint32:    wgpu.VertexFormatUint32,
	gputypes.VertexFormatUint32x2:  wgpu.VertexFormatUint32x2,
	gputypes.VertexFormatUint32x3:  wgpu.VertexFormatUint32x3,
	gputypes.VertexFormatUint32x4:  wgpu.VertexFormatUint32x4,
	gputypes.VertexFormatSint32:    wgpu.VertexFormatSint32,
	gputypes.VertexFormatSint32x2:  wgpu.VertexFormatSint32x2,
	gputypes.VertexFormatSint32x3:  wgpu.VertexFormatSint32x3,
	gputypes.VertexFormatSint32x4:  wgpu.VertexFormatSint32x4,
}

func primitiveTopology(t gputypes.PrimitiveTopology) wgpu.PrimitiveTopology {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return wgpu.PrimitiveTopologyPointList
	case gputypes.PrimitiveTopologyLineList:
		return wgpu.PrimitiveTopologyLineList
	case gputypes.PrimitiveTopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case gputypes.PrimitiveTopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func frontFace(f gputypes.FrontFace) wgpu.FrontFace {
	if f == gputypes.FrontFaceCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func cullMode(c gputypes.CullMode) wgpu.CullMode {
	switch c {
	case gputypes.CullModeFront:
		return wgpu.CullModeFront
	case gputypes.CullModeBack:
		return wgpu.CullModeBack
	}
	return wgpu.CullModeNone
}

func compareFunction(c gputypes.CompareFunction) wgpu.CompareFunction {
	switch c {
	case gputypes.CompareFunctionNever:
		return wgpu.CompareFunctionNever
	case gputypes.CompareFunctionLess:
		return wgpu.CompareFunctionLess
	case gputypes.CompareFunctionEqual:
		return wgpu.CompareFunctionEqual
	case gputypes.CompareFunctionLessEqual:
		return wgpu.CompareFunctionLessEqual
	case gputypes.CompareFunctionGreater:
		return wgpu.CompareFunctionGreater
	case gputypes.CompareFunctionNotEqual:
		return wgpu.CompareFunctionNotEqual
	case gputypes.CompareFunctionGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	case gputypes.CompareFunctionAlways:
		return wgpu.CompareFunctionAlways
	}
	return wgpu.CompareFunctionUndefined
}

func stencilOperation(op gputypes.StencilOperation) wgpu.StencilOperation {
	switch op {
	case gputypes.StencilOperationZero:
		return wgpu.StencilOperationZero
	case gputypes.StencilOperationReplace:
		return wgpu.StencilOperationReplace
	case gputypes.StencilOperationInvert:
		return wgpu.StencilOperationInvert
	case gputypes.StencilOperationIncrementClamp:
		return wgpu.StencilOperationIncrementClamp
	case gputypes.StencilOperationDecrementClamp:
		return wgpu.StencilOperationDecrementClamp
	case gputypes.StencilOperationIncrementWrap:
		return wgpu.StencilOperationIncrementWrap
	case gputypes.StencilOperationDecrementWrap:
		return wgpu.StencilOperationDecrementWrap
	}
	return wgpu.StencilOperationKeep
}

func stencilFace(s gputypes.StencilFaceState) wgpu.StencilFaceState {
	compare := compareFunction(s.Compare)
	if compare == wgpu.CompareFunctionUndefined {
		compare = wgpu.CompareFunctionAlways
	}
	return wgpu.StencilFaceState{
		Compare:     compare,
		FailOp:      stencilOperation(s.FailOp),
		DepthFailOp: stencilOperation(s.DepthFailOp),
		PassOp:      stencilOperation(s.PassOp),
	}
}

func blendFactor(f gputypes.BlendFactor) wgpu.BlendFactor {
	switch f {
	case gputypes.BlendFactorZero:
		return wgpu.BlendFactorZero
	case gputypes.BlendFactorSrc:
		return wgpu.BlendFactorSrc
	case gputypes.BlendFactorOneMinusSrc:
		return wgpu.BlendFactorOneMinusSrc
	case gputypes.BlendFactorSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case gputypes.BlendFactorDst:
		return wgpu.BlendFactorDst
	case gputypes.BlendFactorOneMinusDst:
		return wgpu.BlendFactorOneMinusDst
	case gputypes.BlendFactorDstAlpha:
		return wgpu.BlendFactorDstAlpha
	case gputypes.BlendFactorOneMinusDstAlpha:
		return wgpu.BlendFactorOneMinusDstAlpha
	case gputypes.BlendFactorSrcAlphaSaturated:
		return wgpu.BlendFactorSrcAlphaSaturated
	case gputypes.BlendFactorConstant:
		return wgpu.BlendFactorConstant
	case gputypes.BlendFactorOneMinusConstant:
		return wgpu.BlendFactorOneMinusConstant
	}
	return wgpu.BlendFactorOne
}

func blendOperation(op gputypes.BlendOperation) wgpu.BlendOperation {
	switch op {
	case gputypes.BlendOperationSubtract:
		return wgpu.BlendOperationSubtract
	case gputypes.BlendOperationReverseSubtract:
		return wgpu.BlendOperationReverseSubtract
	case gputypes.BlendOperationMin:
		return wgpu.BlendOperationMin
	case gputypes.BlendOperationMax:
		return wgpu.BlendOperationMax
	}
	return wgpu.BlendOperationAdd
}

func blendComponent(c gputypes.BlendComponent) wgpu.BlendComponent {
	return wgpu.BlendComponent{
		SrcFactor: blendFactor(c.SrcFactor),
		DstFactor: blendFactor(c.DstFactor),
		Operation: blendOperation(c.Operation),
	}
}

func indexFormat(f gputypes.IndexFormat) wgpu.IndexFormat {
	if f == gputypes.IndexFormatUint16 {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

func addressMode(m gputypes.AddressMode) wgpu.AddressMode {
	switch m {
	case gputypes.AddressModeRepeat:
		return wgpu.AddressModeRepeat
	case gputypes.AddressModeMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func filterMode(m gputypes.FilterMode) wgpu.FilterMode {
	if m == gputypes.FilterModeLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func mipmapFilterMode(m gputypes.MipmapFilterMode) wgpu.MipmapFilterMode {
	if m == gputypes.MipmapFilterModeLinear {
		return wgpu.MipmapFilterModeLinear
	}
	return wgpu.MipmapFilterModeNearest
}

func textureViewDimension(d gputypes.TextureViewDimension) wgpu.TextureViewDimension {
	switch d {
	case gputypes.TextureViewDimension1D:
		return wgpu.TextureViewDimension1D
	case gputypes.TextureViewDimension2D:
		return wgpu.TextureViewDimension2D
	case gputypes.TextureViewDimension2DArray:
		return wgpu.TextureViewDimension2DArray
	case gputypes.TextureViewDimensionCube:
		return wgpu.TextureViewDimensionCube
	case gputypes.TextureViewDimensionCubeArray:
		return wgpu.TextureViewDimensionCubeArray
	case gputypes.TextureViewDimension3D:
		return wgpu.TextureViewDimension3D
	}
	return wgpu.TextureViewDimensionUndefined
}

func textureSampleType(t gputypes.TextureSampleType) wgpu.TextureSampleType {
	switch t {
	case gputypes.TextureSampleTypeFloat:
		return wgpu.TextureSampleTypeFloat
	case gputypes.TextureSampleTypeUnfilterableFloat:
		return wgpu.TextureSampleTypeUnfilterableFloat
	case gputypes.TextureSampleTypeDepth:
		return wgpu.TextureSampleTypeDepth
	case gputypes.TextureSampleTypeSint:
		return wgpu.TextureSampleTypeSint
	case gputypes.TextureSampleTypeUint:
		return wgpu.TextureSampleTypeUint
	}
	return wgpu.TextureSampleTypeUndefined
}

func samplerBindingType(t gputypes.SamplerBindingType) wgpu.SamplerBindingType {
	switch t {
	case gputypes.SamplerBindingTypeFiltering:
		return wgpu.SamplerBindingTypeFiltering
	case gputypes.SamplerBindingTypeNonFiltering:
		return wgpu.SamplerBindingTypeNonFiltering
	case gputypes.SamplerBindingTypeComparison:
		return wgpu.SamplerBindingTypeComparison
	}
	return wgpu.SamplerBindingTypeUndefined
}

func bufferBindingType(t gputypes.BufferBindingType) wgpu.BufferBindingType {
	switch t {
	case gputypes.BufferBindingTypeUniform:
		return wgpu.BufferBindingTypeUniform
	case gputypes.BufferBindingTypeStorage:
		return wgpu.BufferBindingTypeStorage
	case gputypes.BufferBindingTypeReadOnlyStorage:
		return wgpu.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BufferBindingTypeUndefined
}

func textureDimension(d gputypes.TextureDimension) wgpu.TextureDimension {
	switch d {
	case gputypes.TextureDimension1D:
		return wgpu.TextureDimension1D
	case gputypes.TextureDimension3D:
		return wgpu.TextureDimension3D
	}
	return wgpu.TextureDimension2D
}

func textureAspect(a gputypes.TextureAspect) wgpu.TextureAspect {
	switch a {
	case gputypes.TextureAspectDepthOnly:
		return wgpu.TextureAspectDepthOnly
	case gputypes.TextureAspectStencilOnly:
		return wgpu.TextureAspectStencilOnly
	}
	return wgpu.TextureAspectAll
}

func vertexStepMode(m gputypes.VertexStepMode) wgpu.VertexStepMode {
	if m == gputypes.VertexStepModeInstance {
		return wgpu.VertexStepModeInstance
	}
	return wgpu.VertexStepModeVertex
}

func loadOp(op gputypes.LoadOp) wgpu.LoadOp {
	if op == gputypes.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	return wgpu.LoadOpClear
}

func storeOp(op gputypes.StoreOp) wgpu.StoreOp {
	if op == gputypes.StoreOpDiscard {
		return wgpu.StoreOpDiscard
	}
	return wgpu.StoreOpStore
}

func color(c gputypes.Color) wgpu.Color {
	return wgpu.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

func extent(e gputypes.Extent3D) wgpu.Extent3D {
	return wgpu.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: max(e.DepthOrArrayLayers, 1)}
}

func vertexLayouts(layouts []gputypes.VertexBufferLayout) []wgpu.VertexBufferLayout {
	out := make([]wgpu.VertexBufferLayout, len(layouts))
	for i, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = wgpu.VertexAttribute{
				Format:         vertexFormats[a.Format],
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			}
		}
		out[i] = wgpu.VertexBufferLayout{
			ArrayStride: l.ArrayStride,
			StepMode:    vertexStepMode(l.StepMode),
			Attributes:  attrs,
		}
	}
	return out
}

func colorTargets(targets []gputypes.ColorTargetState) []wgpu.ColorTargetState {
	out := make([]wgpu.ColorTargetState, len(targets))
	for i, t := range targets {
		out[i] = wgpu.ColorTargetState{
			Format:    textureFormat(t.Format),
			WriteMask: wgpu.ColorWriteMask(t.WriteMask),
		}
		if t.Blend != nil {
			out[i].Blend = &wgpu.BlendState{
				Color: blendComponent(t.Blend.Color),
				Alpha: blendComponent(t.Blend.Alpha),
			}
		}
	}
	return out
}

func depthStencil(ds *gputypes.DepthStencilState) *wgpu.DepthStencilState {
	if ds == nil {
		return nil
	}
	return &wgpu.DepthStencilState{
		Format:              textureFormat(ds.Format),
		DepthWriteEnabled:   ds.DepthWriteEnabled,
		DepthCompare:        compareFunction(ds.DepthCompare),
		StencilFront:        stencilFace(ds.StencilFront),
		StencilBack:         stencilFace(ds.StencilBack),
		StencilReadMask:     ds.StencilReadMask,
		StencilWriteMask:    ds.StencilWriteMask,
		DepthBias:           ds.DepthBias,
		DepthBiasSlopeScale: ds.DepthBiasSlopeScale,
		DepthBiasClamp:      ds.DepthBiasClamp,
	}
}

func bindGroupLayout(desc *gputypes.BindGroupLayoutDescriptor) *wgpu.BindGroupLayoutDescriptor {
	out := &wgpu.BindGroupLayoutDescriptor{Label: desc.Label, Entries: make([]wgpu.BindGroupLayoutEntry, len(desc.Entries))}
	for i, e := range desc.Entries {
		le := wgpu.BindGroupLayoutEntry{Binding: e.Binding, Visibility: wgpu.ShaderStage(e.Visibility)}
		switch {
		case e.Buffer != nil:
			le.Buffer = wgpu.BufferBindingLayout{
				Type:             bufferBindingType(e.Buffer.Type),
				HasDynamicOffset: e.Buffer.HasDynamicOffset,
				MinBindingSize:   e.Buffer.MinBindingSize,
			}
		case e.Texture != nil:
			le.Texture = wgpu.TextureBindingLayout{
				SampleType:    textureSampleType(e.Texture.SampleType),
				ViewDimension: textureViewDimension(e.Texture.ViewDimension),
				Multisampled:  e.Texture.Multisampled,
			}
		case e.Sampler != nil:
			le.Sampler = wgpu.SamplerBindingLayout{Type: samplerBindingType(e.Sampler.Type)}
		}
		out.Entries[i] = le
	}
	return out
}

var features = map[gputypes.Feature]wgpu.FeatureName{
	gputypes.FeatureDepthClipControl:     wgpu.FeatureNameDepthClipControl,
	gputypes.FeatureDepth32FloatStencil8: wgpu.FeatureNameDepth32FloatStencil8,
	gputypes.FeatureTextureCompressionBC: wgpu.FeatureNameTextureCompressionBC,
	gputypes.FeatureShaderF16:            wgpu.FeatureNameShaderF16,
	gputypes.FeatureFloat32Filterable:    wgpu.FeatureNameFloat32Filterable,
	gputypes.FeatureTimestampQuery:       wgpu.FeatureNameTimestampQuery,
}
