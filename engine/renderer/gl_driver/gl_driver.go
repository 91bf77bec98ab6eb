package gl_driver

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// ErrUnsupported is returned for requests the context cannot serve, such as an unsupported texture format.
var ErrUnsupported = errors.New("gl_driver: unsupported")

// Handle names a GL object. Zero is the default object: the default framebuffer, no program, no buffer.
type Handle uint32

// Capability is a context capability toggled with Enable/Disable.
type Capability int

const (
	CapDepthTest Capability = iota
	CapCullFace
	CapStencilTest
	CapScissorTest
	CapPolygonOffsetFill
	CapSampleAlphaToCoverage
	CapFramebufferSRGB
)

// BufferTarget is the binding point of a buffer.
type BufferTarget int

const (
	BufferArray BufferTarget = iota
	BufferElementArray
	BufferUniform
)

// Info describes the context.
type Info struct {
	Vendor, Renderer, Version string

	MaxColorAttachments int
	MaxTextureSize      int
	MaxAnisotropy       float32
	MaxUniformBindings  int
	MaxTextureUnits     int
}

// VertexAttribute binds one vertex attribute location to a buffer.
type VertexAttribute struct {
	Location uint32
	Buffer   Handle
	Format   gputypes.VertexFormat
	Stride   int
	Offset   int
	Divisor  uint32
}

// Driver is the GL call surface the GL backend uses. It speaks gputypes so the backend and its tests never see
// GL enums; the gogl adapter translates. Drivers are not safe for concurrent use and must be called on the thread
// that owns the context.
type Driver interface {
	// Init loads the entry points of the current context.
	Init() error

	// Info returns the context limits read during Init.
	Info() Info

	// Enable toggles a capability.
	Enable(c Capability, on bool)

	// EnableBlend toggles blending of the draw buffer index.
	EnableBlend(index int, on bool)

	// BlendState sets the blend equation and factors of the draw buffer index.
	BlendState(index int, s gputypes.BlendState)

	// ColorMask sets the channel write mask of the draw buffer index.
	ColorMask(index int, m gputypes.ColorWriteMask)

	DepthFunc(f gputypes.CompareFunction)
	DepthMask(on bool)
	CullFace(m gputypes.CullMode)
	FrontFace(f gputypes.FrontFace)
	PolygonOffset(slope, constant float32)
	StencilFunc(f gputypes.CompareFunction, ref, mask uint32)
	StencilOp(fail, depthFail, pass gputypes.StencilOperation)
	StencilMask(mask uint32)
	Viewport(x, y, width, height int32)
	Scissor(x, y, width, height int32)

	// Clear clears the attachments of the bound framebuffer. Nil arguments leave the attachment alone.
	Clear(color *gputypes.Color, depth *float32, stencil *uint32)

	// ClearBuffer clears color attachment index of the bound framebuffer.
	ClearBuffer(index int, color gputypes.Color)

	// CreateProgram compiles and links a program.
	//
	// Returns:
	//   - Handle: the program
	//   - error: the compile or link log of the failing stage
	CreateProgram(vertex, fragment string) (Handle, error)
	DeleteProgram(p Handle)
	UseProgram(p Handle)

	// UniformBlockBinding binds the named uniform block of p to a binding point. Unknown names are ignored.
	UniformBlockBinding(p Handle, block string, binding uint32)

	// SamplerUnit points the named sampler uniform of p at a texture unit. Unknown names are ignored.
	SamplerUnit(p Handle, name string, unit int32)

	CreateBuffer(target BufferTarget, data []byte, dynamic bool) Handle
	BufferSubData(target BufferTarget, b Handle, offset int, data []byte)
	DeleteBuffer(b Handle)

	// BindBufferBase binds b to an indexed binding point.
	BindBufferBase(target BufferTarget, index uint32, b Handle)

	// ReadBuffer copies size bytes at offset of b.
	ReadBuffer(target BufferTarget, b Handle, offset, size int) ([]byte, error)

	CreateVertexArray(attributes []VertexAttribute, index Handle) Handle
	BindVertexArray(v Handle)
	DeleteVertexArray(v Handle)

	// CreateTexture allocates storage for desc viewed as dim.
	CreateTexture(desc gputypes.TextureDescriptor, dim gputypes.TextureViewDimension) (Handle, error)

	// TexImage uploads one mip level of a layer.
	TexImage(t Handle, dim gputypes.TextureViewDimension, format gputypes.TextureFormat, level, layer int, width, height uint32, data []byte) error
	GenerateMipmap(t Handle, dim gputypes.TextureViewDimension)
	DeleteTexture(t Handle)

	// BindTexture activates unit and binds t to it.
	BindTexture(unit uint32, dim gputypes.TextureViewDimension, t Handle)

	CreateSampler(desc gputypes.SamplerDescriptor) Handle
	BindSampler(unit uint32, s Handle)
	DeleteSampler(s Handle)

	// CreateFramebuffer attaches colors in order and an optional depth texture.
	CreateFramebuffer(colors []Handle, depth Handle, depthFormat gputypes.TextureFormat, samples uint32) (Handle, error)
	BindFramebuffer(f Handle)
	DeleteFramebuffer(f Handle)

	// ReadPixels reads a region of color attachment index of the bound framebuffer. A negative index reads the back
	// buffer of the default framebuffer.
	ReadPixels(index int, x, y, width, height int32, format gputypes.TextureFormat) ([]byte, error)

	DrawArrays(t gputypes.PrimitiveTopology, first, count, instances int)
	DrawElements(t gputypes.PrimitiveTopology, f gputypes.IndexFormat, first, count, instances int)

	// Flush submits queued commands.
	Flush()
}
