// Package gogl implements gl_driver.Driver on a desktop OpenGL 3.3 core context through go-gl.
package gogl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/gl_driver"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/texture_utils"
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/gputypes"
)

type driver struct {
	info gl_driver.Info
}

var _ gl_driver.Driver = &driver{}

// NewDriver creates a driver for the context current on the calling thread. Call Init before anything else.
func NewDriver() gl_driver.Driver {
	return &driver{}
}

func (d *driver) Init() error {
	if err := gl.Init(); err != nil {
		return fmt.Errorf("gogl: init: %w", err)
	}
	var v int32
	gl.GetIntegerv(gl.MAX_COLOR_ATTACHMENTS, &v)
	d.info.MaxColorAttachments = int(v)
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &v)
	d.info.MaxTextureSize = int(v)
	gl.GetIntegerv(gl.MAX_UNIFORM_BUFFER_BINDINGS, &v)
	d.info.MaxUniformBindings = int(v)
	gl.GetIntegerv(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS, &v)
	d.info.MaxTextureUnits = int(v)
	var aniso float32
	gl.GetFloatv(maxTextureMaxAnisotropy, &aniso)
	if gl.GetError() != gl.NO_ERROR || aniso < 1 {
		aniso = 1
	}
	d.info.MaxAnisotropy = aniso
	d.info.Vendor = gl.GoStr(gl.GetString(gl.VENDOR))
	d.info.Renderer = gl.GoStr(gl.GetString(gl.RENDERER))
	d.info.Version = gl.GoStr(gl.GetString(gl.VERSION))
	return nil
}

func (d *driver) Info() gl_driver.Info {
	return d.info
}

func (d *driver) Enable(c gl_driver.Capability, on bool) {
	if on {
		gl.Enable(capability(c))
	} else {
		gl.Disable(capability(c))
	}
}

func (d *driver) EnableBlend(index int, on bool) {
	if on {
		gl.Enablei(gl.BLEND, uint32(index))
	} else {
		gl.Disablei(gl.BLEND, uint32(index))
	}
}

// BlendState uses the ARB_draw_buffers_blend entry points; per-buffer blend functions are core only from 4.0.
func (d *driver) BlendState(index int, s gputypes.BlendState) {
	gl.BlendEquationSeparateiARB(uint32(index), blendEquation(s.Color.Operation), blendEquation(s.Alpha.Operation))
	gl.BlendFuncSeparateiARB(uint32(index),
		blendFactor(s.Color.SrcFactor), blendFactor(s.Color.DstFactor),
		blendFactor(s.Alpha.SrcFactor), blendFactor(s.Alpha.DstFactor))
}

func (d *driver) ColorMask(index int, m gputypes.ColorWriteMask) {
	gl.ColorMaski(uint32(index),
		m&gputypes.ColorWriteMaskRed != 0,
		m&gputypes.ColorWriteMaskGreen != 0,
		m&gputypes.ColorWriteMaskBlue != 0,
		m&gputypes.ColorWriteMaskAlpha != 0)
}

func (d *driver) DepthFunc(f gputypes.CompareFunction) {
	gl.DepthFunc(compareFunc(f))
}

func (d *driver) DepthMask(on bool) {
	gl.DepthMask(on)
}

func (d *driver) CullFace(m gputypes.CullMode) {
	switch m {
	case gputypes.CullModeFront:
		gl.CullFace(gl.FRONT)
	case gputypes.CullModeBack:
		gl.CullFace(gl.BACK)
	}
}

func (d *driver) FrontFace(f gputypes.FrontFace) {
	if f == gputypes.FrontFaceCW {
		gl.FrontFace(gl.CW)
	} else {
		gl.FrontFace(gl.CCW)
	}
}

func (d *driver) PolygonOffset(slope, constant float32) {
	gl.PolygonOffset(slope, constant)
}

func (d *driver) StencilFunc(f gputypes.CompareFunction, ref, mask uint32) {
	gl.StencilFunc(compareFunc(f), int32(ref), mask)
}

func (d *driver) StencilOp(fail, depthFail, pass gputypes.StencilOperation) {
	gl.StencilOp(stencilOp(fail), stencilOp(depthFail), stencilOp(pass))
}

func (d *driver) StencilMask(mask uint32) {
	gl.StencilMask(mask)
}

func (d *driver) Viewport(x, y, width, height int32) {
	gl.Viewport(x, y, width, height)
}

func (d *driver) Scissor(x, y, width, height int32) {
	gl.Scissor(x, y, width, height)
}

func (d *driver) Clear(color *gputypes.Color, depth *float32, stencil *uint32) {
	var mask uint32
	if color != nil {
		gl.ClearColor(float32(color.R), float32(color.G), float32(color.B), float32(color.A))
		mask |= gl.COLOR_BUFFER_BIT
	}
	if depth != nil {
		gl.ClearDepth(float64(*depth))
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if stencil != nil {
		gl.ClearStencil(int32(*stencil))
		mask |= gl.STENCIL_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
	}
}

func (d *driver) ClearBuffer(index int, color gputypes.Color) {
	c := [4]float32{float32(color.R), float32(color.G), float32(color.B), float32(color.A)}
	gl.ClearBufferfv(gl.COLOR, int32(index), &c[0])
}

// desktopSource rewrites the GLSL ES 3.00 header into desktop GLSL 3.30, which accepts the same body including
// its precision qualifiers.
func desktopSource(src string) string {
	if rest, ok := strings.CutPrefix(strings.TrimLeft(src, " \t\r\n"), "#version 300 es"); ok {
		return "#version 330 core" + rest
	}
	return src
}

func compileShader(kind uint32, src string) (uint32, error) {
	shader := gl.CreateShader(kind)
	csrc, free := gl.Strs(desktopSource(src) + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(shader, n, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, errors.New(strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func (d *driver) CreateProgram(vertex, fragment string) (gl_driver.Handle, error) {
	vs, err := compileShader(gl.VERTEX_SHADER, vertex)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(gl.FRAGMENT_SHADER, fragment)
	if err != nil {
		return 0, fmt.Errorf("fragment: %w", err)
	}
	defer gl.DeleteShader(fs)

	p := gl.CreateProgram()
	gl.AttachShader(p, vs)
	gl.AttachShader(p, fs)
	gl.LinkProgram(p)

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(p, n, nil, gl.Str(log))
		gl.DeleteProgram(p)
		return 0, fmt.Errorf("link: %s", strings.TrimRight(log, "\x00"))
	}
	return gl_driver.Handle(p), nil
}

func (d *driver) DeleteProgram(p gl_driver.Handle) {
	gl.DeleteProgram(uint32(p))
}

func (d *driver) UseProgram(p gl_driver.Handle) {
	gl.UseProgram(uint32(p))
}

func (d *driver) UniformBlockBinding(p gl_driver.Handle, block string, binding uint32) {
	idx := gl.GetUniformBlockIndex(uint32(p), gl.Str(block+"\x00"))
	if idx == gl.INVALID_INDEX {
		return
	}
	gl.UniformBlockBinding(uint32(p), idx, binding)
}

// SamplerUnit leaves p as the current program.
func (d *driver) SamplerUnit(p gl_driver.Handle, name string, unit int32) {
	loc := gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
	if loc < 0 {
		return
	}
	gl.UseProgram(uint32(p))
	gl.Uniform1i(loc, unit)
}

func (d *driver) CreateBuffer(target gl_driver.BufferTarget, data []byte, dynamic bool) gl_driver.Handle {
	var b uint32
	gl.GenBuffers(1, &b)
	t := bufferTarget(target)
	usage := uint32(gl.STATIC_DRAW)
	if dynamic {
		usage = gl.DYNAMIC_DRAW
	}
	gl.BindBuffer(t, b)
	if len(data) > 0 {
		gl.BufferData(t, len(data), gl.Ptr(data), usage)
	}
	return gl_driver.Handle(b)
}

func (d *driver) BufferSubData(target gl_driver.BufferTarget, b gl_driver.Handle, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	t := bufferTarget(target)
	gl.BindBuffer(t, uint32(b))
	gl.BufferSubData(t, offset, len(data), gl.Ptr(data))
}

func (d *driver) DeleteBuffer(b gl_driver.Handle) {
	h := uint32(b)
	gl.DeleteBuffers(1, &h)
}

func (d *driver) BindBufferBase(target gl_driver.BufferTarget, index uint32, b gl_driver.Handle) {
	gl.BindBufferBase(bufferTarget(target), index, uint32(b))
}

func (d *driver) ReadBuffer(target gl_driver.BufferTarget, b gl_driver.Handle, offset, size int) ([]byte, error) {
	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}
	t := bufferTarget(target)
	gl.BindBuffer(t, uint32(b))
	gl.GetBufferSubData(t, offset, size, gl.Ptr(out))
	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, fmt.Errorf("gogl: read buffer: error 0x%x", e)
	}
	return out, nil
}

func (d *driver) CreateVertexArray(attributes []gl_driver.VertexAttribute, index gl_driver.Handle) gl_driver.Handle {
	var v uint32
	gl.GenVertexArrays(1, &v)
	gl.BindVertexArray(v)
	for _, a := range attributes {
		size, xtype, normalized, integer, err := vertexFormat(a.Format)
		if err != nil {
			continue
		}
		gl.BindBuffer(gl.ARRAY_BUFFER, uint32(a.Buffer))
		gl.EnableVertexAttribArray(a.Location)
		if integer {
			gl.VertexAttribIPointerWithOffset(a.Location, size, xtype, int32(a.Stride), uintptr(a.Offset))
		} else {
			gl.VertexAttribPointerWithOffset(a.Location, size, xtype, normalized, int32(a.Stride), uintptr(a.Offset))
		}
		gl.VertexAttribDivisor(a.Location, a.Divisor)
	}
	if index != 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(index))
	}
	gl.BindVertexArray(0)
	return gl_driver.Handle(v)
}

func (d *driver) BindVertexArray(v gl_driver.Handle) {
	gl.BindVertexArray(uint32(v))
}

func (d *driver) DeleteVertexArray(v gl_driver.Handle) {
	h := uint32(v)
	gl.DeleteVertexArrays(1, &h)
}

func (d *driver) CreateTexture(desc gputypes.TextureDescriptor, dim gputypes.TextureViewDimension) (gl_driver.Handle, error) {
	pf, err := lookupFormat(desc.Format)
	if err != nil {
		return 0, err
	}
	var t uint32
	gl.GenTextures(1, &t)
	target := textureTarget(dim, desc.SampleCount)
	gl.BindTexture(target, t)

	w, h := int32(desc.Size.Width), int32(desc.Size.Height)
	layers := int32(max(desc.Size.DepthOrArrayLayers, 1))
	mips := int32(max(desc.MipLevelCount, 1))
	switch target {
	case gl.TEXTURE_2D_MULTISAMPLE:
		gl.TexImage2DMultisample(target, int32(desc.SampleCount), uint32(pf.internal), w, h, true)
		return gl_driver.Handle(t), nil
	case gl.TEXTURE_2D_ARRAY, gl.TEXTURE_3D:
		for level := int32(0); level < mips; level++ {
			depth := layers
			if target == gl.TEXTURE_3D {
				depth = max(layers>>level, 1)
			}
			gl.TexImage3D(target, level, pf.internal, max(w>>level, 1), max(h>>level, 1), depth, 0, pf.format, pf.xtype, nil)
		}
	case gl.TEXTURE_CUBE_MAP:
		for level := int32(0); level < mips; level++ {
			for face := uint32(0); face < 6; face++ {
				gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+face, level, pf.internal, max(w>>level, 1), max(h>>level, 1), 0, pf.format, pf.xtype, nil)
			}
		}
	default:
		for level := int32(0); level < mips; level++ {
			gl.TexImage2D(target, level, pf.internal, max(w>>level, 1), max(h>>level, 1), 0, pf.format, pf.xtype, nil)
		}
	}
	gl.TexParameteri(target, gl.TEXTURE_MAX_LEVEL, mips-1)
	return gl_driver.Handle(t), nil
}

func (d *driver) TexImage(t gl_driver.Handle, dim gputypes.TextureViewDimension, format gputypes.TextureFormat, level, layer int, width, height uint32, data []byte) error {
	pf, err := lookupFormat(format)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	target := textureTarget(dim, 1)
	gl.BindTexture(target, uint32(t))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	switch target {
	case gl.TEXTURE_2D_ARRAY, gl.TEXTURE_3D:
		gl.TexSubImage3D(target, int32(level), 0, 0, int32(layer), int32(width), int32(height), 1, pf.format, pf.xtype, gl.Ptr(data))
	case gl.TEXTURE_CUBE_MAP:
		gl.TexSubImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(layer), int32(level), 0, 0, int32(width), int32(height), pf.format, pf.xtype, gl.Ptr(data))
	default:
		gl.TexSubImage2D(target, int32(level), 0, 0, int32(width), int32(height), pf.format, pf.xtype, gl.Ptr(data))
	}
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("gogl: tex image: error 0x%x", e)
	}
	return nil
}

func (d *driver) GenerateMipmap(t gl_driver.Handle, dim gputypes.TextureViewDimension) {
	target := textureTarget(dim, 1)
	gl.BindTexture(target, uint32(t))
	gl.GenerateMipmap(target)
}

func (d *driver) DeleteTexture(t gl_driver.Handle) {
	h := uint32(t)
	gl.DeleteTextures(1, &h)
}

func (d *driver) BindTexture(unit uint32, dim gputypes.TextureViewDimension, t gl_driver.Handle) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(textureTarget(dim, 1), uint32(t))
}

func (d *driver) CreateSampler(desc gputypes.SamplerDescriptor) gl_driver.Handle {
	var s uint32
	gl.GenSamplers(1, &s)
	gl.SamplerParameteri(s, gl.TEXTURE_WRAP_S, addressMode(desc.AddressModeU))
	gl.SamplerParameteri(s, gl.TEXTURE_WRAP_T, addressMode(desc.AddressModeV))
	gl.SamplerParameteri(s, gl.TEXTURE_WRAP_R, addressMode(desc.AddressModeW))
	gl.SamplerParameteri(s, gl.TEXTURE_MAG_FILTER, magFilter(desc.MagFilter))
	if desc.MipmapFilter == gputypes.MipmapFilterModeUndefined {
		gl.SamplerParameteri(s, gl.TEXTURE_MIN_FILTER, magFilter(desc.MinFilter))
	} else {
		gl.SamplerParameteri(s, gl.TEXTURE_MIN_FILTER, minFilter(desc.MinFilter, desc.MipmapFilter))
	}
	gl.SamplerParameterf(s, gl.TEXTURE_MIN_LOD, desc.LodMinClamp)
	if desc.LodMaxClamp > 0 {
		gl.SamplerParameterf(s, gl.TEXTURE_MAX_LOD, desc.LodMaxClamp)
	}
	if desc.Compare != gputypes.CompareFunctionUndefined {
		gl.SamplerParameteri(s, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
		gl.SamplerParameteri(s, gl.TEXTURE_COMPARE_FUNC, int32(compareFunc(desc.Compare)))
	}
	if desc.MaxAnisotropy > 1 && d.info.MaxAnisotropy > 1 {
		gl.SamplerParameterf(s, textureMaxAnisotropy, min(float32(desc.MaxAnisotropy), d.info.MaxAnisotropy))
	}
	return gl_driver.Handle(s)
}

func (d *driver) BindSampler(unit uint32, s gl_driver.Handle) {
	gl.BindSampler(unit, uint32(s))
}

func (d *driver) DeleteSampler(s gl_driver.Handle) {
	h := uint32(s)
	gl.DeleteSamplers(1, &h)
}

func (d *driver) CreateFramebuffer(colors []gl_driver.Handle, depth gl_driver.Handle, depthFormat gputypes.TextureFormat, samples uint32) (gl_driver.Handle, error) {
	var f uint32
	gl.GenFramebuffers(1, &f)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f)

	target := textureTarget(gputypes.TextureViewDimension2D, samples)
	buffers := make([]uint32, len(colors))
	for i, c := range colors {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(i), target, uint32(c), 0)
		buffers[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	if depth != 0 {
		attachment := uint32(gl.DEPTH_ATTACHMENT)
		if depthFormat.HasStencil() {
			attachment = gl.DEPTH_STENCIL_ATTACHMENT
		}
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachment, target, uint32(depth), 0)
	}
	if len(buffers) > 0 {
		gl.DrawBuffers(int32(len(buffers)), &buffers[0])
	} else {
		gl.DrawBuffer(gl.NONE)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &f)
		return 0, fmt.Errorf("gogl: incomplete framebuffer: status 0x%x", status)
	}
	return gl_driver.Handle(f), nil
}

func (d *driver) BindFramebuffer(f gl_driver.Handle) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(f))
}

func (d *driver) DeleteFramebuffer(f gl_driver.Handle) {
	h := uint32(f)
	gl.DeleteFramebuffers(1, &h)
}

func (d *driver) ReadPixels(index int, x, y, width, height int32, format gputypes.TextureFormat) ([]byte, error) {
	pf, err := lookupFormat(format)
	if err != nil {
		return nil, err
	}
	size := int(width) * int(height) * texture_utils.BytesPerPixel(format)
	if size == 0 {
		return nil, nil
	}
	out := make([]byte, size)
	if index < 0 {
		gl.ReadBuffer(gl.BACK)
	} else {
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(index))
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(x, y, width, height, pf.format, pf.xtype, gl.Ptr(out))
	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, fmt.Errorf("gogl: read pixels: error 0x%x", e)
	}
	return out, nil
}

func (d *driver) DrawArrays(t gputypes.PrimitiveTopology, first, count, instances int) {
	gl.DrawArraysInstanced(drawMode(t), int32(first), int32(count), int32(max(instances, 1)))
}

func (d *driver) DrawElements(t gputypes.PrimitiveTopology, f gputypes.IndexFormat, first, count, instances int) {
	xtype, size := indexType(f)
	gl.DrawElementsInstanced(drawMode(t), int32(count), xtype, gl.PtrOffset(first*size), int32(max(instances, 1)))
}

func (d *driver) Flush() {
	gl.Flush()
}
