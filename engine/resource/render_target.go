package resource

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// renderTarget is the implementation of the RenderTarget interface.
type renderTarget struct {
	mu *sync.Mutex

	id          uint64
	label       string
	width       uint32
	height      uint32
	count       int
	formats     []gputypes.TextureFormat
	names       []string
	depth       bool
	depthFormat gputypes.TextureFormat
	samples     uint32
	clearColor  gputypes.Color

	textures     []Texture
	depthTexture Texture

	version uint64

	events disposer[RenderTarget]
}

// RenderTarget is an offscreen framebuffer: one or more color attachments (MRT) and an optional depth attachment,
// all sized together. Resizing bumps the version of the target and of every attachment.
type RenderTarget interface {
	// ID returns the process-unique identifier.
	ID() uint64

	// Label returns the debug label.
	Label() string

	// Width returns the attachment width in pixels.
	Width() uint32

	// Height returns the attachment height in pixels.
	Height() uint32

	// SetSize resizes every attachment. A no-op when the size is unchanged.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	SetSize(width, height uint32)

	// Count returns the number of color attachments.
	Count() int

	// Texture returns the first color attachment.
	Texture() Texture

	// Names returns the attachment names in location order. Unnamed attachments are called "output" for the
	// first and "colorN" for the others.
	Names() []string

	// Textures returns all color attachments in attachment index order.
	Textures() []Texture

	// TextureByName returns the color attachment with the given MRT output name, or nil.
	TextureByName(name string) Texture

	// AttachmentIndex returns the attachment index bound to an MRT output name.
	//
	// Returns:
	//   - int: the attachment index
	//   - bool: false when no attachment has the name
	AttachmentIndex(name string) (int, bool)

	// DepthTexture returns the depth attachment, or nil.
	DepthTexture() Texture

	// Formats returns the color attachment formats in index order.
	Formats() []gputypes.TextureFormat

	// DepthFormat returns the depth format, or TextureFormatUndefined without depth.
	DepthFormat() gputypes.TextureFormat

	// SampleCount returns the MSAA sample count.
	SampleCount() uint32

	// ClearColor returns the color attachments are cleared to.
	ClearColor() gputypes.Color

	// Version returns the mutation counter.
	Version() uint64

	// Dispose releases the target and its attachments.
	Dispose()

	// Disposed reports whether Dispose was called.
	Disposed() bool

	// OnDispose registers a listener invoked when the target is disposed.
	OnDispose(fn func(RenderTarget))
}

var _ RenderTarget = &renderTarget{}

// NewRenderTarget creates a RenderTarget configured with the provided options.
//
// Parameters:
//   - width: the initial width in pixels
//   - height: the initial height in pixels
//   - options: variadic list of RenderTargetBuilderOption functions
//
// Returns:
//   - RenderTarget: the new render target
//   - error: an error if the attachment configuration is invalid
func NewRenderTarget(width, height uint32, options ...RenderTargetBuilderOption) (RenderTarget, error) {
	rt := &renderTarget{
		mu:          &sync.Mutex{},
		id:          NextID(),
		width:       max(width, 1),
		height:      max(height, 1),
		count:       1,
		depth:       true,
		depthFormat: gputypes.TextureFormatDepth24Plus,
		samples:     1,
		clearColor:  gputypes.Color{A: 1},
		version:     1,
	}
	for _, opt := range options {
		opt(rt)
	}
	if rt.label == "" {
		rt.label = fmt.Sprintf("render-target-%d", rt.id)
	}
	if rt.count < 1 {
		return nil, fmt.Errorf("render target %q: attachment count must be at least 1", rt.label)
	}
	for len(rt.formats) < rt.count {
		rt.formats = append(rt.formats, gputypes.TextureFormatRGBA8Unorm)
	}
	if len(rt.names) > rt.count {
		return nil, fmt.Errorf("render target %q: %d attachment names for %d attachments", rt.label, len(rt.names), rt.count)
	}
	if rt.depth && !rt.depthFormat.HasDepth() {
		return nil, fmt.Errorf("render target %q: depth format %s has no depth aspect", rt.label, rt.depthFormat)
	}

	for i := range rt.count {
		if rt.formats[i].IsDepthStencil() {
			return nil, fmt.Errorf("render target %q: color attachment %d uses depth format %s", rt.label, i, rt.formats[i])
		}
		rt.textures = append(rt.textures, NewTexture(
			WithTextureLabel(fmt.Sprintf("%s-color%d", rt.label, i)),
			WithFormat(rt.formats[i]),
			WithSize(rt.width, rt.height),
			WithSampleCount(rt.samples),
			WithRenderTarget(),
		))
	}
	if rt.depth {
		rt.depthTexture = NewTexture(
			WithTextureLabel(rt.label+"-depth"),
			WithFormat(rt.depthFormat),
			WithSize(rt.width, rt.height),
			WithSampleCount(rt.samples),
			WithRenderTarget(),
		)
	} else {
		rt.depthFormat = gputypes.TextureFormatUndefined
	}
	return rt, nil
}

func (rt *renderTarget) ID() uint64 {
	return rt.id
}

func (rt *renderTarget) Label() string {
	return rt.label
}

func (rt *renderTarget) Width() uint32 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.width
}

func (rt *renderTarget) Height() uint32 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.height
}

func (rt *renderTarget) SetSize(width, height uint32) {
	width, height = max(width, 1), max(height, 1)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.width == width && rt.height == height {
		return
	}
	rt.width, rt.height = width, height
	for _, t := range rt.textures {
		t.Resize(width, height)
	}
	if rt.depthTexture != nil {
		rt.depthTexture.Resize(width, height)
	}
	rt.version++
}

func (rt *renderTarget) Count() int {
	return rt.count
}

func (rt *renderTarget) Texture() Texture {
	return rt.textures[0]
}

func (rt *renderTarget) Textures() []Texture {
	out := make([]Texture, len(rt.textures))
	copy(out, rt.textures)
	return out
}

func (rt *renderTarget) Names() []string {
	out := make([]string, rt.count)
	for i := range out {
		switch {
		case i < len(rt.names) && rt.names[i] != "":
			out[i] = rt.names[i]
		case i == 0:
			out[i] = "output"
		default:
			out[i] = fmt.Sprintf("color%d", i)
		}
	}
	return out
}

func (rt *renderTarget) TextureByName(name string) Texture {
	if i, ok := rt.AttachmentIndex(name); ok {
		return rt.textures[i]
	}
	return nil
}

func (rt *renderTarget) AttachmentIndex(name string) (int, bool) {
	for i, n := range rt.Names() {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (rt *renderTarget) DepthTexture() Texture {
	return rt.depthTexture
}

func (rt *renderTarget) Formats() []gputypes.TextureFormat {
	out := make([]gputypes.TextureFormat, rt.count)
	copy(out, rt.formats)
	return out
}

func (rt *renderTarget) DepthFormat() gputypes.TextureFormat {
	return rt.depthFormat
}

func (rt *renderTarget) SampleCount() uint32 {
	return rt.samples
}

func (rt *renderTarget) ClearColor() gputypes.Color {
	return rt.clearColor
}

func (rt *renderTarget) Version() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.version
}

func (rt *renderTarget) Dispose() {
	if rt.events.isDisposed() {
		return
	}
	for _, t := range rt.textures {
		t.Dispose()
	}
	if rt.depthTexture != nil {
		rt.depthTexture.Dispose()
	}
	rt.events.dispose(rt)
}

func (rt *renderTarget) Disposed() bool {
	return rt.events.isDisposed()
}

func (rt *renderTarget) OnDispose(fn func(RenderTarget)) {
	rt.events.onDispose(fn)
}
