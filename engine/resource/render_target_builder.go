package resource

import (
	"github.com/gogpu/gputypes"
)

// RenderTargetBuilderOption is a functional option applied to a render target during construction via NewRenderTarget.
type RenderTargetBuilderOption func(*renderTarget)

// WithTargetLabel sets the debug label, also used as the prefix of the attachment labels.
func WithTargetLabel(label string) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.label = label
	}
}

// WithCount sets the number of color attachments for multiple render targets.
//
// Parameters:
//   - count: the number of color attachments
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the count option to a render target
func WithCount(count int) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.count = count
	}
}

// WithColorFormats sets the color attachment formats in index order. Missing entries default to RGBA8Unorm.
//
// Parameters:
//   - formats: the formats
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the formats option to a render target
func WithColorFormats(formats ...gputypes.TextureFormat) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.formats = formats
		rt.count = max(rt.count, len(formats))
	}
}

// WithAttachmentNames names the color attachments in index order, binding MRT output names to indices.
//
// Parameters:
//   - names: the output names
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the names option to a render target
func WithAttachmentNames(names ...string) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.names = names
		rt.count = max(rt.count, len(names))
	}
}

// WithDepth enables or disables the depth attachment. Depth is enabled by default.
func WithDepth(enabled bool) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.depth = enabled
	}
}

// WithDepthFormat sets the depth attachment format. Defaults to Depth24Plus.
func WithDepthFormat(format gputypes.TextureFormat) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.depthFormat = format
	}
}

// WithSamples sets the MSAA sample count.
//
// Parameters:
//   - samples: the sample count, 1 disables multisampling
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the samples option to a render target
func WithSamples(samples uint32) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.samples = max(samples, 1)
	}
}

// WithClearColor sets the color the attachments are cleared to.
func WithClearColor(c gputypes.Color) RenderTargetBuilderOption {
	return func(rt *renderTarget) {
		rt.clearColor = c
	}
}
