package pass

import "github.com/gogpu/gputypes"

// PassBuilderOption is a functional option applied to a pass during construction via Graph.NewPass.
type PassBuilderOption func(*pass)

// WithResolutionScale sets the factor applied to the drawing buffer size. Defaults to 1.
//
// Parameters:
//   - scale: the factor, values below or equal to zero reset it to 1
//
// Returns:
//   - PassBuilderOption: a function that applies the scale option to a pass
func WithResolutionScale(scale float32) PassBuilderOption {
	return func(p *pass) {
		p.SetResolutionScale(scale)
	}
}

// WithPixelRatio overrides the renderer's pixel ratio for the pass.
func WithPixelRatio(ratio float32) PassBuilderOption {
	return func(p *pass) {
		p.SetPixelRatio(ratio)
	}
}

// WithOutputs names the color outputs in attachment order. Materials of the pass write them through MRT nodes.
//
// Parameters:
//   - names: the output names
//
// Returns:
//   - PassBuilderOption: a function that applies the outputs option to a pass
func WithOutputs(names ...string) PassBuilderOption {
	return func(p *pass) {
		p.names = names
	}
}

// WithFormats sets the color output formats in attachment order.
func WithFormats(formats ...gputypes.TextureFormat) PassBuilderOption {
	return func(p *pass) {
		p.formats = formats
	}
}

// WithDepth enables or disables the depth output. Depth is enabled by default.
func WithDepth(enabled bool) PassBuilderOption {
	return func(p *pass) {
		p.depth = enabled
	}
}

// WithClearColor sets the color the outputs are cleared to before each render.
func WithClearColor(c gputypes.Color) PassBuilderOption {
	return func(p *pass) {
		p.clearColor = c
	}
}
