package cogent

import "github.com/gogpu/gputypes"

type openConfig struct {
	forceFallback bool
	features      gputypes.Features
	maxBindGroups uint32
}

// OpenerOption is a functional option applied to an Opener via NewOpener.
type OpenerOption func(*openConfig)

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) OpenerOption {
	return func(c *openConfig) {
		c.forceFallback = force
	}
}

// WithRequiredFeatures requests the given features. Features the adapter lacks are skipped silently; query
// Device.HasFeature for the result.
//
// Parameters:
//   - f: the features to request
//
// Returns:
//   - OpenerOption: a function that applies the features option
func WithRequiredFeatures(f gputypes.Features) OpenerOption {
	return func(c *openConfig) {
		c.features = c.features.Union(f)
	}
}

// WithMaxBindGroups sets the bind group limit requested from the device. The default of 4 covers the render,
// object and material groups.
func WithMaxBindGroups(n uint32) OpenerOption {
	return func(c *openConfig) {
		if n > 0 {
			c.maxBindGroups = n
		}
	}
}
