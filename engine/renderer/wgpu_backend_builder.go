package renderer

// WGPUBackendOption is a functional option applied to the WGPU backend via NewWGPUBackend.
type WGPUBackendOption func(*wgpuBackend)

// WithFramesInFlight sets how many frames replaced GPU objects outlive their last use. Defaults to
// DefaultFramesInFlight.
//
// Parameters:
//   - n: the frame count, at least 1
//
// Returns:
//   - WGPUBackendOption: a function that applies the option
func WithFramesInFlight(n uint64) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.framesInFlight = max(n, 1)
	}
}
