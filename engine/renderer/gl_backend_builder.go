package renderer

// GLBackendOption is a functional option applied to the GL backend via NewGLBackend.
type GLBackendOption func(*glBackend)

// WithSwapBuffers sets the function that presents the default framebuffer at the end of a frame, usually the
// window's SwapBuffers. Without it frames are flushed but not presented.
func WithSwapBuffers(fn func()) GLBackendOption {
	return func(b *glBackend) {
		b.swap = fn
	}
}

// WithSwapInterval sets the function applying the present mode: 1 waits for vertical blank, 0 does not.
//
// Parameters:
//   - fn: the swap interval setter, usually glfw.SwapInterval
//
// Returns:
//   - GLBackendOption: a function that applies the swap interval option
func WithSwapInterval(fn func(interval int)) GLBackendOption {
	return func(b *glBackend) {
		b.swapInterval = fn
	}
}
