package node

import "time"

// FrameOption configures a Frame.
type FrameOption func(*Frame)

// WithClock replaces the wall clock, typically with a fixed-step clock in tests or offline rendering.
func WithClock(now func() time.Time) FrameOption {
	return func(f *Frame) {
		if now != nil {
			f.now = now
		}
	}
}

// WithFrameRenderer sets the renderer before the first render call.
func WithFrameRenderer(r FrameRenderer) FrameOption {
	return func(f *Frame) {
		f.Renderer = r
	}
}
