package node

import "time"

// Frame drives the runtime updates of nodes. It counts frames and render calls, tracks time, and dispatches each
// node's Update at most once per frame, once per render call or once per object according to its UpdateType.
// A Frame belongs to the render loop and is not safe for concurrent use.
type Frame struct {
	// FrameID increases once per BeginFrame.
	FrameID uint64

	// RenderID increases once per BeginRender.
	RenderID uint64

	// Time is the number of seconds since the first frame.
	Time float64

	// DeltaTime is the number of seconds since the previous frame.
	DeltaTime float64

	// Renderer is the renderer running the frame.
	Renderer FrameRenderer

	// Camera, Scene, Object and Material describe the draw being prepared. Nodes read them through small
	// interfaces such as ModelMatrix() common.Mat4.
	Camera   any
	Scene    any
	Object   any
	Material any

	now        func() time.Time
	start      time.Time
	last       time.Time
	frameSeen  map[uint64]uint64
	renderSeen map[uint64]uint64
	beforeSeen map[uint64]uint64
	endFrame   []func()
}

// NewFrame creates a frame driver.
//
// Parameters:
//   - options: variadic list of FrameOption functions
//
// Returns:
//   - *Frame: the frame driver
func NewFrame(options ...FrameOption) *Frame {
	f := &Frame{
		now:        time.Now,
		frameSeen:  map[uint64]uint64{},
		renderSeen: map[uint64]uint64{},
		beforeSeen: map[uint64]uint64{},
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// BeginFrame starts a new frame and advances the clock.
func (f *Frame) BeginFrame() {
	now := f.now()
	if f.FrameID == 0 {
		f.start, f.last = now, now
	}
	f.FrameID++
	f.DeltaTime = now.Sub(f.last).Seconds()
	f.Time = now.Sub(f.start).Seconds()
	f.last = now
}

// BeginRender starts a render call inside the current frame.
//
// Parameters:
//   - renderer: the renderer
//   - scene: the scene being rendered
//   - camera: the camera being rendered from
func (f *Frame) BeginRender(renderer FrameRenderer, scene, camera any) {
	f.RenderID++
	f.Renderer = renderer
	f.Scene = scene
	f.Camera = camera
	f.Object = nil
	f.Material = nil
}

// SetObject selects the render object whose object-scoped nodes update next.
func (f *Frame) SetObject(object, material any) {
	f.Object = object
	f.Material = material
}

// UpdateNode runs n's Update if it has not yet run in the current scope of its update type.
//
// Parameters:
//   - n: the node to update
//
// Returns:
//   - error: the update error
func (f *Frame) UpdateNode(n Updater) error {
	switch n.UpdateType() {
	case UpdateFrame:
		if seen, ok := f.frameSeen[n.ID()]; ok && seen == f.FrameID {
			return nil
		}
		f.frameSeen[n.ID()] = f.FrameID
	case UpdateRender:
		if seen, ok := f.renderSeen[n.ID()]; ok && seen == f.RenderID {
			return nil
		}
		f.renderSeen[n.ID()] = f.RenderID
	case UpdateObject:
	default:
		return nil
	}
	return n.Update(f)
}

// UpdateBeforeNode runs n's UpdateBefore once per frame or render call according to its UpdateBeforeType.
func (f *Frame) UpdateBeforeNode(n BeforeUpdater) error {
	id := f.FrameID
	switch n.UpdateBeforeType() {
	case UpdateRender:
		id = f.RenderID
	case UpdateObject:
		return n.UpdateBefore(f)
	case UpdateNone:
		return nil
	}
	if seen, ok := f.beforeSeen[n.ID()]; ok && seen == id {
		return nil
	}
	f.beforeSeen[n.ID()] = id
	return n.UpdateBefore(f)
}

// OnEndFrame registers fn to run once when the current frame ends.
func (f *Frame) OnEndFrame(fn func()) {
	f.endFrame = append(f.endFrame, fn)
}

// EndFrame runs the end-of-frame hooks in registration order and clears them.
func (f *Frame) EndFrame() {
	hooks := f.endFrame
	f.endFrame = nil
	for _, fn := range hooks {
		fn()
	}
}
