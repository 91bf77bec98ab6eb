package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/profiler"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/gl_driver/gogl"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/wgpu_device/cogent"
	"github.com/Carmen-Shannon/oxy-graph/engine/scene"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"go.uber.org/zap"
)

// engine implements the Engine interface.
// Drives ticks and frames from the window's message loop on the thread that owns the graphics context.
type engine struct {
	mu *sync.Mutex

	logger *zap.Logger

	window      window.Window
	api         window.API
	windowOpts  []window.WindowBuilderOption
	renderer    renderer.Renderer
	rendererOps []renderer.RendererBuilderOption
	passes      pass.Graph

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRate       time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenes map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	now        func() time.Time
	lastFrame  time.Time
	lastTick   time.Time
	accumTicks time.Duration

	quitOnce     sync.Once
	shutdownOnce sync.Once
	quit         chan struct{}
}

// Engine is the main entry point for the engine.
// It owns the window, the renderer and its pass graph, and runs a single-threaded loop: each window message
// loop iteration runs the due fixed-rate ticks, then renders every active scene in ascending z-index order in
// one frame.
type Engine interface {
	// Init creates the window when none was supplied, and the renderer for the window's API, then initializes
	// the renderer.
	//
	// Parameters:
	//   - ctx: bounds device acquisition
	//
	// Returns:
	//   - error: error if initialization fails
	Init(ctx context.Context) error

	// Window returns the underlying window, nil before Init when none was supplied.
	Window() window.Window

	// Renderer returns the renderer, nil before Init when none was supplied.
	Renderer() renderer.Renderer

	// Passes returns the pass graph of the renderer, nil before Init.
	Passes() pass.Graph

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, physics, input processing, and animation updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called each render frame after the scenes rendered and before
	// the frame ends. Additional Render and Compute calls belong here.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are rendered in ascending key order; only the first clears the canvas.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key, or nil.
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	Scenes() map[int]scene.Scene

	// Run initializes the engine if needed and runs the loop until the window closes, ctx ends or Quit is
	// called, then disposes the pass graph and the renderer and closes the window.
	//
	// Returns:
	//   - error: the Init error
	Run(ctx context.Context) error

	// Quit stops the loop. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine, not yet initialized
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:       &sync.Mutex{},
		logger:   common.Logger().Named("engine"),
		scenes:   make(map[int]scene.Scene),
		profiler: profiler.NewProfiler(),
		tickRate: time.Second / 60,
		now:      time.Now,
		quit:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Init(ctx context.Context) error {
	if e.window == nil {
		e.window = window.NewWindow(append([]window.WindowBuilderOption{window.WithAPI(e.api)}, e.windowOpts...)...)
	}
	if e.renderer == nil {
		r, err := renderer.NewRenderer(e.newBackend(), e.rendererOps...)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		e.renderer = r
	}
	e.resize()
	if err := e.renderer.Init(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.passes = pass.NewGraph(e.renderer)
	e.window.SetResizeCallback(func(int, int) {
		e.resize()
	})
	e.logger.Info("engine initialized",
		zap.Stringer("api", e.window.API()),
		zap.Int("width", e.window.Width()),
		zap.Int("height", e.window.Height()))
	return nil
}

// newBackend picks the backend matching the window's client API.
func (e *engine) newBackend() renderer.Backend {
	if e.window.API() == window.APIOpenGL {
		return renderer.NewGLBackend(gogl.NewDriver(),
			renderer.WithSwapBuffers(e.window.SwapBuffers),
			renderer.WithSwapInterval(e.window.SetSwapInterval))
	}
	return renderer.NewWGPUBackend(cogent.NewOpener(e.window.SurfaceDescriptor()))
}

// resize pushes the window's logical size and pixel ratio to the renderer and the scene cameras.
func (e *engine) resize() {
	w, h := e.window.Size()
	if w <= 0 || h <= 0 {
		return
	}
	e.renderer.SetPixelRatio(e.window.PixelRatio())
	e.renderer.SetSize(uint32(w), uint32(h))
	for _, s := range e.Scenes() {
		if c := s.Camera(); c != nil {
			c.SetAspect(float32(w) / float32(h))
		}
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Passes() pass.Graph {
	return e.passes
}

func (e *engine) Run(ctx context.Context) error {
	if e.passes == nil {
		if err := e.Init(ctx); err != nil {
			return err
		}
	}

	e.lastFrame = e.now()
	e.lastTick = e.lastFrame
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quit:
			e.shutdown()
			return
		case <-ctx.Done():
			e.Quit()
			e.shutdown()
			return
		default:
		}
		e.step()
	})
	e.window.ProcessMessages()
	e.shutdown()
	return nil
}

// shutdown releases the GPU objects while the context is still alive, then closes the window.
func (e *engine) shutdown() {
	e.shutdownOnce.Do(func() {
		if e.passes != nil {
			e.passes.Dispose()
		}
		if e.renderer != nil {
			e.renderer.Dispose()
		}
		if err := e.window.Close(); err != nil {
			e.logger.Warn("close window", zap.Error(err))
		}
	})
}

// step runs one loop iteration: the due ticks, one frame, then the frame limit.
func (e *engine) step() {
	start := e.now()

	e.mu.Lock()
	rate, tick := e.tickRate, e.tickCallback
	e.mu.Unlock()
	n, rest := dueTicks(e.accumTicks+start.Sub(e.lastTick), rate)
	e.accumTicks, e.lastTick = rest, start
	for range n {
		dt := float32(rate.Seconds())
		for _, s := range e.activeScenes() {
			s.Update(dt)
		}
		if tick != nil {
			tick(dt)
		}
	}

	dt := float32(start.Sub(e.lastFrame).Seconds())
	e.lastFrame = start
	e.renderFrame(dt)

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - e.now().Sub(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// dueTicks splits elapsed into whole ticks of rate and the remainder. At most maxCatchUp ticks run per frame so a
// stall does not spiral.
func dueTicks(elapsed, rate time.Duration) (int, time.Duration) {
	const maxCatchUp = 5
	if rate <= 0 {
		return 0, 0
	}
	n := int(elapsed / rate)
	rest := elapsed - time.Duration(n)*rate
	if n > maxCatchUp {
		n, rest = maxCatchUp, 0
	}
	return n, rest
}

func (e *engine) activeScenes() []scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]int, 0, len(e.scenes))
	for k, s := range e.scenes {
		if s.Active() {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	list := make([]scene.Scene, len(keys))
	for i, k := range keys {
		list[i] = e.scenes[k]
	}
	return list
}

func (e *engine) renderFrame(dt float32) {
	r := e.renderer
	r.BeginFrame()
	clear := r.AutoClear()
	for i, s := range e.activeScenes() {
		r.SetAutoClear(clear && i == 0)
		if err := r.Render(s, s.Camera()); err != nil {
			e.logger.Error("render failed", zap.String("scene", s.Name()), zap.Error(err))
		}
	}
	r.SetAutoClear(clear)
	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	stats := r.Info().Stats()
	r.EndFrame()
	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick(stats)
	}
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
	})
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickRate = time.Duration(float64(time.Second) / fps)
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
