package scene

import (
	"math"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/game_object"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the object count from which Update fans out across workers.
const parallelThreshold = 256

// Scene is an ordered collection of game objects viewed through one camera. It implements renderer.Scene:
// Renderables lists the enabled objects in insertion order, skipping those outside the camera frustum.
// Scenes can be hot-swapped via the Active flag. Safe for concurrent use.
type Scene interface {
	renderer.Scene

	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	SetCamera(cam camera.Camera)

	// Count returns the number of objects.
	Count() int

	// Add appends obj. Adding an object twice keeps its first position.
	//
	// Parameters:
	//   - obj: the object
	//
	// Returns:
	//   - uint64: the object's ID
	Add(obj game_object.GameObject) uint64

	// Get returns the object with the given ID, or nil.
	Get(id uint64) game_object.GameObject

	// Remove drops the object with the given ID.
	Remove(id uint64)

	// Clear drops every object.
	Clear()

	// Objects returns every object in insertion order.
	Objects() []game_object.GameObject

	// CullingDisabled reports whether Renderables skips the frustum test.
	CullingDisabled() bool

	// SetCullingDisabled sets whether Renderables skips the frustum test.
	SetCullingDisabled(disabled bool)

	// Update advances every object by dt seconds and refreshes the camera from its controller.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Update(dt float32)
}

type scene struct {
	mu *sync.Mutex

	name            string
	active          bool
	camera          camera.Camera
	objects         []game_object.GameObject
	index           map[uint64]int
	cullingDisabled bool
	workers         int
}

var _ Scene = &scene{}

// NewScene creates an active, empty scene.
//
// Parameters:
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:      &sync.Mutex{},
		name:    "scene",
		active:  true,
		index:   map[uint64]int{},
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.camera == nil {
		s.camera = camera.NewCamera()
	}
	return s
}

func (s *scene) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = cam
}

func (s *scene) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(obj)
	return obj.ID()
}

// add appends obj. Caller must hold the mutex.
func (s *scene) add(obj game_object.GameObject) {
	if _, ok := s.index[obj.ID()]; ok {
		return
	}
	s.index[obj.ID()] = len(s.objects)
	s.objects = append(s.objects, obj)
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		return s.objects[i]
	}
	return nil
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.objects); j++ {
		s.index[s.objects[j].ID()] = j
	}
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = nil
	s.index = map[uint64]int{}
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game_object.GameObject, len(s.objects))
	copy(out, s.objects)
	return out
}

func (s *scene) CullingDisabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cullingDisabled
}

func (s *scene) SetCullingDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cullingDisabled = disabled
}

func (s *scene) Renderables() []renderer.Renderable {
	s.mu.Lock()
	objects, cam, culling := s.objects, s.camera, !s.cullingDisabled
	s.mu.Unlock()

	var frustum common.Frustum
	if culling && cam != nil {
		frustum = common.FrustumFromMatrix(cam.ViewProjectionMatrix(), cam.DepthRange())
	} else {
		culling = false
	}

	out := make([]renderer.Renderable, 0, len(objects))
	for _, obj := range objects {
		if !obj.Enabled() || obj.Geometry() == nil || obj.Material() == nil {
			continue
		}
		if culling && !visible(frustum, obj) {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// visible tests the object's bounding sphere in world space. Instanced geometry is never culled since the
// sphere covers one instance only.
func visible(f common.Frustum, obj game_object.GameObject) bool {
	g := obj.Geometry()
	if g.InstanceCount() > 1 {
		return true
	}
	center, radius := g.BoundingSphere()
	m := obj.ModelMatrix()
	wc := m.MulVec4([4]float32{center[0], center[1], center[2], 1})
	scale := obj.Scale()
	maxScale := max(abs(scale[0]), abs(scale[1]), abs(scale[2]))
	return f.SphereVisible([3]float32{wc[0], wc[1], wc[2]}, radius*maxScale)
}

func abs(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

func (s *scene) Update(dt float32) {
	s.mu.Lock()
	objects, cam, workers := s.objects, s.camera, s.workers
	s.mu.Unlock()

	if len(objects) < parallelThreshold || workers < 2 {
		for _, obj := range objects {
			obj.Advance(dt)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		chunk := (len(objects) + workers - 1) / workers
		for start := 0; start < len(objects); start += chunk {
			part := objects[start:min(start+chunk, len(objects))]
			g.Go(func() error {
				for _, obj := range part {
					obj.Advance(dt)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	if cam != nil {
		cam.Update()
	}
}
