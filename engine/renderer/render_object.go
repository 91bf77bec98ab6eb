package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
)

// RenderObject is everything one draw needs: the renderable with its material and geometry, the context it draws
// into, and the compiled program, pipeline and bind groups built for that combination. Render objects are cached
// per (renderable, material, context).
type RenderObject struct {
	Renderable Renderable
	Material   material.Material
	Geometry   resource.Geometry
	Context    *RenderContext

	Program  *node_builder.Program
	Pipeline pipeline.Pipeline

	// Bindings holds one provider per bind group, indexed by group number.
	Bindings []bind_group_provider.BindGroupProvider

	// Attributes are the geometry attributes in program location order. Index is nil for non-indexed draws.
	Attributes []*resource.Attribute
	Index      *resource.Attribute

	materialVersion uint64
	geometryVersion uint64
	cacheKey        uint64
	object          *bindingState
	states          [3]*bindingState
	err             error
	lastFrame       uint64

	mu     *sync.Mutex
	handle any
}

func newRenderObject(r Renderable, m material.Material, rc *RenderContext) *RenderObject {
	return &RenderObject{
		mu:         &sync.Mutex{},
		Renderable: r,
		Material:   m,
		Geometry:   r.Geometry(),
		Context:    rc,
	}
}

// Err returns the error that disabled the object, nil while it draws.
func (ro *RenderObject) Err() error {
	return ro.err
}

// Instanced reports whether the attribute at location i steps per instance.
func (ro *RenderObject) Instanced(i int) bool {
	return i < len(ro.Attributes) && ro.Attributes[i].Kind() == resource.AttributeInstanced
}

// VertexLayouts returns the pipeline's vertex layouts with the step mode of instanced attributes applied.
func (ro *RenderObject) VertexLayouts() []gputypes.VertexBufferLayout {
	layouts := ro.Program.VertexLayouts()
	for i := range layouts {
		if ro.Instanced(i) {
			layouts[i].StepMode = gputypes.VertexStepModeInstance
		}
	}
	return layouts
}

// DrawParams returns the first element, the element count and the instance count of the draw.
func (ro *RenderObject) DrawParams() (first, count, instances int) {
	first, count = ro.Geometry.DrawRange()
	total := ro.Geometry.DrawCount()
	if count < 0 || first+count > total {
		count = max(total-first, 0)
	}
	return first, count, max(ro.Geometry.InstanceCount(), 1)
}

// Handle returns the backend state of the object, such as a GL vertex array.
func (ro *RenderObject) Handle() any {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	return ro.handle
}

// SetHandle stores the backend state of the object.
func (ro *RenderObject) SetHandle(h any) {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	ro.handle = h
}

type renderObjectKey struct {
	renderable uint64
	material   uint64
	context    uint64
}

// renderObjects caches render objects. Objects unused for idleFrames frames are released.
type renderObjects struct {
	mu      *sync.Mutex
	objects map[renderObjectKey]*RenderObject
}

func newRenderObjects() *renderObjects {
	return &renderObjects{mu: &sync.Mutex{}, objects: map[renderObjectKey]*RenderObject{}}
}

// get returns the object for the triple, creating it on first use.
//
// Returns:
//   - *RenderObject: the object
//   - bool: true if it was created
func (c *renderObjects) get(r Renderable, m material.Material, rc *RenderContext) (*RenderObject, bool) {
	k := renderObjectKey{renderable: r.ID(), material: m.ID(), context: rc.ID}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ro, ok := c.objects[k]; ok {
		return ro, false
	}
	ro := newRenderObject(r, m, rc)
	c.objects[k] = ro
	return ro, true
}

// remove deletes the objects match selects and returns them.
func (c *renderObjects) remove(match func(*RenderObject) bool) []*RenderObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*RenderObject
	for k, ro := range c.objects {
		if match(ro) {
			out = append(out, ro)
			delete(c.objects, k)
		}
	}
	return out
}

func (c *renderObjects) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}
