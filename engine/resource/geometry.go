package resource

import (
	"encoding/binary"
	"math"
	"sync"
)

// geometry is the implementation of the Geometry interface.
type geometry struct {
	mu *sync.Mutex

	id            uint64
	label         string
	attributes    []*Attribute
	index         *Attribute
	drawStart     int
	drawCount     int
	instanceCount int
	version       uint64

	boundsVersion uint64
	center        [3]float32
	radius        float32

	events disposer[Geometry]
}

// Geometry is an ordered set of named vertex attributes plus an optional index buffer. The attribute order is the
// vertex buffer slot order. The geometry version changes when the attribute set changes, not when attribute data
// changes; attribute data carries its own version.
type Geometry interface {
	// ID returns the process-unique identifier.
	ID() uint64

	// Label returns the debug label.
	Label() string

	// Attribute returns the named attribute, or nil.
	//
	// Parameters:
	//   - name: the attribute name
	//
	// Returns:
	//   - *Attribute: the attribute or nil
	Attribute(name string) *Attribute

	// Attributes returns the attributes in slot order.
	Attributes() []*Attribute

	// SetAttribute adds or replaces an attribute by name and bumps the version.
	SetAttribute(a *Attribute)

	// Index returns the index attribute, or nil for non-indexed geometry.
	Index() *Attribute

	// SetIndex sets the index attribute and bumps the version.
	SetIndex(a *Attribute)

	// DrawRange returns the first element and element count to draw. A negative count draws everything.
	DrawRange() (int, int)

	// SetDrawRange limits drawing to a sub-range of elements.
	SetDrawRange(start, count int)

	// InstanceCount returns the number of instances to draw.
	InstanceCount() int

	// SetInstanceCount sets the number of instances to draw.
	SetInstanceCount(n int)

	// DrawCount returns the number of indices (or vertices when non-indexed) one draw covers.
	DrawCount() int

	// BoundingSphere returns a sphere enclosing the "position" attribute, recomputed when positions change.
	//
	// Returns:
	//   - [3]float32: the center
	//   - float32: the radius, negative when the geometry has no positions
	BoundingSphere() ([3]float32, float32)

	// Version returns the structural mutation counter.
	Version() uint64

	// Dispose releases the geometry. Attributes are not disposed, they may be shared.
	Dispose()

	// Disposed reports whether Dispose was called.
	Disposed() bool

	// OnDispose registers a listener invoked when the geometry is disposed.
	OnDispose(fn func(Geometry))
}

var _ Geometry = &geometry{}

// NewGeometry creates a geometry from attributes in slot order. An index attribute becomes the index buffer.
//
// Parameters:
//   - label: the debug label
//   - attributes: the vertex attributes
//
// Returns:
//   - Geometry: the new geometry
func NewGeometry(label string, attributes ...*Attribute) Geometry {
	g := &geometry{
		mu:            &sync.Mutex{},
		id:            NextID(),
		label:         label,
		drawCount:     -1,
		instanceCount: 1,
		version:       1,
	}
	for _, a := range attributes {
		if a.Kind() == AttributeIndex {
			g.index = a
			continue
		}
		g.setAttribute(a)
	}
	return g
}

func (g *geometry) ID() uint64 {
	return g.id
}

func (g *geometry) Label() string {
	return g.label
}

func (g *geometry) Attribute(name string) *Attribute {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range g.attributes {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

func (g *geometry) Attributes() []*Attribute {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Attribute, len(g.attributes))
	copy(out, g.attributes)
	return out
}

func (g *geometry) SetAttribute(a *Attribute) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setAttribute(a)
	g.version++
}

func (g *geometry) setAttribute(a *Attribute) {
	for i, existing := range g.attributes {
		if existing.Name() == a.Name() {
			g.attributes[i] = a
			return
		}
	}
	g.attributes = append(g.attributes, a)
}

func (g *geometry) Index() *Attribute {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index
}

func (g *geometry) SetIndex(a *Attribute) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index = a
	g.version++
}

func (g *geometry) DrawRange() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drawStart, g.drawCount
}

func (g *geometry) SetDrawRange(start, count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drawStart = max(start, 0)
	g.drawCount = count
}

func (g *geometry) InstanceCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.instanceCount
}

func (g *geometry) SetInstanceCount(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.instanceCount = max(n, 0)
}

func (g *geometry) DrawCount() int {
	g.mu.Lock()
	index := g.index
	start, count := g.drawStart, g.drawCount
	var first *Attribute
	if len(g.attributes) > 0 {
		first = g.attributes[0]
	}
	g.mu.Unlock()

	total := 0
	switch {
	case index != nil:
		total = index.Count()
	case first != nil:
		total = first.Count()
	}
	total = max(total-start, 0)
	if count >= 0 {
		total = min(total, count)
	}
	return total
}

func (g *geometry) BoundingSphere() ([3]float32, float32) {
	pos := g.Attribute("position")
	if pos == nil || pos.Component() != ComponentFloat32 || pos.ItemSize() < 3 {
		return [3]float32{}, -1
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if v := pos.Version(); v != g.boundsVersion {
		g.center, g.radius = boundingSphere(pos.Data(), pos.ItemSize())
		g.boundsVersion = v
	}
	return g.center, g.radius
}

// boundingSphere centers the sphere on the AABB center, then takes the farthest point as the radius.
func boundingSphere(data []byte, itemSize int) ([3]float32, float32) {
	stride := itemSize * 4
	n := len(data) / stride
	if n == 0 {
		return [3]float32{}, -1
	}
	read := func(i, c int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[i*stride+c*4:]))
	}

	lo := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for i := range n {
		for c := range 3 {
			v := read(i, c)
			lo[c] = min(lo[c], v)
			hi[c] = max(hi[c], v)
		}
	}
	center := [3]float32{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2, (lo[2] + hi[2]) / 2}

	var r2 float32
	for i := range n {
		dx, dy, dz := read(i, 0)-center[0], read(i, 1)-center[1], read(i, 2)-center[2]
		r2 = max(r2, dx*dx+dy*dy+dz*dz)
	}
	return center, float32(math.Sqrt(float64(r2)))
}

func (g *geometry) Version() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version
}

func (g *geometry) Dispose() {
	g.events.dispose(g)
}

func (g *geometry) Disposed() bool {
	return g.events.isDisposed()
}

func (g *geometry) OnDispose(fn func(Geometry)) {
	g.events.onDispose(fn)
}
