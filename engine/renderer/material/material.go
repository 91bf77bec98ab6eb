package material

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
)

// Slot names one of the optional node slots of a material.
type Slot int

const (
	// SlotColor overrides the diffuse color, a vec3 or vec4 of which rgb is used.
	SlotColor Slot = iota

	// SlotOpacity overrides the alpha, a float.
	SlotOpacity

	// SlotNormal is written to a "normal" attachment when the render target has one.
	SlotNormal

	// SlotPosition overrides the local vertex position, a vec3.
	SlotPosition

	// SlotDepth overrides the fragment depth.
	SlotDepth

	// SlotOutput replaces the final color, after color and opacity are combined.
	SlotOutput

	// SlotFragment replaces the whole fragment stage. Color, opacity and output slots are ignored.
	SlotFragment

	// SlotVertex replaces the whole clip-space position computation. The position slot is ignored.
	SlotVertex

	// SlotMRT adds named attachments, must hold a *node.MRTNode.
	SlotMRT

	// SlotAlphaTest discards fragments whose opacity falls below it.
	SlotAlphaTest

	slotCount
)

func (s Slot) String() string {
	return [...]string{"color", "opacity", "normal", "position", "depth", "output", "fragment", "vertex", "mrt", "alphaTest"}[s]
}

// ParseSlot resolves a slot by the name String prints.
//
// Parameters:
//   - name: the slot name, for example "color" or "alphaTest"
//
// Returns:
//   - Slot: the slot
//   - error: an error if no slot has that name
func ParseSlot(name string) (Slot, error) {
	for s := range slotCount {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown material slot %q", name)
}

// Side selects which faces are drawn.
type Side int

const (
	SideFront Side = iota
	SideBack
	SideDouble
)

func (s Side) String() string {
	return [...]string{"front", "back", "double"}[s]
}

// ParseSide resolves a side by the name String prints.
func ParseSide(name string) (Side, error) {
	for _, s := range []Side{SideFront, SideBack, SideDouble} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown material side %q", name)
}

// material is the implementation of the Material interface.
type material struct {
	mu *sync.Mutex

	id      uint64
	uuid    uuid.UUID
	name    string
	version uint64

	slots [slotCount]node.Node

	// classic values, each backed by a uniform so changing them never recompiles
	color     *node.UniformNode
	opacity   *node.UniformNode
	alphaTest *node.UniformNode
	mapNode   *node.TextureNode

	renderState pipeline.RenderState
	transparent bool
	side        Side

	onDispose []func()
	disposed  bool
}

// Material describes how a surface is shaded. Its shader is assembled from optional node slots; an empty slot
// falls back to a formula built from the classic values (color, opacity, map, alpha test).
//
// The version advances whenever the shader or the pipeline state would change: setting a slot, attaching or
// detaching a map, enabling alpha testing, changing the render state. Changing a classic value that is already
// backed by a uniform leaves the version alone.
type Material interface {
	// ID returns the process-unique material id.
	ID() uint64

	// UUID returns the material UUID.
	UUID() uuid.UUID

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Version returns the structural version.
	Version() uint64

	// Node returns the node in slot, nil when the slot is empty.
	Node(slot Slot) node.Node

	// SetNode fills or clears a slot and bumps the version.
	//
	// Parameters:
	//   - slot: the slot
	//   - n: the node, nil to fall back to the default formula
	SetNode(slot Slot, n node.Node)

	// Color returns the diffuse color.
	Color() [3]float32

	// SetColor sets the diffuse color.
	SetColor(c [3]float32)

	// Opacity returns the opacity.
	Opacity() float32

	// SetOpacity sets the opacity.
	SetOpacity(o float32)

	// Map returns the color map, nil when none is attached.
	Map() resource.Texture

	// SetMap attaches, swaps or detaches the color map. A swap to a texture of the same shape keeps the program.
	//
	// Parameters:
	//   - t: the texture, nil to detach
	SetMap(t resource.Texture)

	// AlphaTest returns the alpha test threshold, 0 when disabled.
	AlphaTest() float32

	// SetAlphaTest sets the alpha test threshold. Crossing zero in either direction bumps the version.
	SetAlphaTest(v float32)

	// Transparent reports whether the material blends with what is behind it.
	Transparent() bool

	// SetTransparent enables or disables blending.
	SetTransparent(v bool)

	// Side returns the faces drawn.
	Side() Side

	// SetSide sets the faces drawn.
	SetSide(s Side)

	// RenderState returns the pipeline state, with transparency and side folded in.
	RenderState() pipeline.RenderState

	// SetRenderState replaces the base pipeline state.
	SetRenderState(s pipeline.RenderState)

	// Graph assembles the shader graph for a render target with the given attachments.
	//
	// Parameters:
	//   - outputs: the color attachment names in location order, empty for a single "output"
	//
	// Returns:
	//   - node_builder.Graph: the graph
	//   - error: an error if a slot holds a node of the wrong kind
	Graph(outputs []string) (node_builder.Graph, error)

	// OnDispose registers fn to run when the material is disposed.
	OnDispose(fn func())

	// Dispose releases every cache entry built for this material.
	Dispose()
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		mu:          &sync.Mutex{},
		id:          resource.NextID(),
		uuid:        uuid.New(),
		name:        "material",
		version:     1,
		color:       node.Uniform("color", node.Vec3, [3]float32{1, 1, 1}),
		opacity:     node.Uniform("opacity", node.Float, float32(1)),
		renderState: pipeline.DefaultRenderState(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) ID() uint64 {
	return m.id
}

func (m *material) UUID() uuid.UUID {
	return m.uuid
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *material) Node(slot Slot) node.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slot]
}

func (m *material) SetNode(slot Slot, n node.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slots[slot] == n {
		return
	}
	m.slots[slot] = n
	m.version++
}

func (m *material) Color() [3]float32 {
	c, _ := m.color.Value().([3]float32)
	return c
}

func (m *material) SetColor(c [3]float32) {
	m.color.SetValue(c)
}

func (m *material) Opacity() float32 {
	o, _ := m.opacity.Value().(float32)
	return o
}

func (m *material) SetOpacity(o float32) {
	m.opacity.SetValue(o)
}

func (m *material) Map() resource.Texture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mapNode == nil {
		return nil
	}
	return m.mapNode.Value()
}

func (m *material) SetMap(t resource.Texture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case t == nil && m.mapNode == nil:
		return
	case t == nil:
		m.mapNode = nil
		m.version++
	case m.mapNode == nil:
		m.mapNode = node.Texture(t)
		m.version++
	default:
		before := m.mapNode.Key()
		m.mapNode.SetValue(t)
		if m.mapNode.Key() != before {
			m.version++
		}
	}
}

func (m *material) AlphaTest() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alphaTest == nil {
		return 0
	}
	v, _ := m.alphaTest.Value().(float32)
	return v
}

func (m *material) SetAlphaTest(v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case v <= 0 && m.alphaTest == nil:
		return
	case v <= 0:
		m.alphaTest = nil
		m.version++
	case m.alphaTest == nil:
		m.alphaTest = node.Uniform("alphaTest", node.Float, v)
		m.version++
	default:
		m.alphaTest.SetValue(v)
	}
}

func (m *material) Transparent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transparent
}

func (m *material) SetTransparent(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transparent != v {
		m.transparent = v
		m.version++
	}
}

func (m *material) Side() Side {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.side
}

func (m *material) SetSide(s Side) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.side != s {
		m.side = s
		m.version++
	}
}

func (m *material) RenderState() pipeline.RenderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.renderState
	s.Blending = slices.Clone(s.Blending)
	if len(s.Blending) == 0 {
		s.Blending = []pipeline.AttachmentBlend{{State: gputypes.BlendStateAlpha(), WriteMask: gputypes.ColorWriteMaskAll}}
	}
	if m.transparent {
		s.Blending[0].Enabled = true
		s.DepthWrite = false
	}
	switch m.side {
	case SideBack:
		s.CullMode = gputypes.CullModeFront
	case SideDouble:
		s.CullMode = gputypes.CullModeNone
	}
	return s
}

func (m *material) SetRenderState(s pipeline.RenderState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Blending = slices.Clone(s.Blending)
	m.renderState = s
	m.version++
}

func (m *material) Graph(outputs []string) (node_builder.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := node_builder.Graph{
		Label:   m.name,
		Outputs: slices.Clone(outputs),
		Vertex:  m.vertex(),
		Depth:   m.slots[SlotDepth],
	}

	fragment := m.slots[SlotFragment]
	if fragment == nil {
		fragment = m.fragment()
	}

	var extra *node.MRTNode
	if n := m.slots[SlotMRT]; n != nil {
		mrt, ok := n.(*node.MRTNode)
		if !ok {
			return node_builder.Graph{}, fmt.Errorf("material %q: mrt slot holds a %T, want *node.MRTNode", m.name, n)
		}
		extra = mrt
	}
	wantsNormal := slices.Contains(outputs, "normal")
	if extra == nil && !wantsNormal {
		g.Fragment = fragment
		return g, nil
	}

	routes := map[string]node.Node{"output": fragment}
	if wantsNormal {
		normal := m.slots[SlotNormal]
		if normal == nil {
			normal = node.NormalWorld
		}
		routes["normal"] = node.Convert(normal, node.Vec4)
	}
	mrt := node.MRT(routes)
	if extra != nil {
		mrt = mrt.Merge(extra)
	}
	g.Fragment = mrt
	return g, nil
}

// vertex returns the clip-space position: the vertex slot, the position slot through the standard matrices, or
// the standard pipeline.
func (m *material) vertex() node.Node {
	if v := m.slots[SlotVertex]; v != nil {
		return v
	}
	if p := m.slots[SlotPosition]; p != nil {
		world := node.Mul(node.ModelMatrix, node.Convert(p, node.Vec4))
		return node.Mul(node.ProjectionMatrix, node.Mul(node.ViewMatrix, world))
	}
	return node.ModelViewProjection
}

// fragment builds vec4(color.rgb, opacity), where color defaults to the color uniform times the map and opacity
// to the opacity uniform times the map alpha.
func (m *material) fragment() node.Node {
	var sample node.Node
	if m.mapNode != nil {
		sample = m.mapNode.Sample(node.UV)
	}

	color := m.slots[SlotColor]
	if color == nil {
		color = m.color
		if sample != nil {
			color = node.Mul(m.color, node.Swizzle(sample, "rgb"))
		}
	}
	opacity := m.slots[SlotOpacity]
	if opacity == nil {
		opacity = m.opacity
		if sample != nil {
			opacity = node.Mul(m.opacity, node.Swizzle(sample, "a"))
		}
	}

	var out node.Node = node.Join(node.Swizzle(color, "xyz"), opacity)
	if o := m.slots[SlotOutput]; o != nil {
		out = o
	}

	threshold := m.slots[SlotAlphaTest]
	if threshold == nil && m.alphaTest != nil {
		threshold = m.alphaTest
	}
	if threshold != nil {
		out = node.Block(out, node.If(node.LessThan(opacity, threshold), node.Discard(), nil))
	}
	return out
}

func (m *material) OnDispose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDispose = append(m.onDispose, fn)
}

func (m *material) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	hooks := m.onDispose
	m.onDispose = nil
	m.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
