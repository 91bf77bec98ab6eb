package node_builder

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/gogpu/gputypes"
)

// Graph is the input of one compile: the roots of each stage. Render programs set Vertex and Fragment, compute
// programs set Compute only.
type Graph struct {
	// Label names the graph in shader keys and diagnostics.
	Label string

	// Vertex computes the clip-space position, a vec4 (narrower vectors are widened with w = 1).
	Vertex node.Node

	// Fragment computes the color of the "output" attachment, or routes several attachments through a
	// *node.MRTNode.
	Fragment node.Node

	// Depth optionally overrides the fragment depth.
	Depth node.Node

	// Compute is the root of a compute program.
	Compute *node.ComputeNode

	// Outputs are the color attachment names of the render target, in location order. Empty means a single
	// "output" attachment.
	Outputs []string

	// ClipDistances are user clip planes evaluated in the vertex stage.
	ClipDistances []node.Node

	// Multiview is the number of views rendered in one pass; values below 2 disable multiview.
	Multiview int
}

// roots returns the graph roots in a fixed order.
func (g Graph) roots() []node.Node {
	roots := []node.Node{g.Vertex, g.Fragment, g.Depth}
	if g.Compute != nil {
		roots = append(roots, g.Compute)
	}
	return append(roots, g.ClipDistances...)
}

func (g Graph) outputs() []string {
	if len(g.Outputs) == 0 {
		return []string{"output"}
	}
	return g.Outputs
}

// Fixed bind group indices. Storage buffers, textures and samplers share the material group after its uniform
// buffer.
const (
	GroupRender   = 0
	GroupObject   = 1
	GroupMaterial = 2
)

// AttributeLayout is one vertex input. Every attribute is read from its own vertex buffer slot, in location order.
type AttributeLayout struct {
	// Name is the geometry attribute name, Ident the identifier used in the source.
	Name     string
	Ident    string
	Type     node.DataType
	Location uint32
	Format   gputypes.VertexFormat
}

// VaryingLayout is one vertex-to-fragment value.
type VaryingLayout struct {
	Name     string
	Type     node.DataType
	Location uint32
	Flat     bool
}

// UniformMember is one uniform inside a uniform group buffer.
type UniformMember struct {
	Node   *node.UniformNode
	Name   string
	Type   node.DataType
	Offset uint32
}

// UniformGroupLayout is the std140 block of one uniform group.
type UniformGroupLayout struct {
	Group        node.UniformGroup
	BindGroup    uint32
	Binding      uint32
	BlockName    string
	InstanceName string
	Members      []UniformMember
	Size         uint32
	Visibility   gputypes.ShaderStages
}

// TextureBinding is one texture and its sampler.
type TextureBinding struct {
	Node           *node.TextureNode
	Name           string
	SamplerName    string
	Group          uint32
	Binding        uint32
	SamplerBinding uint32
	Type           node.DataType
	ViewDimension  gputypes.TextureViewDimension
	SampleType     gputypes.TextureSampleType
	Comparison     bool
	Visibility     gputypes.ShaderStages
}

// SamplerType returns the sampler binding type matching the texture.
func (t TextureBinding) SamplerType() gputypes.SamplerBindingType {
	switch {
	case t.Comparison:
		return gputypes.SamplerBindingTypeComparison
	case t.SampleType == gputypes.TextureSampleTypeFloat:
		return gputypes.SamplerBindingTypeFiltering
	}
	return gputypes.SamplerBindingTypeNonFiltering
}

// StorageBinding is one storage buffer.
type StorageBinding struct {
	Node       *node.StorageBufferNode
	Name       string
	Group      uint32
	Binding    uint32
	Element    node.DataType
	ReadOnly   bool
	Visibility gputypes.ShaderStages
}

// Program is a compiled graph: per-stage shaders plus everything the renderer needs to bind resources and keep
// runtime values current.
type Program struct {
	// Key identifies the graph structure, target and backend capabilities.
	Key    uint64
	Label  string
	Target node.Target

	// Vertex and Fragment are set for render programs, Compute for compute programs.
	Vertex   shader.Shader
	Fragment shader.Shader
	Compute  shader.Shader

	Attributes    []AttributeLayout
	Varyings      []VaryingLayout
	UniformGroups []*UniformGroupLayout
	Textures      []TextureBinding
	Storage       []StorageBinding

	// Outputs are the color attachment names in location order.
	Outputs []string

	// WorkgroupSize and ComputeNode are set for compute programs.
	WorkgroupSize [3]uint32
	ComputeNode   *node.ComputeNode

	// Updaters are refreshed by the frame before the program draws, BeforeUpdaters run their pre-draw work.
	Updaters       []node.Updater
	BeforeUpdaters []node.BeforeUpdater

	// Features lists the optional capabilities the generated code relies on.
	Features node.Features
}

// UniformGroup returns the layout of a uniform group, nil when the program has no uniform in it.
func (p *Program) UniformGroup(g node.UniformGroup) *UniformGroupLayout {
	for _, l := range p.UniformGroups {
		if l.Group == g {
			return l
		}
	}
	return nil
}

// Shaders returns the compiled stages in pipeline order.
func (p *Program) Shaders() []shader.Shader {
	out := make([]shader.Shader, 0, 2)
	for _, s := range []shader.Shader{p.Vertex, p.Fragment, p.Compute} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// IsCompute reports whether the program is a compute program.
func (p *Program) IsCompute() bool {
	return p.Compute != nil
}

// BindGroupLayouts returns the merged layouts of every stage keyed by group index. The three fixed groups are
// always present so pipeline layouts of different programs line up.
func (p *Program) BindGroupLayouts() map[int]gputypes.BindGroupLayoutDescriptor {
	out := map[int]gputypes.BindGroupLayoutDescriptor{
		GroupRender:   {Label: "render"},
		GroupObject:   {Label: "object"},
		GroupMaterial: {Label: "material"},
	}
	add := func(group uint32, e gputypes.BindGroupLayoutEntry) {
		d := out[int(group)]
		d.Entries = append(d.Entries, e)
		out[int(group)] = d
	}
	for _, g := range p.UniformGroups {
		add(g.BindGroup, gputypes.BindGroupLayoutEntry{
			Binding:    g.Binding,
			Visibility: g.Visibility,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: uint64(g.Size)},
		})
	}
	for _, t := range p.Textures {
		add(t.Group, gputypes.BindGroupLayoutEntry{
			Binding:    t.Binding,
			Visibility: t.Visibility,
			Texture:    &gputypes.TextureBindingLayout{SampleType: t.SampleType, ViewDimension: t.ViewDimension},
		})
		add(t.Group, gputypes.BindGroupLayoutEntry{
			Binding:    t.SamplerBinding,
			Visibility: t.Visibility,
			Sampler:    &gputypes.SamplerBindingLayout{Type: t.SamplerType()},
		})
	}
	for _, s := range p.Storage {
		bt := gputypes.BufferBindingTypeStorage
		if s.ReadOnly {
			bt = gputypes.BufferBindingTypeReadOnlyStorage
		}
		add(s.Group, gputypes.BindGroupLayoutEntry{
			Binding:    s.Binding,
			Visibility: s.Visibility,
			Buffer:     &gputypes.BufferBindingLayout{Type: bt, MinBindingSize: uint64(s.Element.ByteSize())},
		})
	}
	return out
}

// VertexLayouts returns one vertex buffer layout per attribute in location order.
func (p *Program) VertexLayouts() []gputypes.VertexBufferLayout {
	out := make([]gputypes.VertexBufferLayout, len(p.Attributes))
	for i, a := range p.Attributes {
		out[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(a.Type.ByteSize()),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{{
				Format:         a.Format,
				Offset:         0,
				ShaderLocation: a.Location,
			}},
		}
	}
	return out
}
