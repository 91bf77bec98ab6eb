package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/gogpu/gputypes"
)

// bindingState is one bind group of a program: the provider handed to the backend plus the program layout that
// says which uniform members, textures and storage buffers fill it.
type bindingState struct {
	provider bind_group_provider.BindGroupProvider
	uniforms *node_builder.UniformGroupLayout
	textures []node_builder.TextureBinding
	storage  []node_builder.StorageBinding

	scratch []byte
	packed  []uint64
}

func newBindingState(label string, group uint32, prog *node_builder.Program) *bindingState {
	s := &bindingState{}
	var opts []bind_group_provider.BindGroupProviderOption
	for _, l := range prog.UniformGroups {
		if l.BindGroup != group {
			continue
		}
		s.uniforms = l
		s.scratch = make([]byte, l.Size)
		s.packed = make([]uint64, len(l.Members))
		for i := range s.packed {
			s.packed[i] = ^uint64(0)
		}
		opts = append(opts, bind_group_provider.WithUniformBuffer(l.Binding, bind_group_provider.NewUniformBuffer(l.Size), l.Visibility))
	}
	for _, t := range prog.Textures {
		if t.Group != group {
			continue
		}
		s.textures = append(s.textures, t)
		layout := gputypes.TextureBindingLayout{SampleType: t.SampleType, ViewDimension: t.ViewDimension}
		opts = append(opts, bind_group_provider.WithTexture(t.Binding, t.SamplerBinding, nil, layout, t.SamplerType(), t.Visibility))
	}
	for _, st := range prog.Storage {
		if st.Group != group {
			continue
		}
		s.storage = append(s.storage, st)
		opts = append(opts, bind_group_provider.WithStorage(st.Binding, st.Node.Attribute(), st.ReadOnly, st.Visibility))
	}
	s.provider = bind_group_provider.NewBindGroupProvider(label, group, opts...)
	return s
}

// pack writes the uniform members whose version changed since the last pack.
//
// Returns:
//   - bool: true if the buffer contents changed
//   - error: a member whose value does not match its type
func (s *bindingState) pack() (bool, error) {
	if s.uniforms == nil {
		return false, nil
	}
	dirty := false
	for i, m := range s.uniforms.Members {
		v := m.Node.Version()
		if v == s.packed[i] {
			continue
		}
		if err := m.Node.Pack(s.scratch, m.Offset); err != nil {
			return false, fmt.Errorf("uniform %q: %w", m.Name, err)
		}
		s.packed[i] = v
		dirty = true
	}
	if !dirty {
		return false, nil
	}
	return s.provider.Buffer(s.uniforms.Binding).Write(0, s.scratch), nil
}

type materialBindingKey struct {
	material uint64
	program  uint64
}

// bindingStates holds the shared groups: the render group per program and the material group per (material,
// program). Object groups live on their render object.
type bindingStates struct {
	mu       *sync.Mutex
	render   map[uint64]*bindingState
	material map[materialBindingKey]*bindingState
}

func newBindingStates() *bindingStates {
	return &bindingStates{
		mu:       &sync.Mutex{},
		render:   map[uint64]*bindingState{},
		material: map[materialBindingKey]*bindingState{},
	}
}

func (b *bindingStates) renderGroup(prog *node_builder.Program) (*bindingState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.render[prog.Key]; ok {
		return s, false
	}
	s := newBindingState(prog.Label+"/render", node_builder.GroupRender, prog)
	b.render[prog.Key] = s
	return s, true
}

func (b *bindingStates) materialGroup(materialID uint64, prog *node_builder.Program) (*bindingState, bool) {
	k := materialBindingKey{material: materialID, program: prog.Key}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.material[k]; ok {
		return s, false
	}
	s := newBindingState(prog.Label+"/material", node_builder.GroupMaterial, prog)
	b.material[k] = s
	return s, true
}

// releaseMaterial releases and forgets every material group of materialID.
func (b *bindingStates) releaseMaterial(materialID uint64) {
	b.mu.Lock()
	var released []*bindingState
	for k, s := range b.material {
		if k.material == materialID {
			released = append(released, s)
			delete(b.material, k)
		}
	}
	b.mu.Unlock()
	for _, s := range released {
		s.provider.Release()
	}
}

// releaseAll releases every shared group.
func (b *bindingStates) releaseAll() {
	b.mu.Lock()
	var released []*bindingState
	for _, s := range b.render {
		released = append(released, s)
	}
	for _, s := range b.material {
		released = append(released, s)
	}
	b.render = map[uint64]*bindingState{}
	b.material = map[materialBindingKey]*bindingState{}
	b.mu.Unlock()
	for _, s := range released {
		s.provider.Release()
	}
}
