package bind_group_provider

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"
)

// EntryKind is the resource type bound at one binding slot.
type EntryKind int

const (
	EntryUniformBuffer EntryKind = iota
	EntryStorageBuffer
	EntryTexture
	EntrySampler
)

// Entry is one binding slot of a group. Texture and sampler entries of the same texture point at the same
// resource.Texture; the sampler entry binds the texture's sampler.
type Entry struct {
	Binding    uint32
	Kind       EntryKind
	Visibility gputypes.ShaderStages

	// Buffer is the CPU copy of a uniform buffer entry.
	Buffer *UniformBuffer

	// Storage backs a storage buffer entry.
	Storage  *resource.Attribute
	ReadOnly bool

	// Texture is the texture bound by texture and sampler entries.
	Texture       resource.Texture
	ViewDimension gputypes.TextureViewDimension
	SampleType    gputypes.TextureSampleType
	SamplerType   gputypes.SamplerBindingType
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu *sync.Mutex

	id    uint64
	label string
	group uint32

	entries []Entry
	version uint64

	// handle is the backend object built for handleKey, owned by the backend.
	handle    any
	handleKey uint64

	events []func(BindGroupProvider)
	closed bool
}

// BindGroupProvider is one versioned group of GPU bindings: a uniform buffer, storage buffers and texture/sampler
// pairs. Providers are backend neutral; a backend builds its binding object from the entries and stores it with
// SetHandle, keyed by ResourceKey. A changed key means only this group is rebuilt.
//
// Usage pattern:
//  1. The renderer creates a provider per program binding group with NewBindGroupProvider
//  2. Uniform values are packed into Buffer(binding) each frame, bumping the buffer version when bytes change
//  3. Texture swaps go through SetTexture, which bumps the provider version
//  4. The backend compares ResourceKey with HandleKey and rebuilds its binding object when they differ
type BindGroupProvider interface {
	// ID returns the provider's unique id.
	ID() uint64

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the bind group index the provider is bound at.
	Group() uint32

	// Entries returns a copy of the binding entries in binding order.
	//
	// Returns:
	//   - []Entry: the entries
	Entries() []Entry

	// Entry returns the entry at binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - Entry: the entry
	//   - bool: false if no entry uses the binding
	Entry(binding uint32) (Entry, bool)

	// Buffer returns the uniform buffer bound at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *UniformBuffer: the buffer or nil
	Buffer(binding uint32) *UniformBuffer

	// Layout returns the layout descriptor the entries describe.
	//
	// Returns:
	//   - gputypes.BindGroupLayoutDescriptor: the layout
	Layout() gputypes.BindGroupLayoutDescriptor

	// SetTexture replaces the texture of every entry at binding and bumps the version when it changes.
	//
	// Parameters:
	//   - binding: the binding of a texture or sampler entry
	//   - t: the texture to bind
	SetTexture(binding uint32, t resource.Texture)

	// SetStorage replaces the attribute backing a storage entry.
	//
	// Parameters:
	//   - binding: the binding of a storage entry
	//   - a: the attribute to bind
	SetStorage(binding uint32, a *resource.Attribute)

	// Version returns the number of resource swaps since creation.
	Version() uint64

	// ResourceKey hashes the layout, the bound resource ids and their versions. Uniform values are not part of
	// the key: buffer writes never rebuild the group.
	//
	// Returns:
	//   - uint64: the key
	ResourceKey() uint64

	// Handle returns the backend object and the resource key it was built for.
	//
	// Returns:
	//   - any: the backend object, nil before the first build
	//   - uint64: the key the object was built against
	Handle() (any, uint64)

	// SetHandle stores the backend object built for key.
	//
	// Parameters:
	//   - h: the backend object
	//   - key: the ResourceKey the object was built against
	SetHandle(h any, key uint64)

	// OnRelease registers fn to run once when the provider is released.
	OnRelease(fn func(BindGroupProvider))

	// Release runs the release hooks, letting backends free their objects.
	Release()

	// Released reports whether Release ran.
	Released() bool
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label
//   - group: the bind group index
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, group uint32, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		mu:      &sync.Mutex{},
		id:      resource.NextID(),
		label:   label,
		group:   group,
		version: 1,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) ID() uint64 {
	return p.id
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() uint32 {
	return p.group
}

func (p *bindGroupProvider) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

func (p *bindGroupProvider) Entry(binding uint32) (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return Entry{}, false
}

func (p *bindGroupProvider) Buffer(binding uint32) *UniformBuffer {
	e, ok := p.Entry(binding)
	if !ok {
		return nil
	}
	return e.Buffer
}

func (p *bindGroupProvider) Layout() gputypes.BindGroupLayoutDescriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	desc := gputypes.BindGroupLayoutDescriptor{Label: p.label}
	for _, e := range p.entries {
		le := gputypes.BindGroupLayoutEntry{Binding: e.Binding, Visibility: e.Visibility}
		switch e.Kind {
		case EntryUniformBuffer:
			le.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: e.Buffer.Size()}
		case EntryStorageBuffer:
			bt := gputypes.BufferBindingTypeStorage
			if e.ReadOnly {
				bt = gputypes.BufferBindingTypeReadOnlyStorage
			}
			le.Buffer = &gputypes.BufferBindingLayout{Type: bt}
		case EntryTexture:
			le.Texture = &gputypes.TextureBindingLayout{SampleType: e.SampleType, ViewDimension: e.ViewDimension}
		case EntrySampler:
			le.Sampler = &gputypes.SamplerBindingLayout{Type: e.SamplerType}
		}
		desc.Entries = append(desc.Entries, le)
	}
	return desc
}

func (p *bindGroupProvider) SetTexture(binding uint32, t resource.Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := false
	for i := range p.entries {
		e := &p.entries[i]
		if e.Binding != binding || e.Texture == t {
			continue
		}
		e.Texture = t
		changed = true
	}
	if changed {
		p.version++
	}
}

func (p *bindGroupProvider) SetStorage(binding uint32, a *resource.Attribute) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.entries {
		e := &p.entries[i]
		if e.Binding == binding && e.Kind == EntryStorageBuffer && e.Storage != a {
			e.Storage = a
			p.version++
		}
	}
}

func (p *bindGroupProvider) Version() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

func (p *bindGroupProvider) ResourceKey() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = d.Write(buf[:])
	}
	put(uint64(p.group))
	for _, e := range p.entries {
		put(uint64(e.Binding))
		put(uint64(e.Kind))
		switch e.Kind {
		case EntryUniformBuffer:
			put(e.Buffer.ID())
			put(e.Buffer.Size())
		case EntryStorageBuffer:
			if e.Storage != nil {
				put(e.Storage.ID())
				put(uint64(e.Storage.ByteLength()))
			}
		case EntryTexture, EntrySampler:
			if e.Texture != nil {
				put(e.Texture.ID())
				put(e.Texture.Version())
			}
		}
	}
	return d.Sum64()
}

func (p *bindGroupProvider) Handle() (any, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle, p.handleKey
}

func (p *bindGroupProvider) SetHandle(h any, key uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = h
	p.handleKey = key
}

func (p *bindGroupProvider) OnRelease(fn func(BindGroupProvider)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fn)
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	events := p.events
	p.events = nil
	p.mu.Unlock()

	for _, fn := range events {
		fn(p)
	}

	p.mu.Lock()
	p.handle = nil
	p.handleKey = 0
	p.mu.Unlock()
}

func (p *bindGroupProvider) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
