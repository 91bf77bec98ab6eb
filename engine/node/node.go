// Package node defines the shader graph: typed nodes that lower themselves to target source through a Builder.
// Nodes are immutable after construction except for runtime values such as uniform values and bound textures,
// which change every frame without recompilation.
package node

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Node is a vertex of the shader graph.
type Node interface {
	// ID returns the process-unique node identifier.
	ID() uint64

	// UUID returns the node's stable UUID, used in serialized graphs.
	UUID() uuid.UUID

	// Kind returns the node kind, for example "add" or "uniform".
	Kind() string

	// UpdateType returns how often the node's runtime value refreshes.
	UpdateType() UpdateType

	// Children returns the input nodes.
	Children() []Node

	// Key returns the structural key. Two nodes with equal keys generate identical code and share one memo entry.
	// Nodes that own a binding or mutable storage mix their ID into the key.
	Key() uint64

	// Type resolves the node's data type.
	//
	// Parameters:
	//   - b: the active builder
	//
	// Returns:
	//   - DataType: the resolved type
	//   - error: a type or stage error
	Type(b Builder) (DataType, error)

	// Setup validates the node for the active stage and registers the symbols it needs. It runs once per node and
	// stage before any code is generated.
	//
	// Parameters:
	//   - b: the active builder
	//
	// Returns:
	//   - error: a type, stage or unsupported-feature error
	Setup(b Builder) error

	// Generate emits the node's code and returns an expression of the node's type. Statement nodes emit lines and
	// return an empty expression.
	//
	// Parameters:
	//   - b: the active builder
	//
	// Returns:
	//   - string: the expression
	//   - error: a generation error
	Generate(b Builder) (string, error)
}

// StageScoped is implemented by nodes whose inputs belong to a different stage than the node itself, such as
// varyings whose source is computed in the vertex stage.
type StageScoped interface {
	// ChildrenIn returns the inputs that must be set up in stage.
	ChildrenIn(stage Stage) []Node
}

// Mutable is implemented by nodes whose value can change between two reads in one stage, such as variables and
// writable storage elements. Builders never hoist a mutable read, or an expression over one, into a temporary.
type Mutable interface {
	Mutable() bool
}

// Updater is implemented by nodes whose runtime value is refreshed by the frame according to their UpdateType.
type Updater interface {
	Node

	// Update refreshes the runtime value.
	Update(f *Frame) error
}

// BeforeUpdater is implemented by nodes that must run work before the draw that reads them, such as pass textures
// pulling their pass.
type BeforeUpdater interface {
	Node

	// UpdateBeforeType returns how often UpdateBefore runs.
	UpdateBeforeType() UpdateType

	// UpdateBefore runs the pre-draw work.
	UpdateBefore(f *Frame) error
}

// Builder is the compiler driver a node lowers itself through. Implementations own per-stage symbol tables and a
// memo keyed by node key and stage; node code never touches target syntax directly.
type Builder interface {
	// Stage returns the stage being built.
	Stage() Stage

	// Target returns the shading language being emitted.
	Target() Target

	// HasFeature reports whether the backend supports f.
	HasFeature(f Feature) bool

	// TypeOf resolves and caches the type of n.
	TypeOf(n Node) (DataType, error)

	// Build generates n (memoized per stage) and converts the result to output. Output Void returns the node's own
	// type unconverted. Implicit narrowing fails with a TypeError.
	Build(n Node, output DataType) (string, error)

	// TypeName returns the target spelling of t.
	TypeName(t DataType) (string, error)

	// Literal returns a literal of scalar or vector type t. Vectors take one value per component or one value to splat.
	Literal(t DataType, values ...float64) (string, error)

	// Construct returns a constructor call of t over args.
	Construct(t DataType, args ...string) (string, error)

	// Cast converts expr between numeric types of equal component count, or splats a scalar.
	Cast(expr string, from, to DataType) (string, error)

	// Bitcast reinterprets the bits of expr as to. Both types must have the same component count.
	Bitcast(expr string, from, to DataType) (string, error)

	// Call returns a call of a built-in function by its canonical name, for example "inversesqrt" or "dFdx",
	// translated to the target.
	Call(fn string, args ...string) (string, error)

	// Sample lowers a texture sample or texel load.
	Sample(req SampleRequest) (string, error)

	// Subgroup lowers a subgroup reduction or broadcast.
	Subgroup(op string, expr string, t DataType) (string, error)

	// Builtin returns the expression of a stage input such as the vertex index, registering the input.
	Builtin(kind BuiltinKind) (string, error)

	// Uniform registers u in its group and returns the expression that reads it.
	Uniform(u *UniformNode) (string, error)

	// TextureBinding registers t and returns the texture and sampler identifiers. GLSL returns the combined sampler
	// name for both.
	TextureBinding(t *TextureNode) (string, string, error)

	// StorageBinding registers s and returns the identifier that is indexed to access elements.
	StorageBinding(s *StorageBufferNode) (string, error)

	// VertexAttribute registers a vertex input and returns the expression that reads it. Vertex stage only.
	VertexAttribute(name string, t DataType) (string, error)

	// RegisterVarying records that source must be computed in the vertex stage and passed to the fragment stage
	// under name. An empty name lets the builder pick one per source key.
	RegisterVarying(source Node, name string, flat bool) error

	// Varying returns the fragment stage expression of the varying registered for source and name.
	Varying(source Node, name string) (string, error)

	// UniqueName returns a fresh identifier with the given prefix.
	UniqueName(prefix string) string

	// DeclareVar declares a mutable local of type t in the current scope and returns its name. An empty init
	// declares the variable without an initializer.
	DeclareVar(prefix string, t DataType, init string) (string, error)

	// Line emits one statement in the current scope. The terminating semicolon is added by the builder.
	Line(code string)

	// OpenScope emits header followed by an opening brace and opens a lexical scope.
	OpenScope(header string)

	// CloseScope closes the innermost scope, discarding the memo entries created inside it.
	CloseScope()

	// Bind pre-seeds the memo for n with expr in the current scope.
	Bind(n Node, expr string)

	// LoopHeader returns a counting for-loop header over [start, end) with an int counter.
	LoopHeader(counter, start, end string) string

	// TypeError returns a type error naming n, the stage and the target.
	TypeError(n Node, format string, args ...any) error

	// StageError returns a stage restriction error naming n.
	StageError(n Node, allowed ...Stage) error

	// Unsupported returns a terminal unsupported-feature error naming n.
	Unsupported(n Node, feature string) error
}

// FrameRenderer is the view of a renderer that nodes need during frame updates.
type FrameRenderer interface {
	// DrawingBufferSize returns the size of the drawing buffer in physical pixels.
	DrawingBufferSize() (uint32, uint32)

	// PixelRatio returns the ratio of physical to logical pixels.
	PixelRatio() float32
}

// base carries the identity shared by all node implementations.
type base struct {
	id   uint64
	uuid uuid.UUID
	kind string

	keyOnce sync.Once
	key     uint64
}

func newBase(kind string) base {
	return base{id: resource.NextID(), uuid: uuid.New(), kind: kind}
}

func (b *base) ID() uint64 {
	return b.id
}

func (b *base) UUID() uuid.UUID {
	return b.uuid
}

func (b *base) Kind() string {
	return b.kind
}

func (b *base) UpdateType() UpdateType {
	return UpdateNone
}

func (b *base) Children() []Node {
	return nil
}

func (b *base) Setup(Builder) error {
	return nil
}

// cachedKey computes the structural key once. Only nodes whose inputs are fixed at construction may use it.
func (b *base) cachedKey(f func() uint64) uint64 {
	b.keyOnce.Do(func() {
		b.key = f()
	})
	return b.key
}

// keyer accumulates a structural key.
type keyer struct {
	d *xxhash.Digest
}

func newKeyer(kind string) keyer {
	k := keyer{d: xxhash.New()}
	_, _ = k.d.WriteString(kind)
	_, _ = k.d.Write([]byte{0})
	return k
}

func (k keyer) str(s string) keyer {
	_ = k.u64(uint64(len(s)))
	_, _ = k.d.WriteString(s)
	return k
}

func (k keyer) u64(v uint64) keyer {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = k.d.Write(buf[:])
	return k
}

func (k keyer) f64(v float64) keyer {
	return k.u64(math.Float64bits(v))
}

func (k keyer) nodes(ns ...Node) keyer {
	for _, n := range ns {
		if n == nil {
			k.u64(0)
			continue
		}
		k.u64(n.Key())
	}
	return k
}

func (k keyer) sum() uint64 {
	return k.d.Sum64()
}

// compact drops nil entries.
func compact(ns ...Node) []Node {
	out := make([]Node, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// GraphKey hashes the structural keys of roots in order. Nil roots contribute a fixed marker.
//
// Parameters:
//   - roots: the graph roots, for example a material's node slots
//
// Returns:
//   - uint64: the combined key
func GraphKey(roots ...Node) uint64 {
	return newKeyer("graph").nodes(roots...).sum()
}

// Walk visits n and its descendants depth first, children before parents, each node once. Visiting stops at the
// first error returned by fn.
//
// Parameters:
//   - n: the root node
//   - fn: the visitor
//
// Returns:
//   - error: the first visitor error
func Walk(n Node, fn func(Node) error) error {
	seen := map[uint64]bool{}
	var visit func(Node) error
	visit = func(n Node) error {
		if n == nil || seen[n.ID()] {
			return nil
		}
		seen[n.ID()] = true
		for _, c := range n.Children() {
			if err := visit(c); err != nil {
				return err
			}
		}
		return fn(n)
	}
	return visit(n)
}
