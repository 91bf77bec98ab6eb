package node_builder

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// nodeBuilder is the implementation of the NodeBuilder interface.
type nodeBuilder struct {
	target    node.Target
	features  node.Features
	logger    *zap.Logger
	tracer    trace.Tracer
	validator Validator
}

// NodeBuilder compiles node graphs into programs for one target language and one set of backend features.
// A NodeBuilder holds no per-graph state and is safe for concurrent use.
type NodeBuilder interface {
	// Target returns the language the builder emits.
	Target() node.Target

	// Features returns the backend capabilities the builder compiles against.
	Features() node.Features

	// Key computes the program key of a graph without compiling it. Graphs with equal keys compile to identical
	// programs.
	//
	// Parameters:
	//   - g: the graph to key
	//
	// Returns:
	//   - uint64: the program key
	//   - error: a *CycleError if the graph is cyclic
	Key(g Graph) (uint64, error)

	// Compile generates the shaders and layouts of a graph.
	//
	// Parameters:
	//   - ctx: the context of the compile, used for cancellation and tracing
	//   - g: the graph to compile
	//
	// Returns:
	//   - *Program: the compiled program
	//   - error: a *CompileError wrapping every diagnostic, or the context error
	Compile(ctx context.Context, g Graph) (*Program, error)
}

var _ NodeBuilder = &nodeBuilder{}

// NewNodeBuilder creates a builder. The default emits WGSL with no optional features.
//
// Parameters:
//   - options: variadic list of NodeBuilderOption functions
//
// Returns:
//   - NodeBuilder: the builder
func NewNodeBuilder(options ...NodeBuilderOption) NodeBuilder {
	nb := &nodeBuilder{
		target: node.TargetWGSL,
		logger: common.Logger().Named("node_builder"),
		tracer: otel.Tracer("github.com/Carmen-Shannon/oxy-graph/engine/node_builder"),
	}
	for _, opt := range options {
		opt(nb)
	}
	return nb
}

func (nb *nodeBuilder) Target() node.Target {
	return nb.target
}

func (nb *nodeBuilder) Features() node.Features {
	return nb.features
}

func (nb *nodeBuilder) Key(g Graph) (uint64, error) {
	if err := detectCycles(g.roots()); err != nil {
		return 0, err
	}
	return nb.key(g), nil
}

func (nb *nodeBuilder) key(g Graph) uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	put(node.GraphKey(g.roots()...))
	put(uint64(nb.target))
	put(uint64(nb.features))
	put(uint64(max(g.Multiview, 1)))
	put(uint64(len(g.ClipDistances)))
	for _, name := range g.outputs() {
		_, _ = d.WriteString(name)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

func (nb *nodeBuilder) Compile(ctx context.Context, g Graph) (*Program, error) {
	ctx, span := nb.tracer.Start(ctx, "node_builder.Compile", trace.WithAttributes(
		attribute.String("graph.label", g.Label),
		attribute.String("graph.target", nb.target.String()),
	))
	defer span.End()

	start := time.Now()
	prog, err := nb.compile(ctx, g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		nb.logger.Warn("graph compile failed",
			zap.String("label", g.Label),
			zap.Stringer("target", nb.target),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("program.key", fmt.Sprintf("%016x", prog.Key)))
	nb.logger.Debug("graph compiled",
		zap.String("label", g.Label),
		zap.Stringer("target", nb.target),
		zap.String("key", fmt.Sprintf("%016x", prog.Key)),
		zap.Int("uniformGroups", len(prog.UniformGroups)),
		zap.Int("textures", len(prog.Textures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return prog, nil
}

func (nb *nodeBuilder) compile(ctx context.Context, g Graph) (*Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fail := func(err error) error {
		return &CompileError{Label: g.Label, Target: nb.target, Err: err}
	}
	if err := detectCycles(g.roots()); err != nil {
		return nil, fail(err)
	}

	s := newSession(newTarget(nb.target), g, nb.features)
	if err := s.generate(); err != nil {
		return nil, fail(err)
	}
	s.allocate()

	prog := &Program{
		Key:            nb.key(g),
		Label:          g.Label,
		Target:         nb.target,
		Attributes:     s.attributes,
		Updaters:       s.updaters,
		BeforeUpdaters: s.beforeUpdaters,
		Features:       s.usedFeatures(),
	}
	for _, group := range []node.UniformGroup{node.GroupRender, node.GroupObject, node.GroupMaterial} {
		if u, ok := s.uniforms[group]; ok {
			prog.UniformGroups = append(prog.UniformGroups, u.layout)
		}
	}
	for _, t := range s.textures {
		prog.Textures = append(prog.Textures, *t)
	}
	for _, sb := range s.storage {
		prog.Storage = append(prog.Storage, *sb)
	}

	stages := []node.Stage{node.StageVertex, node.StageFragment}
	if g.Compute != nil {
		stages = []node.Stage{node.StageCompute}
		prog.ComputeNode = g.Compute
		prog.WorkgroupSize = g.Compute.WorkgroupSize()
	} else {
		prog.Varyings = s.varyingLayouts()
		prog.Outputs = g.outputs()
	}

	var errs error
	for _, stage := range stages {
		sh, err := nb.stageShader(ctx, s, prog, stage)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		switch stage {
		case node.StageVertex:
			prog.Vertex = sh
		case node.StageFragment:
			prog.Fragment = sh
		case node.StageCompute:
			prog.Compute = sh
		}
	}
	if errs != nil {
		return nil, fail(errs)
	}
	return prog, nil
}

// stageShader assembles one stage and wraps it with the layouts of the program.
func (nb *nodeBuilder) stageShader(ctx context.Context, s *session, prog *Program, stage node.Stage) (shader.Shader, error) {
	u := s.unit(stage)
	source, err := s.t.Assemble(u)
	if err != nil {
		return nil, err
	}

	layouts, varNames := stageLayouts(u)
	options := []shader.ShaderBuilderOption{
		shader.WithLanguage(shaderLanguage(nb.target)),
		shader.WithEntryPoint("main"),
		shader.WithBindGroupLayouts(layouts, varNames),
	}
	switch stage {
	case node.StageVertex:
		options = append(options, shader.WithVertexLayouts(prog.VertexLayouts()))
	case node.StageCompute:
		options = append(options, shader.WithWorkgroupSize(u.workgroupSize))
	}
	label := prog.Label
	if label == "" {
		label = "graph"
	}
	sh := shader.NewShader(fmt.Sprintf("%s:%016x:%s", label, prog.Key, stage), shaderType(stage), source, options...)

	if nb.validator != nil && nb.target == node.TargetWGSL {
		if err := nb.validator.Validate(ctx, stage, source); err != nil {
			return nil, err
		}
		if err := checkReflection(sh, stage); err != nil {
			return nil, err
		}
	}
	return sh, nil
}

// stageLayouts builds the bind group layouts of the resources one stage declares. Visibility is the union over
// all stages so both stages of a pipeline agree on every entry.
func stageLayouts(u *stageUnit) (map[int]gputypes.BindGroupLayoutDescriptor, map[int]map[int]string) {
	layouts := make(map[int]gputypes.BindGroupLayoutDescriptor)
	names := make(map[int]map[int]string)
	add := func(group, binding uint32, name string, e gputypes.BindGroupLayoutEntry) {
		e.Binding = binding
		d := layouts[int(group)]
		d.Entries = append(d.Entries, e)
		layouts[int(group)] = d
		if names[int(group)] == nil {
			names[int(group)] = make(map[int]string)
		}
		names[int(group)][int(binding)] = name
	}

	for _, g := range u.uniforms {
		add(g.BindGroup, g.Binding, g.InstanceName, gputypes.BindGroupLayoutEntry{
			Visibility: g.Visibility,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: uint64(g.Size)},
		})
	}
	for _, t := range u.textures {
		add(t.Group, t.Binding, t.Name, gputypes.BindGroupLayoutEntry{
			Visibility: t.Visibility,
			Texture:    &gputypes.TextureBindingLayout{SampleType: t.SampleType, ViewDimension: t.ViewDimension},
		})
		add(t.Group, t.SamplerBinding, t.SamplerName, gputypes.BindGroupLayoutEntry{
			Visibility: t.Visibility,
			Sampler:    &gputypes.SamplerBindingLayout{Type: t.SamplerType()},
		})
	}
	for _, sb := range u.storage {
		bt := gputypes.BufferBindingTypeStorage
		if sb.ReadOnly {
			bt = gputypes.BufferBindingTypeReadOnlyStorage
		}
		add(sb.Group, sb.Binding, sb.Name, gputypes.BindGroupLayoutEntry{
			Visibility: sb.Visibility,
			Buffer:     &gputypes.BufferBindingLayout{Type: bt, MinBindingSize: uint64(sb.Element.ByteSize())},
		})
	}
	for group, d := range layouts {
		d.Label = fmt.Sprintf("group%d", group)
		layouts[group] = d
	}
	return layouts, names
}

// checkReflection parses the generated WGSL back and compares every binding with the declared layouts.
func checkReflection(sh shader.Shader, stage node.Stage) error {
	r := shader.Reflect(sh.Source(), sh.ShaderType())
	var msgs []string
	for group, d := range r.BindGroupLayouts {
		declared := sh.BindGroupLayoutDescriptor(group)
		for _, e := range d.Entries {
			if !hasMatchingEntry(declared, e) {
				msgs = append(msgs, fmt.Sprintf("binding %d/%d is in the source but not in the layout", group, e.Binding))
			}
		}
	}
	if len(msgs) > 0 {
		return &ValidationError{Stage: stage, Source: sh.Source(), Messages: msgs}
	}
	return nil
}

func hasMatchingEntry(d gputypes.BindGroupLayoutDescriptor, want gputypes.BindGroupLayoutEntry) bool {
	for _, e := range d.Entries {
		if e.Binding != want.Binding {
			continue
		}
		return (e.Buffer != nil) == (want.Buffer != nil) &&
			(e.Texture != nil) == (want.Texture != nil) &&
			(e.Sampler != nil) == (want.Sampler != nil)
	}
	return false
}

func shaderType(stage node.Stage) shader.ShaderType {
	switch stage {
	case node.StageVertex:
		return shader.ShaderTypeVertex
	case node.StageFragment:
		return shader.ShaderTypeFragment
	}
	return shader.ShaderTypeCompute
}

func shaderLanguage(t node.Target) shader.Language {
	if t == node.TargetGLSL {
		return shader.LanguageGLSL
	}
	return shader.LanguageWGSL
}

// detectCycles walks the graph depth first and fails on the first edge back to a node still on the stack. It runs
// before anything computes a key, since keys of cyclic graphs never terminate.
func detectCycles(roots []node.Node) error {
	const (
		visiting = 1
		visited  = 2
	)
	state := make(map[uint64]int)
	var stack []node.Node

	var visit func(n node.Node) error
	visit = func(n node.Node) error {
		if n == nil {
			return nil
		}
		switch state[n.ID()] {
		case visited:
			return nil
		case visiting:
			start := 0
			for i, s := range stack {
				if s.ID() == n.ID() {
					start = i
					break
				}
			}
			cycle := append(append([]node.Node{}, stack[start:]...), n)
			ce := &CycleError{}
			for _, c := range cycle {
				ce.Path = append(ce.Path, c.ID())
				ce.Kinds = append(ce.Kinds, c.Kind())
			}
			return ce
		}
		state[n.ID()] = visiting
		stack = append(stack, n)
		for _, c := range n.Children() {
			if err := visit(c); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[n.ID()] = visited
		return nil
	}

	for _, r := range roots {
		if err := visit(r); err != nil {
			return err
		}
	}
	return nil
}
