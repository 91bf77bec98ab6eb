package node_builder

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/gogpu/gputypes"
	"go.uber.org/multierr"
)

// errSetupFailed marks a build of a node whose setup already reported a diagnostic.
var errSetupFailed = errors.New("node setup failed")

// stageState holds the generated body and the bookkeeping of one stage.
type stageState struct {
	stage  node.Stage
	body   strings.Builder
	depth  int
	scopes []map[uint64]string

	// usage counts the references of every node key found during setup.
	usage  map[uint64]int
	done   map[uint64]bool
	failed map[uint64]bool

	counters map[string]int
	features node.Features
	builtins map[node.BuiltinKind]bool
	groups   map[node.UniformGroup]bool
	textures map[int]bool
	storage  map[int]bool
}

func newStageState(stage node.Stage) *stageState {
	return &stageState{
		stage:    stage,
		depth:    1,
		scopes:   []map[uint64]string{{}},
		usage:    make(map[uint64]int),
		done:     make(map[uint64]bool),
		failed:   make(map[uint64]bool),
		counters: make(map[string]int),
		builtins: make(map[node.BuiltinKind]bool),
		groups:   make(map[node.UniformGroup]bool),
		textures: make(map[int]bool),
		storage:  make(map[int]bool),
	}
}

func (st *stageState) lookup(key uint64) (string, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if expr, ok := st.scopes[i][key]; ok {
			return expr, true
		}
	}
	return "", false
}

func (st *stageState) memo(key uint64, expr string) {
	st.scopes[len(st.scopes)-1][key] = expr
}

// uniformGroup accumulates the members of one uniform buffer.
type uniformGroup struct {
	layout  *UniformGroupLayout
	packing common.UniformLayout
	members map[uint64]string
}

type varyingEntry struct {
	name   string
	source node.Node
	typ    node.DataType
	flat   bool
}

var uniformGroupNames = map[node.UniformGroup][2]string{
	node.GroupRender:   {"RenderUniforms", "render"},
	node.GroupObject:   {"ObjectUniforms", "object"},
	node.GroupMaterial: {"MaterialUniforms", "material"},
}

var uniformBindGroups = map[node.UniformGroup]uint32{
	node.GroupRender:   GroupRender,
	node.GroupObject:   GroupObject,
	node.GroupMaterial: GroupMaterial,
}

// session is one compile of one graph. It implements node.Builder for every node of the graph.
type session struct {
	t        target
	graph    Graph
	features node.Features
	errs     error

	stage  node.Stage
	stages map[node.Stage]*stageState

	types   map[uint64]node.DataType
	mutable map[uint64]bool

	// globals holds every module-scope identifier so locals never shadow them.
	globals map[string]bool

	uniforms     map[node.UniformGroup]*uniformGroup
	textures     []*TextureBinding
	textureIndex map[uint64]int
	storage      []*StorageBinding
	storageIndex map[uint64]int
	attributes   []AttributeLayout
	varyings     []*varyingEntry
	varyingNames map[string]*varyingEntry
	varyingKeys  map[uint64]*varyingEntry
	vertexDone   bool

	updaters       []node.Updater
	beforeUpdaters []node.BeforeUpdater
	collected      map[uint64]bool
}

var _ node.Builder = &session{}

func newSession(t target, g Graph, features node.Features) *session {
	return &session{
		t:            t,
		graph:        g,
		features:     features,
		stages:       make(map[node.Stage]*stageState),
		types:        make(map[uint64]node.DataType),
		mutable:      make(map[uint64]bool),
		globals:      make(map[string]bool),
		uniforms:     make(map[node.UniformGroup]*uniformGroup),
		textureIndex: make(map[uint64]int),
		storageIndex: make(map[uint64]int),
		varyingNames: make(map[string]*varyingEntry),
		varyingKeys:  make(map[uint64]*varyingEntry),
		collected:    make(map[uint64]bool),
	}
}

// enter switches the session to stage, creating its state on first use.
func (s *session) enter(stage node.Stage) *stageState {
	s.stage = stage
	st, ok := s.stages[stage]
	if !ok {
		st = newStageState(stage)
		s.stages[stage] = st
	}
	return st
}

func (s *session) cur() *stageState {
	return s.enter(s.stage)
}

func (s *session) fail(err error) {
	if err != nil && !errors.Is(err, errSetupFailed) {
		s.errs = multierr.Append(s.errs, err)
	}
}

// setup runs Setup children first over the stage-scoped children of n. A node is set up once per stage; every
// further reference only raises its usage count. A failed child skips the setup of its parents so one mistake
// reports one diagnostic.
func (s *session) setup(n node.Node) bool {
	if n == nil {
		return true
	}
	st := s.cur()
	key := n.Key()
	st.usage[key]++
	if st.usage[key] > 1 {
		return !st.failed[key]
	}

	children := n.Children()
	if sc, ok := n.(node.StageScoped); ok {
		children = sc.ChildrenIn(st.stage)
	}
	ok := true
	for _, c := range children {
		if !s.setup(c) {
			ok = false
		}
	}
	if !ok {
		st.failed[key] = true
		return false
	}
	if err := n.Setup(s); err != nil {
		s.fail(err)
		st.failed[key] = true
		return false
	}
	st.done[key] = true
	s.collect(n)
	return true
}

// collect records the runtime hooks of n once per compile.
func (s *session) collect(n node.Node) {
	if s.collected[n.ID()] {
		return
	}
	s.collected[n.ID()] = true
	if u, ok := n.(node.Updater); ok && u.UpdateType() != node.UpdateNone {
		s.updaters = append(s.updaters, u)
	}
	if u, ok := n.(node.BeforeUpdater); ok && u.UpdateBeforeType() != node.UpdateNone {
		s.beforeUpdaters = append(s.beforeUpdaters, u)
	}
}

// isMutable reports whether n or anything below it reads state that can change between two reads.
func (s *session) isMutable(n node.Node) bool {
	key := n.Key()
	if m, ok := s.mutable[key]; ok {
		return m
	}
	m := false
	if mn, ok := n.(node.Mutable); ok && mn.Mutable() {
		m = true
	}
	for _, c := range n.Children() {
		if m {
			break
		}
		m = s.isMutable(c)
	}
	s.mutable[key] = m
	return m
}

func (s *session) Stage() node.Stage {
	return s.stage
}

func (s *session) Target() node.Target {
	return s.t.Language()
}

func (s *session) HasFeature(f node.Feature) bool {
	return s.features.Has(f)
}

func (s *session) TypeOf(n node.Node) (node.DataType, error) {
	if n == nil {
		return node.Void, fmt.Errorf("type of a nil node")
	}
	key := n.Key()
	if t, ok := s.types[key]; ok {
		return t, nil
	}
	t, err := n.Type(s)
	if err != nil {
		return node.Void, err
	}
	s.types[key] = t
	return t, nil
}

// Build generates n once per scope and converts the result to output. Pure expressions referenced more than once
// are stored in a temporary at their first use. Void nodes are statements and are emitted on every call.
func (s *session) Build(n node.Node, output node.DataType) (string, error) {
	if n == nil {
		return "", fmt.Errorf("build of a nil node")
	}
	t, err := s.TypeOf(n)
	if err != nil {
		return "", err
	}
	st := s.cur()
	if t.Base() == node.Half {
		st.features = st.features.With(node.FeatureShaderF16)
	}
	key := n.Key()
	expr, ok := st.lookup(key)
	if !ok {
		if st.failed[key] {
			return "", errSetupFailed
		}
		if !st.done[key] && !s.setup(n) {
			return "", errSetupFailed
		}
		if expr, err = n.Generate(s); err != nil {
			return "", err
		}
		if t != node.Void && st.usage[key] > 1 && !isTrivial(expr) && !s.isMutable(n) {
			name := s.UniqueName("node" + strings.ToUpper(n.Kind()[:1]) + n.Kind()[1:])
			decl, err := s.t.DeclareConst(name, t, expr)
			if err != nil {
				return "", s.TypeError(n, "%v", err)
			}
			s.Line(decl)
			expr = name
		}
		// statements run again on every reference
		if t != node.Void {
			st.memo(key, expr)
		}
	}
	return s.convert(n, expr, t, output)
}

// convert adapts expr of type from to the type a consumer asked for: integers become floats, scalars splat and
// narrow vectors widen with 0 for missing components and 1 for w. Anything else is a type error.
func (s *session) convert(n node.Node, expr string, from, to node.DataType) (string, error) {
	if to == node.Void || from == to {
		return expr, nil
	}
	if from == node.Void {
		return "", s.TypeError(n, "statement used as a %s value", to)
	}
	if from.IsMatrix() || to.IsMatrix() || from.Base() == node.Bool || to.Base() == node.Bool ||
		!from.IsNumeric() || !to.IsNumeric() {
		return "", s.TypeError(n, "cannot use %s as %s", from, to)
	}

	fb, tb := from.Base(), to.Base()
	if fb != tb {
		if !tb.IsFloat() || fb.IsFloat() {
			return "", s.TypeError(n, "cannot use %s as %s without an explicit conversion", from, to)
		}
		cast := node.VectorOf(tb, from.Components())
		var err error
		if expr, err = s.t.Cast(expr, from, cast); err != nil {
			return "", s.TypeError(n, "%v", err)
		}
		from = cast
	}

	fc, tc := from.Components(), to.Components()
	switch {
	case fc == tc:
		return expr, nil
	case fc == 1:
		out, err := s.t.Cast(expr, from, to)
		if err != nil {
			return "", s.TypeError(n, "%v", err)
		}
		return out, nil
	case fc > tc:
		return "", s.TypeError(n, "cannot narrow %s to %s implicitly, use a swizzle", from, to)
	}

	pad := map[[2]int][]float64{{2, 3}: {0}, {2, 4}: {0, 1}, {3, 4}: {1}}[[2]int{fc, tc}]
	args := []string{expr}
	for _, v := range pad {
		lit, err := s.t.Literal(tb, []float64{v})
		if err != nil {
			return "", s.TypeError(n, "%v", err)
		}
		args = append(args, lit)
	}
	out, err := s.t.Construct(to, args)
	if err != nil {
		return "", s.TypeError(n, "%v", err)
	}
	return out, nil
}

func (s *session) TypeName(t node.DataType) (string, error) {
	return s.t.TypeName(t)
}

func (s *session) Literal(t node.DataType, values ...float64) (string, error) {
	return s.t.Literal(t, values)
}

func (s *session) Construct(t node.DataType, args ...string) (string, error) {
	return s.t.Construct(t, args)
}

func (s *session) Cast(expr string, from, to node.DataType) (string, error) {
	return s.t.Cast(expr, from, to)
}

func (s *session) Bitcast(expr string, from, to node.DataType) (string, error) {
	return s.t.Bitcast(expr, from, to)
}

func (s *session) Call(fn string, args ...string) (string, error) {
	return s.t.Call(fn, args)
}

func (s *session) Sample(req node.SampleRequest) (string, error) {
	expr, err := s.t.Sample(req, s.stage)
	if err != nil {
		return "", s.TypeError(req.Texture, "%v", err)
	}
	return expr, nil
}

func (s *session) Subgroup(op string, expr string, t node.DataType) (string, error) {
	st := s.cur()
	st.features = st.features.With(node.FeatureSubgroups)
	return s.t.Subgroup(op, expr, t)
}

func (s *session) Builtin(kind node.BuiltinKind) (string, error) {
	st := s.cur()
	st.builtins[kind] = true
	if kind == node.BuiltinSubgroupSize || kind == node.BuiltinSubgroupInvocationID {
		st.features = st.features.With(node.FeatureSubgroups)
	}
	return s.t.BuiltinExpr(kind), nil
}

func (s *session) Uniform(u *node.UniformNode) (string, error) {
	g, ok := s.uniforms[u.Group()]
	if !ok {
		names := uniformGroupNames[u.Group()]
		g = &uniformGroup{
			layout: &UniformGroupLayout{
				Group:        u.Group(),
				BindGroup:    uniformBindGroups[u.Group()],
				BlockName:    names[0],
				InstanceName: names[1],
			},
			members: make(map[uint64]string),
		}
		s.uniforms[u.Group()] = g
		s.globals[names[0]] = true
		s.globals[names[1]] = true
	}

	member, ok := g.members[u.ID()]
	if !ok {
		t, err := s.TypeOf(u)
		if err != nil {
			return "", err
		}
		base := sanitize(u.Name())
		member = base
		for i := 1; ; i++ {
			if _, taken := g.packing.Member(member); !taken {
				break
			}
			member = fmt.Sprintf("%s_%d", base, i)
		}
		m := g.packing.Add(member, t.ByteSize(), t.Align())
		g.layout.Members = append(g.layout.Members, UniformMember{Node: u, Name: member, Type: t, Offset: m.Offset})
		g.layout.Size = g.packing.Size()
		g.members[u.ID()] = member
	}
	s.cur().groups[u.Group()] = true
	return s.t.UniformExpr(g.layout, member), nil
}

func (s *session) TextureBinding(t *node.TextureNode) (string, string, error) {
	idx, ok := s.textureIndex[t.ID()]
	if !ok {
		tex := t.Value()
		if tex == nil {
			return "", "", s.TypeError(t, "texture node has no texture bound")
		}
		dt, err := s.TypeOf(t)
		if err != nil {
			return "", "", err
		}
		idx = len(s.textures)
		name, samplerName := s.t.TextureNames(idx)
		s.textures = append(s.textures, &TextureBinding{
			Node:          t,
			Name:          name,
			SamplerName:   samplerName,
			Group:         GroupMaterial,
			Type:          dt,
			ViewDimension: tex.ViewDimension(),
			SampleType:    t.SampleType(),
			Comparison:    t.Compare(),
		})
		s.textureIndex[t.ID()] = idx
		s.globals[name] = true
		s.globals[samplerName] = true
	}
	s.cur().textures[idx] = true
	b := s.textures[idx]
	return b.Name, b.SamplerName, nil
}

func (s *session) StorageBinding(sb *node.StorageBufferNode) (string, error) {
	idx, ok := s.storageIndex[sb.ID()]
	if !ok {
		name := s.t.StorageName(s.globalName(sb.Name()))
		idx = len(s.storage)
		s.storage = append(s.storage, &StorageBinding{
			Node:     sb,
			Name:     name,
			Group:    GroupMaterial,
			Element:  sb.ElementType(),
			ReadOnly: sb.ReadOnly(),
		})
		s.storageIndex[sb.ID()] = idx
	}
	s.cur().storage[idx] = true
	return s.storage[idx].Name, nil
}

// globalName reserves a module-scope identifier derived from name.
func (s *session) globalName(name string) string {
	base := sanitize(name)
	out := base
	for i := 1; s.globals[out]; i++ {
		out = fmt.Sprintf("%s_%d", base, i)
	}
	s.globals[out] = true
	return out
}

func (s *session) VertexAttribute(name string, t node.DataType) (string, error) {
	if s.stage != node.StageVertex {
		return "", fmt.Errorf("attribute %q read in the %s stage", name, s.stage)
	}
	for _, a := range s.attributes {
		if a.Name != name {
			continue
		}
		if a.Type != t {
			return "", fmt.Errorf("attribute %q read as %s and %s", name, a.Type, t)
		}
		return s.t.AttributeExpr(a.Ident), nil
	}
	format, err := vertexFormat(t)
	if err != nil {
		return "", err
	}
	ident := sanitize(name)
	s.attributes = append(s.attributes, AttributeLayout{
		Name:     name,
		Ident:    ident,
		Type:     t,
		Location: uint32(len(s.attributes)),
		Format:   format,
	})
	return s.t.AttributeExpr(ident), nil
}

func (s *session) RegisterVarying(source node.Node, name string, flat bool) error {
	if name == "" {
		if v, ok := s.varyingKeys[source.Key()]; ok {
			v.flat = v.flat || flat
			return nil
		}
		name = fmt.Sprintf("varying%d", len(s.varyings))
	}
	ident := sanitize(name)
	if v, ok := s.varyingNames[ident]; ok {
		if v.source.Key() != source.Key() {
			return s.TypeError(source, "varying %q already carries another value", name)
		}
		v.flat = v.flat || flat
		return nil
	}
	if s.vertexDone {
		return s.TypeError(source, "varying %q registered after the vertex stage was generated", name)
	}
	t, err := s.TypeOf(source)
	if err != nil {
		return err
	}
	v := &varyingEntry{name: ident, source: source, typ: t, flat: flat}
	s.varyings = append(s.varyings, v)
	s.varyingNames[ident] = v
	if _, ok := s.varyingKeys[source.Key()]; !ok {
		s.varyingKeys[source.Key()] = v
	}
	s.globals[ident] = true
	return nil
}

func (s *session) Varying(source node.Node, name string) (string, error) {
	var v *varyingEntry
	if name == "" {
		v = s.varyingKeys[source.Key()]
	} else {
		v = s.varyingNames[sanitize(name)]
	}
	if v == nil {
		return "", s.TypeError(source, "varying %q is not registered", name)
	}
	return s.t.VaryingExpr(v.name), nil
}

func (s *session) UniqueName(prefix string) string {
	st := s.cur()
	p := sanitize(prefix)
	for {
		name := fmt.Sprintf("%s%d", p, st.counters[p])
		st.counters[p]++
		if !s.globals[name] {
			return name
		}
	}
}

func (s *session) DeclareVar(prefix string, t node.DataType, init string) (string, error) {
	name := s.UniqueName(prefix)
	decl, err := s.t.DeclareVar(name, t, init)
	if err != nil {
		return "", err
	}
	s.Line(decl)
	return name, nil
}

func (s *session) Line(code string) {
	st := s.cur()
	st.body.WriteString(strings.Repeat("\t", st.depth))
	st.body.WriteString(code)
	st.body.WriteString(";\n")
}

func (s *session) OpenScope(header string) {
	st := s.cur()
	st.body.WriteString(strings.Repeat("\t", st.depth))
	st.body.WriteString(header)
	st.body.WriteString(" {\n")
	st.depth++
	st.scopes = append(st.scopes, map[uint64]string{})
}

// CloseScope ends the innermost block. Expressions built inside it are forgotten.
func (s *session) CloseScope() {
	st := s.cur()
	if len(st.scopes) > 1 {
		st.scopes = st.scopes[:len(st.scopes)-1]
		st.depth--
	}
	st.body.WriteString(strings.Repeat("\t", st.depth))
	st.body.WriteString("}\n")
}

func (s *session) Bind(n node.Node, expr string) {
	s.cur().memo(n.Key(), expr)
}

func (s *session) LoopHeader(counter, start, end string) string {
	return s.t.LoopHeader(counter, start, end)
}

func (s *session) TypeError(n node.Node, format string, args ...any) error {
	id, kind := nodeIdent(n)
	return &TypeError{NodeID: id, Kind: kind, Stage: s.stage, Target: s.Target(), Msg: fmt.Sprintf(format, args...)}
}

func (s *session) StageError(n node.Node, allowed ...node.Stage) error {
	id, kind := nodeIdent(n)
	return &StageError{NodeID: id, Kind: kind, Stage: s.stage, Target: s.Target(), Allowed: allowed}
}

func (s *session) Unsupported(n node.Node, feature string) error {
	id, kind := nodeIdent(n)
	return &UnsupportedFeatureError{NodeID: id, Kind: kind, Stage: s.stage, Target: s.Target(), Feature: feature}
}

func nodeIdent(n node.Node) (uint64, string) {
	if n == nil {
		return 0, "graph"
	}
	return n.ID(), n.Kind()
}

// generate runs setup and generation of every stage of the graph.
func (s *session) generate() error {
	if s.graph.Compute != nil {
		return s.generateCompute()
	}
	return s.generateRender()
}

func (s *session) generateCompute() error {
	if s.graph.Vertex != nil || s.graph.Fragment != nil {
		return &TypeError{Kind: "graph", Stage: node.StageCompute, Target: s.Target(), Msg: "a compute graph has no vertex or fragment root"}
	}
	s.enter(node.StageCompute)
	if !s.setup(s.graph.Compute) {
		return s.errs
	}
	_, err := s.Build(s.graph.Compute, node.Void)
	s.fail(err)
	return s.errs
}

func (s *session) generateRender() error {
	if s.graph.Vertex == nil || s.graph.Fragment == nil {
		return &TypeError{Kind: "graph", Stage: node.StageVertex, Target: s.Target(), Msg: "a render graph needs a vertex and a fragment root"}
	}
	if len(s.graph.ClipDistances) > 0 && !s.features.Has(node.FeatureClipDistances) {
		s.fail(s.withStage(node.StageVertex).Unsupported(s.graph.ClipDistances[0], node.FeatureClipDistances.String()))
	}
	if s.graph.Multiview > 1 && (!s.features.Has(node.FeatureMultiview) || s.Target() != node.TargetGLSL) {
		s.fail(s.withStage(node.StageVertex).Unsupported(nil, node.FeatureMultiview.String()))
	}

	// The fragment stage registers the varyings the vertex stage must write.
	s.enter(node.StageFragment)
	s.setup(s.graph.Fragment)
	s.setup(s.graph.Depth)

	s.enter(node.StageVertex)
	s.setup(s.graph.Vertex)
	for _, c := range s.graph.ClipDistances {
		s.setup(c)
	}
	for _, v := range s.varyings {
		s.setup(v.source)
	}
	if s.errs != nil {
		return s.errs
	}

	if pos, err := s.Build(s.graph.Vertex, node.Vec4); err != nil {
		s.fail(err)
	} else {
		s.Line(s.t.PositionOutput() + " = " + pos)
	}
	for i, c := range s.graph.ClipDistances {
		d, err := s.Build(c, node.Float)
		if err != nil {
			s.fail(err)
			continue
		}
		s.Line(s.t.ClipDistanceOutput(i) + " = " + d)
	}
	for _, v := range s.varyings {
		expr, err := s.Build(v.source, v.typ)
		if err != nil {
			s.fail(err)
			continue
		}
		s.Line(s.t.VaryingExpr(v.name) + " = " + expr)
	}
	s.vertexDone = true

	s.enter(node.StageFragment)
	s.generateOutputs()
	if s.graph.Depth != nil {
		d, err := s.Build(s.graph.Depth, node.Float)
		if err != nil {
			s.fail(err)
		} else {
			s.Line(s.t.DepthOutput() + " = " + d)
		}
	}
	return s.errs
}

// generateOutputs writes every color attachment. An MRT root routes its outputs by name, a plain root writes
// the first attachment. Attachments nothing writes are cleared to zero.
func (s *session) generateOutputs() {
	names := s.graph.outputs()
	mrt, isMRT := s.graph.Fragment.(*node.MRTNode)
	for i, name := range names {
		var src node.Node
		switch {
		case isMRT:
			src, _ = mrt.Output(name)
		case i == 0:
			src = s.graph.Fragment
		}

		var expr string
		var err error
		if src == nil {
			expr, err = s.t.Literal(node.Vec4, []float64{0})
		} else {
			expr, err = s.Build(src, node.Vec4)
		}
		if err != nil {
			s.fail(err)
			continue
		}
		s.Line(s.t.FragmentOutput(sanitize(name)) + " = " + expr)
	}
}

// withStage switches the current stage and returns the session, for diagnostics outside a stage pass.
func (s *session) withStage(stage node.Stage) *session {
	s.stage = stage
	return s
}

// allocate assigns binding indices and stage visibility. The material uniform buffer comes first in its group,
// then texture and sampler pairs, then storage buffers.
func (s *session) allocate() {
	for group, g := range s.uniforms {
		for stage, st := range s.stages {
			if st.groups[group] {
				g.layout.Visibility |= stageVisibility(stage)
			}
		}
	}

	binding := uint32(0)
	if _, ok := s.uniforms[node.GroupMaterial]; ok {
		binding = 1
	}
	for i, t := range s.textures {
		t.Binding = binding
		t.SamplerBinding = binding + 1
		binding += 2
		for stage, st := range s.stages {
			if st.textures[i] {
				t.Visibility |= stageVisibility(stage)
			}
		}
	}
	for i, sb := range s.storage {
		if s.Target() == node.TargetGLSL {
			sb.Binding = uint32(i)
		} else {
			sb.Binding = binding
			binding++
		}
		for stage, st := range s.stages {
			if st.storage[i] {
				sb.Visibility |= stageVisibility(stage)
			}
		}
	}
}

// unit collects what one stage declares.
func (s *session) unit(stage node.Stage) *stageUnit {
	st := s.stages[stage]
	u := &stageUnit{
		stage:     stage,
		label:     s.graph.Label,
		features:  st.features,
		multiview: s.graph.Multiview,
		body:      st.body.String(),
	}
	for _, group := range []node.UniformGroup{node.GroupRender, node.GroupObject, node.GroupMaterial} {
		if g, ok := s.uniforms[group]; ok && st.groups[group] {
			u.uniforms = append(u.uniforms, g.layout)
		}
	}
	for i, t := range s.textures {
		if st.textures[i] {
			u.textures = append(u.textures, t)
		}
	}
	for i, sb := range s.storage {
		if st.storage[i] {
			u.storage = append(u.storage, sb)
		}
	}
	for k := range st.builtins {
		u.builtins = append(u.builtins, k)
	}
	sort.Slice(u.builtins, func(i, j int) bool { return u.builtins[i] < u.builtins[j] })

	switch stage {
	case node.StageVertex:
		u.attributes = s.attributes
		u.varyings = s.varyingLayouts()
		u.clipDistances = len(s.graph.ClipDistances)
	case node.StageFragment:
		u.varyings = s.varyingLayouts()
		for _, name := range s.graph.outputs() {
			u.outputs = append(u.outputs, sanitize(name))
		}
		u.hasDepth = s.graph.Depth != nil
	case node.StageCompute:
		u.workgroupSize = s.graph.Compute.WorkgroupSize()
	}
	return u
}

func (s *session) varyingLayouts() []VaryingLayout {
	out := make([]VaryingLayout, len(s.varyings))
	for i, v := range s.varyings {
		out[i] = VaryingLayout{Name: v.name, Type: v.typ, Location: uint32(i), Flat: v.flat}
	}
	return out
}

// usedFeatures merges the capabilities the stages rely on.
func (s *session) usedFeatures() node.Features {
	var fs node.Features
	for _, st := range s.stages {
		fs |= st.features
	}
	if len(s.graph.ClipDistances) > 0 {
		fs = fs.With(node.FeatureClipDistances)
	}
	if s.graph.Multiview > 1 {
		fs = fs.With(node.FeatureMultiview)
	}
	if len(s.storage) > 0 {
		fs = fs.With(node.FeatureStorageBuffers)
	}
	if s.graph.Compute != nil {
		fs = fs.With(node.FeatureComputeShaders)
	}
	return fs
}

func stageVisibility(stage node.Stage) gputypes.ShaderStages {
	switch stage {
	case node.StageVertex:
		return gputypes.ShaderStageVertex
	case node.StageFragment:
		return gputypes.ShaderStageFragment
	}
	return gputypes.ShaderStageCompute
}
