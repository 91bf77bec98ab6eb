package pipeline

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/gogpu/gputypes"
	"github.com/mitchellh/hashstructure/v2"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// TargetLayout is the attachment layout a render pipeline writes: the color formats in location order, the depth
// format and the sample count. Two render contexts with the same layout share pipelines.
type TargetLayout struct {
	Formats     []gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
	SampleCount uint32
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	mu *sync.Mutex

	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	label        string
	key          uint64

	program *node_builder.Program
	state   RenderState
	targets TargetLayout
	vertex  []gputypes.VertexBufferLayout

	// handle is the backend pipeline object, set by the backend that created it
	handle any
}

// Pipeline is an immutable description of a GPU pipeline: a compiled program, the fixed-function render state and
// the target layout. Its key hashes all three, so equal descriptions share one backend object.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// Label returns the debug label.
	Label() string

	// Key returns the content hash of program key, vertex layout, render state and target layout.
	//
	// Returns:
	//   - uint64: the key
	Key() uint64

	// PipelineKey returns Key formatted for labels and logs.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Program returns the compiled program.
	Program() *node_builder.Program

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// RenderState returns the fixed-function state.
	RenderState() RenderState

	// Targets returns the attachment layout.
	Targets() TargetLayout

	// VertexLayouts returns the vertex buffer layouts, the program's unless overridden.
	VertexLayouts() []gputypes.VertexBufferLayout

	// Handle returns the backend pipeline object, nil until a backend created it.
	Handle() any

	// SetHandle stores the backend pipeline object.
	SetHandle(h any)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. The pipeline type follows the program: compute
// programs build compute pipelines.
//
// Parameters:
//   - program: the compiled program
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
//   - error: an error if program is nil or the description cannot be hashed
func NewPipeline(program *node_builder.Program, opts ...PipelineBuilderOption) (Pipeline, error) {
	if program == nil {
		return nil, fmt.Errorf("pipeline: program is required")
	}
	p := &pipeline{
		mu:           &sync.Mutex{},
		pipelineType: PipelineTypeRender,
		program:      program,
		state:        DefaultRenderState(),
		label:        program.Label,
	}
	if program.IsCompute() {
		p.pipelineType = PipelineTypeCompute
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.vertex == nil {
		p.vertex = program.VertexLayouts()
	}

	key, err := p.contentKey()
	if err != nil {
		return nil, err
	}
	p.key = key
	return p, nil
}

// contentKey hashes everything that makes two backend pipelines differ. Compute pipelines ignore the render state.
func (p *pipeline) contentKey() (uint64, error) {
	desc := struct {
		Type    PipelineType
		Program uint64
		Vertex  []gputypes.VertexBufferLayout
		State   RenderState
		Targets TargetLayout
	}{Type: p.pipelineType, Program: p.program.Key}
	if p.pipelineType == PipelineTypeRender {
		desc.Vertex = p.vertex
		desc.State = p.state
		desc.Targets = p.targets
	}
	key, err := hashstructure.Hash(desc, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, fmt.Errorf("pipeline %q: hash description: %w", p.label, err)
	}
	return key, nil
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) Label() string {
	return p.label
}

func (p *pipeline) Key() uint64 {
	return p.key
}

func (p *pipeline) PipelineKey() string {
	return fmt.Sprintf("%s:%016x", p.label, p.key)
}

func (p *pipeline) Program() *node_builder.Program {
	return p.program
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.program.Vertex
	case shader.ShaderTypeFragment:
		return p.program.Fragment
	case shader.ShaderTypeCompute:
		return p.program.Compute
	default:
		return nil
	}
}

func (p *pipeline) RenderState() RenderState {
	return p.state
}

func (p *pipeline) Targets() TargetLayout {
	return p.targets
}

func (p *pipeline) VertexLayouts() []gputypes.VertexBufferLayout {
	return p.vertex
}

func (p *pipeline) Handle() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

func (p *pipeline) SetHandle(h any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = h
}
