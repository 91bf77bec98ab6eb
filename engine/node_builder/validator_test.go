package node_builder

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCompute = `
@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
}
`

const brokenVertex = `
@vertex
fn main( {
    return vec4<f32>(0.0);
}
`

func TestValidator_AcceptsValidSource(t *testing.T) {
	v, err := NewValidator(4)
	require.NoError(t, err)

	assert.NoError(t, v.Validate(context.Background(), node.StageCompute, validCompute))
	assert.NoError(t, v.Validate(context.Background(), node.StageCompute, validCompute))
}

func TestValidator_ReportsParseErrors(t *testing.T) {
	v, err := NewValidator(4)
	require.NoError(t, err)

	err = v.Validate(context.Background(), node.StageVertex, brokenVertex)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, node.StageVertex, ve.Stage)
	assert.NotEmpty(t, ve.Messages)
	assert.True(t, IsTerminal(err))

	again := v.Validate(context.Background(), node.StageVertex, brokenVertex)
	assert.Same(t, err, again, "verdicts are cached by source")
}

func TestValidator_RejectsBadSize(t *testing.T) {
	_, err := NewValidator(0)
	assert.Error(t, err)
}

func TestValidator_HonoursCancellation(t *testing.T) {
	v, err := NewValidator(4)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, v.Validate(ctx, node.StageCompute, validCompute), context.Canceled)
}

func TestCheckReflection_MatchesGeneratedLayouts(t *testing.T) {
	prog := compile(t, litGraph(node.Uniform("tint", node.Vec3, [3]float32{1, 1, 1})))
	assert.NoError(t, checkReflection(prog.Vertex, node.StageVertex))
	assert.NoError(t, checkReflection(prog.Fragment, node.StageFragment))
}
