package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const pulse = `
name: pulse
material:
  transparent: true
  side: double
  slots:
    color: tint
    opacity: fade
nodes:
  tint: {op: uniform, type: vec3, value: [1, 0.5, 0.25]}
  speed: {op: uniform, type: float, value: 2}
  t: {op: builtin, name: time}
  phase: {op: mul, args: [t, speed]}
  wave: {op: sin, args: [phase]}
  fade: {op: saturate, args: [wave]}
`

const timeout, tick = time.Second, 5 * time.Millisecond

func newTestLoader(files fstest.MapFS) Loader {
	return NewLoader(BackendTypeYAML, WithFS(files))
}

func TestLoad_BindsSlotsAndCompiles(t *testing.T) {
	l := newTestLoader(fstest.MapFS{"pulse.yaml": {Data: []byte(pulse)}})

	doc, err := l.Load("pulse.yaml")
	require.NoError(t, err)
	assert.Equal(t, "pulse", doc.Name)
	assert.Equal(t, "pulse.yaml", doc.Path)
	assert.Equal(t, []string{"tint", "speed", "t", "phase", "wave", "fade"}, doc.IDs())

	tint, ok := doc.Uniform("tint")
	require.True(t, ok)
	assert.Equal(t, [3]float32{1, 0.5, 0.25}, tint.Value())
	assert.Same(t, node.Node(tint), doc.Material.Node(material.SlotColor))
	assert.Same(t, doc.Node("fade"), doc.Material.Node(material.SlotOpacity))
	assert.Same(t, node.Node(node.Time), doc.Node("t"))
	assert.True(t, doc.Material.Transparent())
	assert.Equal(t, material.SideDouble, doc.Material.Side())

	g, err := doc.Graph()
	require.NoError(t, err)
	prog, err := node_builder.NewNodeBuilder().Compile(context.Background(), g)
	require.NoError(t, err)
	assert.Contains(t, prog.Fragment.Source(), "sin(")
}

func TestLoad_CachesByPath(t *testing.T) {
	l := newTestLoader(fstest.MapFS{"pulse.yaml": {Data: []byte(pulse)}})

	a, err := l.Load("pulse.yaml")
	require.NoError(t, err)
	b, err := l.Load("pulse.yaml")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, l.Documents(), 1)

	l.Evict("pulse.yaml")
	assert.Nil(t, l.Get("pulse.yaml"))
}

func TestLoad_SharedReferenceIsOneNode(t *testing.T) {
	doc, err := newTestLoader(fstest.MapFS{"a.yml": {Data: []byte(`
nodes:
  x: {op: const, type: float, value: 0.5}
  v: {op: join, args: [x, x, x]}
  m: {op: mrt, outputs: {output: v, glow: v}}
`)}}).Load("a.yml")
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Name)

	consts := 0
	require.NoError(t, node.Walk(doc.Node("m"), func(n node.Node) error {
		if _, ok := n.(*node.ConstNode); ok {
			consts++
		}
		return nil
	}))
	assert.Equal(t, 1, consts)
}

func TestLoad_Cycle(t *testing.T) {
	_, err := newTestLoader(fstest.MapFS{"c.yaml": {Data: []byte(`
nodes:
  a: {op: add, args: [b, one]}
  b: {op: sin, args: [a]}
  one: {op: const, type: float, value: 1}
`)}}).Load("c.yaml")
	require.Error(t, err)

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle), err)
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Path)
	assert.Len(t, multierr.Errors(errors.Unwrap(err)), 1)
}

func TestLoad_ReportsEveryNodeError(t *testing.T) {
	_, err := newTestLoader(fstest.MapFS{"e.yaml": {Data: []byte(`
nodes:
  ok: {op: const, type: float, value: 1}
  bad: {op: frobnicate}
  missing: {op: mul, args: [ok, nowhere]}
  short: {op: clamp, args: [ok]}
`)}}).Load("e.yaml")
	require.Error(t, err)

	errs := multierr.Errors(errors.Unwrap(err))
	require.Len(t, errs, 3)
	var ne *NodeError
	require.True(t, errors.As(errs[0], &ne))
	assert.Equal(t, "bad", ne.ID)
	assert.Equal(t, 4, ne.Line)
	assert.Contains(t, errs[1].Error(), `unknown node "nowhere"`)
	assert.Contains(t, errs[2].Error(), "clamp takes 3 arguments")
}

func TestLoad_MaterialErrors(t *testing.T) {
	_, err := newTestLoader(fstest.MapFS{"m.yaml": {Data: []byte(`
material:
  slots: {shine: x, color: y}
nodes:
  x: {op: const, type: float, value: 1}
`)}}).Load("m.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown material slot "shine"`)
	assert.Contains(t, err.Error(), `unknown node "y"`)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := newTestLoader(fstest.MapFS{}).Load("model.glb")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoad_TextureFile(t *testing.T) {
	files := fstest.MapFS{
		"docs/tex.yaml": {Data: []byte(`
material:
  map: albedo
  slots: {color: texel}
nodes:
  albedo: {op: texture, file: img/albedo.png, srgb: false, wrap: clamp, filter: nearest}
  uv: {op: builtin, name: uv}
  sampled: {op: sample, texture: albedo, args: [uv]}
  texel: {op: swizzle, args: [sampled], components: rgb}
`)},
		"docs/img/albedo.png": {Data: pngBytes(t)},
	}
	doc, err := newTestLoader(files).Load("docs/tex.yaml")
	require.NoError(t, err)

	tex, ok := doc.Texture("albedo")
	require.True(t, ok)
	value := tex.Value()
	assert.Equal(t, uint32(2), value.Width())
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, value.Format())
	assert.True(t, value.Ready())
	assert.Equal(t, gputypes.AddressModeClampToEdge, value.Sampler().AddressModeU)
	assert.Equal(t, gputypes.FilterModeNearest, value.Sampler().MagFilter)
	assert.Same(t, value, doc.Material.Map())

	doc.Dispose()
	assert.True(t, value.Disposed())
}

func TestLoad_TextureFileOnExecutor(t *testing.T) {
	e := common.NewExecutor(1, 4)
	t.Cleanup(e.Stop)
	files := fstest.MapFS{
		"t.yaml":      {Data: []byte("nodes:\n  albedo: {op: texture, file: a.png}\n")},
		"a.png":       {Data: pngBytes(t)},
		"linear.yaml": {Data: []byte("nodes:\n  albedo: {op: texture, file: a.png, srgb: false}\n")},
		"broken.yaml": {Data: []byte("nodes:\n  albedo: {op: texture, file: nope.png}\n")},
	}
	l := NewLoader(BackendTypeYAML, WithFS(files), WithExecutor(e))

	for file, format := range map[string]gputypes.TextureFormat{
		"t.yaml":      gputypes.TextureFormatRGBA8UnormSrgb,
		"linear.yaml": gputypes.TextureFormatRGBA8Unorm,
	} {
		doc, err := l.Load(file)
		require.NoError(t, err)
		tex, _ := doc.Texture("albedo")
		assert.Equal(t, format, tex.Value().Format(), "format is known before the load resolves")
		assert.Eventually(t, tex.Value().Poll, timeout, tick)
		assert.True(t, tex.Value().Ready())
		assert.NoError(t, tex.Value().LoadError())
		assert.Equal(t, format, tex.Value().Format())
	}

	doc, err := l.Load("broken.yaml")
	require.NoError(t, err)
	tex, _ := doc.Texture("albedo")
	assert.Eventually(t, func() bool {
		tex.Value().Poll()
		return tex.Value().LoadError() != nil
	}, timeout, tick)
}

func TestReload_KeepsCachedDocumentOnError(t *testing.T) {
	files := fstest.MapFS{"pulse.yaml": {Data: []byte(pulse)}}
	l := newTestLoader(files)
	first, err := l.Load("pulse.yaml")
	require.NoError(t, err)

	files["pulse.yaml"] = &fstest.MapFile{Data: []byte("nodes:\n  x: {op: nope}\n")}
	_, err = l.Reload("pulse.yaml")
	require.Error(t, err)
	assert.Same(t, first, l.Get("pulse.yaml"))

	files["pulse.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(pulse, "value: 2", "value: 3", 1))}
	second, err := l.Reload("pulse.yaml")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	speed, _ := second.Uniform("speed")
	assert.Equal(t, float32(3), speed.Value())
}

func TestLoadReader_JSON(t *testing.T) {
	l := NewLoader(BackendTypeYAML)
	doc, err := l.LoadReader("inline", strings.NewReader(
		`{"name": "flat", "outputs": ["output"], "nodes": {"c": {"op": "const", "type": "vec4", "value": [1, 0, 0, 1]}}, "material": {"slots": {"output": "c"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "flat", doc.Name)
	assert.Equal(t, []string{"output"}, doc.Outputs)
	assert.Same(t, doc, l.Get("inline"))
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := NewLoader(BackendTypeYAML).LoadReader("x", strings.NewReader("nodez: {}\n"))
	assert.Error(t, err)
}

func TestUniformValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     node.DataType
		value   floats
		want    any
		wantErr bool
	}{
		{"float", node.Float, floats{2}, float32(2), false},
		{"float zero", node.Float, nil, float32(0), false},
		{"uint", node.Uint, floats{7}, uint32(7), false},
		{"splat vec3", node.Vec3, floats{0.5}, [3]float32{0.5, 0.5, 0.5}, false},
		{"vec2", node.Vec2, floats{1, 2}, [2]float32{1, 2}, false},
		{"identity mat4", node.Mat4, nil, common.Identity4(), false},
		{"short vec4", node.Vec4, floats{1, 2}, nil, true},
		{"bool", node.Bool, floats{1}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := uniformValue(tt.typ, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
