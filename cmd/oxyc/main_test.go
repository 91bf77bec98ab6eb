package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinted = `
name: tinted
material:
  slots: {color: tint}
nodes:
  tint: {op: uniform, type: vec3, value: [1, 0, 0]}
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompile_PrintsBothStages(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "tinted.yaml", tinted)

	out, err := run(t, "compile", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "// tinted.vert key=")
	assert.Contains(t, out, "// tinted.frag key=")
	assert.Contains(t, out, "@fragment")
}

func TestCompile_GLSLToDirectory(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "tinted.yaml", tinted)
	out := filepath.Join(dir, "out")

	_, err := run(t, "compile", "--target", "glsl", "--out", out, doc)
	require.NoError(t, err)

	frag, err := os.ReadFile(filepath.Join(out, "tinted.frag.glsl"))
	require.NoError(t, err)
	assert.Contains(t, string(frag), "#version")
	assert.FileExists(t, filepath.Join(out, "tinted.vert.glsl"))
}

func TestCompile_ValidateNeedsWGSL(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "tinted.yaml", tinted)

	_, err := run(t, "compile", "--target", "glsl", "--validate", doc)
	assert.ErrorContains(t, err, "only available for wgsl")
}

func TestCompile_ReportsEveryFailedDocument(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "tinted.yaml", tinted)
	bad := writeFile(t, dir, "bad.yaml", "nodes:\n  x: {op: nope}\n")

	out, err := run(t, "compile", bad, good, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "nope"`)
	assert.Contains(t, err.Error(), "missing.yaml")
	assert.Contains(t, out, "// tinted.frag")
}

func TestConfig_FileSetsDefaultsAndFlagsWin(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "tinted.yaml", tinted)
	cfg := writeFile(t, dir, "oxyc.yaml", "target: glsl\nlogLevel: warn\n")

	out, err := run(t, "compile", "--config", cfg, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "#version")

	out, err = run(t, "compile", "--config", cfg, "--target", "wgsl", doc)
	require.NoError(t, err)
	assert.NotContains(t, out, "#version")

	_, err = run(t, "compile", "--config", filepath.Join(dir, "nope.yaml"), doc)
	assert.Error(t, err)
}

func TestInspect_PrintsKeyAndTables(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "tinted.yaml", tinted)

	out, err := run(t, "inspect", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "tinted\n  key:")
	assert.Contains(t, out, "target:   wgsl")
	assert.Contains(t, out, "attributes")
	assert.Contains(t, out, "uniforms")
	assert.Contains(t, out, "position")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	_, err = Config{Target: "wgsl", Features: []string{"warp-drive"}}.builder()
	assert.Error(t, err)
}
