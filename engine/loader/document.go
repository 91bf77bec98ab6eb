package loader

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-graph/engine/resource"
)

// Document is a loaded graph document: a material whose slots point into a table of named nodes.
type Document struct {
	// Name is the document name, or the file name without extension when the document has none.
	Name string

	// Path is the path or cache key the document was loaded from.
	Path string

	// Material shades surfaces with the document's slot bindings.
	Material material.Material

	// Outputs are the color attachment names the graph renders to. Empty means a single "output" attachment.
	Outputs []string

	nodes    map[string]node.Node
	ids      []string
	textures []resource.Texture
}

// Node returns the node built for id, nil when the document has none.
func (d *Document) Node(id string) node.Node {
	return d.nodes[id]
}

// IDs returns the node ids in document order.
func (d *Document) IDs() []string {
	return slices.Clone(d.ids)
}

// Uniform returns the uniform node built for id. Setting its value changes the rendered output without a
// recompile.
//
// Parameters:
//   - id: the node id
//
// Returns:
//   - *node.UniformNode: the uniform
//   - bool: false when id is missing or not a uniform
func (d *Document) Uniform(id string) (*node.UniformNode, bool) {
	u, ok := d.nodes[id].(*node.UniformNode)
	return u, ok
}

// Texture returns the texture node built for id.
func (d *Document) Texture(id string) (*node.TextureNode, bool) {
	t, ok := d.nodes[id].(*node.TextureNode)
	return t, ok
}

// Graph assembles the compile input of the document's material for its outputs.
func (d *Document) Graph() (node_builder.Graph, error) {
	return d.Material.Graph(d.Outputs)
}

// Dispose releases the material, every cache entry built for it and the textures the document created.
func (d *Document) Dispose() {
	d.Material.Dispose()
	for _, t := range d.textures {
		t.Dispose()
	}
}
