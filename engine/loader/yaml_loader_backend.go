package loader

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// documentSpec is a decoded graph document before any node is built.
type documentSpec struct {
	Name     string       `yaml:"name"`
	Outputs  []string     `yaml:"outputs"`
	Material materialSpec `yaml:"material"`
	Nodes    nodeTable    `yaml:"nodes"`
}

// materialSpec holds the classic material values and the slot bindings, each naming a node id.
type materialSpec struct {
	Name        string            `yaml:"name"`
	Color       []float32         `yaml:"color"`
	Opacity     *float32          `yaml:"opacity"`
	AlphaTest   float32           `yaml:"alphaTest"`
	Transparent bool              `yaml:"transparent"`
	Side        string            `yaml:"side"`
	Map         string            `yaml:"map"`
	Slots       map[string]string `yaml:"slots"`
}

// nodeSpec is one entry of the nodes table. Which fields apply depends on Op.
type nodeSpec struct {
	Op         string            `yaml:"op"`
	Type       string            `yaml:"type"`
	Name       string            `yaml:"name"`
	Value      floats            `yaml:"value"`
	Args       []string          `yaml:"args"`
	Components string            `yaml:"components"`
	Texture    string            `yaml:"texture"`
	Level      string            `yaml:"level"`
	Bias       string            `yaml:"bias"`
	Load       bool              `yaml:"load"`
	Outputs    map[string]string `yaml:"outputs"`

	File    string `yaml:"file"`
	Width   uint32 `yaml:"width"`
	Height  uint32 `yaml:"height"`
	SRGB    *bool  `yaml:"srgb"`
	Mipmaps bool   `yaml:"mipmaps"`
	Wrap    string `yaml:"wrap"`
	Filter  string `yaml:"filter"`

	line int
}

// nodeTable keeps node ids in document order so diagnostics and builds are deterministic.
type nodeTable struct {
	ids   []string
	specs map[string]nodeSpec
}

func (t *nodeTable) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: nodes must be a mapping of id to node", value.Line)
	}
	t.specs = make(map[string]nodeSpec, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, body := value.Content[i], value.Content[i+1]
		var spec nodeSpec
		if err := body.Decode(&spec); err != nil {
			return &NodeError{ID: key.Value, Line: body.Line, Err: err}
		}
		spec.line = body.Line
		t.ids = append(t.ids, key.Value)
		t.specs[key.Value] = spec
	}
	return nil
}

// floats accepts a scalar or a sequence of numbers. Booleans decode as 0 and 1.
type floats []float64

func (f *floats) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		v, err := parseScalar(value)
		if err != nil {
			return err
		}
		*f = floats{v}
	case yaml.SequenceNode:
		out := make(floats, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: value components must be numbers", item.Line)
			}
			v, err := parseScalar(item)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		*f = out
	default:
		return fmt.Errorf("line %d: value must be a number or a list of numbers", value.Line)
	}
	return nil
}

func parseScalar(n *yaml.Node) (float64, error) {
	if b, err := strconv.ParseBool(n.Value); err == nil && n.Tag == "!!bool" {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %q is not a number", n.Line, n.Value)
	}
	return v, nil
}

// yamlLoaderBackend decodes YAML documents. JSON documents are valid YAML and go through the same decoder.
type yamlLoaderBackend struct{}

var _ loaderBackend = &yamlLoaderBackend{}

func newYAMLLoaderBackend() loaderBackend {
	return &yamlLoaderBackend{}
}

func (b *yamlLoaderBackend) Decode(r io.Reader) (*documentSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var spec documentSpec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	return &spec, nil
}
