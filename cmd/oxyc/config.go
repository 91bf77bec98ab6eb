package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/node"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"gopkg.in/yaml.v3"
)

// defaultConfigPath is read when present and no --config flag is given.
const defaultConfigPath = "oxyc.yaml"

// Config holds the settings shared by every command. Flags override file values.
type Config struct {
	Target   string        `yaml:"target"`
	Features []string      `yaml:"features"`
	Validate bool          `yaml:"validate"`
	Out      string        `yaml:"out"`
	Debounce time.Duration `yaml:"debounce"`
	LogLevel string        `yaml:"logLevel"`
}

func defaultConfig() Config {
	return Config{
		Target:   "wgsl",
		Debounce: 100 * time.Millisecond,
		LogLevel: "info",
	}
}

// loadConfig reads path over the defaults. A missing file is an error only when required is set.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// builder creates the node builder the config describes.
func (c Config) builder() (node_builder.NodeBuilder, error) {
	target, err := node.ParseTarget(c.Target)
	if err != nil {
		return nil, err
	}
	var features node.Features
	for _, name := range c.Features {
		f, err := node.ParseFeature(name)
		if err != nil {
			return nil, err
		}
		features = features.With(f)
	}

	opts := []node_builder.NodeBuilderOption{
		node_builder.WithTarget(target),
		node_builder.WithFeatures(features),
	}
	if c.Validate {
		if target != node.TargetWGSL {
			return nil, fmt.Errorf("validation is only available for wgsl, not %s", target)
		}
		v, err := node_builder.NewValidator(64)
		if err != nil {
			return nil, err
		}
		opts = append(opts, node_builder.WithValidator(v))
	}
	return node_builder.NewNodeBuilder(opts...), nil
}
