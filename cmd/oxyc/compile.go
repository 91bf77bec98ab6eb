package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newCompileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <document>...",
		Short: "Compile documents and print or write their shaders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb, err := a.cfg.builder()
			if err != nil {
				return err
			}
			l := loader.NewLoader(loader.BackendTypeYAML, loader.WithLogger(a.logger))
			defer l.Dispose()

			var errs error
			for _, path := range args {
				doc, err := l.Load(path)
				if err == nil {
					err = a.build(cmd.Context(), nb, cmd.OutOrStdout(), doc)
				}
				errs = multierr.Append(errs, err)
			}
			return errs
		},
	}
}

// build compiles doc and emits its shaders.
func (a *app) build(ctx context.Context, nb node_builder.NodeBuilder, w io.Writer, doc *loader.Document) error {
	prog, err := compileDocument(ctx, nb, doc)
	if err != nil {
		return err
	}
	return a.emit(w, doc, prog)
}

func compileDocument(ctx context.Context, nb node_builder.NodeBuilder, doc *loader.Document) (*node_builder.Program, error) {
	g, err := doc.Graph()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Path, err)
	}
	prog, err := nb.Compile(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Path, err)
	}
	return prog, nil
}

// emit writes each stage to <out>/<name>.<stage>.<target>, or lists them on w when no directory is configured.
func (a *app) emit(w io.Writer, doc *loader.Document, prog *node_builder.Program) error {
	stages := []struct {
		name string
		s    shader.Shader
	}{
		{"vert", prog.Vertex},
		{"frag", prog.Fragment},
	}

	if a.cfg.Out == "" {
		for _, st := range stages {
			if _, err := fmt.Fprintf(w, "// %s.%s key=%016x\n%s\n", doc.Name, st.name, prog.Key, st.s.Source()); err != nil {
				return err
			}
		}
		return nil
	}

	if err := os.MkdirAll(a.cfg.Out, 0o755); err != nil {
		return err
	}
	for _, st := range stages {
		path := filepath.Join(a.cfg.Out, fmt.Sprintf("%s.%s.%s", doc.Name, st.name, prog.Target))
		if err := os.WriteFile(path, []byte(st.s.Source()), 0o644); err != nil {
			return err
		}
		a.logger.Info("wrote shader", zap.String("path", path))
	}
	return nil
}
