package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <document>...",
		Short: "Print the program key and binding tables of documents",
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
				if err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				prog, err := compileDocument(cmd.Context(), nb, doc)
				if err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				errs = multierr.Append(errs, inspect(cmd.OutOrStdout(), doc, prog))
			}
			return errs
		},
	}
}

// inspect prints one table per binding kind. Empty kinds are skipped.
func inspect(w io.Writer, doc *loader.Document, prog *node_builder.Program) error {
	outputs := prog.Outputs
	if len(outputs) == 0 {
		outputs = []string{"output"}
	}
	if _, err := fmt.Fprintf(w, "%s\n  key:      %016x\n  target:   %s\n  outputs:  %s\n  features: %s\n",
		doc.Name, prog.Key, prog.Target, strings.Join(outputs, ", "), prog.Features); err != nil {
		return err
	}

	var attrs, varyings, uniforms, textures [][]string
	for _, at := range prog.Attributes {
		attrs = append(attrs, []string{strconv.Itoa(int(at.Location)), at.Name, at.Type.String(), fmt.Sprint(at.Format)})
	}
	for _, v := range prog.Varyings {
		varyings = append(varyings, []string{strconv.Itoa(int(v.Location)), v.Name, v.Type.String(), strconv.FormatBool(v.Flat)})
	}
	for _, g := range prog.UniformGroups {
		for _, m := range g.Members {
			uniforms = append(uniforms, []string{
				fmt.Sprintf("%d.%d", g.BindGroup, g.Binding), g.Group.String(), m.Name, m.Type.String(), strconv.Itoa(int(m.Offset)),
			})
		}
	}
	for _, t := range prog.Textures {
		textures = append(textures, []string{
			fmt.Sprintf("%d.%d", t.Group, t.Binding), t.Name, t.Type.String(), fmt.Sprintf("%d.%d", t.Group, t.SamplerBinding), t.SamplerName,
		})
	}

	sections := []struct {
		title  string
		header []string
		rows   [][]string
	}{
		{"attributes", []string{"Location", "Name", "Type", "Format"}, attrs},
		{"varyings", []string{"Location", "Name", "Type", "Flat"}, varyings},
		{"uniforms", []string{"Binding", "Group", "Name", "Type", "Offset"}, uniforms},
		{"textures", []string{"Binding", "Name", "Type", "Sampler", "Sampler Name"}, textures},
	}
	for _, s := range sections {
		if len(s.rows) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s\n", s.title); err != nil {
			return err
		}
		table := tablewriter.NewWriter(w)
		if err := table.Append(s.header); err != nil {
			return err
		}
		for _, row := range s.rows {
			if err := table.Append(row); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}
