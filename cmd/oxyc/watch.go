package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Carmen-Shannon/oxy-graph/engine/loader"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <document>...",
		Short: "Recompile documents whenever they change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nb, err := a.cfg.builder()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l := loader.NewLoader(loader.BackendTypeYAML, loader.WithLogger(a.logger))
			defer l.Dispose()

			out := cmd.OutOrStdout()
			recompile := func(path string, doc *loader.Document, err error) {
				if err == nil {
					err = a.build(ctx, nb, out, doc)
				}
				if err != nil {
					a.logger.Error("compile failed", zap.String("path", path), zap.Error(err))
					return
				}
				a.logger.Info("compiled", zap.String("path", path))
			}

			w, err := loader.NewWatcher(l, recompile,
				loader.WithDebounce(a.cfg.Debounce),
				loader.WithWatcherLogger(a.logger),
			)
			if err != nil {
				return err
			}
			defer w.Close()

			for _, path := range args {
				doc, err := w.Add(path)
				recompile(path, doc, err)
			}
			a.logger.Info("watching", zap.Strings("documents", args))

			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
