// Command oxyc compiles graph documents to WGSL or GLSL.
package main

import (
	"os"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is the state shared by the subcommands once the persistent flags are parsed.
type app struct {
	configPath string
	cfg        Config
	logger     *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: defaultConfig()}
	var flags Config

	root := &cobra.Command{
		Use:          "oxyc",
		Short:        "Compile shader graph documents to WGSL or GLSL",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, required := defaultConfigPath, false
			if cmd.Flags().Changed("config") {
				path, required = a.configPath, true
			}
			cfg, err := loadConfig(path, required)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("target") {
				cfg.Target = flags.Target
			}
			if f.Changed("feature") {
				cfg.Features = flags.Features
			}
			if f.Changed("validate") {
				cfg.Validate = flags.Validate
			}
			if f.Changed("out") {
				cfg.Out = flags.Out
			}
			if f.Changed("debounce") {
				cfg.Debounce = flags.Debounce
			}
			if f.Changed("log-level") {
				cfg.LogLevel = flags.LogLevel
			}
			a.cfg = cfg

			logger, err := common.NewLogger(cfg.LogLevel, false)
			if err != nil {
				return err
			}
			a.logger = logger
			common.SetLogger(logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath, "config file")
	pf.StringVarP(&flags.Target, "target", "t", a.cfg.Target, "shading language: wgsl or glsl")
	pf.StringSliceVar(&flags.Features, "feature", nil, "optional backend feature to compile against, repeatable")
	pf.BoolVar(&flags.Validate, "validate", false, "validate generated WGSL through naga")
	pf.StringVarP(&flags.Out, "out", "o", "", "directory to write shaders to instead of stdout")
	pf.DurationVar(&flags.Debounce, "debounce", a.cfg.Debounce, "watch: quiet period before recompiling")
	pf.StringVar(&flags.LogLevel, "log-level", a.cfg.LogLevel, "debug, info, warn or error")

	root.AddCommand(newCompileCmd(a), newWatchCmd(a), newInspectCmd(a))
	return root
}
