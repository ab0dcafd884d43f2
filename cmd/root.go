package cmd

import (
	"github.com/dotside-studios/davi-nfc-bridge/agent"
	"github.com/dotside-studios/davi-nfc-bridge/buildinfo"
	"github.com/dotside-studios/davi-nfc-bridge/config"
	"github.com/dotside-studios/davi-nfc-bridge/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Running it without a subcommand
// serves.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           buildinfo.Name,
		Short:         buildinfo.Description,
		Long:          buildinfo.DisplayName + " reads NFC tags from local readers and phones and fans the discoveries out to WebSocket clients.",
		Version:       buildinfo.FullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: "+config.DefaultDir()+"/config.yaml)")
	config.RegisterFlags(root.PersistentFlags())

	load := func(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return config.Config{}, zerolog.Nop(), err
		}
		logger, err := logging.New(cfg.LogLevel, cfg.LogPretty)
		if err != nil {
			return config.Config{}, zerolog.Nop(), err
		}
		return cfg, logger, nil
	}

	serve := newServeCommand(load)
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		newWatchCommand(load),
		newProbeCommand(load),
		newDevicesCommand(),
		newVersionCommand(),
	)
	return root
}

type loader func(cmd *cobra.Command) (config.Config, zerolog.Logger, error)

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// agentOptions returns options backed by a fresh metrics registry.
func agentOptions(serve bool) agent.Options {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return agent.Options{
		Serve:      serve,
		Registerer: reg,
		Gatherer:   reg,
	}
}
