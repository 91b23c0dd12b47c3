package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/server"
	"mercator-hq/warden/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	noKernel      bool
	watch         bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the warden agent",
	Long: `Start the warden agent with the specified configuration.

The agent loads persisted policies, enumerates drives, connects to the DLP
minifilter when it is present and serves the administration API.

Examples:
  # Start with default config
  warden run

  # Start with custom config
  warden run --config C:\ProgramData\Warden\config.yaml

  # Run without the driver; every policy is simulated
  warden run --no-kernel

  # Validate config without starting the agent
  warden run --dry-run`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override API listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.noKernel, "no-kernel", false, "do not connect to the minifilter")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "reload the log level when the config file changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the agent")
}

func runAgent(cmd *cobra.Command, args []string) error {
	out := stdout(cmd)

	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.API.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if runFlags.noKernel {
		cfg.Kernel.Enabled = false
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	log, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(log.Slog())

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	printBanner(out, cfg)

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	srv, err := server.New(ctx, cfg, log, server.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, cfg, 0, log.Slog())
		if err != nil {
			slog.Warn("config watcher disabled", "error", err)
		} else {
			defer watcher.Stop()
			go func() {
				if err := watcher.Watch(ctx, func(old, updated *config.Config) {
					srv.ApplyConfig(old, updated)
					config.SetConfig(updated)
				}); err != nil {
					slog.Warn("config watcher stopped", "error", err)
				}
			}()
		}
	}

	fmt.Fprintf(out, "✓ API listening on %s\n", cfg.API.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", cfg.API.ListenAddress, cfg.Telemetry.Health.LivenessPath)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.API.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Agent stopped")
	return nil
}

func printBanner(out io.Writer, cfg *config.Config) {
	fmt.Fprintf(out, "Warden v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	fmt.Fprintln(out, "✓ Configuration loaded")

	if cfg.Kernel.Enabled {
		slog.Debug("kernel enabled", "port", cfg.Kernel.PortName, "reconnect", cfg.Kernel.ReconnectSchedule)
	} else {
		fmt.Fprintln(out, "! Kernel disabled: policies will be simulated")
	}
	slog.Debug("policy store", "backend", cfg.Store.Backend)
	if cfg.Journal.Enabled {
		slog.Debug("journal enabled", "path", cfg.Journal.Path, "retention_days", cfg.Journal.RetentionDays)
	}
}
