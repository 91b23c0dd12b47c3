package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/warden/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - endpoint data-loss-prevention agent",
	Long: `Warden protects files and folders on a Windows endpoint.

Administrators address files by index node id, choose block, allow or audit
for a set of operations, and the agent turns each intent into rules for the
DLP minifilter. Without the driver, policies are recorded and simulated.

The agent provides:
  - An on-demand filesystem index with stable node ids
  - Safety checks, previews and dry runs for every intent
  - Persistent policies that resume enforcement on reconnect
  - An event journal and a live event stream`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the status for its error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml")
}

// stdout returns the command's output writer. Commands run directly in tests
// have no cobra command.
func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

// render writes data in the --output format.
func render(cmd *cobra.Command, data interface{}) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return cli.NewConfigError("output", err.Error())
	}
	return cli.NewFormatter(format).FormatTo(stdout(cmd), data)
}
