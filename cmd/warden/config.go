package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the agent configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with environment overrides and report every
validation error.

Examples:
  warden config validate --config config.yaml`,
	RunE: validateConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and WARDEN_* environment overrides
are applied.

Examples:
  warden config show --output yaml`,
	RunE: showConfig,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if _, err := config.LoadConfigWithEnvOverrides(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	fmt.Fprintln(stdout(cmd), "✓ Configuration valid")
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	if outputFormat == "" || outputFormat == string(cli.FormatText) {
		return cli.NewFormatter(cli.FormatYAML).FormatTo(stdout(cmd), cfg)
	}
	return render(cmd, cfg)
}
