package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/policy/guard"
	"mercator-hq/warden/pkg/policy/preview"
)

var intentFlags struct {
	file            string
	admin           string
	kernelConnected bool
}

var safetyCmd = &cobra.Command{
	Use:   "safety",
	Short: "Check an intent for dangerous or unsupported settings",
	Long: `Run the safety checks the agent applies before recording an intent.

The intent file is YAML:

  node_id: 42
  scope: folder_recursive
  action: block
  operations:
    write: true
    delete: true
  created_by: alice

The command exits with status 3 when the intent would be refused.

Examples:
  warden safety --intent intent.yaml
  warden safety --intent intent.yaml --kernel-connected`,
	RunE: checkSafety,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the effective operations of an intent",
	Long: `Show which operations an intent blocks and audits once read expansion and
allow inversion are applied.

Examples:
  warden preview --intent intent.yaml
  warden preview --intent intent.yaml --output json`,
	RunE: previewIntent,
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Simulate common file actions against an intent",
	Long: `Simulate opening, copying, deleting, renaming, modifying, executing and
creating a file under the intent without applying it.

Examples:
  warden dry-run --intent intent.yaml`,
	RunE: dryRunIntent,
}

func init() {
	for _, c := range []*cobra.Command{safetyCmd, previewCmd, dryRunCmd} {
		c.Flags().StringVarP(&intentFlags.file, "intent", "i", "", "intent YAML file (required)")
		c.Flags().StringVar(&intentFlags.admin, "admin", "", "administrator recorded when the file has no created_by")
		_ = c.MarkFlagRequired("intent")
		rootCmd.AddCommand(c)
	}
	safetyCmd.Flags().BoolVar(&intentFlags.kernelConnected, "kernel-connected", false, "evaluate as if the minifilter is connected")
}

// loadIntent reads an intent file. A missing created_by falls back to
// --admin, then to the USER or USERNAME environment variable.
func loadIntent(path string) (policy.Intent, error) {
	if path == "" {
		return policy.Intent{}, cli.NewConfigError("intent", "--intent is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return policy.Intent{}, fmt.Errorf("failed to read intent file: %w", err)
	}

	var intent policy.Intent
	if err := yaml.Unmarshal(data, &intent); err != nil {
		return policy.Intent{}, fmt.Errorf("failed to parse intent file %s: %w", path, err)
	}

	if strings.TrimSpace(intent.CreatedBy) == "" {
		intent.CreatedBy = firstNonEmpty(intentFlags.admin, os.Getenv("USER"), os.Getenv("USERNAME"))
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}
	return intent, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func checkSafety(cmd *cobra.Command, args []string) error {
	intent, err := loadIntent(intentFlags.file)
	if err != nil {
		return err
	}

	report := guard.ValidateSafety(intent, intentFlags.kernelConnected)
	if err := render(cmd, report); err != nil {
		return err
	}
	if !report.Valid {
		return &cli.RefusedError{Reason: "intent failed safety validation"}
	}
	return nil
}

// previewText is the text form of a preview result.
type previewText struct {
	preview.Result
}

func (p previewText) Text() string {
	return p.Description + "\n\n" + p.Summary
}

func previewIntent(cmd *cobra.Command, args []string) error {
	intent, err := loadIntent(intentFlags.file)
	if err != nil {
		return err
	}

	result, err := preview.Preview(intent)
	if err != nil {
		return &cli.RefusedError{Reason: err.Error()}
	}
	if outputFormat == string(cli.FormatText) {
		return render(cmd, previewText{result})
	}
	return render(cmd, result)
}

func dryRunIntent(cmd *cobra.Command, args []string) error {
	intent, err := loadIntent(intentFlags.file)
	if err != nil {
		return err
	}

	ev, err := preview.DryRun(intent)
	if err != nil {
		return &cli.RefusedError{Reason: err.Error()}
	}
	if outputFormat != string(cli.FormatText) {
		return render(cmd, ev)
	}

	out := stdout(cmd)
	fmt.Fprintln(out, ev.Preview)
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tRESULT\tREASON")
	for _, r := range ev.Results {
		result := "allowed"
		if r.WillBlock {
			result = "BLOCKED"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Action, result, r.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", ev.Summary)
	return nil
}
