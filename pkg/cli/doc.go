/*
Package cli provides helpers shared by the warden commands.

Output Formatting:

Commands print results as text, JSON or YAML:

	formatter := cli.NewFormatter(cli.FormatYAML)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Text output uses a value's Text method when it has one, then String, then
the default %v form.

Exit Codes:

ExitCode maps an error returned by a command to the process exit status:
configuration errors exit 2, refused operations exit 3, everything else 1.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
