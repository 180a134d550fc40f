/*
Package cli provides helpers shared by the storagerpc commands.

Output Formatting:

Commands accept --format text|json and render results through a Formatter:

	format, err := cli.ParseOutputFormat(flags.format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Text output uses the result's Text method when it has one.

Errors:

ConfigError and CommandError wrap command failures; ExitCode maps them to
the process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
