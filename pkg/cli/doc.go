/*
Package cli provides command-line interface utilities for Triton.

The cli package includes output formatters, progress reporters, and common CLI
helpers used by the triton command.

Output Formatting:

The cli package supports text and JSON output formats for displaying
command results:

	formatter := cli.NewFormatter(cli.FormatJSON)
	data := MyCommandResult{...}
	if err := formatter.FormatTo(os.Stdout, data); err != nil {
		return err
	}

Progress Reporting:

For long-running operations, use the progress reporter:

	progress := cli.NewProgressReporter(os.Stdout)
	progress.Start(totalItems)
	for i := 0; i < totalItems; i++ {
		// Do work
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown

A second signal aborts immediately instead of waiting for the drain.

Errors:

ConfigError and CommandError classify failures for the top-level error
line; ExitCode maps them to the process exit code (2 for bad
configuration, 1 otherwise).
*/
package cli
