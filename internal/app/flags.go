package app

import "github.com/spf13/cobra"

// FlagsFrom reads the root command's persistent flags.
func FlagsFrom(cmd *cobra.Command) Flags {
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noColor, _ := cmd.Flags().GetBool("no-color")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	return Flags{
		Provider:    provider,
		Model:       model,
		Verbose:     verbose,
		NoColor:     noColor,
		MetricsFile: metricsFile,
	}
}

// ForCommand acquires the App for a running command.
func ForCommand(cmd *cobra.Command) (*App, func(), error) {
	return Acquire(cmd.Context(), FlagsFrom(cmd))
}
