// Package cmd contains all CLI commands for the sheetbot binary.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/cmd/ai"
	cmdaudit "github.com/klytics/sheetbot/cmd/audit"
	"github.com/klytics/sheetbot/cmd/completion"
	cmdconfig "github.com/klytics/sheetbot/cmd/config"
	"github.com/klytics/sheetbot/cmd/doctor"
	"github.com/klytics/sheetbot/cmd/files"
	cmdrecipe "github.com/klytics/sheetbot/cmd/recipe"
	cmdshell "github.com/klytics/sheetbot/cmd/shell"
	"github.com/klytics/sheetbot/cmd/version"
	cmdwatch "github.com/klytics/sheetbot/cmd/watch"
	"github.com/klytics/sheetbot/internal/output"
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sheetbot",
		Short: "Ask questions about and edit spreadsheets with AI",
		Long: `sheetbot records .xlsx and .csv files in a local catalog and lets you ask an
AI model about them, summarize them, or edit them from a plain-language
instruction. Edits are written to a new file; the original is never touched.

Providers: openai, anthropic, gemini, openrouter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				color.NoColor = true
			}
		},
	}

	// Global persistent flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("model", "", "AI model name override")
	rootCmd.PersistentFlags().String("provider", "", "AI provider: openai | anthropic | gemini | openrouter")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable ANSI color output")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file on exit")

	// Register subcommands
	rootCmd.AddCommand(files.NewCommand())
	rootCmd.AddCommand(ai.NewCommand())
	rootCmd.AddCommand(cmdrecipe.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(cmdshell.NewCommand(runLine))
	rootCmd.AddCommand(cmdaudit.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and handles any returned errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	report(rootCmd, os.Args[1:], err, os.Stdout, os.Stderr)
	stop()
	os.Exit(output.ExitCode(err))
}

// runLine executes one shell line against a fresh command tree so flag values
// never leak between lines. Progress lines are dropped; the returned error
// carries the failure text.
func runLine(ctx context.Context, args []string, stdout, _ io.Writer) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !output.IsReported(err) {
		if jsonFlag, _ := rootCmd.PersistentFlags().GetBool("json"); jsonFlag {
			_ = output.PrintJSONError(stdout, commandName(rootCmd, args), err, output.ExitCode(err), nil)
		}
	}
	return err
}

// report prints an error the command did not show itself.
func report(rootCmd *cobra.Command, args []string, err error, stdout, stderr io.Writer) {
	if output.IsReported(err) {
		return
	}
	if jsonFlag, _ := rootCmd.PersistentFlags().GetBool("json"); jsonFlag {
		_ = output.PrintJSONError(stdout, commandName(rootCmd, args), err, output.ExitCode(err), nil)
		return
	}
	fmt.Fprintf(stderr, "Error: %s\n", err)
}

func commandName(rootCmd *cobra.Command, args []string) string {
	cmd, _, err := rootCmd.Find(args)
	if err != nil || cmd == rootCmd {
		return rootCmd.Name()
	}
	path := cmd.CommandPath()
	if len(path) > len(rootCmd.Name())+1 {
		return path[len(rootCmd.Name())+1:]
	}
	return path
}
