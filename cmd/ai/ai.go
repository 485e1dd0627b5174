// Package ai provides the "sheetbot ai" commands: questions, summaries and
// edits of recorded spreadsheets.
package ai

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/analysis"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/progress"
)

// NewCommand returns the ai subcommand group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Ask about, summarize or edit a spreadsheet with an AI model",
		Long: `Commands that send a recorded spreadsheet to the configured AI provider.

Files are referred to by catalog id, a unique id prefix, or their path.`,
	}

	cmd.AddCommand(newAskCommand())
	cmd.AddCommand(newAnalyzeCommand())
	cmd.AddCommand(newEditCommand())

	return cmd
}

type answer struct {
	File     string `json:"file"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// printAnswer writes an analysis result. A failed analysis becomes an error;
// in text mode it is shown first.
func printAnswer(cmd *cobra.Command, name, heading string, res analysis.Result, a answer) error {
	jsonFlag, _ := cmd.Flags().GetBool("json")
	if !res.OK {
		err := errors.New(res.Text)
		if jsonFlag {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString(res.Text))
		return output.Reported(err, output.ExitSystemError)
	}
	if jsonFlag {
		a.Answer = res.Text
		return output.PrintJSON(cmd.OutOrStdout(), name, a)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n%s\n", color.New(color.Bold).Sprint(heading), res.Text)
	return nil
}

// startSpinner shows label on stderr while a provider call runs. The returned
// func stops it.
func startSpinner(cmd *cobra.Command, label string) func() {
	if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
		return func() {}
	}
	s := progress.NewSpinner(cmd.ErrOrStderr(), label)
	s.Start()
	return s.Stop
}
