package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/cmd/completion"
	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/service"
)

func newEditCommand() *cobra.Command {
	var showCode bool

	cmd := &cobra.Command{
		Use:   "edit <file> <instruction...>",
		Short: "Edit a spreadsheet from a natural-language instruction",
		Long: `Asks the AI provider for a short program that performs the instruction, runs
it in a sandbox against the spreadsheet, and records the result as a new file
named edited_<filename>. The original file is never changed.

The sandbox has no file, network or module access; the program only sees the
table.`,
		Example: `  sheetbot ai edit 3f2a "double the score column"
  sheetbot ai edit ./sales.csv drop rows where region is empty --show-code`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, release, err := app.ForCommand(cmd)
			if err != nil {
				return err
			}
			defer release()

			instruction := strings.Join(args[1:], " ")
			stop := startSpinner(cmd, "Editing file...")
			out, err := a.Service.Edit(cmd.Context(), args[0], instruction)
			stop()
			if err != nil {
				return err
			}
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return printEditJSON(cmd, out, showCode)
			}
			return printEdit(cmd, out, showCode)
		},
		ValidArgsFunction: completion.FileRefs,
	}

	cmd.Flags().BoolVar(&showCode, "show-code", false, "Print the generated program")
	return cmd
}

func printEdit(cmd *cobra.Command, out service.EditOutcome, showCode bool) error {
	w := cmd.OutOrStdout()
	if showCode && out.Result.Fragment.Code != "" {
		fmt.Fprintln(w, color.New(color.Faint).Sprint(out.Result.Fragment.Code))
		fmt.Fprintln(w)
	}
	if !out.Result.Success {
		output.Failure(cmd.ErrOrStderr(), "Error: %s", out.Result.Message)
		return output.Reported(errors.New(out.Result.Message), output.ExitSystemError)
	}
	output.Success(w, "Success! New file saved with ID: %s", out.Record.ID)
	fmt.Fprintf(w, "  %s -> %s\n", out.Record.Filename, out.Record.Path)
	return nil
}

type editJSON struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	State   string `json:"state"`
	ID      string `json:"id,omitempty"`
	Path    string `json:"path,omitempty"`
	Code    string `json:"code,omitempty"`
}

func printEditJSON(cmd *cobra.Command, out service.EditOutcome, showCode bool) error {
	res := editJSON{
		Success: out.Result.Success,
		Message: out.Result.Message,
		State:   string(out.Result.State),
	}
	if out.Record != nil {
		res.ID = out.Record.ID
		res.Path = out.Record.Path
	}
	if showCode {
		res.Code = out.Result.Fragment.Code
	}
	w := cmd.OutOrStdout()
	if !out.Result.Success {
		if err := output.PrintJSONError(w, "ai edit", errors.New(out.Result.Message), output.ExitSystemError, res); err != nil {
			return err
		}
		return output.Reported(errors.New(out.Result.Message), output.ExitSystemError)
	}
	return output.PrintJSON(w, "ai edit", res)
}
