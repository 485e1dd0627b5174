// Package recipe provides the "sheetbot recipe" commands.
package recipe

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/recipe"
)

// NewCommand returns the recipe command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Run a YAML list of spreadsheet steps",
		Long: `A recipe is a YAML file naming steps that add, ask about, analyze or edit
spreadsheets. Later steps can use earlier output with ${{ steps.<id>.output }}.

Example recipe:

  name: weekly-sales
  steps:
    - id: load
      action: add
      file: ./sales.xlsx
    - id: clean
      action: edit
      file: "${{ steps.load.output }}"
      instruction: drop rows where region is empty
    - id: report
      action: ask
      file: "${{ steps.clean.output }}"
      question: Which region sold the most?`,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

func newRunCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run <file.yaml>",
		Short: "Run a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := recipe.Load(args[0])
			if err != nil {
				return err
			}

			a, release, err := app.ForCommand(cmd)
			if err != nil {
				return err
			}
			defer release()

			executor := recipe.NewExecutor(a.Logger)
			executor.SetDryRun(dryRun)
			recipe.RegisterService(executor, a.Service)

			results, runErr := executor.Run(cmd.Context(), r)

			out := cmd.OutOrStdout()
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				if runErr != nil {
					if err := output.PrintJSONError(out, "recipe run", runErr, output.ExitSystemError, results); err != nil {
						return err
					}
					return output.Reported(runErr, output.ExitSystemError)
				}
				return output.PrintJSON(out, "recipe run", results)
			}

			output.Heading(out, fmt.Sprintf("Recipe: %s (%d steps)", r.Name, len(r.Steps)))
			for _, res := range results {
				switch {
				case res.Skipped:
					fmt.Fprintf(out, "  %s %s: skipped (%v)\n", color.YellowString("-"), res.StepID, res.Error)
				case res.Error != nil:
					output.Failure(out, "%s", res.StepID)
				default:
					output.Success(out, "%s", res.StepID)
					if res.Output != "" {
						fmt.Fprintf(out, "    %s\n", output.Truncate(res.Output, 200))
					}
				}
			}
			if runErr != nil {
				output.Failure(cmd.ErrOrStderr(), "%s", runErr)
				return output.Reported(runErr, output.ExitSystemError)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would run without calling the AI provider")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Check a recipe without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := recipe.Load(args[0])
			if err != nil {
				return err
			}
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return output.PrintJSON(cmd.OutOrStdout(), "recipe validate", r)
			}
			output.Success(cmd.OutOrStdout(), "%s is valid (%d steps)", r.Name, len(r.Steps))
			return nil
		},
	}
}
