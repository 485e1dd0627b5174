package ai

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/cmd/completion"
	"github.com/klytics/sheetbot/internal/analysis"
	"github.com/klytics/sheetbot/internal/app"
)

func newAnalyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "analyze <file>",
		Aliases: []string{"summarize"},
		Short:   "Generate a comprehensive summary of a spreadsheet",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, release, err := app.ForCommand(cmd)
			if err != nil {
				return err
			}
			defer release()

			rec, err := a.Service.Show(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			stop := startSpinner(cmd, fmt.Sprintf("Generating summary of %s...", rec.Filename))
			res, err := a.Service.Summarize(cmd.Context(), rec.ID)
			stop()
			if err != nil {
				return err
			}

			b := a.Holder.Current()
			return printAnswer(cmd, "ai analyze", "Summary:", res, answer{
				File:     rec.ID,
				Question: analysis.SummaryQuestion,
				Provider: string(b.Provider()),
				Model:    b.Config.ModelOrDefault(),
			})
		},
		ValidArgsFunction: completion.FileRefs,
	}
}
