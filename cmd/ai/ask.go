package ai

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/cmd/completion"
	"github.com/klytics/sheetbot/internal/app"
)

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <file> <question...>",
		Short: "Ask a question about a spreadsheet",
		Long:  "Sends the spreadsheet contents with a natural-language question and prints the answer.",
		Example: `  sheetbot ai ask 3f2a "What is the average order value?"
  sheetbot ai ask ./sales.xlsx which region sold the most`,
		Args: cobra.MinimumNArgs(2),
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
			question := strings.Join(args[1:], " ")

			stop := startSpinner(cmd, fmt.Sprintf("Analyzing %s...", rec.Filename))
			res, err := a.Service.Ask(cmd.Context(), rec.ID, question)
			stop()
			if err != nil {
				return err
			}

			b := a.Holder.Current()
			return printAnswer(cmd, "ai ask", "Response:", res, answer{
				File:     rec.ID,
				Question: question,
				Provider: string(b.Provider()),
				Model:    b.Config.ModelOrDefault(),
			})
		},
		ValidArgsFunction: completion.FileRefs,
	}
}
