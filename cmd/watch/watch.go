// Package watch provides the "sheetbot watch" command.
package watch

import (
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/output"
	w "github.com/klytics/sheetbot/internal/watch"
)

// NewCommand creates the "watch" command.
func NewCommand() *cobra.Command {
	var (
		question  string
		pattern   string
		recursive bool
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <directory> [directory...]",
		Short: "Record spreadsheets dropped into a folder",
		Long: `Watch directories for new .xlsx and .csv files. Each file is recorded in the
catalog with source "Watch" once writes to it have settled. With --question
every new file is also sent to the AI provider and the answer printed.

Edited copies written by sheetbot are never picked up. If a config file is in
use, provider changes to it take effect without restarting.`,
		Example: `  sheetbot watch ./inbox
  sheetbot watch ./exports -r --pattern "sales_*" --question "What is the total revenue?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, release, err := app.ForCommand(cmd)
			if err != nil {
				return err
			}
			defer release()

			watcher, err := w.New(w.Config{
				Directories: args,
				Pattern:     pattern,
				Recursive:   recursive,
				Debounce:    debounce,
				Ignore:      []string{a.Config.DataDir},
			}, a.Logger)
			if err != nil {
				return err
			}

			jsonFlag, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			var mu sync.Mutex
			watcher.Handler = w.RegisterHandler(a.Service, question, func(r w.Report) {
				mu.Lock()
				defer mu.Unlock()
				if jsonFlag {
					_ = output.PrintJSON(out, "watch", r)
					return
				}
				output.Success(out, "File recorded. ID: %s (%s)", r.Record.ID, r.Record.Filename)
				if r.Answer != nil {
					fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(r.Answer.Text, "\n", "\n  "))
				}
			})

			if a.Watch() {
				a.Logger.Debug("reloading provider settings on config change")
			}

			if !jsonFlag {
				fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for spreadsheets. Press Ctrl+C to stop.\n", strings.Join(args, ", "))
			}
			err = watcher.Start(ctx)

			if !jsonFlag {
				processed := 0
				for _, e := range watcher.Events() {
					if e.Status == "processed" {
						processed++
					}
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "\nStopped. %d file(s) handled.\n", processed)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "Ask this question about every new file")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only handle files whose name matches this glob")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Watch directories recursively")
	cmd.Flags().DurationVar(&debounce, "debounce", w.DefaultDebounce, "Wait this long after the last write")

	return cmd
}
