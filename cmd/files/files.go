// Package files provides the "sheetbot files" commands over the catalog.
package files

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/cmd/completion"
	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/catalog"
	"github.com/klytics/sheetbot/internal/output"
	"github.com/klytics/sheetbot/internal/progress"
)

// NewCommand returns the files command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Register and list spreadsheet files",
		Long: `Record .xlsx and .csv files in the catalog so they can be referred to by id.

Files are recorded where they are; nothing is copied.`,
	}

	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())

	return cmd
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path> [path...]",
		Short: "Record spreadsheet files in the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, release, err := app.ForCommand(cmd)
			if err != nil {
				return err
			}
			defer release()

			jsonFlag, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			bar := progress.NewBar(cmd.ErrOrStderr(), "Recording", len(args))
			var added []catalog.Record
			for _, path := range args {
				bar.Increment(filepath.Base(path))
				rec, err := a.Service.Add(cmd.Context(), path, catalog.SourceCLI)
				if err != nil {
					bar.Finish(fmt.Sprintf("%d of %d recorded", len(added), len(args)))
					return err
				}
				added = append(added, rec)
			}
			bar.Finish(fmt.Sprintf("%d recorded", len(added)))

			if jsonFlag {
				return output.PrintJSON(out, "files add", added)
			}
			for _, rec := range added {
				output.Success(out, "File recorded. ID: %s (%s)", rec.ID, rec.Filename)
			}
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, release, err := app.ForCommand(cmd)
			if err != nil {
				return err
			}
			defer release()

			recs, err := a.Service.List(cmd.Context())
			if err != nil {
				return err
			}
			if source != "" {
				recs = bySource(recs, source)
			}

			out := cmd.OutOrStdout()
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				if recs == nil {
					recs = []catalog.Record{}
				}
				return output.PrintJSON(out, "files list", recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "No files found.")
				return nil
			}

			rows := make([][]string, len(recs))
			for i, r := range recs {
				rows[i] = []string{
					r.ID,
					output.Truncate(r.Filename, 30),
					r.Source,
					r.UploadedAt.Local().Format("2006-01-02 15:04"),
				}
			}
			return output.Table(out, []string{"ID", "FILENAME", "SOURCE", "ADDED"}, rows)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only files from this source (CLI, Watch, AI-Edit)")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|prefix|path>",
		Short: "Show one recorded file",
		Args:  cobra.ExactArgs(1),
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

			out := cmd.OutOrStdout()
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return output.PrintJSON(out, "files show", rec)
			}
			fmt.Fprintf(out, "ID:       %s\n", rec.ID)
			fmt.Fprintf(out, "Filename: %s\n", rec.Filename)
			fmt.Fprintf(out, "Source:   %s\n", rec.Source)
			fmt.Fprintf(out, "Added:    %s\n", rec.UploadedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Path:     %s\n", rec.Path)
			if len(rec.Metadata) > 0 {
				keys := make([]string, 0, len(rec.Metadata))
				for k := range rec.Metadata {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %s: %v\n", k, rec.Metadata[k])
				}
			}
			return nil
		},
		ValidArgsFunction: completion.FileRefs,
	}
}

func bySource(recs []catalog.Record, source string) []catalog.Record {
	var out []catalog.Record
	for _, r := range recs {
		if strings.EqualFold(r.Source, source) {
			out = append(out, r)
		}
	}
	return out
}
