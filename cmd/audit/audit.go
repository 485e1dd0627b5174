// Package audit provides the "sheetbot audit" commands for the edit trail.
package audit

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	auditpkg "github.com/klytics/sheetbot/internal/audit"
	"github.com/klytics/sheetbot/internal/config"
	"github.com/klytics/sheetbot/internal/output"
)

// NewCommand creates the "audit" command with all subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "View and manage the edit audit trail",
		Long: `Every AI edit is appended to a JSONL trail with the instruction, the generated
program and how it ended. These commands read and manage that file.`,
	}

	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func trailPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.Audit.Path == "" {
		return "", errors.New("audit.path is not set")
	}
	return cfg.Audit.Path, nil
}

func newLogCmd() *cobra.Command {
	var (
		last     int
		since    string
		state    string
		source   string
		fragment bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent edit attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := trailPath()
			if err != nil {
				return err
			}
			entries, err := auditpkg.ReadEntries(path)
			if err != nil {
				return err
			}

			var sinceTime time.Time
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date: %w (use YYYY-MM-DD)", err)
				}
				sinceTime = t
			}

			filtered := auditpkg.FilterEntries(entries, sinceTime, state, source)
			if last > 0 && len(filtered) > last {
				filtered = filtered[len(filtered)-last:]
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if filtered == nil {
					filtered = []auditpkg.Entry{}
				}
				return output.PrintJSON(out, "audit log", filtered)
			}

			if len(filtered) == 0 {
				fmt.Fprintln(out, "No edits recorded.")
				return nil
			}

			fmt.Fprintf(out, "Edit trail: %d entries\n", len(filtered))
			fmt.Fprintf(out, "File: %s\n\n", path)

			if fragment {
				for _, e := range filtered {
					fmt.Fprintf(out, "%s  %s  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.State, e.Instruction)
					fmt.Fprintln(out, e.Fragment)
					fmt.Fprintln(out)
				}
				return nil
			}

			rows := make([][]string, 0, len(filtered))
			for _, e := range filtered {
				rows = append(rows, []string{
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.State,
					formatDuration(e.DurationMs),
					output.Truncate(e.Source, 40),
					output.Truncate(e.Instruction, 50),
				})
			}
			return output.Table(out, []string{"TIMESTAMP", "STATE", "DURATION", "SOURCE", "INSTRUCTION"}, rows)
		},
	}

	cmd.Flags().IntVar(&last, "last", 20, "Show last N entries")
	cmd.Flags().StringVar(&since, "since", "", "Only entries since date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&state, "state", "", "Filter by outcome (persisted, error_from_provider, execution_failed, persist_failed)")
	cmd.Flags().StringVar(&source, "source", "", "Filter by source file path substring")
	cmd.Flags().BoolVar(&fragment, "fragment", false, "Print the generated program of each entry")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the edit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := trailPath()
			if err != nil {
				return err
			}
			if err := auditpkg.Clear(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), "audit clear", map[string]string{"cleared": path})
			}
			output.Success(cmd.OutOrStdout(), "Edit trail cleared: %s", path)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show edit trail path and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := trailPath()
			if err != nil {
				return err
			}
			size := auditpkg.LogSize(path)
			entries, err := auditpkg.ReadEntries(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(out, "audit status", map[string]any{
					"path":    path,
					"size":    size,
					"entries": len(entries),
				})
			}

			fmt.Fprintf(out, "Edit trail: %s\n", path)
			if size == 0 {
				fmt.Fprintln(out, "Size:       empty (no entries)")
			} else {
				fmt.Fprintf(out, "Size:       %s\n", formatSize(size))
			}
			fmt.Fprintf(out, "Entries:    %d\n", len(entries))
			return nil
		},
	}
}

func formatDuration(ms int64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dms", ms)
}

func formatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}
