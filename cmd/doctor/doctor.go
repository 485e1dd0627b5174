// Package doctor provides the "sheetbot doctor" command for checking system health.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/cmd/version"
	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/audit"
	"github.com/klytics/sheetbot/internal/catalog"
	"github.com/klytics/sheetbot/internal/config"
	"github.com/klytics/sheetbot/internal/output"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, provider credentials and storage",
		Long:  "Run diagnostic checks to verify sheetbot is properly configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			provider, _ := cmd.Flags().GetString("provider")
			if provider != "" {
				cfg.Provider = provider
			}
			checks := RunChecks(cmd.Context(), cfg)

			failed := 0
			for _, c := range checks {
				if c.Status == "error" {
					failed++
				}
			}
			var checkErr error
			if failed > 0 {
				checkErr = fmt.Errorf("%d check(s) failed", failed)
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if checkErr != nil {
					if err := output.PrintJSONError(out, "doctor", checkErr, output.ExitSystemError, checks); err != nil {
						return err
					}
					return output.Reported(checkErr, output.ExitSystemError)
				}
				return output.PrintJSON(out, "doctor", checks)
			}

			printChecks(out, checks)
			if checkErr != nil {
				return output.Reported(checkErr, output.ExitSystemError)
			}
			return nil
		},
	}
}

func printChecks(out io.Writer, checks []Check) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(out, "sheetbot doctor")
	fmt.Fprintln(out, "===============")
	fmt.Fprintln(out)

	okCount, warnCount, errCount := 0, 0, 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case "ok":
			icon = green("✓")
			okCount++
		case "warning":
			icon = yellow("!")
			warnCount++
		case "error":
			icon = red("✗")
			errCount++
		}
		fmt.Fprintf(out, "  %s %s: %s\n", icon, c.Name, c.Message)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
}

// RunChecks inspects the environment described by cfg.
func RunChecks(ctx context.Context, cfg *config.Config) []Check {
	b := version.Current()
	checks := []Check{{
		Name:    "Build",
		Status:  "ok",
		Message: fmt.Sprintf("sheetbot %s (%s %s)", b.Version, b.Go, b.Platform),
	}}

	path := config.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		checks = append(checks, Check{Name: "Config File", Status: "ok", Message: path})
	} else {
		checks = append(checks, Check{Name: "Config File", Status: "warning", Message: path + " not found, using defaults"})
	}

	checks = append(checks, providerCheck(cfg))
	checks = append(checks, catalogCheck(ctx, cfg))
	checks = append(checks, dataDirCheck(cfg.DataDir))

	if cfg.Audit.Enabled {
		checks = append(checks, Check{
			Name:    "Edit Audit Log",
			Status:  "ok",
			Message: fmt.Sprintf("%s (%d bytes)", cfg.Audit.Path, audit.LogSize(cfg.Audit.Path)),
		})
	} else {
		checks = append(checks, Check{Name: "Edit Audit Log", Status: "warning", Message: "disabled"})
	}

	return checks
}

func providerCheck(cfg *config.Config) Check {
	name := "AI Provider"
	id, known := ai.ParseProvider(cfg.Provider)
	if known {
		name = fmt.Sprintf("AI Provider (%s)", id)
	}
	for _, issue := range cfg.Validate() {
		if issue.Key != "provider" && !strings.HasPrefix(issue.Key, "api_keys.") {
			continue
		}
		switch issue.Severity {
		case "error":
			return Check{Name: name, Status: "error", Message: issue.Message}
		case "warning":
			return Check{Name: name, Status: "warning", Message: issue.Message}
		}
	}
	return Check{
		Name:    name,
		Status:  "ok",
		Message: fmt.Sprintf("%s set, model %s", config.EnvName(id), cfg.ToAIConfig().ModelOrDefault()),
	}
}

func catalogCheck(ctx context.Context, cfg *config.Config) Check {
	name := fmt.Sprintf("Catalog (%s)", cfg.Catalog.Backend)
	cat, err := catalog.Open(ctx, cfg.CatalogOptions())
	if err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	defer cat.Close()

	recs, err := cat.List(ctx)
	if err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	return Check{Name: name, Status: "ok", Message: fmt.Sprintf("%d file(s) recorded", len(recs))}
}

func dataDirCheck(dir string) Check {
	name := "Data Directory"
	if dir == "" {
		return Check{Name: name, Status: "error", Message: "data_dir is not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: name, Status: "error", Message: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		msg := err.Error()
		if errors.Is(err, os.ErrPermission) {
			msg = dir + " is not writable"
		}
		return Check{Name: name, Status: "error", Message: msg}
	}
	f.Close()
	os.Remove(f.Name())
	return Check{Name: name, Status: "ok", Message: dir}
}
