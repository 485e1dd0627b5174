// Package config provides CLI commands for inspecting configuration.
package config

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/config"
	"github.com/klytics/sheetbot/internal/output"
)

// NewCommand returns the config command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect sheetbot configuration",
		Long: `View and check sheetbot settings.

Settings come from ~/.sheetbot/config.yaml, SHEETBOT_* environment variables
and provider key variables such as OPENAI_API_KEY. A .env file in the working
directory is read first.`,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newPathCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

type view struct {
	Path       string   `json:"path"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
	Configured []string `json:"configuredProviders"`
	DataDir    string   `json:"dataDir"`
	Catalog    string   `json:"catalog"`
	Audit      bool     `json:"audit"`
	LogLevel   string   `json:"logLevel"`
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				v := view{
					Path:       config.ConfigPath(),
					Provider:   cfg.Provider,
					Model:      cfg.ToAIConfig().ModelOrDefault(),
					Configured: []string{},
					DataDir:    cfg.DataDir,
					Catalog:    cfg.Catalog.Backend,
					Audit:      cfg.Audit.Enabled,
					LogLevel:   cfg.Log.Level,
				}
				for _, id := range ai.Providers {
					if cfg.Keys.For(id) != "" {
						v.Configured = append(v.Configured, string(id))
					}
				}
				return output.PrintJSON(cmd.OutOrStdout(), "config show", v)
			}

			fmt.Fprint(cmd.OutOrStdout(), cfg.ShowConfig())
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Example: "  sheetbot config get catalog.backend",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(); err != nil {
				return err
			}
			val := config.Get(args[0])
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return output.PrintJSON(cmd.OutOrStdout(), "config get", map[string]string{args[0]: val})
			}
			if val == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], val)
			}
			return nil
		},
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			issues := cfg.Validate()
			out := cmd.OutOrStdout()

			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				if config.HasErrors(issues) {
					err := errors.New("configuration has errors")
					if perr := output.PrintJSONError(out, "config validate", err, output.ExitUserError, issues); perr != nil {
						return perr
					}
					return output.Reported(err, output.ExitUserError)
				}
				return output.PrintJSON(out, "config validate", issues)
			}

			errCount, warnings := 0, 0
			for _, issue := range issues {
				switch issue.Severity {
				case "error":
					errCount++
				case "warning":
					warnings++
				}
			}

			if errCount == 0 && warnings == 0 {
				color.New(color.FgGreen).Fprintln(out, "Configuration is valid")
			} else {
				fmt.Fprintf(out, "Config validation: %d errors, %d warnings\n\n", errCount, warnings)
			}

			for _, issue := range issues {
				switch issue.Severity {
				case "error":
					color.New(color.FgRed).Fprintf(out, "  %s\n", issue.Message)
				case "warning":
					color.New(color.FgYellow).Fprintf(out, "  %s\n", issue.Message)
				case "info":
					color.New(color.FgGreen).Fprintf(out, "  %s\n", issue.Message)
				}
				if issue.Fix != "" {
					fmt.Fprintf(out, "   Fix: %s\n", issue.Fix)
				}
			}

			if errCount > 0 {
				return output.Reported(errors.New("configuration has errors"), output.ExitUserError)
			}
			return nil
		},
	}
}
