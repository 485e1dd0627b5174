// Package shell provides the "sheetbot shell" interactive command.
package shell

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
	shellpkg "github.com/klytics/sheetbot/internal/shell"
)

// NewCommand creates the "shell" command. runner executes one command line
// against a fresh command tree.
func NewCommand(runner shellpkg.CommandRunner) *cobra.Command {
	var evalCmd string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive sheetbot shell",
		Long: `Start an interactive prompt with history and tab completion.

Configuration is loaded and the catalog opened once for the whole session.
Type "reload" to pick up changed settings or API keys; a changed config file
is picked up automatically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), app.FlagsFrom(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := app.NewContext(cmd.Context(), a)
			session := shellpkg.NewSession(runner)
			session.Reload = func() (string, error) {
				if _, err := a.Reload(); err != nil {
					return "", err
				}
				return a.Describe(), nil
			}

			if evalCmd != "" {
				output, err := session.Eval(ctx, evalCmd)
				fmt.Fprint(cmd.OutOrStdout(), output)
				return err
			}

			a.Watch()
			fmt.Fprintf(cmd.OutOrStdout(), "Provider: %s\n", a.Describe())
			return session.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&evalCmd, "eval", "", "Run a single command and exit")
	return cmd
}
