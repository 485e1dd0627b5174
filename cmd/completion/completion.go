// Package completion generates shell completion scripts and completes
// recorded file references for commands that take one.
package completion

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetbot/internal/app"
)

type generator struct {
	install string
	gen     func(root *cobra.Command, w io.Writer) error
}

var generators = map[string]generator{
	"bash": {
		install: "sheetbot completion bash > /etc/bash_completion.d/sheetbot",
		gen:     func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	},
	"zsh": {
		install: "sheetbot completion zsh > ~/.zsh/completions/_sheetbot",
		gen:     func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	},
	"fish": {
		install: "sheetbot completion fish > ~/.config/fish/completions/sheetbot.fish",
		gen:     func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	},
	"powershell": {
		install: "sheetbot completion powershell >> $PROFILE",
		gen:     func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
	},
}

func shells() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion <" + strings.Join(shells(), "|") + ">",
		Short: "Generate shell completions",
		Long: `Generate a shell completion script for sheetbot.

File arguments of "files show" and the "ai" commands complete to the ids of
recorded files, so "sheetbot ai ask 3f<TAB>" expands to the full id.`,
		ValidArgs: shells(),
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, ok := generators[args[0]]
			if !ok {
				return fmt.Errorf("unsupported shell: %s (supported: %s)", args[0], strings.Join(shells(), ", "))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# sheetbot %s completion\n# Install: %s\n\n", args[0], g.install)
			return g.gen(rootCmd, out)
		},
	}
}

// FileRefs completes the first argument with the ids of recorded files. Paths
// fall back to the shell's own file completion.
func FileRefs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	a, release, err := app.ForCommand(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	defer release()

	records, err := a.Catalog.List(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	var refs []string
	for _, rec := range records {
		if strings.HasPrefix(rec.ID, toComplete) {
			refs = append(refs, rec.ID+"\t"+rec.Filename)
		}
	}
	if len(refs) == 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	return refs, cobra.ShellCompDirectiveNoFileComp
}
