// Package version reports the sheetbot build.
package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Build describes the running binary.
type Build struct {
	Version  string
	Commit   string
	Modified bool
	Go       string
	Platform string
}

// Current reads the build from the binary. Commit is empty when the binary
// was built without VCS stamping.
func Current() Build {
	b := Build{
		Version:  Version,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Commit = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func (b Build) write(w io.Writer) {
	fmt.Fprintf(w, "sheetbot %s\n", b.Version)
	if b.Commit != "" {
		commit := b.Commit[:min(12, len(b.Commit))]
		if b.Modified {
			commit += " (modified)"
		}
		fmt.Fprintf(w, "  commit:   %s\n", commit)
	}
	fmt.Fprintf(w, "  go:       %s\n", b.Go)
	fmt.Fprintf(w, "  platform: %s\n", b.Platform)
}

// NewCommand returns the version subcommand.
func NewCommand() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the sheetbot version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			b := Current()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), b.Version)
				return
			}
			b.write(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
