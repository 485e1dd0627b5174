package completion

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klytics/sheetbot/internal/app"
	"github.com/klytics/sheetbot/internal/catalog"
)

func run(t *testing.T, shell string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "sheetbot"}
	root.AddCommand(&cobra.Command{Use: "files", Short: "Manage the file catalog"})
	root.AddCommand(&cobra.Command{Use: "ai", Short: "Ask about or edit a file"})
	root.AddCommand(NewCommand(root))

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"completion", shell})
	err := root.Execute()
	return buf.String(), err
}

func TestCompletionScripts(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "_sheetbot"},
		{"zsh", "compdef"},
		{"fish", "complete -c sheetbot"},
		{"powershell", "sheetbot"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			out, err := run(t, tt.shell)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("%s completion should contain %q", tt.shell, tt.want)
			}
			if !strings.HasPrefix(out, "# sheetbot") {
				t.Errorf("missing install header: %q", out[:min(40, len(out))])
			}
		})
	}
}

func TestCompletionUnsupportedShell(t *testing.T) {
	if _, err := run(t, "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestFileRefsCompletesRecordedIDs(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHEETBOT_CATALOG_BACKEND", "memory")
	t.Setenv("SHEETBOT_AUDIT_ENABLED", "false")

	ctx := context.Background()
	a, err := app.New(ctx, app.Flags{NoColor: true})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	sales := catalog.NewRecord("/data/sales.xlsx", "", catalog.SourceCLI)
	sales.ID = "3f2a0000-0000-0000-0000-000000000001"
	stock := catalog.NewRecord("/data/stock.csv", "", catalog.SourceCLI)
	stock.ID = "9c1d0000-0000-0000-0000-000000000002"
	for _, rec := range []catalog.Record{sales, stock} {
		if err := a.Catalog.Put(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	cmd := &cobra.Command{Use: "show"}
	cmd.SetContext(app.NewContext(ctx, a))

	refs, directive := FileRefs(cmd, nil, "3f")
	if len(refs) != 1 || refs[0] != sales.ID+"\tsales.xlsx" {
		t.Errorf("refs = %q", refs)
	}
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v", directive)
	}

	if refs, directive = FileRefs(cmd, nil, "./"); refs != nil || directive != cobra.ShellCompDirectiveDefault {
		t.Errorf("paths should fall back to file completion: %q %v", refs, directive)
	}
	if refs, _ = FileRefs(cmd, []string{sales.ID}, ""); refs != nil {
		t.Errorf("only the first argument is a file: %q", refs)
	}
}
