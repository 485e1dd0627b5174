package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/klytics/sheetbot/internal/catalog"
	"github.com/klytics/sheetbot/internal/output"
)

// isolate points configuration and the catalog at a temporary home.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", home)
	t.Setenv("SHEETBOT_AUDIT_ENABLED", "false")
	t.Setenv("SHEETBOT_NO_PROGRESS", "1")
	for _, name := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENROUTER_API_KEY", "AI_API_KEY", "SHEETBOT_PROVIDER"} {
		t.Setenv(name, "")
	}
	return home
}

// run executes sheetbot in-process and returns stdout, stderr and the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetArgs(append(args, "--no-color"))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "scores.csv")
	if err := os.WriteFile(path, []byte("name,score\nada,3\nbob,5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type envelope struct {
	OK      bool            `json:"ok"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    int             `json:"code"`
}

func decode(t *testing.T, s string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		t.Fatalf("not a JSON envelope: %v\n%s", err, s)
	}
	return env
}

func TestAllCommandsExist(t *testing.T) {
	isolate(t)
	stdout, _, err := run(t, "--help")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"files", "ai", "recipe", "watch", "shell", "audit", "config", "doctor", "completion", "version"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("command %q not found in help output", name)
		}
	}
}

func TestFilesAddListShow(t *testing.T) {
	home := isolate(t)
	path := writeCSV(t, home)

	stdout, _, err := run(t, "files", "add", path, "--json")
	if err != nil {
		t.Fatal(err)
	}
	env := decode(t, stdout)
	var added []catalog.Record
	if err := json.Unmarshal(env.Data, &added); err != nil {
		t.Fatal(err)
	}
	if !env.OK || env.Command != "files add" || len(added) != 1 {
		t.Fatalf("envelope = %+v", env)
	}
	rec := added[0]
	if rec.Filename != "scores.csv" || rec.Source != catalog.SourceCLI {
		t.Errorf("record = %+v", rec)
	}

	stdout, _, err = run(t, "files", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, rec.ID) || !strings.Contains(stdout, "scores.csv") {
		t.Errorf("list output = %q", stdout)
	}

	stdout, _, err = run(t, "files", "show", rec.ID[:8])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, path) {
		t.Errorf("show output = %q, want path %s", stdout, path)
	}
}

func TestAskWithoutCredentialIsReported(t *testing.T) {
	home := isolate(t)
	path := writeCSV(t, home)
	if _, _, err := run(t, "files", "add", path); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := run(t, "ai", "ask", path, "which", "name", "scored", "highest?")
	if err == nil {
		t.Fatal("expected an error without an API key")
	}
	if !output.IsReported(err) || output.ExitCode(err) != output.ExitSystemError {
		t.Errorf("err = %v (reported=%v, code=%d)", err, output.IsReported(err), output.ExitCode(err))
	}
	if !strings.Contains(stderr, "openai provider not initialized") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAskUnknownFile(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "ai", "ask", "does-not-exist", "anything?")
	if err == nil {
		t.Fatal("expected an error")
	}
	if output.IsReported(err) || output.ExitCode(err) != output.ExitUserError {
		t.Errorf("err = %v, code %d", err, output.ExitCode(err))
	}
}

func TestReportJSONEnvelope(t *testing.T) {
	isolate(t)
	root := NewRootCommand()
	args := []string{"files", "show", "missing", "--json"}
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}

	var stdout, stderr bytes.Buffer
	report(root, args, err, &stdout, &stderr)
	env := decode(t, stdout.String())
	if env.OK || env.Command != "files show" || env.Code != output.ExitUserError || env.Error == "" {
		t.Errorf("envelope = %+v", env)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty in JSON mode", stderr.String())
	}
}

func TestReportText(t *testing.T) {
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	report(root, nil, os.ErrNotExist, &stdout, &stderr)
	if stderr.String() != "Error: file does not exist\n" {
		t.Errorf("stderr = %q", stderr.String())
	}

	stderr.Reset()
	report(root, nil, output.Reported(os.ErrNotExist, output.ExitSystemError), &stdout, &stderr)
	if stderr.Len() != 0 {
		t.Error("reported errors must not be printed twice")
	}
}

func TestConfigValidateUnknownProvider(t *testing.T) {
	isolate(t)
	t.Setenv("SHEETBOT_PROVIDER", "bogus")

	stdout, _, err := run(t, "config", "validate")
	if err == nil || output.ExitCode(err) != output.ExitUserError {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(stdout, `unknown provider "bogus"`) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRecipeDryRun(t *testing.T) {
	home := isolate(t)
	path := writeCSV(t, home)
	recipePath := filepath.Join(home, "plan.yaml")
	plan := `name: smoke
steps:
  - id: load
    action: add
    file: ` + path + `
  - id: q
    action: ask
    file: ${{ steps.load.output }}
    question: how many rows?
`
	if err := os.WriteFile(recipePath, []byte(plan), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := run(t, "recipe", "validate", recipePath)
	if err != nil || !strings.Contains(stdout, "smoke is valid (2 steps)") {
		t.Fatalf("validate: %v %q", err, stdout)
	}

	stdout, _, err = run(t, "recipe", "run", recipePath, "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "[DRY-RUN] would ask") {
		t.Errorf("run output = %q", stdout)
	}
}

func TestRunLine(t *testing.T) {
	isolate(t)
	var stdout bytes.Buffer
	if err := runLine(context.Background(), []string{"version"}, &stdout, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "sheetbot ") {
		t.Errorf("stdout = %q", stdout.String())
	}
}
