package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

type call struct {
	args []string
}

func mockRunner(calls *[]call) CommandRunner {
	return func(_ context.Context, args []string, stdout, stderr io.Writer) error {
		*calls = append(*calls, call{args: args})
		switch args[0] {
		case "version":
			fmt.Fprintln(stdout, "sheetbot v0.3.0-test")
			return nil
		case "broken":
			fmt.Fprintln(stderr, "Error: catalog unavailable")
			return errors.New("exit 1")
		}
		fmt.Fprintf(stdout, "ran %d args\n", len(args))
		return nil
	}
}

func newTestSession(calls *[]call) (*Session, *bytes.Buffer) {
	s := NewSession(mockRunner(calls))
	var out bytes.Buffer
	s.Out = &out
	return s, &out
}

func TestNewSession(t *testing.T) {
	s := NewSession(nil)
	if s.HistoryFile == "" || !strings.Contains(s.HistoryFile, ".sheetbot") {
		t.Errorf("history file = %q", s.HistoryFile)
	}
	if len(s.KnownCommands) == 0 {
		t.Error("expected known commands to be populated")
	}
}

func TestEvalSplitsQuotedArguments(t *testing.T) {
	var calls []call
	s, _ := newTestSession(&calls)

	if _, err := s.Eval(context.Background(), `ai ask 1a2b "what is the total revenue?"`); err != nil {
		t.Fatal(err)
	}
	want := []string{"ai", "ask", "1a2b", "what is the total revenue?"}
	if got := calls[0].args; strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestEvalStripsProgramName(t *testing.T) {
	var calls []call
	s, _ := newTestSession(&calls)

	output, err := s.Eval(context.Background(), "sheetbot version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(output, "v0.3.0-test") || s.LastOutput != output {
		t.Errorf("output = %q, last = %q", output, s.LastOutput)
	}
}

func TestEvalErrors(t *testing.T) {
	var calls []call
	s, _ := newTestSession(&calls)
	ctx := context.Background()

	if _, err := s.Eval(ctx, "broken"); err == nil || !strings.Contains(err.Error(), "catalog unavailable") {
		t.Errorf("err = %v, want stderr text", err)
	}
	if _, err := s.Eval(ctx, `ai ask "unterminated`); err == nil {
		t.Error("expected parse error")
	}
	if _, err := s.Eval(ctx, "shell"); err == nil {
		t.Error("nested shell should be refused")
	}
	if out, err := s.Eval(ctx, "   "); err != nil || out != "" {
		t.Errorf("empty command: %q, %v", out, err)
	}

	noRunner := NewSession(nil)
	if _, err := noRunner.Eval(ctx, "version"); err == nil {
		t.Error("expected error when runner is nil")
	}
}

func TestExecBuiltins(t *testing.T) {
	var calls []call
	s, out := newTestSession(&calls)
	ctx := context.Background()

	reloads := 0
	s.Reload = func() (string, error) {
		reloads++
		return "anthropic (claude-sonnet-4-20250514)", nil
	}

	if s.Exec(ctx, "version") {
		t.Fatal("version should not quit")
	}
	s.Exec(ctx, "reload")
	s.Exec(ctx, "history")
	s.Exec(ctx, "help")
	if !s.Exec(ctx, "exit") {
		t.Error("exit should quit")
	}

	text := out.String()
	for _, want := range []string{"v0.3.0-test", "Configuration reloaded: anthropic", "2  reload", "Available commands", "Session ended. 4 commands"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if reloads != 1 || len(calls) != 1 {
		t.Errorf("reloads = %d, runner calls = %d", reloads, len(calls))
	}
}

func TestExecReloadFailure(t *testing.T) {
	var calls []call
	s, out := newTestSession(&calls)
	s.Exec(context.Background(), "reload")
	if !strings.Contains(out.String(), "reload is not available") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	s.Reload = func() (string, error) { return "", errors.New("bad yaml") }
	s.Exec(context.Background(), "reload")
	if !strings.Contains(out.String(), "Error: bad yaml") {
		t.Errorf("output = %q", out.String())
	}
}

func TestComplete(t *testing.T) {
	s := NewSession(nil)
	tests := []struct {
		input string
		want  string
	}{
		{"fi", "files"},
		{"ai an", "analyze"},
		{"config va", "validate"},
		{"rec", "recipe"},
		{"re", "recipe reload"},
		{"ai ", "ask analyze edit"},
		{"ai ask x --j", "--json --verbose --help --provider --model"},
		{"zzz ", ""},
	}
	for _, tt := range tests {
		if got := strings.Join(s.Complete(tt.input), " "); got != tt.want {
			t.Errorf("Complete(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
	if len(s.Complete("")) != len(s.KnownCommands) {
		t.Error("expected all commands for empty input")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		30 * time.Second: "30s",
		90 * time.Second: "1m 30s",
		5 * time.Minute:  "5m 0s",
	}
	for in, want := range tests {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%s) = %q, want %q", in, got, want)
		}
	}
}
