// Package shell provides the interactive sheetbot REPL.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

// CommandRunner executes one sheetbot command line and writes its output.
// The cmd package supplies it so the shell does not import cobra.
type CommandRunner func(ctx context.Context, args []string, stdout, stderr io.Writer) error

// Session is one interactive shell.
type Session struct {
	Runner CommandRunner
	// Reload re-reads configuration and swaps the provider binding. It
	// returns a one-line description of the new binding.
	Reload func() (string, error)

	Out            io.Writer
	LastOutput     string
	CommandHistory []string
	HistoryFile    string
	StartTime      time.Time

	// KnownCommands is the list of top-level commands for completion.
	KnownCommands []string
}

// NewSession creates a session that runs commands through runner.
func NewSession(runner CommandRunner) *Session {
	home, _ := os.UserHomeDir()
	return &Session{
		Runner:      runner,
		Out:         os.Stdout,
		HistoryFile: filepath.Join(home, ".sheetbot", "shell_history"),
		StartTime:   time.Now(),
		KnownCommands: []string{
			"files", "ai", "recipe", "watch", "audit", "config", "doctor", "version",
			"help", "exit", "quit", "history", "reload",
		},
	}
}

// Run starts the REPL loop. It blocks until exit, Ctrl+D or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if s.Runner == nil {
		return fmt.Errorf("shell runner not configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.HistoryFile), 0o755); err != nil {
		return fmt.Errorf("could not create history directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sheetbot> ",
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	s.Out = rl.Stdout()

	fmt.Fprintln(s.Out, "sheetbot shell")
	fmt.Fprintln(s.Out, "Type 'help' for commands, 'exit' to quit.")
	fmt.Fprintln(s.Out)

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		if quit := s.Exec(ctx, line); quit {
			return nil
		}
	}
	return nil
}

// Exec handles one input line. It reports true when the session should end.
func (s *Session) Exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	s.CommandHistory = append(s.CommandHistory, line)

	switch line {
	case "exit", "quit":
		fmt.Fprintf(s.Out, "\nSession ended. %d commands run in %s.\n",
			len(s.CommandHistory)-1, formatDuration(time.Since(s.StartTime)))
		return true
	case "help":
		s.printHelp()
	case "history":
		for i, cmd := range s.CommandHistory {
			fmt.Fprintf(s.Out, "  %d  %s\n", i+1, cmd)
		}
	case "reload":
		if s.Reload == nil {
			fmt.Fprintln(s.Out, "Error: reload is not available")
			break
		}
		desc, err := s.Reload()
		if err != nil {
			fmt.Fprintf(s.Out, "Error: %s\n", err)
			break
		}
		fmt.Fprintf(s.Out, "Configuration reloaded: %s\n", desc)
	default:
		output, err := s.Eval(ctx, line)
		if output != "" {
			fmt.Fprint(s.Out, output)
			if !strings.HasSuffix(output, "\n") {
				fmt.Fprintln(s.Out)
			}
		}
		if err != nil {
			msg := err.Error()
			if !strings.HasPrefix(msg, "Error") {
				msg = "Error: " + msg
			}
			fmt.Fprintln(s.Out, msg)
		}
	}
	return false
}

// Eval runs a single command string and returns its output. Arguments are
// split with shell quoting rules, so questions can contain spaces.
func (s *Session) Eval(ctx context.Context, command string) (string, error) {
	if s.Runner == nil {
		return "", fmt.Errorf("shell runner not configured")
	}

	args, err := shlex.Split(command)
	if err != nil {
		return "", fmt.Errorf("could not parse command: %w", err)
	}
	if len(args) == 0 {
		return "", nil
	}
	if args[0] == "sheetbot" {
		args = args[1:]
	}
	if len(args) > 0 && args[0] == "shell" {
		return "", fmt.Errorf("already in a shell")
	}

	var stdout, stderr bytes.Buffer
	err = s.Runner(ctx, args, &stdout, &stderr)

	output := stdout.String()
	s.LastOutput = output

	if errOut := strings.TrimSpace(stderr.String()); errOut != "" && err != nil {
		return output, fmt.Errorf("%s", errOut)
	}
	return output, err
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return s.KnownCommands
	}

	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, cmd := range s.KnownCommands {
			if strings.HasPrefix(cmd, parts[0]) {
				matches = append(matches, cmd)
			}
		}
		sort.Strings(matches)
		return matches
	}

	subcommands := subcommandsFor(parts[0])
	if len(parts) == 2 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, sub := range subcommands {
			if strings.HasPrefix(sub, parts[1]) {
				matches = append(matches, sub)
			}
		}
		return matches
	}
	if len(parts) == 1 {
		return subcommands
	}

	if strings.HasPrefix(parts[len(parts)-1], "-") {
		return []string{"--json", "--verbose", "--help", "--provider", "--model"}
	}
	return nil
}

func subcommandsFor(parent string) []string {
	subs := map[string][]string{
		"files":  {"add", "list", "show"},
		"ai":     {"ask", "analyze", "edit"},
		"recipe": {"run", "validate"},
		"audit":  {"log", "clear", "status"},
		"config": {"show", "get", "path", "validate"},
	}
	return subs[parent]
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.Out, "Available commands:")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "  Files:   files add <path>, files list, files show <id>")
	fmt.Fprintln(s.Out, "  AI:      ai ask <id> \"<question>\", ai analyze <id>, ai edit <id> \"<instruction>\"")
	fmt.Fprintln(s.Out, "  Recipes: recipe run <file.yaml>")
	fmt.Fprintln(s.Out, "  Watch:   watch <dir> (Ctrl+C returns to the shell)")
	fmt.Fprintln(s.Out, "  System:  audit log, config, doctor, version")
	fmt.Fprintln(s.Out)
	fmt.Fprintln(s.Out, "Shell commands:")
	fmt.Fprintln(s.Out, "  help      show this help")
	fmt.Fprintln(s.Out, "  history   show command history")
	fmt.Fprintln(s.Out, "  reload    re-read configuration and credentials")
	fmt.Fprintln(s.Out, "  exit      exit the shell")
}

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range s.KnownCommands {
		var subItems []readline.PrefixCompleterInterface
		for _, sub := range subcommandsFor(cmd) {
			subItems = append(subItems, readline.PcItem(sub))
		}
		items = append(items, readline.PcItem(cmd, subItems...))
	}
	return items
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, sec)
}
