// Package sandbox runs model-written table transformations in a Starlark
// interpreter. A fragment sees exactly two names besides the language
// builtins: df, the table, and tab, the helper namespace. There is no load
// statement, file, network or process access.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/klytics/sheetbot/internal/table"
)

// DefaultMaxSteps bounds a fragment's execution.
const DefaultMaxSteps = 10_000_000

// Options configures a run.
type Options struct {
	MaxSteps uint64
	// Print receives output of the fragment's print calls.
	Print func(msg string)
}

// Names lists the bindings a fragment can see.
var Names = []string{"df", "tab"}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

const (
	entryFunc  = "__edit__"
	resultName = "__result__"
)

// wrap places the fragment in a function body so that df is a local:
// statements like df = df.drop(...) then rebind it, and the final value is
// returned.
func wrap(code string) string {
	var b strings.Builder
	b.WriteString("def " + entryFunc + "(df):\n")
	body := false
	for _, line := range strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			body = true
		}
		b.WriteString("    " + line + "\n")
	}
	if !body {
		b.WriteString("    pass\n")
	}
	b.WriteString("    return df\n")
	b.WriteString(resultName + " = " + entryFunc + "(df)\n")
	return b.String()
}

// Run executes code against a copy of t and returns the table bound to df when
// the fragment finishes. t itself is never modified. Any error, panic, step
// budget overrun or context cancellation is reported as an error.
func Run(ctx context.Context, t *table.Table, code string, opts Options) (out *table.Table, err error) {
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("fragment panicked: %v", r)
		}
	}()

	thread := &starlark.Thread{
		Name: "edit",
		Print: func(_ *starlark.Thread, msg string) {
			if opts.Print != nil {
				opts.Print(msg)
			}
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load(%q) is not allowed", module)
		},
	}
	thread.SetMaxExecutionSteps(opts.MaxSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	predeclared := starlark.StringDict{
		"df":  NewFrame(t.Clone()),
		"tab": Namespace,
	}

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "fragment", wrap(code), predeclared)
	if err != nil {
		return nil, describe(err)
	}

	frame, ok := globals[resultName].(*Frame)
	if !ok {
		kind := "nothing"
		if v := globals[resultName]; v != nil {
			kind = v.Type()
		}
		return nil, fmt.Errorf("df must remain a frame, got %s", kind)
	}
	return frame.Table(), nil
}

// describe strips the wrapper from error positions so line numbers match the
// fragment.
func describe(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return fmt.Errorf("%s", evalErr.Msg)
	}
	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("line %d: %s", syntaxErr.Pos.Line-1, syntaxErr.Msg)
	}
	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		first := resolveErrs[0]
		return fmt.Errorf("line %d: %s", first.Pos.Line-1, first.Msg)
	}
	return err
}
