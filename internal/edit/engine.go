// Package edit turns a natural-language instruction into a table change: it
// asks the provider for a code fragment, runs the fragment in the sandbox and
// saves the result.
package edit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/audit"
	"github.com/klytics/sheetbot/internal/dataset"
	"github.com/klytics/sheetbot/internal/metrics"
	"github.com/klytics/sheetbot/internal/sandbox"
	"github.com/klytics/sheetbot/internal/table"
)

// State is the terminal state of an edit.
type State string

const (
	StateLoadFailed        State = "load_failed"
	StateErrorFromProvider State = "error_from_provider"
	StateExecutionFailed   State = "execution_failed"
	StatePersistFailed     State = "persist_failed"
	StatePersisted         State = "persisted"
)

// SuccessMessage is the message of a persisted edit.
const SuccessMessage = "File edited successfully."

// Result is the outcome of one Edit call. Table is set only on success.
type Result struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	State    State        `json:"state"`
	Fragment Fragment     `json:"fragment"`
	Table    *table.Table `json:"-"`
}

// Sender delivers a conversation to the active provider. *ai.Holder and
// *ai.Binding satisfy it.
type Sender interface {
	Send(ctx context.Context, messages []ai.Message) (string, error)
}

// Engine runs edits.
type Engine struct {
	sender   Sender
	logger   *zap.Logger
	trail    *audit.Trail
	metrics  *metrics.Collector
	maxSteps uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithTrail records every executed fragment.
func WithTrail(t *audit.Trail) Option { return func(e *Engine) { e.trail = t } }

// WithMetrics counts edits by state.
func WithMetrics(m *metrics.Collector) Option { return func(e *Engine) { e.metrics = m } }

// WithMaxSteps bounds fragment execution.
func WithMaxSteps(n uint64) Option { return func(e *Engine) { e.maxSteps = n } }

// New creates an engine that sends prompts through sender.
func New(sender Sender, opts ...Option) *Engine {
	e := &Engine{sender: sender, logger: zap.NewNop(), maxSteps: sandbox.DefaultMaxSteps}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Edit loads source, applies instruction and writes the table to dest. It
// never returns an error; every failure is a Result with Success false.
func (e *Engine) Edit(ctx context.Context, source, dest, instruction string) Result {
	start := time.Now()
	log := e.logger.With(zap.String("source", source), zap.String("dest", dest))

	t, err := dataset.Load(source)
	if err != nil {
		return e.finish(Result{State: StateLoadFailed, Message: "Error loading dataset: " + err.Error()})
	}

	reply, err := e.sender.Send(ctx, BuildPrompt(t, instruction))
	if err != nil {
		log.Warn("provider returned an error", zap.Error(err))
		return e.finish(Result{State: StateErrorFromProvider, Message: err.Error()})
	}

	frag := ExtractFragment(reply)
	if !frag.Fenced {
		log.Warn("no fenced code block in reply; using stripped reply")
	}
	log.Info("executing fragment", zap.Bool("fenced", frag.Fenced), zap.String("code", frag.Code))

	res := e.execute(ctx, t, frag, dest)
	res.Fragment = frag
	if !res.Success {
		log.Warn("edit failed", zap.String("state", string(res.State)), zap.String("error", res.Message))
	}

	entry := audit.Entry{
		Source:      source,
		Destination: dest,
		Instruction: instruction,
		Provider:    providerName(e.sender),
		Fragment:    frag.Code,
		Fenced:      frag.Fenced,
		State:       string(res.State),
		Message:     res.Message,
		DurationMs:  time.Since(start).Milliseconds(),
	}
	if err := e.trail.Record(ctx, entry); err != nil {
		log.Warn("could not record edit in audit log", zap.Error(err))
	}
	return e.finish(res)
}

func (e *Engine) execute(ctx context.Context, t *table.Table, frag Fragment, dest string) Result {
	out, err := sandbox.Run(ctx, t, frag.Code, sandbox.Options{
		MaxSteps: e.maxSteps,
		Print: func(msg string) {
			e.logger.Info("fragment output", zap.String("text", msg))
		},
	})
	if err != nil {
		return Result{State: StateExecutionFailed, Message: "Error editing file: " + err.Error()}
	}

	if err := dataset.Save(out, dest); err != nil {
		return Result{State: StatePersistFailed, Message: fmt.Sprintf("Error saving file: %v", err)}
	}
	return Result{Success: true, State: StatePersisted, Message: SuccessMessage, Table: out}
}

func (e *Engine) finish(r Result) Result {
	e.metrics.IncEdit(string(r.State))
	return r
}

func providerName(s Sender) string {
	switch v := s.(type) {
	case *ai.Holder:
		return string(v.Current().Provider())
	case *ai.Binding:
		return string(v.Provider())
	}
	return ""
}
