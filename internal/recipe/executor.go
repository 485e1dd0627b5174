package recipe

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Step actions.
const (
	ActionAdd     = "add"
	ActionAsk     = "ask"
	ActionAnalyze = "analyze"
	ActionEdit    = "edit"
)

// ActionFunc handles one resolved step.
type ActionFunc func(ctx context.Context, step Step) (string, error)

// Executor runs recipe steps sequentially, resolving interpolation between
// steps. An Executor is used for one run.
type Executor struct {
	actions map[string]ActionFunc
	results map[string]*StepResult
	logger  *zap.Logger
	dryRun  bool
}

// NewExecutor creates an executor with no actions.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		actions: make(map[string]ActionFunc),
		results: make(map[string]*StepResult),
		logger:  logger,
	}
}

// SetDryRun makes provider-backed steps report what they would do instead of
// running.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// RegisterAction adds an action handler.
func (e *Executor) RegisterAction(name string, fn ActionFunc) {
	e.actions[name] = fn
}

// Run executes all steps in order. A failed step stops the run unless it is
// marked on_failure: skip.
func (e *Executor) Run(ctx context.Context, r *Recipe) ([]StepResult, error) {
	var results []StepResult
	e.logger.Info("running recipe", zap.String("name", r.Name), zap.Int("steps", len(r.Steps)), zap.Bool("dryRun", e.dryRun))

	for i, step := range r.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		resolved := e.resolve(step)
		log := e.logger.With(zap.String("step", resolved.ID), zap.String("action", resolved.Action))
		log.Debug("running step", zap.Int("index", i+1))

		if e.dryRun && usesProvider(resolved.Action) {
			result := e.record(StepResult{
				StepID: resolved.ID,
				Output: fmt.Sprintf("[DRY-RUN] would %s %s", resolved.Action, resolved.File),
			})
			results = append(results, result)
			continue
		}

		action, ok := e.actions[resolved.Action]
		if !ok {
			return results, fmt.Errorf("no handler for action %q in step %q", resolved.Action, resolved.ID)
		}

		start := time.Now()
		output, err := action(ctx, resolved)
		skip := err != nil && resolved.OnFailure == "skip"
		results = append(results, e.record(StepResult{StepID: resolved.ID, Output: output, Skipped: skip, Error: err}))
		log.Debug("step finished", zap.Duration("took", time.Since(start).Round(time.Millisecond)))

		switch {
		case skip:
			log.Warn("step failed, skipping", zap.Error(err))
		case err != nil:
			return results, fmt.Errorf("step %q failed: %w", resolved.ID, err)
		}
	}
	return results, nil
}

func (e *Executor) record(r StepResult) StepResult {
	stored := r
	e.results[r.StepID] = &stored
	return r
}

func usesProvider(action string) bool {
	return action == ActionAsk || action == ActionAnalyze || action == ActionEdit
}

var interpolationPattern = regexp.MustCompile(`\$\{\{\s*([^}]+?)\s*\}\}`)

func (e *Executor) resolve(step Step) Step {
	resolved := step
	resolved.File = e.interpolate(step.File)
	resolved.Question = e.interpolate(step.Question)
	resolved.Instruction = e.interpolate(step.Instruction)
	return resolved
}

// interpolate expands ${{ steps.<id>.output }}, ${{ date.today }},
// ${{ date.now }} and ${{ env.NAME }}. Unknown expressions are left as is.
func (e *Executor) interpolate(s string) string {
	return interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := interpolationPattern.FindStringSubmatch(match)
		expr := strings.TrimSpace(inner[1])

		switch {
		case strings.HasPrefix(expr, "steps."):
			parts := strings.Split(expr, ".")
			if len(parts) == 3 && parts[2] == "output" {
				if result, ok := e.results[parts[1]]; ok {
					return result.Output
				}
			}
		case expr == "date.today":
			return time.Now().Format("2006-01-02")
		case expr == "date.now":
			return time.Now().Format(time.RFC3339)
		case strings.HasPrefix(expr, "env."):
			return os.Getenv(strings.TrimPrefix(expr, "env."))
		}
		return match
	})
}
