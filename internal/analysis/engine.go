// Package analysis answers questions about a spreadsheet by sending its
// contents to the active provider.
package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/dataset"
	"github.com/klytics/sheetbot/internal/formats/delimited"
	"github.com/klytics/sheetbot/internal/metrics"
	"github.com/klytics/sheetbot/internal/table"
)

const (
	systemPrompt = "You are a helpful data analyst assistant."

	// SummaryQuestion is asked by Summarize.
	SummaryQuestion = "Please provide a comprehensive summary of this data."
)

// Result is the outcome of an analysis. Text holds the answer, or the error
// message when OK is false.
type Result struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}

// Sender delivers a conversation to the active provider.
type Sender interface {
	Send(ctx context.Context, messages []ai.Message) (string, error)
}

// Engine runs analyses. It holds no per-call state.
type Engine struct {
	sender  Sender
	logger  *zap.Logger
	metrics *metrics.Collector
	limit   int
}

// New creates an engine. A nil logger discards output.
func New(sender Sender, logger *zap.Logger, m *metrics.Collector) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{sender: sender, logger: logger, metrics: m, limit: ai.MaxDataChars}
}

// BuildPrompt serializes t as CSV, truncating it to limit characters, and
// frames the question for the provider.
func BuildPrompt(t *table.Table, question string, limit int) (messages []ai.Message, size int, truncated bool) {
	data := delimited.String(t)
	size = len(data)
	data, truncated = ai.Truncate(data, limit)

	user := fmt.Sprintf(`
You have access to an Excel file with this data:
%s

User question: %s

Provide a concise answer with calculations if needed.
`, data, question)

	return []ai.Message{ai.System(systemPrompt), ai.User(user)}, size, truncated
}

// Analyze loads source fresh and asks question about it. One provider call,
// no retries.
func (e *Engine) Analyze(ctx context.Context, source, question string) Result {
	res := e.analyze(ctx, source, question)
	e.metrics.IncAnalysis(res.OK)
	return res
}

func (e *Engine) analyze(ctx context.Context, source, question string) Result {
	t, err := dataset.Load(source)
	if err != nil {
		return Result{Text: "Error loading dataset: " + err.Error()}
	}

	messages, size, truncated := BuildPrompt(t, question, e.limit)
	e.metrics.ObserveDataSize(size, truncated)
	if truncated {
		e.logger.Warn("dataset truncated for analysis",
			zap.String("source", source),
			zap.Int("chars", size),
			zap.Int("limit", e.limit))
	}

	text, err := e.sender.Send(ctx, messages)
	if err != nil {
		return Result{Text: err.Error()}
	}
	return Result{Text: text, OK: true}
}

// Summarize asks for a comprehensive summary of source.
func (e *Engine) Summarize(ctx context.Context, source string) Result {
	return e.Analyze(ctx, source, SummaryQuestion)
}
