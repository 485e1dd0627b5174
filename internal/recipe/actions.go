package recipe

import (
	"context"
	"errors"

	"github.com/klytics/sheetbot/internal/analysis"
	"github.com/klytics/sheetbot/internal/catalog"
	"github.com/klytics/sheetbot/internal/service"
)

// Service is the part of *service.Service the actions need.
type Service interface {
	Add(ctx context.Context, path, source string) (catalog.Record, error)
	Ask(ctx context.Context, ref, question string) (analysis.Result, error)
	Summarize(ctx context.Context, ref string) (analysis.Result, error)
	Edit(ctx context.Context, ref, instruction string) (service.EditOutcome, error)
}

// RegisterService wires the add, ask, analyze and edit actions to svc.
func RegisterService(e *Executor, svc Service) {
	e.RegisterAction(ActionAdd, func(ctx context.Context, step Step) (string, error) {
		rec, err := svc.Add(ctx, step.File, catalog.SourceCLI)
		if err != nil {
			return "", err
		}
		return rec.ID, nil
	})
	e.RegisterAction(ActionAsk, func(ctx context.Context, step Step) (string, error) {
		return answer(svc.Ask(ctx, step.File, step.Question))
	})
	e.RegisterAction(ActionAnalyze, func(ctx context.Context, step Step) (string, error) {
		return answer(svc.Summarize(ctx, step.File))
	})
	e.RegisterAction(ActionEdit, func(ctx context.Context, step Step) (string, error) {
		out, err := svc.Edit(ctx, step.File, step.Instruction)
		if err != nil {
			return "", err
		}
		if !out.Result.Success {
			return "", errors.New(out.Result.Message)
		}
		return out.Record.ID, nil
	})
}

func answer(res analysis.Result, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if !res.OK {
		return "", errors.New(res.Text)
	}
	return res.Text, nil
}
