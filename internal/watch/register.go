package watch

import (
	"context"
	"sync"

	"github.com/klytics/sheetbot/internal/analysis"
	"github.com/klytics/sheetbot/internal/catalog"
)

// Registrar records files and answers questions about them.
// *service.Service satisfies it.
type Registrar interface {
	Add(ctx context.Context, path, source string) (catalog.Record, error)
	Ask(ctx context.Context, ref, question string) (analysis.Result, error)
}

// Report is what happened to one dropped file. Answer is nil when no
// question is configured.
type Report struct {
	Record catalog.Record   `json:"record"`
	Answer *analysis.Result `json:"answer,omitempty"`
}

// RegisterHandler returns a Handler that records each file with source Watch
// and, if question is set, asks it. report receives every outcome. A path is
// registered once; later writes to it are ignored.
func RegisterHandler(svc Registrar, question string, report func(Report)) Handler {
	var seen sync.Map
	return func(ctx context.Context, path string) error {
		if _, dup := seen.LoadOrStore(path, struct{}{}); dup {
			return nil
		}
		rec, err := svc.Add(ctx, path, catalog.SourceWatch)
		if err != nil {
			seen.Delete(path)
			return err
		}
		r := Report{Record: rec}
		if question != "" {
			res, err := svc.Ask(ctx, rec.ID, question)
			if err != nil {
				return err
			}
			r.Answer = &res
		}
		if report != nil {
			report(r)
		}
		return nil
	}
}
