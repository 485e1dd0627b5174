// Package service ties the catalog to the analysis and edit engines: it
// resolves a file reference to a path, runs the engine and records the
// result.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/klytics/sheetbot/internal/analysis"
	"github.com/klytics/sheetbot/internal/catalog"
	"github.com/klytics/sheetbot/internal/dataset"
	"github.com/klytics/sheetbot/internal/edit"
)

// EditedPrefix is prepended to the filename of an edited copy.
const EditedPrefix = "edited_"

// Service is safe for concurrent use when its catalog is.
type Service struct {
	catalog  catalog.Catalog
	analysis *analysis.Engine
	edits    *edit.Engine
	dataDir  string
	logger   *zap.Logger
}

// New creates a service. Edited files are written under dataDir.
func New(c catalog.Catalog, a *analysis.Engine, e *edit.Engine, dataDir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: c, analysis: a, edits: e, dataDir: dataDir, logger: logger}
}

// Catalog returns the underlying catalog.
func (s *Service) Catalog() catalog.Catalog { return s.catalog }

// Add records an existing spreadsheet. The file is not copied.
func (s *Service) Add(ctx context.Context, path, source string) (catalog.Record, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("could not resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return catalog.Record{}, fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return catalog.Record{}, fmt.Errorf("%s is a directory", path)
	}
	if _, err := dataset.FormatOf(abs); err != nil {
		return catalog.Record{}, err
	}
	if source == "" {
		source = catalog.SourceCLI
	}

	rec := catalog.NewRecord(abs, filepath.Base(abs), source)
	rec.Metadata = map[string]any{"size": info.Size()}
	if err := s.catalog.Put(ctx, rec); err != nil {
		return catalog.Record{}, fmt.Errorf("could not record %s: %w", path, err)
	}
	s.logger.Debug("file recorded", zap.String("id", rec.ID), zap.String("path", abs), zap.String("source", source))
	return rec, nil
}

// List returns every record, newest first.
func (s *Service) List(ctx context.Context) ([]catalog.Record, error) {
	return s.catalog.List(ctx)
}

// Show resolves ref to a record. ref is an id, an id prefix or a recorded
// path.
func (s *Service) Show(ctx context.Context, ref string) (catalog.Record, error) {
	rec, err := catalog.Resolve(ctx, s.catalog, ref)
	if !errors.Is(err, catalog.ErrNotFound) {
		return rec, err
	}
	// Recorded paths are absolute; accept a relative spelling too.
	if abs, absErr := filepath.Abs(ref); absErr == nil && abs != ref {
		if rec, absErr := catalog.Resolve(ctx, s.catalog, abs); absErr == nil {
			return rec, nil
		}
	}
	return catalog.Record{}, err
}

// Ask answers a question about a recorded file. A failed analysis is not an
// error; the Result carries the message.
func (s *Service) Ask(ctx context.Context, ref, question string) (analysis.Result, error) {
	rec, err := s.Show(ctx, ref)
	if err != nil {
		return analysis.Result{}, err
	}
	return s.analysis.Analyze(ctx, rec.Path, question), nil
}

// Summarize asks for a comprehensive summary of a recorded file.
func (s *Service) Summarize(ctx context.Context, ref string) (analysis.Result, error) {
	rec, err := s.Show(ctx, ref)
	if err != nil {
		return analysis.Result{}, err
	}
	return s.analysis.Summarize(ctx, rec.Path), nil
}

// EditOutcome is the engine result plus the record of the new file, which is
// nil when the edit failed.
type EditOutcome struct {
	Result edit.Result     `json:"result"`
	Record *catalog.Record `json:"record,omitempty"`
}

// Edit applies instruction to a recorded file and records the result as a new
// file named edited_<filename>. The source file is never modified.
func (s *Service) Edit(ctx context.Context, ref, instruction string) (EditOutcome, error) {
	rec, err := s.Show(ctx, ref)
	if err != nil {
		return EditOutcome{}, err
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return EditOutcome{}, fmt.Errorf("could not create data directory: %w", err)
	}

	id := catalog.NewID()
	dest := filepath.Join(s.dataDir, id+outputExt(rec.Path))
	res := s.edits.Edit(ctx, rec.Path, dest, instruction)
	out := EditOutcome{Result: res}
	if !res.Success {
		return out, nil
	}

	edited := catalog.NewRecord(dest, EditedPrefix+rec.Filename, catalog.SourceAIEdit)
	edited.ID = id
	edited.Metadata = map[string]any{
		"parent":      rec.ID,
		"instruction": instruction,
	}
	if err := s.catalog.Put(ctx, edited); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("could not remove unrecorded edit", zap.String("path", dest), zap.Error(rmErr))
		}
		return out, fmt.Errorf("could not record edited file: %w", err)
	}
	out.Record = &edited
	return out, nil
}

// outputExt keeps the source format. Macro workbooks are written as plain
// workbooks.
func outputExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsm" {
		return ".xlsx"
	}
	return ext
}
