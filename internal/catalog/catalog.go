// Package catalog records the spreadsheet files sheetbot knows about.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("file not found")
	// ErrExists is returned by Put when the id is already recorded.
	ErrExists = errors.New("file already recorded")
)

// Source labels how a record entered the catalog.
const (
	SourceCLI    = "CLI"
	SourceWatch  = "Watch"
	SourceAIEdit = "AI-Edit"
)

// Record is one catalogued file.
type Record struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	Source     string         `json:"source"`
	UploadedAt time.Time      `json:"uploadedAt"`
	Path       string         `json:"path"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Catalog stores records. Implementations are safe for concurrent use.
type Catalog interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// NewRecord fills in the id and timestamp for a file at path.
func NewRecord(path, filename, source string) Record {
	if filename == "" {
		filename = filepath.Base(path)
	}
	return Record{
		ID:         NewID(),
		Filename:   filename,
		Source:     source,
		UploadedAt: time.Now().UTC(),
		Path:       path,
	}
}

func validate(rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("record has no id")
	}
	if rec.Path == "" {
		return fmt.Errorf("record %s has no path", rec.ID)
	}
	return nil
}

// sortNewestFirst orders records by upload time, newest first.
func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].UploadedAt.After(recs[j].UploadedAt)
	})
}

// Resolve finds a record by id, unique id prefix or path.
func Resolve(ctx context.Context, c Catalog, ref string) (Record, error) {
	rec, err := c.Get(ctx, ref)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return rec, err
	}

	all, err := c.List(ctx)
	if err != nil {
		return Record{}, err
	}
	var matches []Record
	for _, r := range all {
		if r.Path == ref || (len(ref) >= 4 && strings.HasPrefix(r.ID, ref)) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return Record{}, fmt.Errorf("%q matches %d files; use the full id", ref, len(matches))
}
