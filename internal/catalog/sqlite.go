package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout has a fixed-width fraction so upload_date sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite stores records in the files table of a SQLite database.
type SQLite struct {
	db *sql.DB
}

const createFilesSQL = `
CREATE TABLE IF NOT EXISTS files (
	hash_id TEXT PRIMARY KEY,
	filename TEXT,
	upload_source TEXT,
	upload_date TIMESTAMP,
	file_path TEXT,
	metadata JSON
);
`

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createFilesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create files table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_files_upload_date ON files(upload_date);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create upload_date index: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash_id, filename, upload_source, upload_date, file_path, metadata FROM files WHERE hash_id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

func (s *SQLite) Put(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	meta, err := json.Marshal(orEmpty(rec.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (hash_id, filename, upload_source, upload_date, file_path, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.Source, rec.UploadedAt.UTC().Format(timeLayout), rec.Path, string(meta))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrExists, rec.ID)
		}
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash_id, filename, upload_source, upload_date, file_path, metadata FROM files ORDER BY upload_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec              Record
		filename, source sql.NullString
		meta             sql.NullString
		uploaded         any
	)
	if err := row.Scan(&rec.ID, &filename, &source, &uploaded, &rec.Path, &meta); err != nil {
		return Record{}, err
	}
	rec.Filename = filename.String
	rec.Source = source.String
	rec.UploadedAt = parseTime(uploaded)
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
			return Record{}, fmt.Errorf("failed to parse metadata of %s: %w", rec.ID, err)
		}
		if len(rec.Metadata) == 0 {
			rec.Metadata = nil
		}
	}
	return rec, nil
}

// parseTime accepts the driver's time.Time for TIMESTAMP columns as well as
// the stored text.
func parseTime(v any) time.Time {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
