// Package audit keeps the trail of generated edit fragments: what the model
// produced, where it ran and how it ended.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one edit attempt.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	Destination string    `json:"destination,omitempty"`
	Instruction string    `json:"instruction"`
	Provider    string    `json:"provider,omitempty"`
	Fragment    string    `json:"fragment"`
	Fenced      bool      `json:"fenced"`
	State       string    `json:"state,omitempty"`
	Message     string    `json:"message,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
}

// Trail appends entries to a JSONL file.
type Trail struct {
	FilePath string
	Enabled  bool

	mu sync.Mutex
}

// NewTrail creates a Trail. A disabled trail or empty path writes nothing.
func NewTrail(filePath string, enabled bool) *Trail {
	return &Trail{FilePath: filePath, Enabled: enabled}
}

// Record appends one entry. A disabled trail records nothing and reports no
// error; callers treat a failure as a warning and carry on with the edit.
func (l *Trail) Record(_ context.Context, entry Entry) error {
	if l == nil || !l.Enabled || l.FilePath == "" {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Instruction = RedactText(entry.Instruction)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("could not encode audit entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.FilePath), 0755); err != nil {
		return fmt.Errorf("could not create audit directory: %w", err)
	}
	f, err := os.OpenFile(l.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("could not open audit log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("could not write audit log: %w", err)
	}
	return f.Close()
}

// ReadEntries reads all entries from the trail file.
func ReadEntries(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FilterEntries returns entries matching the given criteria. Zero values match
// everything.
func FilterEntries(entries []Entry, since time.Time, state, source string) []Entry {
	var result []Entry
	for _, e := range entries {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if state != "" && e.State != state {
			continue
		}
		if source != "" && !strings.Contains(e.Source, source) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// LogSize returns the size of the trail in bytes, or 0 if not found.
func LogSize(filePath string) int64 {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Clear truncates the trail file.
func Clear(filePath string) error {
	return os.Truncate(filePath, 0)
}

// sensitivePatterns are word prefixes that indicate secrets.
var sensitivePatterns = []string{"sk-ant-", "sk-or-", "sk-", "AIza"}

// RedactText replaces secret-looking words in free text.
func RedactText(s string) string {
	words := strings.Fields(s)
	changed := false
	for i, w := range words {
		for _, pat := range sensitivePatterns {
			if strings.HasPrefix(w, pat) && len(w) > len(pat)+8 {
				words[i] = "[REDACTED]"
				changed = true
				break
			}
		}
	}
	if !changed {
		return s
	}
	return strings.Join(words, " ")
}
