package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klytics/sheetbot/internal/analysis"
	"github.com/klytics/sheetbot/internal/catalog"
)

func TestDefaultDebounce(t *testing.T) {
	w, err := New(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	if w.Config.Debounce != DefaultDebounce {
		t.Errorf("expected default debounce, got %s", w.Config.Debounce)
	}
}

func TestMatches(t *testing.T) {
	ignored := t.TempDir()
	w, _ := New(Config{Pattern: "sales_*", Ignore: []string{ignored}}, nil)
	defer w.watcher.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"/tmp/sales_q1.xlsx", true},
		{"/tmp/sales_q1.csv", true},
		{"/tmp/sales_q1.docx", false},
		{"/tmp/costs.xlsx", false},
		{"/tmp/~$sales_q1.xlsx", false},
		{filepath.Join(ignored, "sales_q2.xlsx"), false},
	}
	for _, tt := range tests {
		if got := w.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func startWatcher(t *testing.T, w *Watcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	select {
	case <-w.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("watcher stopped early: %v", err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("timeout waiting for watcher")
	}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestWatcherHandlesSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Directories: []string{dir}, Debounce: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	handled := make(chan string, 4)
	w.Handler = func(_ context.Context, path string) error {
		handled <- path
		return nil
	}
	startWatcher(t, w)

	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip me"), 0o644)
	target := filepath.Join(dir, "scores.csv")
	os.WriteFile(target, []byte("name,score\na,1\n"), 0o644)

	select {
	case path := <-handled:
		if path != target {
			t.Errorf("expected %q, got %q", target, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for handler call")
	}

	// A burst of writes settles into one call.
	select {
	case path := <-handled:
		t.Errorf("unexpected second call for %q", path)
	case <-time.After(200 * time.Millisecond):
	}

	events := w.Events()
	if len(events) != 1 || events[0].Status != "processed" {
		t.Errorf("events = %+v", events)
	}
}

func TestWatcherRecordsHandlerErrors(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Config{Directories: []string{dir}, Debounce: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{}, 1)
	w.Handler = func(context.Context, string) error {
		defer func() { done <- struct{}{} }()
		return errors.New("catalog unavailable")
	}
	startWatcher(t, w)

	os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x\n1\n"), 0o644)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for handler call")
	}

	deadline := time.Now().Add(time.Second)
	for len(w.Events()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	events := w.Events()
	if len(events) != 1 || events[0].Status != "error" || events[0].Error != "catalog unavailable" {
		t.Errorf("events = %+v", events)
	}
}

func TestStartMissingDirectory(t *testing.T) {
	w, err := New(Config{Directories: []string{filepath.Join(t.TempDir(), "nope")}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

type fakeRegistrar struct {
	mu    sync.Mutex
	added []string
	asked []string
}

func (f *fakeRegistrar) Add(_ context.Context, path, source string) (catalog.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, source+":"+path)
	return catalog.Record{ID: "id-" + filepath.Base(path), Path: path, Source: source}, nil
}

func (f *fakeRegistrar) Ask(_ context.Context, ref, question string) (analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, ref)
	return analysis.Result{Text: "answer to " + question, OK: true}, nil
}

func TestRegisterHandler(t *testing.T) {
	reg := &fakeRegistrar{}
	var reports []Report
	h := RegisterHandler(reg, "how many rows?", func(r Report) { reports = append(reports, r) })

	ctx := context.Background()
	if err := h(ctx, "/in/a.csv"); err != nil {
		t.Fatal(err)
	}
	if err := h(ctx, "/in/a.csv"); err != nil {
		t.Fatal(err)
	}

	if len(reg.added) != 1 || reg.added[0] != catalog.SourceWatch+":/in/a.csv" {
		t.Errorf("added = %v", reg.added)
	}
	if len(reg.asked) != 1 || reg.asked[0] != "id-a.csv" {
		t.Errorf("asked = %v", reg.asked)
	}
	if len(reports) != 1 || reports[0].Answer == nil || reports[0].Answer.Text != "answer to how many rows?" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestRegisterHandlerWithoutQuestion(t *testing.T) {
	reg := &fakeRegistrar{}
	var got Report
	h := RegisterHandler(reg, "", func(r Report) { got = r })
	if err := h(context.Background(), "/in/b.xlsx"); err != nil {
		t.Fatal(err)
	}
	if got.Answer != nil || len(reg.asked) != 0 {
		t.Errorf("no question should be asked: %+v", got)
	}
}
