// Package progress draws spinners and bars on a terminal. Nothing is drawn
// unless the writer is a TTY, so piped and JSON output stay clean.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Bar renders an ASCII progress bar.
type Bar struct {
	Total   int
	Current int
	Label   string
	Width   int
	Enabled bool

	w  io.Writer
	mu sync.Mutex
}

// NewBar creates a bar drawing to w.
func NewBar(w io.Writer, label string, total int) *Bar {
	return &Bar{
		Total:   total,
		Label:   label,
		Width:   30,
		Enabled: Enabled(w),
		w:       w,
	}
}

// Increment advances the bar by one and redraws.
func (b *Bar) Increment(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Current = min(b.Current+1, b.Total)
	b.render(status)
}

// Finish clears the bar and prints a summary line.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Enabled {
		return
	}
	fmt.Fprintf(b.w, "\r\033[K✓ %s\n", summary)
}

func (b *Bar) render(status string) {
	if !b.Enabled {
		return
	}
	filled := 0
	if b.Total > 0 {
		filled = min(b.Current*b.Width/b.Total, b.Width)
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.Width-filled)
	fmt.Fprintf(b.w, "\r\033[K%s [%s] %d/%d  %s", b.Label, bar, b.Current, b.Total, status)
}

// Pct returns the completed share in percent.
func (b *Bar) Pct() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Total == 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Total) * 100
}

// Spinner marks a wait of unknown length, such as a provider call.
type Spinner struct {
	Label   string
	Enabled bool

	w    io.Writer
	mu   sync.Mutex
	done chan struct{}
}

// NewSpinner creates a spinner drawing to w.
func NewSpinner(w io.Writer, label string) *Spinner {
	return &Spinner{Label: label, Enabled: Enabled(w), w: w}
}

// Start begins the animation. A disabled spinner prints its label once.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		if s.w != nil {
			fmt.Fprintln(s.w, s.Label)
		}
		return
	}
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	go s.spin(s.done)
}

func (s *Spinner) spin(done <-chan struct{}) {
	frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			select {
			case <-done:
			default:
				fmt.Fprintf(s.w, "\r\033[K%c %s", frames[i%len(frames)], s.Label)
			}
			s.mu.Unlock()
		}
	}
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		return
	}
	close(s.done)
	s.done = nil
	fmt.Fprint(s.w, "\r\033[K")
}

// Update changes the label while the spinner runs.
func (s *Spinner) Update(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Label = label
}

// Enabled reports whether animations should be drawn to w: it must be a
// terminal and SHEETBOT_NO_PROGRESS must not be 1.
func Enabled(w io.Writer) bool {
	if os.Getenv("SHEETBOT_NO_PROGRESS") == "1" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}
