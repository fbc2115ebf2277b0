// Package progress reports the progress of long transfers.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Callback receives progress updates. current and total share a unit;
// transfers report percent with total 100.
type Callback func(op string, current, total int, message string)

// Noop discards updates.
func Noop(op string, current, total int, message string) {}

// Progress tracks one operation.
type Progress struct {
	Op      string
	Total   int
	current int
	cb      Callback
}

// New creates a Progress tracker.
func New(op string, total int, cb Callback) *Progress {
	if cb == nil {
		cb = Noop
	}
	return &Progress{Op: op, Total: total, cb: cb}
}

// Set records current, clamped to [0, Total], and reports it.
func (p *Progress) Set(current int, message string) {
	p.current = min(max(current, 0), p.Total)
	p.cb(p.Op, p.current, p.Total, message)
}

// Done marks the operation complete.
func (p *Progress) Done(message string) {
	p.current = p.Total
	p.cb(p.Op, p.current, p.Total, message)
}

// Current returns the last reported value.
func (p *Progress) Current() int {
	return p.current
}

const barWidth = 30

// Terminal draws a one-line bar that it redraws in place. A report with
// current equal to total ends the line.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	lastLineLen int
}

// NewTerminal creates a bar that draws on w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{writer: w}
}

// Callback returns a Callback that draws on the terminal.
func (t *Terminal) Callback() Callback {
	return t.render
}

func (t *Terminal) render(op string, current, total int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if total <= 0 {
		total = 1
	}
	current = min(max(current, 0), total)
	filled := barWidth * current / total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %3d%%", op, bar, current*100/total)
	if message != "" {
		line += " " + message
	}
	clear := "\r"
	if t.lastLineLen > len(line) {
		clear = "\r" + strings.Repeat(" ", t.lastLineLen) + "\r"
	}
	fmt.Fprint(t.writer, clear+line)
	t.lastLineLen = len(line)

	if current == total {
		fmt.Fprintln(t.writer)
		t.lastLineLen = 0
	}
}

// Update is one progress report as written by JSONLines.
type Update struct {
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Op      string    `json:"op"`
	Current int       `json:"current"`
	Total   int       `json:"total"`
	Message string    `json:"message,omitempty"`
}

// JSONLines returns a Callback that writes each update to w as one JSON
// object with kind "progress".
func JSONLines(w io.Writer, now func() time.Time) Callback {
	if now == nil {
		now = time.Now
	}
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(op string, current, total int, message string) {
		mu.Lock()
		defer mu.Unlock()
		enc.Encode(Update{
			Kind:    "progress",
			Time:    now().UTC(),
			Op:      op,
			Current: current,
			Total:   total,
			Message: message,
		})
	}
}
