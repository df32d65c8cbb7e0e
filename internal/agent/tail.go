package agent

import (
	"bytes"
	"sync"
)

// defaultTailLines is how many trailing output lines a Tail retains when no
// explicit capacity is requested.
const defaultTailLines = 256

// Tail is an io.Writer that keeps only the last N lines written to it,
// giving each agent a bounded stdout/stderr buffer for diagnostics without
// letting a noisy child grow memory unbounded.
type Tail struct {
	mu       sync.Mutex
	lines    []string
	capacity int
	partial  bytes.Buffer
}

// NewTail creates a Tail retaining up to capacity lines. A capacity <= 0
// falls back to defaultTailLines.
func NewTail(capacity int) *Tail {
	if capacity <= 0 {
		capacity = defaultTailLines
	}
	return &Tail{capacity: capacity}
}

// Write implements io.Writer, splitting p into lines and appending complete
// lines to the bounded buffer. A trailing partial line is held until the
// next Write completes it.
func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial.Write(p)
	buf := t.partial.Bytes()

	start := 0
	for i, b := range buf {
		if b == '\n' {
			t.appendLine(string(buf[start:i]))
			start = i + 1
		}
	}
	remaining := append([]byte(nil), buf[start:]...)
	t.partial.Reset()
	t.partial.Write(remaining)

	return len(p), nil
}

func (t *Tail) appendLine(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.capacity {
		t.lines = t.lines[len(t.lines)-t.capacity:]
	}
}

// Lines returns a copy of the currently retained lines, oldest first. Any
// not-yet-newline-terminated partial line is not included.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}
