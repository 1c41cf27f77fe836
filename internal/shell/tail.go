// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package shell

import (
	"bytes"
	"strings"
	"sync"
)

// tailWriter keeps the last n complete lines written through it and
// watches for the OS-kill marker. It tolerates writes that split lines
// across calls.
type tailWriter struct {
	mu      sync.Mutex
	n       int
	lines   []string
	partial bytes.Buffer
	killed  bool
}

func newTailWriter(n int) *tailWriter {
	if n <= 0 {
		n = 1
	}
	return &tailWriter{n: n}
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial.Write(p)
	for {
		data := t.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		t.push(string(data[:i]))
		t.partial.Next(i + 1)
	}
	return len(p), nil
}

func (t *tailWriter) push(line string) {
	if strings.Contains(line, killedMarker) {
		t.killed = true
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

// Lines returns the retained tail, flushing any unterminated final line.
func (t *tailWriter) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.partial.Len() > 0 {
		t.push(t.partial.String())
		t.partial.Reset()
	}
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

func (t *tailWriter) SawKillMarker() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.killed
}
