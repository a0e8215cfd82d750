package cli

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// ANSI color codes assigned to runs in order of first appearance
var prefixColors = []string{
	"\033[32m", // Green
	"\033[34m", // Blue
	"\033[36m", // Cyan
	"\033[35m", // Magenta
	"\033[33m", // Yellow
	"\033[31m", // Red
}

// PrefixWriter prefixes every complete line with a label. Partial lines are
// held until their newline arrives or Flush is called, so lines from writers
// sharing the same destination never interleave.
type PrefixWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	prefix  []byte
	pending []byte
}

// NewPrefixWriter creates a writer that labels lines with [label]
func NewPrefixWriter(w io.Writer, label string, useColor bool, colorIndex int) *PrefixWriter {
	prefix := fmt.Sprintf("[%s] ", label)
	if useColor {
		prefix = fmt.Sprintf("%s[%s]\033[0m ", prefixColors[colorIndex%len(prefixColors)], label)
	}
	return &PrefixWriter{writer: w, prefix: []byte(prefix)}
}

// Write implements io.Writer
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.pending = append(pw.pending, p...)
	for {
		i := bytes.IndexByte(pw.pending, '\n')
		if i < 0 {
			break
		}
		if err := pw.emit(pw.pending[:i+1]); err != nil {
			return 0, err
		}
		pw.pending = pw.pending[i+1:]
	}
	return len(p), nil
}

// Flush writes a pending partial line
func (pw *PrefixWriter) Flush() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if len(pw.pending) == 0 {
		return nil
	}
	err := pw.emit(pw.pending)
	pw.pending = nil
	return err
}

func (pw *PrefixWriter) emit(line []byte) error {
	out := make([]byte, 0, len(pw.prefix)+len(line))
	out = append(out, pw.prefix...)
	out = append(out, line...)
	_, err := pw.writer.Write(out)
	return err
}
