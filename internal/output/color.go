package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Printer handles colored output. Messages go to out; errors, warnings, and
// progress go to err so that machine readable output on out stays clean.
type Printer struct {
	out      io.Writer
	err      io.Writer
	useColor bool
	mu       sync.Mutex
}

// NewPrinter creates a new printer with color support
func NewPrinter() *Printer {
	return &Printer{
		out:      os.Stdout,
		err:      os.Stderr,
		useColor: SupportsColor(),
	}
}

// NewPrinterWithWriters creates a printer with custom writers (for testing)
func NewPrinterWithWriters(out, err io.Writer, useColor bool) *Printer {
	return &Printer{
		out:      out,
		err:      err,
		useColor: useColor,
	}
}

// Out returns the writer used for regular output
func (p *Printer) Out() io.Writer {
	return p.out
}

func (p *Printer) write(w io.Writer, color, symbol, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.useColor {
		_, _ = fmt.Fprintf(w, "%s%s%s %s%s\n", colorBold, color, symbol, message, colorReset)
	} else {
		_, _ = fmt.Fprintf(w, "%s %s\n", symbol, message)
	}
}

// Success prints a success message in green
func (p *Printer) Success(format string, args ...interface{}) {
	p.write(p.out, colorGreen, "✓", fmt.Sprintf(format, args...))
}

// Error prints an error message in red
func (p *Printer) Error(format string, args ...interface{}) {
	p.write(p.err, colorRed, "✗", fmt.Sprintf(format, args...))
}

// Warning prints a warning message in yellow
func (p *Printer) Warning(format string, args ...interface{}) {
	p.write(p.err, colorYellow, "⚠", fmt.Sprintf(format, args...))
}

// Info prints an info message in cyan
func (p *Printer) Info(format string, args ...interface{}) {
	p.write(p.out, colorCyan, "→", fmt.Sprintf(format, args...))
}

// Step prints a step message in blue
func (p *Printer) Step(format string, args ...interface{}) {
	p.write(p.out, colorBlue, "▶", fmt.Sprintf(format, args...))
}

// Detail prints a detail message in gray
func (p *Printer) Detail(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.useColor {
		_, _ = fmt.Fprintf(p.out, "%s  %s%s\n", colorGray, message, colorReset)
	} else {
		_, _ = fmt.Fprintf(p.out, "  %s\n", message)
	}
}

// Print prints a plain message without color
func (p *Printer) Print(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Println prints a plain message with newline
func (p *Printer) Println(args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, args...)
}

// SupportsColor reports whether stdout is a terminal and NO_COLOR is unset
func SupportsColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
