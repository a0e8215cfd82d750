package output

import (
	"fmt"
	"sync"
	"time"
)

// Progress represents an active progress indicator
type Progress struct {
	printer      *Printer
	message      string
	startTime    time.Time
	done         chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	spinnerIndex int
}

// Spinner characters for animation
var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StartProgress creates and starts a new progress indicator on the error stream
func (p *Printer) StartProgress(message string) *Progress {
	progress := &Progress{
		printer:   p,
		message:   message,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}

	progress.render(0)
	progress.wg.Add(1)
	go progress.animate()

	return progress
}

// UpdateMessage updates the progress message
func (p *Progress) UpdateMessage(message string) {
	p.mu.Lock()
	p.message = message
	spinnerIndex := p.spinnerIndex
	p.mu.Unlock()

	p.render(spinnerIndex)
}

// Stop stops the progress indicator and clears the line. It is safe to call
// more than once.
func (p *Progress) Stop() {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		return
	default:
		close(p.done)
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.printer.mu.Lock()
	defer p.printer.mu.Unlock()
	_, _ = fmt.Fprintf(p.printer.err, "\r\033[K")
}

func (p *Progress) animate() {
	defer p.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	spinnerIndex := 0
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			spinnerIndex++
			p.mu.Lock()
			p.spinnerIndex = spinnerIndex
			p.mu.Unlock()
			p.render(spinnerIndex)
		}
	}
}

func (p *Progress) render(spinnerIndex int) {
	p.mu.Lock()
	message := p.message
	p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	spinner := spinnerChars[spinnerIndex%len(spinnerChars)]

	var line string
	if p.printer.useColor {
		line = fmt.Sprintf("\r%s%s%s %s %s[%s]%s",
			colorBold, colorCyan, spinner, message,
			colorGray, formatDuration(elapsed), colorReset)
	} else {
		line = fmt.Sprintf("\r%s %s [%s]", spinner, message, formatDuration(elapsed))
	}

	p.printer.mu.Lock()
	defer p.printer.mu.Unlock()
	_, _ = fmt.Fprintf(p.printer.err, "%s\033[K", line)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
