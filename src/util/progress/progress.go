package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"eks-backup/src/poll"
)

// Printer writes a single updating status line while a job is polled.
// It throttles itself so tight test clocks do not spam the terminal.
type Printer struct {
	out         io.Writer
	mu          sync.Mutex
	lastPrinted time.Time
	lastLen     int
}

// NewPrinter returns a Printer writing to out. A nil out disables output.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Observe implements poll.Observer.
func (p *Printer) Observe(job poll.Job, st poll.Status, elapsed time.Duration) {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if now.Sub(p.lastPrinted) < 200*time.Millisecond {
		return
	}
	p.lastPrinted = now
	line := fmt.Sprintf("[%s %s] %s (%s elapsed)",
		job.Kind, job.ID, st.Value, elapsed.Round(time.Second))
	pad := p.lastLen - len(line)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(p.out, "\r%s%*s", line, pad, "")
	p.lastLen = len(line)
}

// Done terminates the status line.
func (p *Printer) Done() {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastLen > 0 {
		fmt.Fprint(p.out, "\n")
		p.lastLen = 0
	}
}
