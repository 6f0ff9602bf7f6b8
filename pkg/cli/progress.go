package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter renders progress for long-running CLI operations,
// such as the bench request stream.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
}

const progressBarWidth = 32

// barProgress is a single-line terminal bar with request rate and a
// remaining-time estimate.
type barProgress struct {
	mu      sync.Mutex
	total   int64
	current int64
	started time.Time
	out     io.Writer
}

// NewProgressReporter creates a reporter writing to w. A nil writer
// defaults to os.Stdout.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stdout
	}
	return &barProgress{out: w}
}

func (b *barProgress) Start(total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = total
	b.current = 0
	b.started = time.Now()
	b.render()
}

func (b *barProgress) Update(current int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = current
	b.render()
}

func (b *barProgress) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.total
	b.render()
	fmt.Fprintln(b.out)
}

func (b *barProgress) render() {
	if b.total <= 0 {
		return
	}

	done := b.current
	if done > b.total {
		done = b.total
	}
	filled := int(float64(progressBarWidth) * float64(done) / float64(b.total))
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)

	elapsed := time.Since(b.started)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(done) / elapsed.Seconds()
	}
	eta := "-"
	if done > 0 && done < b.total {
		remaining := time.Duration(float64(elapsed) * float64(b.total-done) / float64(done))
		eta = remaining.Round(time.Second).String()
	}

	fmt.Fprintf(b.out, "\r[%s] %d/%d  %.0f req/s  eta %s",
		bar, done, b.total, rate, eta)
}
