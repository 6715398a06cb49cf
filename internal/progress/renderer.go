package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Renderer periodically redraws a set of bars on the terminal.
type Renderer struct {
	bars   []*Bar
	output io.Writer
	done   chan struct{}
	once   sync.Once
}

// NewRenderer creates a Renderer over the given bars, writing to stdout.
func NewRenderer(bars []*Bar) *Renderer {
	return &Renderer{
		bars:   bars,
		output: os.Stdout,
		done:   make(chan struct{}),
	}
}

// Render redraws the bars every 100ms until Stop is called. It blocks, so
// callers run it on its own goroutine.
func (r *Renderer) Render() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			for range r.bars {
				_, _ = fmt.Fprint(r.output, "\033[1A\033[K")
			}

			for _, bar := range r.bars {
				_, _ = fmt.Fprintln(r.output, bar.String())
			}
		}
	}
}

// Stop halts rendering and clears the bar lines.
func (r *Renderer) Stop() {
	r.once.Do(func() {
		close(r.done)

		for range r.bars {
			_, _ = fmt.Fprint(r.output, "\033[1A\033[K")
		}
	})
}
