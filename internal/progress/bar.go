// Package progress renders terminal progress bars for long-running worker
// loops.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Bar is a concurrency-safe progress indicator with a step message and a
// rolling estimate of cycle duration.
type Bar struct {
	mu            sync.Mutex
	total         int64
	current       int64
	width         int
	message       string
	stepMessage   string
	stepStart     time.Time
	cycleStart    time.Time
	lastRender    time.Time
	pastDurations []time.Duration
}

// NewBar creates a bar tracking progress out of total, rendered width
// characters wide, labelled with message.
func NewBar(total int64, width int, message string) *Bar {
	now := time.Now()

	return &Bar{
		total:      total,
		width:      width,
		message:    message,
		stepStart:  now,
		cycleStart: now,
	}
}

// SetStepMessage sets the current step label and progress percentage.
func (b *Bar) SetStepMessage(message string, percent int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stepMessage = message
	b.stepStart = time.Now()

	b.current = percent
	if b.current > b.total {
		b.current = b.total
	}
}

// String renders the bar. Renders are rate-limited to 100ms; callers get an
// empty string in between.
func (b *Bar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if time.Since(b.lastRender) < 100*time.Millisecond {
		return ""
	}
	b.lastRender = time.Now()

	percent := float64(b.current) / float64(b.total)
	filled := int(percent * float64(b.width))
	bar := strings.Repeat("=", filled) + strings.Repeat("-", b.width-filled)

	return fmt.Sprintf("\r%s [%s] %.1f%% | %s (%s) | Cycle: %s (typical: %s)",
		b.message, bar, percent*100,
		b.stepMessage, time.Since(b.stepStart).Round(time.Second),
		time.Since(b.cycleStart).Round(time.Second), b.typicalCycle())
}

// typicalCycle averages past cycle durations for the render line.
func (b *Bar) typicalCycle() string {
	if len(b.pastDurations) == 0 {
		return "0s"
	}

	var total time.Duration
	for _, d := range b.pastDurations {
		total += d
	}

	return (total / time.Duration(len(b.pastDurations))).Round(time.Second).String()
}

// Reset records the finished cycle's duration and starts a new one. The last
// ten durations feed the typical-cycle estimate.
func (b *Bar) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pastDurations) >= 10 {
		b.pastDurations = b.pastDurations[1:]
	}
	b.pastDurations = append(b.pastDurations, time.Since(b.cycleStart))

	b.current = 0
	b.stepMessage = ""
	now := time.Now()
	b.stepStart = now
	b.cycleStart = now
	b.lastRender = time.Time{}
}
