//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealPin drives an LED line through the Linux GPIO character device.
type RealPin struct {
	line   *gpiocdev.Line
	offset int
	log    *slog.Logger
}

// NewRealPin requests offset on chip as an output, initially low.
func NewRealPin(chip string, offset int, log *slog.Logger) (*RealPin, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &RealPin{line: line, offset: offset, log: log}, nil
}

// Set drives the line. Errors are logged, not returned.
func (p *RealPin) Set(high bool) {
	v := 0
	if high {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		p.log.Warn("gpio write failed", "pin", p.offset, "error", err)
	}
}

// Close drives the line low and releases it.
func (p *RealPin) Close() error {
	var errs []error
	if err := p.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("reset pin %d: %w", p.offset, err))
	}
	// Return the line to an input so nothing is driven after exit.
	if err := p.line.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", p.offset, err))
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", p.offset, err))
	}
	return errors.Join(errs...)
}

// RealButton watches a tap button line for edges.
// The button is active-low with the internal pull-up enabled; only falling
// edges (presses) are delivered unless bothEdges is set.
type RealButton struct {
	chip      string
	offset    int
	bothEdges bool

	mu   sync.Mutex
	line *gpiocdev.Line
}

// NewRealButton prepares a button on chip/offset. No line is requested
// until Watch.
func NewRealButton(chip string, offset int, bothEdges bool) *RealButton {
	return &RealButton{chip: chip, offset: offset, bothEdges: bothEdges}
}

// Watch requests the line and delivers edges to handler from the
// gpiocdev event goroutine.
func (b *RealButton) Watch(handler func(Edge)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.line != nil {
		return errors.New("gpio: already watching")
	}

	edges := gpiocdev.WithFallingEdge
	if b.bothEdges {
		edges = gpiocdev.WithBothEdges
	}
	line, err := gpiocdev.RequestLine(b.chip, b.offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		edges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(Edge{
				Timestamp: evt.Timestamp,
				Rising:    evt.Type == gpiocdev.LineEventRisingEdge,
			})
		}))
	if err != nil {
		return fmt.Errorf("request tap pin %d: %w", b.offset, err)
	}
	b.line = line
	return nil
}

// Close stops edge delivery and releases the line.
func (b *RealButton) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.line == nil {
		return nil
	}
	err := b.line.Close()
	b.line = nil
	if err != nil {
		return fmt.Errorf("close tap pin %d: %w", b.offset, err)
	}
	return nil
}
