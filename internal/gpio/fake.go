package gpio

import (
	"errors"
	"sync"
)

// FakePin records every Set call for test assertions.
type FakePin struct {
	mu     sync.Mutex
	writes []bool
}

// NewFakePin creates a FakePin with no recorded writes.
func NewFakePin() *FakePin {
	return &FakePin{}
}

// Set records the written level.
func (p *FakePin) Set(high bool) {
	p.mu.Lock()
	p.writes = append(p.writes, high)
	p.mu.Unlock()
}

// High reports the last written level (false if never written).
func (p *FakePin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return false
	}
	return p.writes[len(p.writes)-1]
}

// Writes returns a copy of all recorded writes in order.
func (p *FakePin) Writes() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.writes...)
}

// FakeButton is an EdgeSource driven by tests.
type FakeButton struct {
	mu      sync.Mutex
	handler func(Edge)

	// Closed tracks if Close was called
	Closed bool

	// WatchError, if set, will be returned by Watch()
	WatchError error
}

// NewFakeButton creates an unwatched FakeButton.
func NewFakeButton() *FakeButton {
	return &FakeButton{}
}

// Watch registers the edge handler.
func (b *FakeButton) Watch(handler func(Edge)) error {
	if b.WatchError != nil {
		return b.WatchError
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handler != nil {
		return errors.New("gpio: already watching")
	}
	b.handler = handler
	return nil
}

// Press delivers e to the handler synchronously.
// Press is a no-op before Watch or after Close.
func (b *FakeButton) Press(e Edge) {
	b.mu.Lock()
	h := b.handler
	closed := b.Closed
	b.mu.Unlock()
	if h == nil || closed {
		return
	}
	h(e)
}

// Close stops delivery.
func (b *FakeButton) Close() error {
	b.mu.Lock()
	b.Closed = true
	b.mu.Unlock()
	return nil
}
