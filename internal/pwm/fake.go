package pwm

import "sync"

// FakeChannel records channel operations for test assertions.
type FakeChannel struct {
	owner

	mu      sync.Mutex
	period  int
	running bool
	compare int
	ops     []string
}

// NewFakeChannel creates a stopped FakeChannel with the given period.
func NewFakeChannel(period int) *FakeChannel {
	return &FakeChannel{period: period}
}

// Start records a start.
func (c *FakeChannel) Start() {
	c.mu.Lock()
	c.running = true
	c.ops = append(c.ops, "start")
	c.mu.Unlock()
}

// Stop records a stop.
func (c *FakeChannel) Stop() {
	c.mu.Lock()
	c.running = false
	c.ops = append(c.ops, "stop")
	c.mu.Unlock()
}

// SetCompare records the compare value.
func (c *FakeChannel) SetCompare(v int) {
	c.mu.Lock()
	c.compare = v
	c.ops = append(c.ops, "compare")
	c.mu.Unlock()
}

// Period returns the configured period.
func (c *FakeChannel) Period() int {
	return c.period
}

// SetPeriod changes the period reported by Period.
func (c *FakeChannel) SetPeriod(p int) {
	c.period = p
}

// Running reports whether the last Start was not followed by a Stop.
func (c *FakeChannel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Compare returns the last written compare value.
func (c *FakeChannel) Compare() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compare
}

// Ops returns the recorded operations ("start", "stop", "compare") in order.
func (c *FakeChannel) Ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ops...)
}

// ResetOps clears recorded operations.
func (c *FakeChannel) ResetOps() {
	c.mu.Lock()
	c.ops = nil
	c.mu.Unlock()
}
