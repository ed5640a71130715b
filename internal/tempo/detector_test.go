package tempo

import (
	"sync"
	"testing"
	"time"
)

const ms = time.Millisecond

func newTestDetector() *Detector {
	return NewDetector(DefaultConfig(), NewPeriod(DefaultPeriod), nil)
}

func TestNewPeriod(t *testing.T) {
	p := NewPeriod(DefaultPeriod)
	if p.Load() != time.Second {
		t.Errorf("expected 1s, got %v", p.Load())
	}
	if p.BPM() != 60 {
		t.Errorf("expected 60 BPM, got %v", p.BPM())
	}
}

func TestPeriodSeqCountsEveryStore(t *testing.T) {
	p := NewPeriod(DefaultPeriod)
	start := p.Seq()

	p.Store(500 * ms)
	p.Store(500 * ms) // same value is still a new publish
	if got := p.Seq() - start; got != 2 {
		t.Errorf("expected 2 stores counted, got %d", got)
	}
}

func TestRepeatedTempoIsRepublished(t *testing.T) {
	d := newTestDetector()
	d.OnEdge(1000 * ms)
	d.OnEdge(1500 * ms)
	seq := d.Period().Seq()

	d.OnEdge(2000 * ms)
	if d.Period().Load() != 500*ms || d.Period().Seq() != seq+1 {
		t.Errorf("expected a fresh 500ms publish, got %v seq %d->%d", d.Period().Load(), seq, d.Period().Seq())
	}
}

func TestBPM(t *testing.T) {
	tests := []struct {
		period time.Duration
		want   float64
	}{
		{500 * ms, 120},
		{time.Second, 60},
		{3000 * ms, 20},
		{0, 0},
		{-time.Second, 0},
	}
	for _, tt := range tests {
		if got := BPM(tt.period); got != tt.want {
			t.Errorf("BPM(%v): got %v, want %v", tt.period, got, tt.want)
		}
	}
}

func TestFirstTapDoesNotPublish(t *testing.T) {
	d := newTestDetector()

	if r := d.OnEdge(1000 * ms); r != ResultFirst {
		t.Errorf("expected FIRST, got %s", r)
	}
	if d.Period().Load() != DefaultPeriod {
		t.Errorf("period changed on first tap: %v", d.Period().Load())
	}
	last, ok := d.LastTap()
	if !ok || last != 1000*ms {
		t.Errorf("expected last tap 1000ms, got %v (%v)", last, ok)
	}
}

func TestFirstTapNearEpochIsNotDebounced(t *testing.T) {
	d := newTestDetector()
	if r := d.OnEdge(10 * ms); r != ResultFirst {
		t.Errorf("expected FIRST for an edge 10ms after epoch, got %s", r)
	}
}

func TestTwoTapsSetPeriod(t *testing.T) {
	d := newTestDetector()

	d.OnEdge(1000 * ms)
	if r := d.OnEdge(1500 * ms); r != ResultAccepted {
		t.Fatalf("expected ACCEPTED, got %s", r)
	}
	if got := d.Period().Load(); got != 500*ms {
		t.Errorf("expected period 500ms, got %v", got)
	}
}

func TestBounceIsDiscarded(t *testing.T) {
	d := newTestDetector()
	d.OnEdge(1000 * ms)
	d.OnEdge(1500 * ms)

	// 30ms after the last tap: inside the 50ms window.
	if r := d.OnEdge(1530 * ms); r != ResultDebounced {
		t.Fatalf("expected DEBOUNCED, got %s", r)
	}
	if got := d.Period().Load(); got != 500*ms {
		t.Errorf("period changed by bounce: %v", got)
	}
	if last, _ := d.LastTap(); last != 1500*ms {
		t.Errorf("last tap moved by bounce: %v", last)
	}
}

func TestOutOfRangeKeepsPeriodButMovesTap(t *testing.T) {
	d := newTestDetector()
	d.OnEdge(1000 * ms)
	d.OnEdge(1500 * ms)
	d.OnEdge(1530 * ms) // bounce

	if r := d.OnEdge(6500 * ms); r != ResultOutOfRange {
		t.Fatalf("expected OUT_OF_RANGE, got %s", r)
	}
	if got := d.Period().Load(); got != 500*ms {
		t.Errorf("expected period to stay 500ms, got %v", got)
	}
	if last, _ := d.LastTap(); last != 6500*ms {
		t.Errorf("expected last tap 6500ms, got %v", last)
	}

	// Recovery takes a single good tap.
	if r := d.OnEdge(7200 * ms); r != ResultAccepted {
		t.Fatalf("expected ACCEPTED after recovery, got %s", r)
	}
	if got := d.Period().Load(); got != 700*ms {
		t.Errorf("expected 700ms after recovery, got %v", got)
	}
}

func TestTooFastIsIgnoredNotClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debounce = 10 * ms
	d := NewDetector(cfg, NewPeriod(DefaultPeriod), nil)

	d.OnEdge(0)
	if r := d.OnEdge(40 * ms); r != ResultOutOfRange {
		t.Fatalf("expected OUT_OF_RANGE for 40ms interval, got %s", r)
	}
	if got := d.Period().Load(); got != DefaultPeriod {
		t.Errorf("expected period untouched, got %v", got)
	}
}

func TestBoundsAreInclusive(t *testing.T) {
	d := newTestDetector()
	d.OnEdge(0)
	if r := d.OnEdge(60 * ms); r != ResultAccepted {
		t.Errorf("60ms: expected ACCEPTED, got %s", r)
	}
	if r := d.OnEdge(3060 * ms); r != ResultAccepted {
		t.Errorf("3000ms: expected ACCEPTED, got %s", r)
	}
	if got := d.Period().Load(); got != 3000*ms {
		t.Errorf("expected 3000ms, got %v", got)
	}
}

func TestDebounceMeasuresFromFirstBounce(t *testing.T) {
	d := newTestDetector()
	d.OnEdge(0)

	// Bounce at 40ms is dropped without advancing the press reference.
	if r := d.OnEdge(40 * ms); r != ResultDebounced {
		t.Fatalf("expected DEBOUNCED, got %s", r)
	}
	// 60ms is 60ms after the first edge, so it is a distinct press even
	// though it is only 20ms after the bounce.
	if r := d.OnEdge(60 * ms); r != ResultAccepted {
		t.Fatalf("expected ACCEPTED, got %s", r)
	}
	if got := d.Period().Load(); got != 60*ms {
		t.Errorf("expected 60ms, got %v", got)
	}
}

func TestStatsCounts(t *testing.T) {
	d := newTestDetector()
	d.OnEdge(1000 * ms) // first
	d.OnEdge(1500 * ms) // accepted
	d.OnEdge(1530 * ms) // debounced
	d.OnEdge(6500 * ms) // out of range

	s := d.Stats().Snapshot()
	want := StatsSnapshot{Edges: 4, Debounced: 1, OutOfRange: 1, Accepted: 1}
	if s != want {
		t.Errorf("expected %+v, got %+v", want, s)
	}
}

func TestPeriodConcurrentAccess(t *testing.T) {
	p := NewPeriod(DefaultPeriod)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if i%2 == 0 {
				p.Store(500 * ms)
			} else {
				p.Store(750 * ms)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			v := p.Load()
			if v != 500*ms && v != 750*ms && v != DefaultPeriod {
				t.Errorf("torn read: %v", v)
				return
			}
		}
	}()

	wg.Wait()
}
