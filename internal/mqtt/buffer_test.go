package mqtt

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func msg(i int) bufferedMsg {
	return bufferedMsg{topic: TopicTempo, payload: []byte{byte(i)}}
}

func payloads(msgs []bufferedMsg) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m.payload...)
	}
	return out
}

func TestBacklog(t *testing.T) {
	tests := []struct {
		name        string
		limit       int
		push        int
		want        []byte
		wantDropped uint64
	}{
		{"empty", 4, 0, nil, 0},
		{"partial", 4, 3, []byte{0, 1, 2}, 0},
		{"exactly full", 4, 4, []byte{0, 1, 2, 3}, 0},
		{"overflow keeps newest", 4, 7, []byte{3, 4, 5, 6}, 3},
		{"limit of one", 1, 3, []byte{2}, 2},
		{"zero limit treated as one", 0, 2, []byte{1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBacklog(tt.limit, nil)
			for i := 0; i < tt.push; i++ {
				b.push(msg(i))
			}
			if b.len() != len(tt.want) {
				t.Errorf("len: got %d, want %d", b.len(), len(tt.want))
			}
			got := b.takeAll()
			if !bytes.Equal(payloads(got), tt.want) {
				t.Errorf("takeAll: got %v, want %v", payloads(got), tt.want)
			}
			if tt.want == nil && got != nil {
				t.Error("empty backlog should return nil")
			}
			if b.dropped != tt.wantDropped {
				t.Errorf("dropped: got %d, want %d", b.dropped, tt.wantDropped)
			}
			if b.len() != 0 {
				t.Errorf("backlog not empty after takeAll: %d", b.len())
			}
		})
	}
}

func TestBacklogReusableAfterTake(t *testing.T) {
	b := newBacklog(2, nil)
	b.push(msg(1))
	first := b.takeAll()

	b.push(msg(2))
	b.push(msg(3))
	if got := payloads(b.takeAll()); !bytes.Equal(got, []byte{2, 3}) {
		t.Errorf("second outage: got %v", got)
	}
	if got := payloads(first); !bytes.Equal(got, []byte{1}) {
		t.Errorf("earlier result was modified: %v", got)
	}
}

func TestBacklogKeepsMessageFields(t *testing.T) {
	b := newBacklog(2, nil)
	b.push(bufferedMsg{topic: TopicSystem, payload: []byte(`{"x":1}`), qos: 1, retained: true})

	got := b.takeAll()[0]
	if got.topic != TopicSystem || got.qos != 1 || !got.retained || string(got.payload) != `{"x":1}` {
		t.Errorf("fields not preserved: %+v", got)
	}
}

func TestBacklogWarnsOncePerOutage(t *testing.T) {
	var buf bytes.Buffer
	b := newBacklog(1, slog.New(slog.NewTextHandler(&buf, nil)))

	for i := 0; i < 5; i++ {
		b.push(msg(i))
	}
	if n := strings.Count(buf.String(), "backlog full"); n != 1 {
		t.Errorf("warnings in first outage: got %d, want 1", n)
	}

	b.takeAll()
	b.push(msg(0))
	b.push(msg(1))
	if n := strings.Count(buf.String(), "backlog full"); n != 2 {
		t.Errorf("warnings after second outage: got %d, want 2", n)
	}
}
