package mqtt

import "log/slog"

// bufferedMsg is an encoded message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds messages published while the broker is unreachable. When
// full it evicts the oldest message, so a long outage leaves the most recent
// tempo and system state for replay. The caller synchronizes access.
type backlog struct {
	msgs    []bufferedMsg
	limit   int
	dropped uint64
	warned  bool // one warning per outage
	log     *slog.Logger
}

func newBacklog(limit int, log *slog.Logger) *backlog {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if limit < 1 {
		limit = 1
	}
	return &backlog{
		msgs:  make([]bufferedMsg, 0, limit),
		limit: limit,
		log:   log,
	}
}

func (b *backlog) push(msg bufferedMsg) {
	if len(b.msgs) == b.limit {
		if !b.warned {
			b.log.Warn("mqtt backlog full, evicting oldest", "limit", b.limit)
			b.warned = true
		}
		copy(b.msgs, b.msgs[1:])
		b.msgs = b.msgs[:len(b.msgs)-1]
		b.dropped++
	}
	b.msgs = append(b.msgs, msg)
}

// takeAll empties the backlog and returns its messages oldest first, or nil.
func (b *backlog) takeAll() []bufferedMsg {
	if len(b.msgs) == 0 {
		return nil
	}
	out := b.msgs
	b.msgs = make([]bufferedMsg, 0, b.limit)
	b.warned = false
	return out
}

func (b *backlog) len() int {
	return len(b.msgs)
}
