package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/tempo-lights/internal/events"
	"github.com/sweeney/tempo-lights/internal/status"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
	sendBuf    = 16
)

// Message types sent to websocket clients.
const (
	MsgStatus = "status"
	MsgTempo  = "tempo"
)

// Envelope is the wire format of every websocket frame.
type Envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// TempoData is the payload of a "tempo" frame.
type TempoData struct {
	PeriodMs int64   `json:"period_ms"`
	BPM      float64 `json:"bpm"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected websocket clients. Broadcasts never block: a client
// whose queue is full is disconnected.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func newHub(log *slog.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg []byte) {
	var slow []*client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.remove(c, "slow_client")
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client connected", "remote_addr", c.addr, "clients", n)
}

func (h *Hub) remove(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.log.Info("ws client disconnected", "remote_addr", c.addr, "reason", reason, "clients", n)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func encode(typ string, at time.Time, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	msg, _ := json.Marshal(Envelope{Type: typ, Ts: at.UTC(), Data: raw})
	return msg
}

func (s *Server) statusFrame() []byte {
	snap := s.tracker.Snapshot()
	return encode(MsgStatus, snap.Now, json.RawMessage(status.FormatJSON(snap)))
}

// BroadcastStatus pushes the current status snapshot to every client.
func (s *Server) BroadcastStatus() {
	if s.hub.Clients() == 0 {
		return
	}
	s.hub.Broadcast(s.statusFrame())
}

// BroadcastTempo pushes a tempo change to every client.
func (s *Server) BroadcastTempo(ev events.TempoChanged) {
	s.hub.Broadcast(encode(MsgTempo, ev.At, TempoData{
		PeriodMs: ev.Period.Milliseconds(),
		BPM:      round1(ev.BPM),
	}))
}

// PushStatus broadcasts the status every interval until ctx is done.
func (s *Server) PushStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastStatus()
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuf), addr: r.RemoteAddr}
	c.send <- s.statusFrame()
	s.hub.add(c)

	// The pumps outlive the request; the hub and read errors end them.
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logClose("write", c, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logClose("ping", c, err)
				return
			}
		}
	}
}

// readPump discards client frames; it exists to process control frames
// and notice disconnects.
func (s *Server) readPump(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.logClose("read", c, err)
			s.hub.remove(c, "read_error")
			return
		}
	}
}

func (s *Server) logClose(op string, c *client, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		s.log.Debug("ws closed", "op", op, "remote_addr", c.addr, "code", ce.Code)
		return
	}
	s.log.Debug("ws error", "op", op, "remote_addr", c.addr, "error", err)
}
