package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages kept while disconnected
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed, oldest first,
// once it is back.
type RealPublisher struct {
	client paho.Client
	log    *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	buf    *backlog
	everUp bool
}

// NewRealPublisher connects to the broker with a retained OFFLINE last
// will. If the broker is not reachable within the connect timeout the
// publisher is still returned and keeps retrying in the background.
func NewRealPublisher(opts Options, log *slog.Logger) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}

	p := &RealPublisher{
		log: log,
		now: time.Now,
		buf: newBacklog(opts.BufferSize, log),
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, WillPayload(p.now()), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn("mqtt broker not reachable yet, buffering", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// newPublisher wraps an existing client; used by tests.
func newPublisher(client paho.Client, bufferSize int, log *slog.Logger) *RealPublisher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &RealPublisher{
		client: client,
		log:    log,
		now:    time.Now,
		buf:    newBacklog(bufferSize, log),
	}
}

// PublishTempo sends a tempo change at QoS 0.
func (p *RealPublisher) PublishTempo(event TempoEvent) error {
	payload, err := FormatTempoPayload(event)
	if err != nil {
		return fmt.Errorf("format tempo payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicTempo, payload: payload})
}

// PublishSystem sends a system lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	if err := p.send(msg); err != nil {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect runs on every (re)connection. Paho calls it on its own
// goroutine, so publishing here does not block the network loop for long.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.everUp
	p.everUp = true
	pending := p.buf.takeAll()
	p.mu.Unlock()

	if reconnect {
		p.log.Info("mqtt reconnected", "buffered", len(pending))
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		pending = append([]bufferedMsg{{topic: TopicSystem, payload: payload, qos: 1}}, pending...)
	} else {
		p.log.Info("mqtt connected", "buffered", len(pending))
	}

	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warn("mqtt replay failed, re-buffering", "error", err, "remaining", len(pending)-i)
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buf.push(m)
			}
			p.mu.Unlock()
			return
		}
	}
}

// Buffered returns how many messages are waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns how many buffered messages were evicted unsent.
func (p *RealPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.dropped
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
