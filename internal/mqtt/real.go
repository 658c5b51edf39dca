package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	// BufferSize is the number of messages kept while disconnected.
	BufferSize int
}

const (
	defaultBufferSize = 100
	publishTimeout    = 5 * time.Second
)

var errPublishTimeout = errors.New("publish timed out")

// RealPublisher publishes to an actual MQTT broker.
// Messages produced while the broker is unreachable, or while an earlier
// backlog is still being replayed, are buffered and delivered in the order
// they were produced. A message whose publish fails stays buffered for retry.
type RealPublisher struct {
	client paho.Client
	topics Topics

	// publish and isOpen wrap the client; tests replace them.
	publish func(msg bufferedMsg) error
	isOpen  func() bool

	mu            sync.Mutex
	buf           *ringBuffer
	replaying     bool
	connectedOnce bool
}

func newPublisher(topics Topics, bufferSize int) *RealPublisher {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &RealPublisher{
		topics: topics,
		buf:    newRingBuffer(bufferSize),
	}
}

// NewRealPublisher creates a publisher for the given broker.
// If the broker is not reachable within the connect timeout the publisher is
// still returned; paho keeps retrying in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = "button-sensor"
	}

	p := newPublisher(TopicsFor(o.TopicPrefix), o.BufferSize)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.onConnect()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.isOpen = p.client.IsConnectionOpen
	p.publish = func(msg bufferedMsg) error {
		token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) {
			return errPublishTimeout
		}
		return token.Error()
	}

	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warnf("mqtt: broker %s not reachable yet, buffering until connected", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect announces a reconnection and replays the backlog.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	backlog := p.buf.len()
	if p.replaying {
		// The running flush picks up the backlog.
		p.mu.Unlock()
		return
	}
	p.replaying = true
	p.mu.Unlock()

	log.Infof("mqtt: connected (%d buffered messages)", backlog)

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			if err := p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1}); err != nil {
				log.Warnf("mqtt: reconnected event failed: %v", err)
			}
		}
	}

	if err := p.flush(); err != nil {
		log.Warnf("mqtt: replay stopped: %v", err)
	}
}

// Publish sends a button event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event, at time.Time) error {
	payload, err := FormatPayload(event, at)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(bufferedMsg{topic: p.topics.Events, payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	msg := bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained}
	if err := p.send(msg); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// send queues msg behind any backlog and flushes when nobody else is.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	p.buf.push(msg)
	if p.replaying || !p.isOpen() {
		p.mu.Unlock()
		log.Debugf("mqtt: buffered message for %s", msg.topic)
		return nil
	}
	p.replaying = true
	p.mu.Unlock()

	return p.flush()
}

// flush publishes buffered messages oldest first until the buffer is empty.
// Messages buffered meanwhile are delivered after the current batch. On failure
// the unsent messages go back in front of anything newer.
// The caller must have set replaying.
func (p *RealPublisher) flush() error {
	for {
		p.mu.Lock()
		batch := p.buf.drainAll()
		if len(batch) == 0 {
			p.replaying = false
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		for i, msg := range batch {
			if err := p.publish(msg); err != nil {
				p.mu.Lock()
				p.requeue(batch[i:])
				p.replaying = false
				p.mu.Unlock()
				return err
			}
		}
	}
}

// requeue puts unsent messages back ahead of those buffered since. Caller holds mu.
func (p *RealPublisher) requeue(unsent []bufferedMsg) {
	newer := p.buf.drainAll()
	for _, m := range unsent {
		p.buf.push(m)
	}
	for _, m := range newer {
		p.buf.push(m)
	}
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.isOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
