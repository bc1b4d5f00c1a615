package pubsub

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
)

// DefaultStream is the JetStream stream holding live session updates
const DefaultStream = "BASKET_EVENTS"

// jetStream publishes to a subject and relays every message on it, from any
// instance, to local subscribers
type jetStream struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
	subs    *fanout
}

func newJetStream(nc *nats.Conn, subject string) (*jetStream, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &jetStream{nc: nc, js: js, subject: subject, subs: newFanout(100)}, nil
}

func (j *jetStream) ensureStream(name string, cfg nats.StreamConfig) error {
	if _, err := j.js.StreamInfo(name); err == nil {
		return nil
	}
	cfg.Name = name
	cfg.Subjects = []string{j.subject}
	if _, err := j.js.AddStream(&cfg); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	logger.Info("JetStream stream created", "stream", name, "subject", j.subject)
	return nil
}

func (j *jetStream) listen() error {
	sub, err := j.js.Subscribe(j.subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal event from JetStream", "error", err)
			msg.Nak()
			return
		}
		j.subs.broadcast(event)
		msg.Ack()
	}, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", j.subject, err)
	}
	j.sub = sub
	return nil
}

// Publish sends event to JetStream; delivery to local subscribers happens
// when the stream hands it back
func (j *jetStream) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}
	if _, err := j.js.Publish(j.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", j.subject, "event_type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "event_type", event.Type, "subject", j.subject)
}

func (j *jetStream) Subscribe() chan Event { return j.subs.subscribe() }

func (j *jetStream) Unsubscribe(ch chan Event) { j.subs.unsubscribe(ch) }

// SubscriberCount returns the number of active local subscribers
func (j *jetStream) SubscriberCount() int { return j.subs.count() }

func (j *jetStream) close() {
	if j.sub != nil {
		j.sub.Unsubscribe()
	}
	j.subs.closeAll()
	if j.nc != nil {
		j.nc.Close()
	}
}

// NATSPubSub implements Upstream over an external NATS JetStream server
type NATSPubSub struct {
	*jetStream
}

// NewNATSPubSub connects to natsURL and relays subject through a file-backed stream
func NewNATSPubSub(natsURL, subject string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL, nats.Name("basket-tracker"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	j, err := newJetStream(nc, subject)
	if err != nil {
		nc.Close()
		return nil, err
	}
	if err := j.ensureStream(DefaultStream, nats.StreamConfig{Storage: nats.FileStorage}); err != nil {
		nc.Close()
		return nil, err
	}
	if err := j.listen(); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSPubSub{jetStream: j}, nil
}

// Close drops the subscription and the connection
func (p *NATSPubSub) Close() {
	p.close()
}
