package events

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher emits domain events to Kafka. Publishing is best-effort and
// asynchronous: a broker outage must never fail a checkout, so failures
// are logged, not returned.
type Publisher struct {
	w        *kafka.Writer
	producer string
	logger   *log.Logger
	inbox    chan kafka.Message
	closeCh  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewPublisher(brokers []string, producer string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		producer: producer,
		logger:   logger,
		inbox:    make(chan kafka.Message, 256),
		closeCh:  make(chan struct{}),
	}
}

// Start drains the inbox until ctx is cancelled, then flushes what is
// left and closes the writer.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.closed = true
				close(p.inbox)
				p.mu.Unlock()
				for m := range p.inbox {
					p.write(m)
				}
				_ = p.w.Close()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Publisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.logger.Printf("events: publish topic=%s failed: %v", m.Topic, err)
	}
}

// WaitClosed blocks until the drain goroutine has exited.
func (p *Publisher) WaitClosed() { <-p.closeCh }

// Publish enqueues an event; it drops the message when the inbox is full
// or already closed rather than block a request or panic during shutdown.
func (p *Publisher) Publish(topic, eventType, orderID string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Printf("events: marshal payload %s: %v", eventType, err)
		return
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Producer:   p.producer,
		Payload:    body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Printf("events: marshal envelope %s: %v", eventType, err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Printf("events: publisher closed, dropped %s for order %s", eventType, orderID)
		return
	}
	select {
	case p.inbox <- kafka.Message{Topic: topic, Key: PartitionKey(orderID), Value: value, Time: time.Now()}:
	default:
		p.logger.Printf("events: inbox full, dropped %s for order %s", eventType, orderID)
	}
}
