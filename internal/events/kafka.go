package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/config"
)

// ErrProducerClosed is returned by Send after Close.
var ErrProducerClosed = errors.New("kafka producer closed")

// Producer defines the interface for Kafka message production.
type Producer interface {
	Send(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	mu     sync.Mutex
	closed bool
}

// NewProducer creates a Kafka producer. The topic is chosen per message.
func NewProducer(cfg config.KafkaConfig) (Producer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("no kafka brokers configured")
	}
	return &kafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			Compression:  kafka.Gzip,
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}, nil
}

func (p *kafkaProducer) Send(ctx context.Context, topic string, key []byte, value []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrProducerClosed
	}
	p.mu.Unlock()

	return p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
}

func (p *kafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

const (
	defaultForwardBuffer  = 1024
	defaultForwardTimeout = 5 * time.Second
)

// ErrForwardQueueFull is returned to the dispatcher when an event is dropped.
var ErrForwardQueueFull = errors.New("event forward queue full")

// Forwarder relays dispatched events as JSON to a Kafka topic, keyed by
// ticket id so a ticket's events stay ordered. Publishing only enqueues;
// a single goroutine owns the producer, so a slow broker never holds up
// the publisher.
type Forwarder struct {
	producer Producer
	topic    string
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// ForwarderOptions configures a Forwarder. Zero values use defaults.
type ForwarderOptions struct {
	Producer    Producer
	Topic       string
	BufferSize  int
	SendTimeout time.Duration
	Logger      *zap.Logger
}

// NewForwarder builds a forwarder; call Start before publishing.
func NewForwarder(opts ForwarderOptions) *Forwarder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultForwardBuffer
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultForwardTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Forwarder{
		producer: opts.Producer,
		topic:    opts.Topic,
		timeout:  opts.SendTimeout,
		logger:   opts.Logger,
		queue:    make(chan Event, opts.BufferSize),
		done:     make(chan struct{}),
	}
}

// Subscribe registers the forwarder for every event type.
func (f *Forwarder) Subscribe(dispatcher Dispatcher) {
	for _, eventType := range AllEventTypes() {
		dispatcher.Subscribe(eventType, f.enqueue)
	}
}

func (f *Forwarder) enqueue(_ context.Context, event Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrProducerClosed
	}
	select {
	case f.queue <- event:
		return nil
	default:
		return ErrForwardQueueFull
	}
}

// Start launches the send loop.
func (f *Forwarder) Start() {
	go func() {
		defer close(f.done)
		for event := range f.queue {
			f.send(event)
		}
	}()
}

// Close stops accepting events and waits until queued ones are sent.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()
	<-f.done
}

func (f *Forwarder) send(event Event) {
	value, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("encode event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.producer.Send(ctx, f.topic, []byte(event.TicketID), value); err != nil {
		f.logger.Warn("forward event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// TicketCreatedMessage is published by the ticket intake service.
type TicketCreatedMessage struct {
	TicketID  string    `json:"ticket_id"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DecodeTicketCreated parses a ticket-created message value.
func DecodeTicketCreated(value []byte) (TicketCreatedMessage, error) {
	var msg TicketCreatedMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return msg, fmt.Errorf("decode ticket created: %w", err)
	}
	msg.TicketID = strings.TrimSpace(msg.TicketID)
	if msg.TicketID == "" {
		return msg, errors.New("decode ticket created: ticket_id missing")
	}
	return msg, nil
}
