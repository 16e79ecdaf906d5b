package worker

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/config"
	"github.com/spec-kit/helpdesk-routing/internal/events"
	"github.com/spec-kit/helpdesk-routing/internal/service"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Submitter queues a workflow run.
type Submitter interface {
	Submit(ctx context.Context, in service.TicketCreatedInput) error
}

// NewTicketCreatedReader returns a group reader on the ticket-created topic.
func NewTicketCreatedReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.TicketCreatedTopic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

// TicketConsumer turns ticket-created messages into workflow runs. Offsets are
// committed once the run is queued, so delivery is at least once.
type TicketConsumer struct {
	reader MessageReader
	runner Submitter
	logger *zap.Logger
}

// NewTicketConsumer builds the consumer.
func NewTicketConsumer(reader MessageReader, runner Submitter, logger *zap.Logger) *TicketConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketConsumer{reader: reader, runner: runner, logger: logger}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *TicketConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *TicketConsumer) handle(ctx context.Context, msg kafka.Message) error {
	created, err := events.DecodeTicketCreated(msg.Value)
	if err != nil {
		c.logger.Warn("skipping malformed ticket message",
			zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		return c.reader.CommitMessages(ctx, msg)
	}
	if err := c.runner.Submit(ctx, service.TicketCreatedInput{
		TicketID:  created.TicketID,
		CreatedBy: created.CreatedBy,
	}); err != nil {
		return err
	}
	return c.reader.CommitMessages(ctx, msg)
}
