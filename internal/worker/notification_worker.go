package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/notify"
	"github.com/spec-kit/helpdesk-routing/internal/observability"
)

const (
	defaultPollTimeout = 5 * time.Second
	errorBackoff       = time.Second
)

// NotificationWorker pops queued notifications and delivers them, re-queueing
// failed deliveries until MaxRetries is reached.
type NotificationWorker struct {
	rdb         *redis.Client
	key         string
	sender      notify.Sender
	maxRetries  int
	pollTimeout time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NotificationWorkerOptions configures the worker.
type NotificationWorkerOptions struct {
	Redis       *redis.Client
	QueueKey    string
	Sender      notify.Sender
	MaxRetries  int
	PollTimeout time.Duration
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewNotificationWorker builds the worker.
func NewNotificationWorker(opts NotificationWorkerOptions) *NotificationWorker {
	w := &NotificationWorker{
		rdb:         opts.Redis,
		key:         opts.QueueKey,
		sender:      opts.Sender,
		maxRetries:  opts.MaxRetries,
		pollTimeout: opts.PollTimeout,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if w.pollTimeout <= 0 {
		w.pollTimeout = defaultPollTimeout
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Run processes messages until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) error {
	w.logger.Info("notification worker started", zap.String("queue", w.key))
	for {
		if ctx.Err() != nil {
			w.logger.Info("notification worker stopped")
			return nil
		}
		if _, err := w.ProcessNext(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("notification job failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// ProcessNext waits up to the poll timeout for one message. It reports
// whether a message was taken off the queue.
func (w *NotificationWorker) ProcessNext(ctx context.Context) (bool, error) {
	res, err := w.rdb.BLPop(ctx, w.pollTimeout, w.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blpop: %w", err)
	}
	if len(res) < 2 {
		return false, nil
	}
	return true, w.handle(ctx, res[1])
}

func (w *NotificationWorker) handle(ctx context.Context, payload string) error {
	var msg notify.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}

	err := w.sender.Send(ctx, msg)
	w.metrics.RecordDelivery(string(msg.Type), err == nil)
	if err == nil {
		return nil
	}

	log := w.logger.With(
		zap.String("notification_id", msg.ID),
		zap.String("type", string(msg.Type)),
		zap.String("ticket_id", msg.TicketID),
		zap.Int("retries", msg.Retries))
	if msg.Retries >= w.maxRetries {
		log.Error("notification dropped after retries", zap.Error(err))
		return err
	}
	msg.Retries++
	requeued, _ := json.Marshal(msg)
	if pushErr := w.rdb.RPush(ctx, w.key, requeued).Err(); pushErr != nil {
		log.Error("requeue notification", zap.Error(pushErr))
	}
	return err
}
