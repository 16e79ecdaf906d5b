package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/config"
	"github.com/spec-kit/helpdesk-routing/internal/service"
)

var (
	// ErrQueueFull is returned by TrySubmit when every slot is taken.
	ErrQueueFull = errors.New("workflow queue full")
	// ErrRunnerStopped is returned after Stop.
	ErrRunnerStopped = errors.New("workflow runner stopped")
)

// TicketWorkflow is the unit of work the runner executes.
type TicketWorkflow interface {
	OnTicketCreated(ctx context.Context, in service.TicketCreatedInput) (*service.WorkflowResult, error)
}

// WorkflowRunner executes ticket workflows on a fixed pool of goroutines.
// Workflows for different tickets run concurrently; a started workflow is
// never cancelled by Stop, only bounded by the per-ticket timeout.
type WorkflowRunner struct {
	workflow TicketWorkflow
	jobs     chan service.TicketCreatedInput
	workers  int
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	start   sync.Once
}

// NewWorkflowRunner builds a runner sized from cfg.
func NewWorkflowRunner(workflow TicketWorkflow, cfg config.WorkflowConfig, logger *zap.Logger) *WorkflowRunner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowRunner{
		workflow: workflow,
		jobs:     make(chan service.TicketCreatedInput, cfg.QueueSize),
		workers:  workers,
		timeout:  cfg.Timeout(),
		logger:   logger,
	}
}

// Start launches the workers.
func (r *WorkflowRunner) Start() {
	r.start.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.loop()
		}
		r.logger.Info("workflow runner started", zap.Int("workers", r.workers), zap.Int("queue", cap(r.jobs)))
	})
}

// TrySubmit enqueues without blocking.
func (r *WorkflowRunner) TrySubmit(in service.TicketCreatedInput) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRunnerStopped
	}
	select {
	case r.jobs <- in:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit enqueues, waiting for a free slot until ctx is done.
func (r *WorkflowRunner) Submit(ctx context.Context, in service.TicketCreatedInput) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRunnerStopped
	}
	select {
	case r.jobs <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new work, drains the queue and waits for running workflows.
func (r *WorkflowRunner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.jobs)
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Info("workflow runner stopped")
}

func (r *WorkflowRunner) loop() {
	defer r.wg.Done()
	for in := range r.jobs {
		r.runOne(in)
	}
}

func (r *WorkflowRunner) runOne(in service.TicketCreatedInput) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("workflow panicked", zap.String("ticket_id", in.TicketID), zap.Any("panic", p))
		}
	}()

	if _, err := r.workflow.OnTicketCreated(ctx, in); err != nil {
		r.logger.Warn("workflow failed", zap.String("ticket_id", in.TicketID), zap.Error(err))
	}
}
