package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
	"github.com/spec-kit/helpdesk-routing/internal/repository"
)

const defaultWorkloadConcurrency = 8

// WorkloadRanker picks the candidate holding the fewest open or in-progress tickets.
type WorkloadRanker struct {
	tickets     repository.TicketRepository
	concurrency int
}

// NewWorkloadRanker creates the ranker. concurrency bounds parallel count queries.
func NewWorkloadRanker(tickets repository.TicketRepository, concurrency int) *WorkloadRanker {
	if concurrency <= 0 {
		concurrency = defaultWorkloadConcurrency
	}
	return &WorkloadRanker{tickets: tickets, concurrency: concurrency}
}

// Workloads counts each candidate's workable tickets, index-aligned with candidates.
// Counts are read fresh on every call.
func (r *WorkloadRanker) Workloads(ctx context.Context, candidates []domain.User) ([]int64, error) {
	counts := make([]int64, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range candidates {
		g.Go(func() error {
			n, err := r.tickets.CountOpenAssigned(gctx, candidates[i].ID)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// LeastLoaded returns the candidate with the minimum workload. Ties go to the
// earliest candidate in input order. Empty input yields nil.
func (r *WorkloadRanker) LeastLoaded(ctx context.Context, candidates []domain.User) (*domain.User, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	counts, err := r.Workloads(ctx, candidates)
	if err != nil {
		return nil, err
	}
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] < counts[best] {
			best = i
		}
	}
	chosen := candidates[best]
	return &chosen, nil
}
