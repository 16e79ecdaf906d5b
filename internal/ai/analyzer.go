// Package ai classifies tickets through an LLM and validates the result.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("ai analysis disabled")

// Request carries the ticket fields sent for analysis.
type Request struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Type        string
}

// Analyzer produces a structured analysis for a ticket.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*domain.Analysis, error)
}

// ValidationError reports a malformed provider response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ai analysis: %s %s", e.Field, e.Reason)
}

// Disabled always fails with ErrDisabled so callers take their fallback path.
type Disabled struct{}

func (Disabled) Analyze(context.Context, Request) (*domain.Analysis, error) {
	return nil, ErrDisabled
}
