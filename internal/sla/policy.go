// Package sla maps ticket priorities to response-time budgets and evaluates deadlines.
package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

// DefaultWarningThreshold is how far ahead of the deadline near-breach warnings start.
const DefaultWarningThreshold = 2 * time.Hour

const defaultHours = 72

var hoursByPriority = map[domain.TicketPriority]int{
	domain.TicketPriorityUrgent: 4,
	domain.TicketPriorityHigh:   24,
	domain.TicketPriorityMedium: 72,
	domain.TicketPriorityLow:    168,
}

// HoursFor returns the response budget for a priority. Unknown priorities get 72 hours.
func HoursFor(priority domain.TicketPriority) int {
	if h, ok := hoursByPriority[priority]; ok {
		return h
	}
	return defaultHours
}

// DueDate computes the deadline for a ticket created at createdAt.
// It is evaluated once at creation and stored; later priority changes do not move it.
func DueDate(createdAt time.Time, priority domain.TicketPriority) time.Time {
	return createdAt.Add(time.Duration(HoursFor(priority)) * time.Hour)
}

// IsBreached reports whether the deadline has passed and the ticket is not yet flagged.
// Once flagged it stays flagged; callers only ever set the flag, never clear it.
func IsBreached(now, due time.Time, alreadyBreached bool) bool {
	return !alreadyBreached && now.After(due)
}

// IsNearBreach reports whether the deadline falls within threshold of now.
func IsNearBreach(now, due time.Time, threshold time.Duration, breached bool) bool {
	return !breached && !due.After(now.Add(threshold))
}
