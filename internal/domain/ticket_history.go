package domain

import "time"

// TicketHistory is an immutable audit trail entry, one per ticket event.
type TicketHistory struct {
	ID        string
	TicketID  string
	EventID   string
	EventType string
	ActorID   *string
	System    bool
	Payload   map[string]any
	CreatedAt time.Time
}
