package domain

// Default values substituted when AI analysis is unavailable.
const (
	DefaultAnalysisNotes            = "AI analysis unavailable. Manual review recommended."
	DefaultEstimatedResolutionHours = 24.0
)

// Analysis is the structured result of classifying a ticket.
type Analysis struct {
	RequiredSkills          []string        `json:"requiredSkills"`
	Priority                *TicketPriority `json:"priority,omitempty"`
	Category                string          `json:"category,omitempty"`
	AINotes                 string          `json:"aiNotes"`
	SuggestedResponse       string          `json:"suggestedResponse,omitempty"`
	EstimatedResolutionTime float64         `json:"estimatedResolutionTime"`
}

// DefaultAnalysis is used when the AI collaborator fails.
func DefaultAnalysis(ticketType string) Analysis {
	return Analysis{
		RequiredSkills:          NormalizeSkills([]string{ticketType}),
		Category:                ticketType,
		AINotes:                 DefaultAnalysisNotes,
		EstimatedResolutionTime: DefaultEstimatedResolutionHours,
	}
}
