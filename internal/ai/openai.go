package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/spec-kit/helpdesk-routing/internal/config"
	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

const systemPrompt = `You triage helpdesk tickets. Reply with one JSON object with exactly these keys:
"requiredSkills": array of short lowercase skill tags needed to resolve the ticket,
"priority": one of "low", "medium", "high", "urgent",
"category": short category label,
"aiNotes": internal notes for the support agent,
"suggestedResponse": a draft first reply to the customer,
"estimatedResolutionTime": estimated hours to resolve, a positive number.`

// OpenAIAnalyzer calls an OpenAI-compatible chat completion endpoint.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

// NewOpenAIAnalyzer builds an analyzer from configuration.
func NewOpenAIAnalyzer(cfg config.AIConfig) *OpenAIAnalyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout()}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAnalyzer{client: openai.NewClientWithConfig(clientCfg), model: model}
}

type analysisPayload struct {
	RequiredSkills          []string `json:"requiredSkills"`
	Priority                string   `json:"priority"`
	Category                string   `json:"category"`
	AINotes                 string   `json:"aiNotes"`
	SuggestedResponse       string   `json:"suggestedResponse"`
	EstimatedResolutionTime *float64 `json:"estimatedResolutionTime"`
}

// Analyze sends the ticket to the model and validates the JSON reply.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req Request) (*domain.Analysis, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ValidationError{Field: "choices", Reason: "empty"}
	}
	return ParseAnalysis(resp.Choices[0].Message.Content)
}

// ParseAnalysis decodes and validates a provider reply.
func ParseAnalysis(content string) (*domain.Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var payload analysisPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return nil, &ValidationError{Field: "body", Reason: "is not a JSON object"}
	}
	if payload.RequiredSkills == nil {
		return nil, &ValidationError{Field: "requiredSkills", Reason: "is missing"}
	}
	if strings.TrimSpace(payload.AINotes) == "" {
		return nil, &ValidationError{Field: "aiNotes", Reason: "is empty"}
	}
	if payload.EstimatedResolutionTime == nil || *payload.EstimatedResolutionTime <= 0 {
		return nil, &ValidationError{Field: "estimatedResolutionTime", Reason: "must be a positive number"}
	}

	analysis := &domain.Analysis{
		RequiredSkills:          domain.NormalizeSkills(payload.RequiredSkills),
		Category:                strings.TrimSpace(payload.Category),
		AINotes:                 strings.TrimSpace(payload.AINotes),
		SuggestedResponse:       strings.TrimSpace(payload.SuggestedResponse),
		EstimatedResolutionTime: *payload.EstimatedResolutionTime,
	}
	if strings.TrimSpace(payload.Priority) != "" {
		priority, ok := domain.ParsePriority(payload.Priority)
		if !ok {
			return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("%q is not a known priority", payload.Priority)}
		}
		analysis.Priority = &priority
	}
	return analysis, nil
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	fmt.Fprintf(&b, "Type: %s\n", req.Type)
	fmt.Fprintf(&b, "Current priority: %s\n", req.Priority)
	fmt.Fprintf(&b, "Description:\n%s\n", req.Description)
	return b.String()
}
