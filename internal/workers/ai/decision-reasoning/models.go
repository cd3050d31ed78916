// internal/workers/ai/decision-reasoning/models.go
package decisionreasoning

import (
	"social-support-workers/internal/common/validation"
	"social-support-workers/internal/models"
)

type Input struct {
	Context models.ReasoningContext `json:"context"`
}

type Output struct {
	Reasoning models.Reasoning `json:"reasoning"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type structuredAnswer struct {
	Reasoning  string   `json:"reasoning"`
	NextSteps  []string `json:"next_steps"`
	Conditions []string `json:"conditions"`
}

var answerSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["reasoning"],
	"properties": {
		"reasoning": {"type": "string", "minLength": 1},
		"next_steps": {"type": "array", "items": {"type": "string"}},
		"conditions": {"type": "array", "items": {"type": "string"}}
	}
}`)
