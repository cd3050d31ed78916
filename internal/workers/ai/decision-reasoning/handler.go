// internal/workers/ai/decision-reasoning/handler.go
package decisionreasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	commonhttp "social-support-workers/internal/common/http"
	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/models"

	"github.com/tidwall/gjson"
)

const (
	TaskType = "decision-reasoning"
)

var (
	ErrReasoningUnavailable = errors.New("REASONING_UNAVAILABLE")
	ErrReasoningMalformed   = errors.New("REASONING_MALFORMED")
)

var (
	codeFence  = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
)

type Handler struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		client: commonhttp.NewClient(config.BaseURL, config.Timeout, config.MaxRetries).SetAuthToken(config.APIKey),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Explain asks the generator for an explanation of an already-made decision.
func (h *Handler) Explain(ctx context.Context, rc models.ReasoningContext) (models.Reasoning, error) {
	out, err := h.Execute(ctx, &Input{Context: rc})
	if err != nil {
		return models.Reasoning{}, err
	}
	return out.Reasoning, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input is nil", ErrReasoningMalformed)
	}
	if h.config.BaseURL == "" {
		return nil, fmt.Errorf("%w: generator not configured", ErrReasoningUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	prompt, err := buildPrompt(input.Context)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReasoningMalformed, err)
	}

	body, err := h.client.PostJSON(ctx, "/chat/completions", chatRequest{
		Model: h.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You explain social support decisions to case workers. Be factual and brief."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   h.config.MaxTokens,
		Temperature: h.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReasoningUnavailable, err)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return nil, fmt.Errorf("%w: response has no message content", ErrReasoningMalformed)
	}

	reasoning, err := h.parseAnswer(content.String())
	if err != nil {
		return nil, err
	}
	reasoning.Source = models.ReasoningGenerator

	h.logger.Info("decision reasoning generated", map[string]interface{}{
		"outcome":    input.Context.Outcome,
		"nextSteps":  len(reasoning.NextSteps),
		"conditions": len(reasoning.Conditions),
	})

	return &Output{Reasoning: reasoning}, nil
}

func buildPrompt(rc models.ReasoningContext) (string, error) {
	ctxJSON, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Explain the following social support decision in plain language.\n")
	b.WriteString("Do not change the outcome, amount or duration.\n\n")
	b.WriteString("Decision context:\n")
	b.Write(ctxJSON)
	b.WriteString("\n\nAnswer STRICTLY as JSON: ")
	b.WriteString(`{"reasoning": "<short explanation>", "next_steps": ["..."], "conditions": ["..."]}`)
	return b.String(), nil
}

// parseAnswer accepts a JSON answer (optionally fenced) or falls back to reading plain text.
func (h *Handler) parseAnswer(content string) (models.Reasoning, error) {
	text := strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(text, "{") {
		if !gjson.Valid(text) {
			return models.Reasoning{}, fmt.Errorf("%w: answer is not valid JSON", ErrReasoningMalformed)
		}
		if err := answerSchema.ValidateJSON([]byte(text)).Err(); err != nil {
			return models.Reasoning{}, fmt.Errorf("%w: %v", ErrReasoningMalformed, err)
		}
		var answer structuredAnswer
		if err := json.Unmarshal([]byte(text), &answer); err != nil {
			return models.Reasoning{}, fmt.Errorf("%w: %v", ErrReasoningMalformed, err)
		}
		return models.Reasoning{
			Text:       strings.TrimSpace(answer.Reasoning),
			NextSteps:  h.limit(answer.NextSteps),
			Conditions: h.limit(answer.Conditions),
		}, nil
	}

	return h.parsePlainText(text), nil
}

func (h *Handler) parsePlainText(text string) models.Reasoning {
	r := models.Reasoning{NextSteps: []string{}, Conditions: []string{}}

	var section *[]string
	var body []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(strings.TrimRight(trimmed, ":#* "))
		lower = strings.TrimLeft(lower, "#* ")

		switch {
		case lower == "next steps" || lower == "next step":
			section = &r.NextSteps
			continue
		case lower == "conditions" || lower == "condition":
			section = &r.Conditions
			continue
		}

		if section != nil && listMarker.MatchString(trimmed) {
			if len(*section) < h.config.MaxListItems {
				*section = append(*section, strings.TrimSpace(listMarker.ReplaceAllString(trimmed, "")))
			}
			continue
		}
		if section == nil {
			body = append(body, line)
		}
	}

	reasoning := strings.TrimSpace(strings.Join(body, "\n"))
	if reasoning == "" {
		reasoning = text
	}
	if runes := []rune(reasoning); len(runes) > h.config.MaxReasoningChars {
		reasoning = string(runes[:h.config.MaxReasoningChars])
	}
	r.Text = reasoning
	return r
}

func (h *Handler) limit(items []string) []string {
	out := []string{}
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" && len(out) < h.config.MaxListItems {
			out = append(out, s)
		}
	}
	return out
}
