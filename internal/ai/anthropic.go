package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/appforge/internal/apperror"
)

// Anthropic calls the messages API directly over HTTP. Same shape as the
// OpenAI client; the differences are the auth header, the version header,
// and where the system prompt goes (a top-level field rather than a
// message).
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-sonnet-4-20250514"
	anthropicMaxTokens    = 8192
)

// NewAnthropic creates an Anthropic provider. An empty model selects the
// default.
func NewAnthropic(apiKey, model string, logger *slog.Logger) *Anthropic {
	if model == "" {
		model = anthropicDefaultModel
	}
	return &Anthropic{
		apiKey:  apiKey,
		model:   model,
		baseURL: anthropicBaseURL,
		httpc:   &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (*Result, error) {
	var messages []anthropicMessage
	if req.Context != nil {
		messages = append(messages, anthropicMessage{Role: "user", Content: req.Context.Render()})
		messages = append(messages, anthropicMessage{Role: "assistant",
			Content: "Understood. I have the project context. What would you like me to build or change?"})
	}
	messages = append(messages, anthropicMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(map[string]any{
		"model":      a.model,
		"max_tokens": anthropicMaxTokens,
		"system":     systemPrompt,
		"messages":   messages,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: encoding anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: building anthropic request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpc.Do(httpReq)
	if err != nil {
		return nil, apperror.Upstream("model API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("anthropic request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("model", a.model),
		)
		return nil, apperror.Upstream("model API",
			fmt.Errorf("anthropic returned status %d", resp.StatusCode))
	}

	var parsed struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperror.Upstream("model API",
			fmt.Errorf("decoding anthropic response: %w", err))
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, apperror.Upstream("model API",
			fmt.Errorf("anthropic returned no text content"))
	}

	model := parsed.Model
	if model == "" {
		model = a.model
	}
	return &Result{Text: text, Model: model}, nil
}
