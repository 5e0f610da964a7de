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

// OpenAI calls the chat completions API directly over HTTP.
//
// We unmarshal only the fields we need from the (much larger) response
// object — the same approach as the GitHub client in internal/auth, and for
// the same reason: the full schema is the provider's business, not ours.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

const (
	openAIBaseURL      = "https://api.openai.com"
	openAIDefaultModel = "gpt-4o-mini"
)

// NewOpenAI creates an OpenAI provider. An empty model selects the default.
func NewOpenAI(apiKey, model string, logger *slog.Logger) *OpenAI {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIBaseURL,
		httpc:   &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (o *OpenAI) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (*Result, error) {
	messages := []openAIMessage{{Role: "system", Content: systemPrompt}}
	if req.Context != nil {
		messages = append(messages, openAIMessage{Role: "user", Content: req.Context.Render()})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(map[string]any{
		"model":    o.model,
		"messages": messages,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: encoding openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: building openai request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpc.Do(httpReq)
	if err != nil {
		return nil, apperror.Upstream("model API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		o.logger.Error("openai request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("model", o.model),
		)
		return nil, apperror.Upstream("model API",
			fmt.Errorf("openai returned status %d", resp.StatusCode))
	}

	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperror.Upstream("model API",
			fmt.Errorf("decoding openai response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, apperror.Upstream("model API",
			fmt.Errorf("openai returned no choices"))
	}

	model := parsed.Model
	if model == "" {
		model = o.model
	}
	return &Result{Text: parsed.Choices[0].Message.Content, Model: model}, nil
}
