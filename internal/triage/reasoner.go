package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/config"
)

// responseShape documents the object the model is asked for.
type responseShape struct {
	Summary       string   `json:"summary" jsonschema:"description=Short 1-2 sentence summary of the issue"`
	Priority      string   `json:"priority" jsonschema:"enum=low,enum=medium,enum=high"`
	HelpfulNotes  string   `json:"helpfulNotes" jsonschema:"description=Technical guidance for the moderator"`
	RelatedSkills []string `json:"relatedSkills" jsonschema:"description=Skills required to resolve the issue"`
}

// ResponseSchema returns the JSON schema of the expected triage object.
func ResponseSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&responseShape{})
}

// OpenAIReasoner talks to an OpenAI-compatible chat completion endpoint.
type OpenAIReasoner struct {
	client     openai.Client
	model      string
	maxTokens  int
	timeout    time.Duration
	structured bool
	schema     *jsonschema.Schema
	logger     *zap.Logger
}

// NewOpenAIReasoner builds a client from configuration; the API key is required.
func NewOpenAIReasoner(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIReasoner, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("reasoning service API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &OpenAIReasoner{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		maxTokens:  maxTokens,
		timeout:    cfg.Timeout(),
		structured: cfg.StructuredOutput,
		schema:     ResponseSchema(),
		logger:     logger,
	}, nil
}

// Complete returns the text of the first choice.
func (r *OpenAIReasoner) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		MaxTokens: openai.Int(int64(r.maxTokens)),
	}
	if r.structured {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "ticket_triage",
					Description: openai.String("Support ticket triage result"),
					Schema:      r.schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	start := time.Now()
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	r.logger.Debug("reasoning service call completed",
		zap.String("model", r.model),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Retryable reports whether a reasoning failure may succeed on another attempt.
// Only provider API rejections other than rate limits and server errors are
// final; network failures, timeouts and cancellation are retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return true
}
