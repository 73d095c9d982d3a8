package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aether-notes/models"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrGeneration is returned for any provider failure. The provider's own
// error is logged, not passed on to callers.
var ErrGeneration = errors.New("text generation failed")

const fallbackSummary = "Unable to generate summary"

// Generator produces text from note content.
type Generator interface {
	Summarize(ctx context.Context, title, content string) (string, error)
	ActionPlan(ctx context.Context, notes []models.Note) (string, error)
}

// Params tunes one kind of completion.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

type Config struct {
	APIKey  string
	BaseURL string
	Summary Params
	Plan    Params
}

func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		Summary: Params{Model: openai.GPT3Dot5Turbo, MaxTokens: 150, Temperature: 0.5},
		Plan:    Params{Model: openai.GPT4oMini, MaxTokens: 1000, Temperature: 0.7},
	}
}

type OpenAI struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

func NewOpenAI(cfg Config, logger *zap.Logger) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}
}

func (g *OpenAI) Summarize(ctx context.Context, title, content string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a concise note summarizer. Create brief, clear summaries.",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: summaryPrompt(title, content),
		},
	}
	text, err := g.complete(ctx, g.cfg.Summary, messages)
	if err != nil {
		return "", err
	}
	if text == "" {
		return fallbackSummary, nil
	}
	return text, nil
}

func (g *OpenAI) ActionPlan(ctx context.Context, notes []models.Note) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: actionPlanPrompt(notes),
		},
	}
	text, err := g.complete(ctx, g.cfg.Plan, messages)
	if err != nil {
		return "", err
	}
	if text == "" {
		g.logger.Error("empty action plan completion", zap.String("model", g.cfg.Plan.Model))
		return "", ErrGeneration
	}
	return text, nil
}

func (g *OpenAI) complete(ctx context.Context, p Params, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
	})
	if err != nil {
		g.logger.Error("Failed to get GPT response", zap.Error(err), zap.String("model", p.Model))
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		g.logger.Error("GPT response has no choices", zap.String("model", p.Model))
		return "", ErrGeneration
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func summaryPrompt(title, content string) string {
	return fmt.Sprintf("Note Title: %s\nNote Content: %s\n\nProvide a concise summary in 2-3 sentences of the provided note. Be very to the point and easy to understand.", title, content)
}

func actionPlanPrompt(notes []models.Note) string {
	parts := make([]string, 0, len(notes))
	for _, n := range notes {
		parts = append(parts, fmt.Sprintf("Title: %s\nContent: %s", n.Title, n.Content))
	}
	return fmt.Sprintf(`Based on the following notes, create a structured action plan with timeline:

%s

Please create a detailed action plan that:
1. Identifies key tasks and priorities
2. Suggests a realistic timeline for completion
3. Groups related tasks together
4. Highlights any dependencies between tasks
5. Provides estimated time requirements

Format the response as a structured plan with clear sections for immediate actions (next 7 days), short-term goals (next 30 days), and longer-term objectives. Be very to the point.`, strings.Join(parts, "\n\n"))
}
