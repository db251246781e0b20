package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ErrEmptyCompletion is returned when a model answers with no text.
var ErrEmptyCompletion = errors.New("analyzer: empty completion")

// ChatSettings selects and configures a remote chat backend.
type ChatSettings struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewChatClient builds the backend named by s.Provider. It returns nil for
// "none" or an empty key so callers run heuristic-only.
func NewChatClient(ctx context.Context, s ChatSettings) (ChatClient, error) {
	if s.APIKey == "" {
		return nil, nil
	}
	switch strings.ToLower(s.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
		return NewOpenAIChat(s), nil
	case "anthropic":
		return NewAnthropicChat(s), nil
	case "gemini":
		return NewGeminiChat(ctx, s)
	default:
		return nil, fmt.Errorf("analyzer: unknown chat provider %q", s.Provider)
	}
}

// OpenAIChat talks to any OpenAI-compatible endpoint, DeepSeek by default.
type OpenAIChat struct {
	client   *openai.Client
	settings ChatSettings
}

func NewOpenAIChat(s ChatSettings) *OpenAIChat {
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	}
	return &OpenAIChat{client: openai.NewClientWithConfig(cfg), settings: s}
}

func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.settings.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: float32(c.settings.Temperature),
		MaxTokens:   c.settings.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// AnthropicChat uses the Messages API.
type AnthropicChat struct {
	client   anthropic.Client
	settings ChatSettings
}

func NewAnthropicChat(s ChatSettings) *AnthropicChat {
	opts := []option.RequestOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	return &AnthropicChat{client: anthropic.NewClient(opts...), settings: s}
}

func (c *AnthropicChat) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.settings.Model),
		MaxTokens: int64(c.settings.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if c.settings.Temperature > 0 {
		params.Temperature = anthropic.Float(c.settings.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return b.String(), nil
}

// GeminiChat uses the Gemini API backend of the genai SDK.
type GeminiChat struct {
	client   *genai.Client
	settings ChatSettings
}

func NewGeminiChat(ctx context.Context, s ChatSettings) (*GeminiChat, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	return &GeminiChat{client: client, settings: s}, nil
}

func (c *GeminiChat) Complete(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.settings.Temperature)),
		MaxOutputTokens: int32(c.settings.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.settings.Model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
