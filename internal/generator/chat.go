package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// ChatModel completes a conversation with a single assistant reply.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Mistral chat defaults.
const (
	DefaultMistralBaseURL = "https://api.mistral.ai/v1"
	DefaultMistralModel   = "mistral-small-latest"
)

// MistralConfig configures the Mistral chat client. Mistral serves an OpenAI-compatible
// chat completions endpoint.
type MistralConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration
}

// MistralChat calls the chat completions endpoint.
type MistralChat struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewMistralChat creates the client. The API key is required.
func NewMistralChat(cfg MistralConfig) (*MistralChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mistral: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMistralBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultMistralModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &MistralChat{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends messages and returns the first choice's content.
func (m *MistralChat) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(m.temperature),
	}
	if m.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(m.maxTokens))
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		case RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		default:
			return "", fmt.Errorf("mistral: unknown role %q", msg.Role)
		}
	}
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("mistral chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("mistral chat: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// MockChatModel returns a canned reply and records the conversations it received.
type MockChatModel struct {
	Reply string
	Err   error

	mu    sync.Mutex
	calls [][]Message
}

// Complete returns Reply or Err.
func (m *MockChatModel) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls = append(m.calls, append([]Message(nil), messages...))
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

// Calls returns the conversations received so far.
func (m *MockChatModel) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}
