package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mcqgen/internal/models"
	"go.uber.org/zap"
)

// DefaultCount is the number of questions requested when none is given.
const DefaultCount = 3

// coreConceptsQuery is used for retrieval when the topic is empty.
const coreConceptsQuery = "main concepts and key facts of the document"

// Retriever returns passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]*models.Passage, error)
}

// Generator turns retrieved passages into a validated question set.
type Generator struct {
	retriever Retriever
	model     ChatModel
	prompts   *Registry
	count     int
	logger    *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithCount sets the default number of questions.
func WithCount(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.count = n
		}
	}
}

// WithPrompts replaces the built-in prompt registry.
func WithPrompts(r *Registry) Option {
	return func(g *Generator) {
		if r != nil {
			g.prompts = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator.
func New(retriever Retriever, model ChatModel, opts ...Option) (*Generator, error) {
	if retriever == nil {
		return nil, errors.New("generator: retriever is required")
	}
	if model == nil {
		return nil, errors.New("generator: chat model is required")
	}
	g := &Generator{
		retriever: retriever,
		model:     model,
		count:     DefaultCount,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.prompts == nil {
		r, err := NewRegistry(nil)
		if err != nil {
			return nil, err
		}
		g.prompts = r
	}
	return g, nil
}

// Generate produces up to the default number of questions about topic.
func (g *Generator) Generate(ctx context.Context, topic string) (models.GenerationResult, error) {
	return g.GenerateCount(ctx, topic, g.count)
}

// GenerateCount produces up to count questions about topic. Retrieval and model
// failures are returned as errors; unusable model output is a ParseError result.
func (g *Generator) GenerateCount(ctx context.Context, topic string, count int) (models.GenerationResult, error) {
	if count <= 0 {
		count = g.count
	}
	topic = strings.TrimSpace(topic)
	query := topic
	if query == "" {
		query = coreConceptsQuery
	}

	passages, err := g.retriever.Retrieve(ctx, query)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(passages) == 0 {
		return models.GenerationResult{}, errors.New("retrieve context: no passages found")
	}

	msgs, err := g.prompts.Messages(PromptData{
		Context: JoinPassages(passages),
		Topic:   topic,
		Count:   count,
	})
	if err != nil {
		return models.GenerationResult{}, err
	}

	g.logger.Debug("Generating questions",
		zap.String("topic", topic),
		zap.Int("count", count),
		zap.Int("passages", len(passages)))

	raw, err := g.model.Complete(ctx, msgs)
	if err != nil {
		return models.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}

	questions, err := ParseQuestions(raw)
	if err != nil {
		g.logger.Warn("Model output is not a valid question set", zap.Error(err))
		return models.ParseError(raw, err), nil
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return models.OK(questions), nil
}

// JoinPassages concatenates passage contents separated by blank lines.
func JoinPassages(passages []*models.Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		if p == nil {
			continue
		}
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n")
}

// StripFences removes a surrounding markdown code fence, with or without a language tag.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "[{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseQuestions decodes a JSON array of questions and validates every entry.
// Any invalid entry fails the whole set.
func ParseQuestions(raw string) ([]models.Question, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, errors.New("empty model output")
	}
	var questions []models.Question
	if err := json.Unmarshal([]byte(body), &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, errors.New("no questions in model output")
	}
	for i := range questions {
		if err := questions[i].Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return questions, nil
}

// WriteQuestions writes questions to path as indented JSON, replacing the file atomically.
func WriteQuestions(path string, questions []models.Question) error {
	if questions == nil {
		questions = []models.Question{}
	}
	data, err := json.MarshalIndent(questions, "", "    ")
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write questions: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write questions: %w", err)
	}
	return nil
}
