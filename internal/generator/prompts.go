package generator

import (
	"fmt"
	"strings"
	"text/template"
)

// PromptType names a template in the registry.
type PromptType string

const (
	SystemPrompt PromptType = "system_prompt"
	AIPrompt     PromptType = "ai_prompt"
	HumanPrompt  PromptType = "human_prompt"
)

// PromptData is the input every template is rendered with.
type PromptData struct {
	Context string
	Topic   string
	Count   int
}

const systemTemplate = `You are an expert educational content creator specializing in exam design.
Using the provided context, generate up to {{.Count}} multiple-choice questions (MCQs).
Instructions:
- If the topic is empty, create MCQs covering the document's core concepts.
- Use only facts stated in the context.
- Each MCQ must have 1 correct answer, 3 distractors, and a short explanation.
- Return strictly JSON, with no surrounding text, in this format:
[
  {
    "question": "...",
    "options": {"A": "...", "B": "...", "C": "...", "D": "..."},
    "correct_answer": "A",
    "explanation": "..."
  }
]`

const aiTemplate = `[
  {
    "question": "What is the main concept discussed in the provided context?",
    "options": {"A": "Option A", "B": "Option B", "C": "Option C", "D": "Option D"},
    "correct_answer": "A",
    "explanation": "Explanation about why A is correct."
  }
]`

const humanTemplate = `Generate multiple-choice questions (MCQs) based on the following information.
Context:
{{.Context}}

Topic or Task:
{{.Topic}}
Please follow the system instructions and return the output in the required JSON format.`

// Registry holds the parsed prompt templates.
type Registry struct {
	templates map[PromptType]*template.Template
}

// NewRegistry parses the built-in templates. overrides replaces templates by type.
func NewRegistry(overrides map[PromptType]string) (*Registry, error) {
	sources := map[PromptType]string{
		SystemPrompt: systemTemplate,
		AIPrompt:     aiTemplate,
		HumanPrompt:  humanTemplate,
	}
	for k, v := range overrides {
		if _, ok := sources[k]; !ok {
			return nil, fmt.Errorf("unknown prompt type %q", k)
		}
		sources[k] = v
	}
	r := &Registry{templates: make(map[PromptType]*template.Template, len(sources))}
	for k, src := range sources {
		t, err := template.New(string(k)).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k, err)
		}
		r.templates[k] = t
	}
	return r, nil
}

// Render executes the template of type pt.
func (r *Registry) Render(pt PromptType, data PromptData) (string, error) {
	t, ok := r.templates[pt]
	if !ok {
		return "", fmt.Errorf("unknown prompt type %q", pt)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", pt, err)
	}
	return b.String(), nil
}

// Messages renders the conversation sent to the model: system instructions, the
// example answer as a prior assistant turn, then the request.
func (r *Registry) Messages(data PromptData) ([]Message, error) {
	order := []struct {
		pt   PromptType
		role Role
	}{
		{SystemPrompt, RoleSystem},
		{AIPrompt, RoleAssistant},
		{HumanPrompt, RoleUser},
	}
	msgs := make([]Message, 0, len(order))
	for _, o := range order {
		text, err := r.Render(o.pt, data)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{Role: o.role, Content: text})
	}
	return msgs, nil
}
