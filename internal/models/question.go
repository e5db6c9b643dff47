package models

import (
	"fmt"
	"strings"
)

// OptionLetters are the option keys every question must carry, in order.
var OptionLetters = []string{"A", "B", "C", "D"}

// Options holds the four answer choices of a question.
type Options struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Get returns the option text for letter.
func (o Options) Get(letter string) string {
	switch letter {
	case "A":
		return o.A
	case "B":
		return o.B
	case "C":
		return o.C
	case "D":
		return o.D
	}
	return ""
}

// Question is one generated multiple-choice question.
type Question struct {
	Question      string  `json:"question"`
	Options       Options `json:"options"`
	CorrectAnswer string  `json:"correct_answer"`
	Explanation   string  `json:"explanation"`
}

// Validate checks that the question is complete and the answer is one of A-D.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question text is empty")
	}
	for _, l := range OptionLetters {
		if strings.TrimSpace(q.Options.Get(l)) == "" {
			return fmt.Errorf("option %s is empty", l)
		}
	}
	answer := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	if q.Options.Get(answer) == "" {
		return fmt.Errorf("correct_answer %q is not one of A, B, C, D", q.CorrectAnswer)
	}
	q.CorrectAnswer = answer
	return nil
}

// GenerationStatus tags the variant held by a GenerationResult.
type GenerationStatus string

const (
	GenerationOK         GenerationStatus = "ok"
	GenerationParseError GenerationStatus = "parse_error"
)

// GenerationResult is either a validated question list or the raw model output that
// could not be parsed. Partial question sets are never returned.
type GenerationResult struct {
	Status    GenerationStatus `json:"status"`
	Questions []Question       `json:"questions,omitempty"`
	Raw       string           `json:"raw,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// OK builds a successful result.
func OK(questions []Question) GenerationResult {
	return GenerationResult{Status: GenerationOK, Questions: questions}
}

// ParseError builds a failed result that keeps the raw model text.
func ParseError(raw string, err error) GenerationResult {
	r := GenerationResult{Status: GenerationParseError, Raw: raw}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// IsOK reports whether the result holds questions.
func (r GenerationResult) IsOK() bool {
	return r.Status == GenerationOK
}
