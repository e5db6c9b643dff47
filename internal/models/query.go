package models

import (
	"fmt"
	"strings"
)

// RetrieveRequest asks a session's retriever for passages.
type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate trims the query and rejects empty ones. K is capped at maxK when maxK > 0.
func (r *RetrieveRequest) Validate(maxK int) error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.K < 0 {
		return fmt.Errorf("k must not be negative")
	}
	if maxK > 0 && r.K > maxK {
		r.K = maxK
	}
	return nil
}

// GenerateRequest asks for a question set about a topic.
type GenerateRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count,omitempty"`
}

// Validate trims the topic and applies the default count.
func (r *GenerateRequest) Validate(defaultCount int) error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if r.Count <= 0 {
		r.Count = defaultCount
	}
	if r.Count > 50 {
		return fmt.Errorf("count must be at most 50")
	}
	return nil
}
