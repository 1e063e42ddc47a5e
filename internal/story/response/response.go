// Package response extracts story text and choices from a model reply.
package response

import (
	"encoding/json"
	"strings"
)

type Format int

const (
	// Plain means no structure was found; the whole reply is the story.
	Plain Format = iota
	// Structured is a JSON object with story, choices and isFinal.
	Structured
	// TrailingList is prose followed by a JSON array of choices.
	TrailingList
)

func (f Format) String() string {
	switch f {
	case Structured:
		return "structured"
	case TrailingList:
		return "trailing-list"
	default:
		return "plain"
	}
}

// Result is what a model reply was understood to contain.
type Result struct {
	Story   string
	Choices []string
	IsFinal bool
	Format  Format
}

type reply struct {
	Story   *string          `json:"story"`
	Choices *json.RawMessage `json:"choices"`
	IsFinal bool             `json:"isFinal"`
}

// Parse never fails: text that cannot be understood as structured is
// returned as plain prose with no choices.
func Parse(raw string) Result {
	text := stripFences(raw)

	if r, ok := parseObject(text); ok {
		return r
	}
	if r, ok := parseTrailingList(text); ok {
		return r
	}
	return Result{Story: strings.TrimSpace(raw), Choices: []string{}, Format: Plain}
}

func stripFences(raw string) string {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func parseObject(text string) (Result, bool) {
	var r reply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return Result{}, false
	}
	if r.Story == nil || strings.TrimSpace(*r.Story) == "" || r.Choices == nil {
		return Result{}, false
	}
	var choices []string
	if err := json.Unmarshal(*r.Choices, &choices); err != nil || choices == nil {
		return Result{}, false
	}
	return Result{Story: *r.Story, Choices: choices, IsFinal: r.IsFinal, Format: Structured}, true
}

func parseTrailingList(text string) (Result, bool) {
	open := strings.LastIndex(text, "[")
	if open < 0 || !strings.HasSuffix(text, "]") {
		return Result{}, false
	}
	var choices []string
	if err := json.Unmarshal([]byte(text[open:]), &choices); err != nil {
		return Result{}, false
	}
	prose := strings.TrimSpace(text[:open])
	if prose == "" {
		return Result{}, false
	}
	if choices == nil {
		choices = []string{}
	}
	return Result{Story: prose, Choices: choices, Format: TrailingList}, true
}
