package research

import (
	"context"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"google.golang.org/genai"
)

// Summarizer distills page contents into learnings and follow-ups.
type Summarizer struct {
	gen Generator
}

// NewSummarizer creates a summarizer over the given generator.
func NewSummarizer(gen Generator) *Summarizer {
	return &Summarizer{gen: gen}
}

// Learnings is the output of one summarization call.
type Learnings struct {
	Learnings []string `json:"learnings"`
	FollowUps []string `json:"followUpQuestions"`
}

var learningsSchema = &genai.Schema{
	Type:     genai.TypeObject,
	Required: []string{"learnings", "followUpQuestions"},
	Properties: map[string]*genai.Schema{
		"learnings": {
			Type:        genai.TypeArray,
			Description: "List of learnings from the contents",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
		"followUpQuestions": {
			Type:        genai.TypeArray,
			Description: "List of follow-up questions to research the topic further",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
}

// Extract summarizes the page contents retrieved for query into at most
// maxLearnings learnings and maxFollowups follow-up questions.
//
// Empty page contents are filtered out. When the whole batch is empty
// the call is still issued: the model answers from general knowledge,
// which degrades quality but keeps the branch productive.
func (s *Summarizer) Extract(ctx context.Context, query string, contents []string, maxLearnings, maxFollowups int) (*Learnings, error) {
	filtered := make([]string, 0, len(contents))
	for _, c := range contents {
		if c != "" {
			filtered = append(filtered, c)
		}
	}

	var out Learnings
	err := s.gen.GenerateJSON(ctx, systemPrompt(),
		summarizePrompt(query, filtered, maxLearnings, maxFollowups), learningsSchema, &out)
	if err != nil {
		return nil, apperrors.NewGenerationError("summarize", err)
	}

	if len(out.Learnings) > maxLearnings {
		out.Learnings = out.Learnings[:maxLearnings]
	}
	if len(out.FollowUps) > maxFollowups {
		out.FollowUps = out.FollowUps[:maxFollowups]
	}
	return &out, nil
}
