package research

import (
	"context"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"google.golang.org/genai"
)

// MaxClarifyingQuestions caps the clarification round before a job.
const MaxClarifyingQuestions = 5

var questionsSchema = &genai.Schema{
	Type:     genai.TypeObject,
	Required: []string{"questions"},
	Properties: map[string]*genai.Schema{
		"questions": {
			Type:        genai.TypeArray,
			Description: "Follow-up questions to clarify the research direction",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
}

// ClarifyingQuestions asks the model for up to MaxClarifyingQuestions
// follow-up questions to sharpen the research query before a job is
// created. The result is truncated even if the model returns more.
func ClarifyingQuestions(ctx context.Context, gen Generator, query string) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	err := gen.GenerateJSON(ctx, systemPrompt(),
		questionsPrompt(query, MaxClarifyingQuestions), questionsSchema, &out)
	if err != nil {
		return nil, apperrors.NewGenerationError("clarifying_questions", err)
	}

	if len(out.Questions) > MaxClarifyingQuestions {
		out.Questions = out.Questions[:MaxClarifyingQuestions]
	}
	return out.Questions, nil
}
