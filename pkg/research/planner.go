package research

import (
	"context"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"google.golang.org/genai"
)

// Planner generates the next search queries for a research goal.
type Planner struct {
	gen Generator
}

// NewPlanner creates a query planner over the given generator.
func NewPlanner(gen Generator) *Planner {
	return &Planner{gen: gen}
}

var planSchema = &genai.Schema{
	Type:     genai.TypeObject,
	Required: []string{"queries"},
	Properties: map[string]*genai.Schema{
		"queries": {
			Type:        genai.TypeArray,
			Description: "List of SERP queries",
			Items: &genai.Schema{
				Type:     genai.TypeObject,
				Required: []string{"query", "researchGoal"},
				Properties: map[string]*genai.Schema{
					"query": {
						Type:        genai.TypeString,
						Description: "The SERP query",
					},
					"researchGoal": {
						Type:        genai.TypeString,
						Description: "The goal this query advances and how to take the research deeper once results are found",
					},
				},
			},
		},
	},
}

// Plan returns at most maxQueries search queries to pursue next.
//
// Prior learnings steer the model away from ground already covered.
// The result is truncated to maxQueries even if the model returns more.
// A failed generation call is reported as a GenerationError; callers
// degrade the affected branch rather than aborting the run.
func (p *Planner) Plan(ctx context.Context, goal string, priorLearnings []string, maxQueries int) ([]SerpQuery, error) {
	if maxQueries <= 0 {
		return nil, nil
	}

	var out struct {
		Queries []SerpQuery `json:"queries"`
	}
	err := p.gen.GenerateJSON(ctx, systemPrompt(), planPrompt(goal, priorLearnings, maxQueries), planSchema, &out)
	if err != nil {
		return nil, apperrors.NewGenerationError("plan_queries", err)
	}

	queries := out.Queries
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries, nil
}
