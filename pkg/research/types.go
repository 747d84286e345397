// Package research implements the dual-strategy research pipeline.
//
// A research run executes two strategies concurrently: a recursive
// breadth/depth-bounded search-and-summarize loop (DeepEngine) and a
// single search-grounded generation call (GroundedEngine). Their
// findings are merged, deduplicated, and synthesized into a cited
// markdown report, which the orchestrator persists on the job record.
//
// Each branch owns its accumulated state exclusively; the branches
// share nothing until the final merge.
package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/fathomlabs/fathom/pkg/jobstore"
	"github.com/fathomlabs/fathom/pkg/llm"
	"github.com/fathomlabs/fathom/pkg/websearch"
	"google.golang.org/genai"
)

// Strategy labels for trace records.
const (
	StrategyDeep     = "deep"
	StrategyGrounded = "grounded"
)

// Generator is the LLM surface the pipeline consumes. *llm.Client
// satisfies it; tests substitute fakes.
type Generator interface {
	// GenerateText runs a plain text generation call.
	GenerateText(ctx context.Context, system, prompt string) (string, error)

	// GenerateJSON runs a schema-constrained call and decodes into out.
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema, out any) error

	// GenerateGrounded runs a web-grounded generation call.
	GenerateGrounded(ctx context.Context, prompt string) (*llm.GroundedResult, error)
}

// Searcher is the web search surface the deep engine consumes.
// *websearch.BrowserProvider satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]websearch.Result, error)
}

// SerpQuery is one planned search query with its research goal.
type SerpQuery struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
}

// State is the accumulated output of one research branch: the atomic
// learnings gathered so far and the URLs they came from. State grows
// monotonically within a branch and is never shared across branches.
type State struct {
	Learnings   []string
	VisitedURLs []string
}

// Append returns a copy of s with the given learnings and URLs added.
// Duplicates are kept; dedup happens once, at the merge step.
func (s State) Append(learnings, urls []string) State {
	out := State{
		Learnings:   make([]string, 0, len(s.Learnings)+len(learnings)),
		VisitedURLs: make([]string, 0, len(s.VisitedURLs)+len(urls)),
	}
	out.Learnings = append(append(out.Learnings, s.Learnings...), learnings...)
	out.VisitedURLs = append(append(out.VisitedURLs, s.VisitedURLs...), urls...)
	return out
}

// CombinedQuery builds the research prompt from the original query and
// the clarifying question/answer pairs gathered before the job started.
func CombinedQuery(query string, questions []jobstore.QuestionAnswer) string {
	if len(questions) == 0 {
		return query
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Initial query: %s\n\nFollow-up questions and answers:\n", query)
	for _, qa := range questions {
		fmt.Fprintf(&b, "Q: %s\n", qa.Question)
		answer := qa.Answer
		if answer == "" {
			answer = "(no answer provided)"
		}
		fmt.Fprintf(&b, "A: %s\n", answer)
	}
	return b.String()
}

// ceilHalf computes ceil(n / 2) without floating point.
func ceilHalf(n int) int {
	return (n + 1) / 2
}
