package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/fathomlabs/fathom/pkg/trace"
	"github.com/fathomlabs/fathom/pkg/websearch"
	"go.uber.org/zap"
)

const (
	// searchResultLimit caps fetched pages per search.
	searchResultLimit = 5

	// maxLearningsPerLevel caps learnings extracted per recursion level.
	maxLearningsPerLevel = 5
)

// DeepEngine is the recursive research strategy: plan queries, search
// the web, extract learnings, then recurse on the follow-up questions
// with a halved breadth and decremented depth budget.
//
// Within a run the engine is strictly sequential; it is one of two
// branches the orchestrator runs concurrently.
type DeepEngine struct {
	planner    *Planner
	summarizer *Summarizer
	searcher   Searcher
	tracer     trace.Writer
	logger     *zap.Logger
}

// NewDeepEngine creates the recursive engine. A nil tracer disables
// tracing; a nil logger disables logging.
func NewDeepEngine(gen Generator, searcher Searcher, tracer trace.Writer, logger *zap.Logger) *DeepEngine {
	if tracer == nil {
		tracer = trace.NopWriter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeepEngine{
		planner:    NewPlanner(gen),
		summarizer: NewSummarizer(gen),
		searcher:   searcher,
		tracer:     tracer,
		logger:     logger,
	}
}

// Research runs the recursive loop starting from query with the given
// breadth and depth budgets, accumulating onto state.
//
// Per recursion level the engine plans up to breadth queries but acts
// on the first one only: breadth shapes query diversity and follow-up
// fan-out, not parallel exploration. Recursion continues with
// newBreadth = ceil(breadth/2) and newDepth = depth-1 until depth is
// exhausted or the planner yields nothing.
//
// Failure semantics: a planner or summarizer failure ends the branch
// with whatever state has accumulated; a search failure discards the
// branch entirely and returns empty state.
func (e *DeepEngine) Research(ctx context.Context, query string, breadth, depth int, state State) State {
	if depth <= 0 {
		return state
	}

	queries, err := e.planner.Plan(ctx, query, state.Learnings, breadth)
	if err != nil {
		e.logger.Warn("query planning failed, ending branch",
			zap.Int("depth", depth), zap.Error(err))
		e.traceError(ctx, "plan_queries", query, err)
		return state
	}
	if len(queries) == 0 {
		return state
	}

	_ = e.tracer.WritePlan(ctx, StrategyDeep, &trace.PlanRecord{
		Goal:    query,
		Depth:   depth,
		Breadth: breadth,
		Queries: queryStrings(queries),
	})

	q := queries[0]

	results, err := e.searcher.Search(ctx, q.Query, searchResultLimit)
	if err != nil {
		e.logger.Warn("web search failed, discarding branch",
			zap.String("query", q.Query), zap.Error(err))
		e.traceError(ctx, "search", q.Query, err)
		return State{}
	}

	_ = e.tracer.WriteSearch(ctx, StrategyDeep, &trace.SearchRecord{
		Query: q.Query,
		URLs:  resultURLs(results),
	})

	maxFollowups := ceilHalf(breadth)
	found, err := e.summarizer.Extract(ctx, q.Query, resultContents(results), maxLearningsPerLevel, maxFollowups)
	if err != nil {
		e.logger.Warn("summarization failed, ending branch",
			zap.String("query", q.Query), zap.Error(err))
		e.traceError(ctx, "summarize", q.Query, err)
		return state
	}

	_ = e.tracer.WriteLearnings(ctx, StrategyDeep, &trace.LearningsRecord{
		Query:     q.Query,
		Learnings: found.Learnings,
		FollowUps: found.FollowUps,
	})

	state = state.Append(found.Learnings, resultURLs(results))

	newBreadth := ceilHalf(breadth)
	newDepth := depth - 1
	if newDepth <= 0 {
		return state
	}

	return e.Research(ctx, continuationQuery(q.ResearchGoal, found.FollowUps), newBreadth, newDepth, state)
}

func (e *DeepEngine) traceError(ctx context.Context, stage, query string, err error) {
	_ = e.tracer.WriteError(ctx, StrategyDeep, &trace.ErrorRecord{
		Stage:   stage,
		Message: err.Error(),
		Query:   query,
	})
}

// continuationQuery builds the next level's research prompt from the
// handled query's goal and the follow-up questions it produced.
func continuationQuery(goal string, followUps []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Previous research goal: %s\nFollow-up research directions:\n", goal)
	for _, f := range followUps {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}

func queryStrings(queries []SerpQuery) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Query
	}
	return out
}

func resultURLs(results []websearch.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}

func resultContents(results []websearch.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Markdown
	}
	return out
}
