package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fathomlabs/fathom/pkg/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGen answers plan and summarize calls with fixed shapes so the
// recursion can run to completion.
func scriptedGen() *fakeGen {
	level := 0
	return &fakeGen{
		jsonFn: func(_, prompt string, out any) error {
			if strings.Contains(prompt, "SERP queries") {
				level++
				return respondJSON(out, map[string]any{
					"queries": []map[string]string{
						{"query": fmt.Sprintf("query %d", level), "researchGoal": fmt.Sprintf("goal %d", level)},
						{"query": "unused sibling", "researchGoal": "unused"},
					},
				})
			}
			return respondJSON(out, map[string]any{
				"learnings":         []string{fmt.Sprintf("learning %d", level)},
				"followUpQuestions": []string{fmt.Sprintf("follow-up %d", level)},
			})
		},
	}
}

func pageResults(query string, n int) []websearch.Result {
	results := make([]websearch.Result, n)
	for i := range results {
		results[i] = websearch.Result{
			URL:      fmt.Sprintf("https://example.com/%s/%d", query, i),
			Markdown: fmt.Sprintf("page %d about %s", i, query),
		}
	}
	return results
}

func TestDeepResearchTerminatesWithinDepth(t *testing.T) {
	for depth := 1; depth <= 5; depth++ {
		for breadth := 1; breadth <= 5; breadth++ {
			t.Run(fmt.Sprintf("depth=%d breadth=%d", depth, breadth), func(t *testing.T) {
				gen := scriptedGen()
				searcher := &fakeSearcher{fn: func(q string, _ int) ([]websearch.Result, error) {
					return pageResults(q, 2), nil
				}}

				engine := NewDeepEngine(gen, searcher, nil, nil)
				state := engine.Research(context.Background(), "spaced repetition", breadth, depth, State{})

				// One plan and one summarize call per level, never more
				// levels than the depth budget.
				assert.Equal(t, depth, searcher.callCount())
				assert.Equal(t, 2*depth, gen.jsonCalls)
				assert.Len(t, state.Learnings, depth)
			})
		}
	}
}

func TestDeepResearchMonotonicAccumulation(t *testing.T) {
	gen := scriptedGen()
	searcher := &fakeSearcher{fn: func(q string, _ int) ([]websearch.Result, error) {
		return pageResults(q, 1), nil
	}}

	seed := State{
		Learnings:   []string{"prior learning"},
		VisitedURLs: []string{"https://example.com/prior"},
	}
	engine := NewDeepEngine(gen, searcher, nil, nil)
	state := engine.Research(context.Background(), "topic", 2, 2, seed)

	require.GreaterOrEqual(t, len(state.Learnings), len(seed.Learnings))
	assert.Equal(t, "prior learning", state.Learnings[0])
	assert.Equal(t, "https://example.com/prior", state.VisitedURLs[0])
}

func TestDeepResearchSearchFailureDiscardsBranch(t *testing.T) {
	gen := scriptedGen()
	searcher := &fakeSearcher{fn: func(_ string, _ int) ([]websearch.Result, error) {
		return nil, errors.New("browser crashed")
	}}

	seed := State{Learnings: []string{"prior learning"}}
	engine := NewDeepEngine(gen, searcher, nil, nil)
	state := engine.Research(context.Background(), "topic", 3, 2, seed)

	// A failed search drops everything the branch accumulated.
	assert.Empty(t, state.Learnings)
	assert.Empty(t, state.VisitedURLs)
}

func TestDeepResearchPlannerFailureEndsBranchWithState(t *testing.T) {
	gen := &fakeGen{
		jsonFn: func(_, _ string, _ any) error {
			return errors.New("model overloaded")
		},
	}
	searcher := &fakeSearcher{}

	seed := State{Learnings: []string{"kept"}}
	engine := NewDeepEngine(gen, searcher, nil, nil)
	state := engine.Research(context.Background(), "topic", 3, 2, seed)

	assert.Equal(t, seed.Learnings, state.Learnings)
	assert.Zero(t, searcher.callCount())
}

func TestDeepResearchNoQueriesEndsBranch(t *testing.T) {
	gen := &fakeGen{
		jsonFn: func(_, _ string, out any) error {
			return respondJSON(out, map[string]any{"queries": []map[string]string{}})
		},
	}
	searcher := &fakeSearcher{}

	engine := NewDeepEngine(gen, searcher, nil, nil)
	state := engine.Research(context.Background(), "topic", 3, 3, State{})

	assert.Empty(t, state.Learnings)
	assert.Equal(t, 1, gen.jsonCalls)
	assert.Zero(t, searcher.callCount())
}

func TestDeepResearchSingleQueryPerLevel(t *testing.T) {
	gen := scriptedGen()
	searcher := &fakeSearcher{fn: func(q string, _ int) ([]websearch.Result, error) {
		return pageResults(q, 1), nil
	}}

	engine := NewDeepEngine(gen, searcher, nil, nil)
	engine.Research(context.Background(), "topic", 4, 2, State{})

	require.Len(t, searcher.queries, 2)
	assert.Equal(t, "query 1", searcher.queries[0])
	assert.Equal(t, "query 2", searcher.queries[1])
	assert.NotContains(t, searcher.queries, "unused sibling")
}

func TestDeepResearchBreadthHalvesPerLevel(t *testing.T) {
	gen := scriptedGen()
	searcher := &fakeSearcher{fn: func(q string, _ int) ([]websearch.Result, error) {
		return pageResults(q, 1), nil
	}}

	engine := NewDeepEngine(gen, searcher, nil, nil)
	engine.Research(context.Background(), "topic", 5, 3, State{})

	var planPrompts []string
	for _, p := range gen.jsonPrompts {
		if strings.Contains(p, "SERP queries") {
			planPrompts = append(planPrompts, p)
		}
	}
	require.Len(t, planPrompts, 3)
	assert.Contains(t, planPrompts[0], "maximum of 5")
	assert.Contains(t, planPrompts[1], "maximum of 3")
	assert.Contains(t, planPrompts[2], "maximum of 2")
}

func TestDeepResearchContinuationEmbedsGoalAndFollowUps(t *testing.T) {
	gen := scriptedGen()
	searcher := &fakeSearcher{fn: func(q string, _ int) ([]websearch.Result, error) {
		return pageResults(q, 1), nil
	}}

	engine := NewDeepEngine(gen, searcher, nil, nil)
	engine.Research(context.Background(), "topic", 2, 2, State{})

	var planPrompts []string
	for _, p := range gen.jsonPrompts {
		if strings.Contains(p, "SERP queries") {
			planPrompts = append(planPrompts, p)
		}
	}
	require.Len(t, planPrompts, 2)
	assert.Contains(t, planPrompts[1], "Previous research goal: goal 1")
	assert.Contains(t, planPrompts[1], "follow-up 1")
}

func TestCeilHalf(t *testing.T) {
	assert.Equal(t, 1, ceilHalf(1))
	assert.Equal(t, 1, ceilHalf(2))
	assert.Equal(t, 2, ceilHalf(3))
	assert.Equal(t, 2, ceilHalf(4))
	assert.Equal(t, 3, ceilHalf(5))
}
