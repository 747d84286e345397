package research

import (
	"context"
	"regexp"
	"strings"

	"github.com/fathomlabs/fathom/pkg/trace"
	"go.uber.org/zap"
)

// minPrefixedLearnings is the threshold below which the line-prefix
// parse is considered to have failed and the bullet-list fallback runs.
const minPrefixedLearnings = 5

// GroundedEngine is the single-call research strategy: one grounded
// generation where the model performs its own web retrieval and reports
// findings in a line-prefixed format.
//
// This strategy is additive. Any failure yields an empty state; it
// never fails the run.
type GroundedEngine struct {
	gen    Generator
	tracer trace.Writer
	logger *zap.Logger
}

// NewGroundedEngine creates the grounded engine. A nil tracer disables
// tracing; a nil logger disables logging.
func NewGroundedEngine(gen Generator, tracer trace.Writer, logger *zap.Logger) *GroundedEngine {
	if tracer == nil {
		tracer = trace.NopWriter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroundedEngine{gen: gen, tracer: tracer, logger: logger}
}

// Research issues one grounded call for query and parses the findings.
//
// LEARNING:-prefixed lines become learnings and SOURCE:-prefixed lines
// become sources. If the model ignored the format and fewer than five
// prefixed learnings are found, a bullet/numbered-list parse of the
// same text runs as a fallback and the larger parse wins. Source URLs
// reported natively by the grounding metadata are merged in,
// deduplicated by URL.
func (e *GroundedEngine) Research(ctx context.Context, query string) State {
	result, err := e.gen.GenerateGrounded(ctx, groundedPrompt(query))
	if err != nil {
		e.logger.Warn("grounded search failed, continuing without it", zap.Error(err))
		_ = e.tracer.WriteError(ctx, StrategyGrounded, &trace.ErrorRecord{
			Stage:   "grounded_search",
			Message: err.Error(),
			Query:   query,
		})
		return State{}
	}

	learnings, sources := parsePrefixedLines(result.Text)
	if len(learnings) < minPrefixedLearnings {
		if bullets := parseListItems(result.Text); len(bullets) > len(learnings) {
			learnings = bullets
		}
	}

	for _, src := range result.Sources {
		if src.URL != "" {
			sources = append(sources, src.URL)
		}
	}
	sources = dedupStrings(sources)

	_ = e.tracer.WriteSearch(ctx, StrategyGrounded, &trace.SearchRecord{
		Query: query,
		URLs:  sources,
	})
	_ = e.tracer.WriteLearnings(ctx, StrategyGrounded, &trace.LearningsRecord{
		Query:     query,
		Learnings: learnings,
	})

	return State{Learnings: learnings, VisitedURLs: sources}
}

// parsePrefixedLines extracts LEARNING: and SOURCE: lines.
func parsePrefixedLines(text string) (learnings, sources []string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "LEARNING:"):
			if l := strings.TrimSpace(strings.TrimPrefix(line, "LEARNING:")); l != "" {
				learnings = append(learnings, l)
			}
		case strings.HasPrefix(line, "SOURCE:"):
			if s := strings.TrimSpace(strings.TrimPrefix(line, "SOURCE:")); s != "" {
				sources = append(sources, s)
			}
		}
	}
	return learnings, sources
}

// listItemPattern matches bullet ("-", "*", "•") and numbered ("1.",
// "2)") list markers at line start.
var listItemPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

// parseListItems extracts list items as a best-effort fallback when the
// model ignored the line-prefix format.
func parseListItems(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[1]); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// dedupStrings removes exact duplicates preserving first-seen order.
func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
