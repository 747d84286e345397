package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"github.com/fathomlabs/fathom/pkg/llm"
)

// sourcesHeadingPattern matches a markdown heading announcing a source
// list, in any of its common spellings.
var sourcesHeadingPattern = regexp.MustCompile(`(?im)^#{1,6}\s+.*\b(sources|references|citations|bibliography|works\s+cited)\b`)

// Synthesizer produces the final cited report from merged findings.
type Synthesizer struct {
	gen Generator
}

// NewSynthesizer creates a report synthesizer over the given generator.
func NewSynthesizer(gen Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Synthesize generates the final markdown report for prompt from the
// merged learnings and sources.
//
// If the model's report lacks a sources/references heading, a
// "## Sources" section listing every source URL in input order is
// appended; appended reports whether that happened. If the model wrote
// its own section it is trusted and no duplicate is added.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, learnings, sources []string) (report string, appended bool, err error) {
	text, err := s.gen.GenerateText(ctx, systemPrompt(), reportPrompt(prompt, learnings, sources))
	if err != nil {
		return "", false, apperrors.NewGenerationError("synthesize_report", err)
	}

	if HasSourcesSection(text) {
		return text, false, nil
	}
	return text + SourcesSection(sources), true, nil
}

// HasSourcesSection reports whether text contains a markdown heading
// announcing a source list.
func HasSourcesSection(text string) bool {
	return sourcesHeadingPattern.MatchString(text)
}

// SourcesSection builds a "## Sources" section listing urls numbered in
// input order, ready to append to a report.
func SourcesSection(urls []string) string {
	var b strings.Builder
	b.WriteString("\n\n## Sources\n\n")
	for i, u := range urls {
		fmt.Fprintf(&b, "%d. %s\n", i+1, u)
	}
	return b.String()
}

// StripSourcesSection removes the model-written sources section, if
// any: everything from the first sources/references heading onward is
// cut. Used by the direct-search flow, which rebuilds the section from
// structured grounding sources instead of trusting model text.
func StripSourcesSection(text string) string {
	loc := sourcesHeadingPattern.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return strings.TrimRight(text[:loc[0]], "\n ")
}

// GroundedSourcesSection builds the sources section for the
// direct-search flow from structured grounding sources. When the model
// surfaced no structured sources, the section falls back to listing
// the web searches the model ran, with a disclaimer.
func GroundedSourcesSection(sources []llm.Source, searchQueries []string) string {
	if len(sources) > 0 {
		var b strings.Builder
		b.WriteString("\n\n## Sources\n\n")
		for i, s := range sources {
			if s.Title != "" {
				fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, s.Title, s.URL)
			} else {
				fmt.Fprintf(&b, "%d. %s\n", i+1, s.URL)
			}
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString("\n\n## Sources\n\nNo source links were returned for this report. It was generated from web searches for:\n\n")
	for i, q := range searchQueries {
		fmt.Fprintf(&b, "%d. %q\n", i+1, q)
	}
	return b.String()
}
