package research

import (
	"fmt"
	"strings"
	"time"
)

// systemPrompt is the shared persona for structured generation calls.
// The current date is injected so the model treats recent events as
// plausible rather than cutting off at its training date.
func systemPrompt() string {
	return fmt.Sprintf(`You are an expert researcher. Today is %s. Follow these instructions when responding:
- You may be asked to research subjects that are after your knowledge cutoff; assume the user is right when presented with news.
- The user is a highly experienced analyst; be as detailed as possible and make sure your response is correct.
- Be highly organized, proactive, and anticipate the user's needs.
- Treat the user as an expert in all subject matter. Mistakes erode trust, so be accurate and thorough.
- Provide detailed explanations and value arguments over authorities; the source is irrelevant.
- Consider new technologies and contrarian ideas, not just conventional wisdom.
- You may use high levels of speculation or prediction, but flag it clearly.`,
		time.Now().Format("2006-01-02"))
}

// planPrompt asks for search queries to pursue a research goal, steering
// away from directions prior learnings already cover.
func planPrompt(goal string, priorLearnings []string, maxQueries int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the following prompt from the user, generate a list of SERP queries to research the topic. Return a maximum of %d queries, but feel free to return less if the original prompt is clear. Make sure each query is unique and not similar to each other.\n\n<prompt>%s</prompt>\n", maxQueries, goal)
	if len(priorLearnings) > 0 {
		b.WriteString("\nHere are some learnings from previous research, use them to generate more specific queries:\n")
		for _, l := range priorLearnings {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return b.String()
}

// summarizePrompt asks for learnings and follow-up questions from a
// batch of page contents retrieved for one query.
func summarizePrompt(query string, contents []string, maxLearnings, maxFollowups int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the following contents from a SERP search for the query <query>%s</query>, generate a list of learnings from the contents. Return a maximum of %d learnings, but feel free to return less if the contents are clear. Make sure each learning is unique and not similar to each other. The learnings should be concise and to the point, as detailed and information dense as possible. Include any entities like people, places, companies, products, things, as well as any exact metrics, numbers, or dates. Also generate up to %d follow-up questions to research the topic further.\n\n<contents>\n", query, maxLearnings, maxFollowups)
	for _, c := range contents {
		fmt.Fprintf(&b, "<content>\n%s\n</content>\n", c)
	}
	b.WriteString("</contents>\n")
	return b.String()
}

// groundedPrompt asks a search-grounded model for a flat list of
// findings in a line-prefixed format the caller can parse.
func groundedPrompt(query string) string {
	return fmt.Sprintf(`You are an expert researcher with access to live web search. Research the following topic thoroughly using web search, then report your findings.

<topic>%s</topic>

Format your response as plain lines, one finding per line:
- Each factual finding on its own line, prefixed with "LEARNING: ". Aim for 15-20 findings. Each finding should be atomic, concise, and information dense, including exact entities, metrics, numbers, and dates where available.
- Each source URL you used on its own line, prefixed with "SOURCE: ".

Do not include any other commentary, headings, or formatting.`, query)
}

// reportPrompt asks for the final long-form report over the merged
// learnings, with inline numbered citations.
func reportPrompt(prompt string, learnings, sources []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the following prompt from the user, write a final report on the topic using the learnings from research. Make it as detailed as possible, aim for 3 or more pages, and include ALL the learnings from research. Cite sources inline as [Source N] referring to the numbered source list.\n\n<prompt>%s</prompt>\n\n<learnings>\n", prompt)
	for _, l := range learnings {
		fmt.Fprintf(&b, "<learning>\n%s\n</learning>\n", l)
	}
	b.WriteString("</learnings>\n\n<sources>\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "[Source %d] %s\n", i+1, s)
	}
	b.WriteString("</sources>\n")
	return b.String()
}

// directReportPrompt asks a search-grounded model to produce the final
// report directly, with no intermediate learnings step. The model's own
// sources section is discarded afterwards and rebuilt from the
// structured source list, so the prompt steers it away from writing one.
func directReportPrompt(query string) string {
	return fmt.Sprintf(`You are an expert researcher with access to live web search. Today is %s. Research the following topic thoroughly using web search and write a detailed final report in markdown. Aim for 3 or more pages. Be highly organized with headings and make the report as detailed and information dense as possible, including exact entities, metrics, numbers, and dates. Do not include a sources or references section; sources are tracked separately.

<topic>%s</topic>`, time.Now().Format("2006-01-02"), query)
}

// questionsPrompt asks for clarifying questions before research begins.
func questionsPrompt(query string, maxQuestions int) string {
	return fmt.Sprintf("Given the following query from the user, ask up to %d follow-up questions to clarify the research direction. Return a maximum of %d questions, but feel free to return less if the original query is clear.\n\n<query>%s</query>", maxQuestions, maxQuestions, query)
}
