package websearch

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// Result is one search hit: the page URL, its title from the results
// page, and the extracted page text (filled in after fetching).
type Result struct {
	URL      string
	Title    string
	Markdown string
}

// Patterns for the DuckDuckGo lite results page. The lite interface has
// a simple structure that is stable for scraping: result links carry
// class "result-link".
var (
	resultLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	resultLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	anyLinkPattern       = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	tagPattern           = regexp.MustCompile(`<[^>]+>`)
)

// parseResultsPage extracts search results from the lite HTML, at most
// limit entries, deduplicated by URL.
func parseResultsPage(pageHTML string, limit int) []Result {
	matches := resultLinkPattern.FindAllStringSubmatch(pageHTML, -1)
	if len(matches) == 0 {
		matches = resultLinkPatternAlt.FindAllStringSubmatch(pageHTML, -1)
	}

	results := collectLinks(matches, limit)
	if len(results) == 0 {
		// Fall back to scanning every external link on the page.
		results = collectLinks(anyLinkPattern.FindAllStringSubmatch(pageHTML, -1), limit)
	}
	return results
}

func collectLinks(matches [][]string, limit int) []Result {
	var results []Result
	seen := make(map[string]bool)

	for _, match := range matches {
		if len(match) < 3 {
			continue
		}

		urlStr := resolveRedirect(strings.TrimSpace(match[1]))
		title := cleanHTML(match[2])

		if !isExternalResultURL(urlStr) || title == "" {
			continue
		}
		if seen[urlStr] {
			continue
		}
		seen[urlStr] = true

		results = append(results, Result{URL: urlStr, Title: title})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

// resolveRedirect unwraps DuckDuckGo's redirect links, which carry the
// target in the uddg query parameter.
func resolveRedirect(rawURL string) string {
	if !strings.Contains(rawURL, "duckduckgo.com/l/") && !strings.HasPrefix(rawURL, "//duckduckgo.com") {
		return rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
		return target
	}
	return rawURL
}

func isExternalResultURL(urlStr string) bool {
	if urlStr == "" ||
		strings.HasPrefix(urlStr, "/") ||
		strings.HasPrefix(urlStr, "#") ||
		strings.HasPrefix(urlStr, "javascript:") {
		return false
	}
	if strings.Contains(urlStr, "duckduckgo.com") {
		return false
	}
	return strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://")
}

// cleanHTML strips tags and decodes entities from a fragment.
func cleanHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
