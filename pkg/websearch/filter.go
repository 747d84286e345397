package websearch

import (
	"errors"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SourceFilter evaluates glob patterns against result URLs.
//
// A filter is configured with allow and block patterns matched against
// "host/path" of each URL (scheme stripped, host lowercased):
//   - Allow patterns: URL must match at least one. Empty means allow all.
//   - Block patterns: URL must not match any.
//
// The filter is safe for concurrent use after creation.
type SourceFilter struct {
	allows []string
	blocks []string
}

// FilterConfig configures a SourceFilter.
type FilterConfig struct {
	// Allow are glob patterns result URLs must match (at least one).
	// Optional: if empty, every URL passes the allow stage.
	Allow []string

	// Block are glob patterns result URLs must not match (any).
	Block []string
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// NewSourceFilter creates a filter from the given configuration.
func NewSourceFilter(cfg FilterConfig) (*SourceFilter, error) {
	for _, raw := range append(append([]string{}, cfg.Allow...), cfg.Block...) {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}
	return &SourceFilter{
		allows: append([]string{}, cfg.Allow...),
		blocks: append([]string{}, cfg.Block...),
	}, nil
}

// Permit reports whether the URL passes the allow/block patterns.
// Unparseable URLs are rejected.
func (f *SourceFilter) Permit(rawURL string) bool {
	key := urlMatchKey(rawURL)
	if key == "" {
		return false
	}

	if len(f.allows) > 0 {
		matched := false
		for _, p := range f.allows {
			if matchPattern(p, key) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, p := range f.blocks {
		if matchPattern(p, key) {
			return false
		}
	}

	return true
}

// urlMatchKey converts a URL into its "host/path" match form.
func urlMatchKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	key := strings.ToLower(parsed.Host) + parsed.Path
	return strings.TrimSuffix(key, "/")
}

// matchPattern matches a key against a doublestar pattern.
func matchPattern(pattern, key string) bool {
	matched, err := doublestar.Match(pattern, key)
	if err != nil {
		// Pattern was validated at construction time, so this shouldn't happen
		return false
	}
	return matched
}
