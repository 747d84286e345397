package research

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fathomlabs/fathom/pkg/llm"
	"github.com/fathomlabs/fathom/pkg/websearch"
	"google.golang.org/genai"
)

// fakeGen scripts the three generation modes. All fields are optional;
// an unscripted mode fails the call, which doubles as a "this mode must
// not be used" assertion.
type fakeGen struct {
	mu sync.Mutex

	textFn     func(system, prompt string) (string, error)
	jsonFn     func(system, prompt string, out any) error
	groundedFn func(prompt string) (*llm.GroundedResult, error)

	textCalls     int
	jsonCalls     int
	groundedCalls int
	jsonPrompts   []string
}

func (f *fakeGen) GenerateText(_ context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	f.textCalls++
	fn := f.textFn
	f.mu.Unlock()

	if fn == nil {
		return "", errors.New("unexpected text generation call")
	}
	return fn(system, prompt)
}

func (f *fakeGen) GenerateJSON(_ context.Context, system, prompt string, _ *genai.Schema, out any) error {
	f.mu.Lock()
	f.jsonCalls++
	f.jsonPrompts = append(f.jsonPrompts, prompt)
	fn := f.jsonFn
	f.mu.Unlock()

	if fn == nil {
		return errors.New("unexpected structured generation call")
	}
	return fn(system, prompt, out)
}

func (f *fakeGen) GenerateGrounded(_ context.Context, prompt string) (*llm.GroundedResult, error) {
	f.mu.Lock()
	f.groundedCalls++
	fn := f.groundedFn
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("unexpected grounded generation call")
	}
	return fn(prompt)
}

// respondJSON fills a structured-generation output value, the way the
// real client decodes the model's JSON.
func respondJSON(out any, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// fakeSearcher scripts web searches and records the queries issued.
type fakeSearcher struct {
	mu      sync.Mutex
	fn      func(query string, limit int) ([]websearch.Result, error)
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]websearch.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	fn := f.fn
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("unexpected search call")
	}
	return fn(query, limit)
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}
