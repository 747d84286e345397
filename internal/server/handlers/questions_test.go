package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"github.com/fathomlabs/fathom/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeQuestionGen answers structured calls with canned questions.
type fakeQuestionGen struct {
	questions []string
	err       error
}

func (f *fakeQuestionGen) GenerateText(context.Context, string, string) (string, error) {
	return "", errors.New("unexpected text call")
}

func (f *fakeQuestionGen) GenerateGrounded(context.Context, string) (*llm.GroundedResult, error) {
	return nil, errors.New("unexpected grounded call")
}

func (f *fakeQuestionGen) GenerateJSON(_ context.Context, _, _ string, _ *genai.Schema, out any) error {
	if f.err != nil {
		return f.err
	}
	data, err := json.Marshal(map[string]any{"questions": f.questions})
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func TestGenerateQuestions(t *testing.T) {
	h := NewQuestionsHandler(&fakeQuestionGen{
		questions: []string{"Which region?", "What timeframe?"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/questions",
		strings.NewReader(`{"query": "EV adoption"}`))
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp QuestionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"Which region?", "What timeframe?"}, resp.Questions)
}

func TestGenerateQuestionsRequiresQuery(t *testing.T) {
	h := NewQuestionsHandler(&fakeQuestionGen{})

	req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestGenerateQuestionsUpstreamFailure(t *testing.T) {
	h := NewQuestionsHandler(&fakeQuestionGen{err: errors.New("model down")})

	req := httptest.NewRequest(http.MethodPost, "/api/questions",
		strings.NewReader(`{"query": "q"}`))
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	// Generation failures surface as upstream errors, not 500s.
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "UPSTREAM_ERROR", body.Error.Code)
}

func TestGenerateQuestionsEmptyListIsArray(t *testing.T) {
	h := NewQuestionsHandler(&fakeQuestionGen{})

	req := httptest.NewRequest(http.MethodPost, "/api/questions",
		strings.NewReader(`{"query": "q"}`))
	rec := httptest.NewRecorder()

	h.Generate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"questions":[]`)
}
