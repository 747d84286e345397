package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyClassification(t *testing.T) {
	base := errors.New("boom")

	genErr := NewGenerationError("summarize", base)
	searchErr := NewSearchError("solid state batteries", base)
	orchErr := NewOrchestrationError("job-123", base)

	assert.True(t, IsGeneration(genErr))
	assert.False(t, IsGeneration(searchErr))

	assert.True(t, IsSearch(searchErr))
	assert.False(t, IsSearch(genErr))

	assert.True(t, IsOrchestration(orchErr))
	assert.False(t, IsOrchestration(searchErr))

	// Classification survives fmt.Errorf wrapping
	wrapped := fmt.Errorf("deep engine: %w", searchErr)
	assert.True(t, IsSearch(wrapped))
	assert.True(t, errors.Is(wrapped, base))
}

func TestErrorMessages(t *testing.T) {
	base := errors.New("rate limited")

	assert.Contains(t, NewGenerationError("plan_queries", base).Error(), "plan_queries")
	assert.Contains(t, NewSearchError("ev adoption", base).Error(), "ev adoption")
	assert.Contains(t, NewOrchestrationError("job-9", base).Error(), "job-9")
}

func TestWrapInternal(t *testing.T) {
	assert.Nil(t, WrapInternal(nil, nil, "no-op"))

	base := errors.New("disk full")
	err := WrapInternal(nil, base, "cannot persist report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot persist report")
	assert.True(t, errors.Is(err, base))
}

func TestRespondWithError_HTTPError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	req.Header.Set("X-Request-ID", "req-42")

	RespondWithError(rec, req, NewNotFoundError("job not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "job not found", body.Error.Message)
	assert.Equal(t, "req-42", body.Error.RequestID)
}

func TestRespondWithError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs", nil)

	RespondWithError(rec, req, NewValidationError("breadth out of range", map[string]any{
		"field": "breadth",
		"max":   5,
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "breadth", body.Error.Details["field"])
}

func TestRespondWithError_PipelineErrorsMapToBadGateway(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/questions", nil)

	RespondWithError(rec, req, NewGenerationError("followup_questions", errors.New("quota")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "UPSTREAM_ERROR", body.Error.Code)
}

func TestRespondWithError_UnknownErrorHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)

	RespondWithError(rec, req, errors.New("sqlite: database is locked"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "sqlite")
}
