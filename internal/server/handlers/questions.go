package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"github.com/fathomlabs/fathom/pkg/research"
)

// QuestionsHandler serves clarifying-question generation: the round
// that runs before a job is created.
type QuestionsHandler struct {
	gen research.Generator
}

// NewQuestionsHandler creates the questions handler.
func NewQuestionsHandler(gen research.Generator) *QuestionsHandler {
	return &QuestionsHandler{gen: gen}
}

// QuestionsRequest is the POST /api/questions body.
type QuestionsRequest struct {
	Query string `json:"query"`
}

// QuestionsResponse lists the generated clarifying questions.
type QuestionsResponse struct {
	Questions []string `json:"questions"`
}

// Generate handles POST /api/questions.
func (h *QuestionsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewValidationError("invalid request body", nil))
		return
	}
	if req.Query == "" {
		respondWithError(w, r, apperrors.NewValidationError("query is required", nil))
		return
	}

	questions, err := research.ClarifyingQuestions(r.Context(), h.gen, req.Query)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if questions == nil {
		questions = []string{}
	}

	writeJSON(w, &QuestionsResponse{Questions: questions}, http.StatusOK)
}
