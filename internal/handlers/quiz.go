package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mediquiz-backend/internal/middleware"
	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/services"
)

type QuizHandler struct {
	quizService *services.QuizService
}

func NewQuizHandler(quizService *services.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

func parseID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid "+what+" ID", r))
		return uuid.Nil, false
	}
	return id, true
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.quizService.Generate(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizService.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if quizzes == nil {
		quizzes = []*models.Quiz{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quizzes": quizzes,
	})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "quiz")
	if !ok {
		return
	}

	quiz, err := h.quizService.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "quiz")
	if !ok {
		return
	}

	if err := h.quizService.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "quiz")
	if !ok {
		return
	}

	attempt, err := h.quizService.Start(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, attempt)
}

func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "quiz")
	if !ok {
		return
	}

	attempts, err := h.quizService.ListAttempts(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
	})
}

func (h *QuizHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "attempt")
	if !ok {
		return
	}

	var req models.SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.QuestionID == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"question_id": "Question ID is required"}, r))
		return
	}

	if err := h.quizService.SaveProgress(r.Context(), middleware.GetUserID(r.Context()), id, req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// SubmitAttempt accepts an empty body, in which case saved progress is scored.
func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "attempt")
	if !ok {
		return
	}

	var req models.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	attempt, err := h.quizService.Submit(r.Context(), middleware.GetUserID(r.Context()), id, req.Answers)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, attempt)
}

func (h *QuizHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "attempt")
	if !ok {
		return
	}

	result, err := h.quizService.GetAttempt(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type JobHandler struct {
	quizService *services.QuizService
}

func NewJobHandler(quizService *services.QuizService) *JobHandler {
	return &JobHandler{quizService: quizService}
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "job")
	if !ok {
		return
	}

	job, err := h.quizService.GetJob(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
