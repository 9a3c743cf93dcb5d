package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/services"
)

// ContentAnalyzer produces the structured overview quizzes are built from.
type ContentAnalyzer interface {
	AnalyzeContent(ctx context.Context, text string) (*models.ContentAnalysis, error)
}

type ContentHandler struct {
	analyzer       ContentAnalyzer
	extractor      *services.FileExtractService
	maxUploadBytes int64
}

func NewContentHandler(analyzer ContentAnalyzer, extractor *services.FileExtractService, maxUploadBytes int64) *ContentHandler {
	return &ContentHandler{
		analyzer:       analyzer,
		extractor:      extractor,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *ContentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	analysis, err := h.analyzer.AnalyzeContent(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// AnalyzeFile extracts text from an uploaded file and analyzes it.
func (h *ContentHandler) AnalyzeFile(w http.ResponseWriter, r *http.Request) {
	tooLarge := &services.FileTooLargeError{LimitBytes: h.maxUploadBytes}
	if r.ContentLength > h.maxUploadBytes+(1<<20) {
		handleServiceError(w, r, tooLarge)
		return
	}

	// Leave room for multipart headers around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			handleServiceError(w, r, tooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read file", r))
		return
	}

	if services.ResolveMimeType(header.Filename, header.Header.Get("Content-Type")) == "" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "File type not supported", r))
		return
	}

	extracted, err := h.extractor.Extract(r.Context(), header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	analysis, err := h.analyzer.AnalyzeContent(r.Context(), extracted.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AnalyzeFileResponse{
		Content:  extracted.Text,
		Analysis: analysis,
		Metadata: extracted.Metadata,
	})
}

func (h *ContentHandler) SupportedFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formats":          services.SupportedFormats,
		"max_upload_bytes": h.maxUploadBytes,
	})
}
