package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
)

// fakeModel answers each call with the next scripted response.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []ModelRequest
}

func (f *fakeModel) Generate(_ context.Context, req ModelRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

const analysisJSON = `{"summary":"Sepsis overview","keyConcepts":["qSOFA"],"medicalTerms":["lactate"],"topics":["critical care"]}`

func newTestGeneration(model ContentModel) *GenerationService {
	return NewGenerationService(model, "analysis-model", "generation-model", 5)
}

func TestAnalyzeContent(t *testing.T) {
	model := &fakeModel{responses: []string{"```json\n" + analysisJSON + "\n```"}}
	svc := newTestGeneration(model)

	analysis, err := svc.AnalyzeContent(context.Background(), "Sepsis is a dysregulated host response.")
	require.NoError(t, err)
	assert.Equal(t, "Sepsis overview", analysis.Summary)
	assert.Equal(t, []string{"qSOFA"}, analysis.KeyConcepts)
	assert.Equal(t, []string{"critical care"}, analysis.Topics)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, "analysis-model", req.Model)
	assert.NotNil(t, req.Schema)
	assert.Contains(t, req.Prompt, "dysregulated host response")
	assert.NotEmpty(t, req.System)
}

func TestAnalyzeContentRequiresText(t *testing.T) {
	model := &fakeModel{}
	_, err := newTestGeneration(model).AnalyzeContent(context.Background(), "   ")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "text")
	assert.Empty(t, model.requests)
}

func TestAnalyzeContentRejectsWrongShape(t *testing.T) {
	model := &fakeModel{responses: []string{`{"summary":"missing lists"}`}}
	_, err := newTestGeneration(model).AnalyzeContent(context.Background(), "text")

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "analyze content", uerr.Op)
}

func TestAnalyzeContentModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := newTestGeneration(&fakeModel{err: boom}).AnalyzeContent(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
}

type progressEvent struct {
	stage    string
	progress int
	message  string
}

func TestGenerateQuestionsBatches(t *testing.T) {
	batch := `[{"type":"true_false","question":"Q","correctAnswer":true},{"type":"osce","question":"O"},{"question":"M"},{"type":"matching","question":"X"},{"type":"short_answer","question":"S"}]`
	model := &fakeModel{responses: []string{batch, batch, `[{"type":"flowchart","question":"F"},{"type":"word_scramble","question":"W"}]`}}
	svc := newTestGeneration(model)

	var events []progressEvent
	cfg := models.QuizConfig{QuestionCount: 12, QuestionTypes: []string{"true_false", "osce"}, Difficulty: "hard"}
	questions, err := svc.GenerateQuestions(context.Background(), "content", &models.ContentAnalysis{Summary: "s"}, cfg,
		func(stage string, progress int, message string) {
			events = append(events, progressEvent{stage, progress, message})
		})
	require.NoError(t, err)
	require.Len(t, questions, 12)

	require.Len(t, model.requests, 3)
	assert.Contains(t, model.requests[0].Prompt, "generate 5 medical quiz questions")
	assert.Contains(t, model.requests[2].Prompt, "generate 2 medical quiz questions")
	assert.Contains(t, model.requests[0].Prompt, "Difficulty level: hard")
	assert.Contains(t, model.requests[0].Prompt, "Question types to include: true_false, osce")
	assert.Equal(t, "generation-model", model.requests[0].Model)

	assert.Equal(t, []progressEvent{
		{models.StageGeneration, 35, "Generating questions 1-5 of 12..."},
		{models.StageGeneration, 48, "Generating questions 6-10 of 12..."},
		{models.StageGeneration, 62, "Generating questions 11-12 of 12..."},
	}, events)

	ids := make(map[string]bool)
	for i, q := range questions {
		id := q.Common().ID
		assert.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
		assert.True(t, strings.HasPrefix(id, "q_"))
		assert.True(t, strings.HasSuffix(id, "_"+strconv.Itoa(i)), "id %s at position %d", id, i)
	}
	assert.IsType(t, &quiz.MultipleChoiceQuestion{}, questions[2])
	assert.IsType(t, &quiz.WordScrambleQuestion{}, questions[11])
}

func TestGenerateQuestionsStopsOnBatchError(t *testing.T) {
	model := &fakeModel{responses: []string{`{"not":"an array"}`}}
	_, err := newTestGeneration(model).GenerateQuestions(context.Background(), "c", nil,
		models.QuizConfig{QuestionCount: 3, QuestionTypes: []string{"osce"}}, nil)

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "generate questions", uerr.Op)
}

func TestGenerateQuestionsZeroCount(t *testing.T) {
	model := &fakeModel{}
	questions, err := newTestGeneration(model).GenerateQuestions(context.Background(), "c", nil, models.QuizConfig{}, nil)
	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.Empty(t, model.requests)
}

func TestGenerateQuestionsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGeneration(&fakeModel{responses: []string{"[]"}}).GenerateQuestions(ctx, "c", nil,
		models.QuizConfig{QuestionCount: 2, QuestionTypes: []string{"osce"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranscribeFileAttachesBlob(t *testing.T) {
	model := &fakeModel{responses: []string{"  Krebs cycle notes \n"}}
	text, err := newTestGeneration(model).TranscribeFile(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Krebs cycle notes", text)

	require.Len(t, model.requests, 1)
	require.NotNil(t, model.requests[0].Blob)
	assert.Equal(t, "image/png", model.requests[0].Blob.MIMEType)
	assert.Nil(t, model.requests[0].Schema)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[1]`, stripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFence("```\n[1]```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
}
