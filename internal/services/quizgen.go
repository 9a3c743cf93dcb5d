package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
)

// ProgressFunc receives generation progress as a stage, a percentage and a
// human readable message.
type ProgressFunc func(stage string, progress int, message string)

type GenerationService struct {
	model           ContentModel
	analysisModel   string
	generationModel string
	batchSize       int
}

func NewGenerationService(model ContentModel, analysisModel, generationModel string, batchSize int) *GenerationService {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &GenerationService{
		model:           model,
		analysisModel:   analysisModel,
		generationModel: generationModel,
		batchSize:       batchSize,
	}
}

const analysisSystemPrompt = `You are a medical education expert. Analyze the provided medical content and extract:
1. A comprehensive summary of the content
2. Key medical concepts and topics covered
3. Important medical terms and terminology
4. Main subject areas

Respond with JSON in the specified format.`

// AnalyzeContent asks the analysis model for a structured overview of text.
func (s *GenerationService) AnalyzeContent(ctx context.Context, text string) (*models.ContentAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Fields: map[string]string{"text": "Content is required"}}
	}

	raw, err := s.model.Generate(ctx, ModelRequest{
		Model:  s.analysisModel,
		System: analysisSystemPrompt,
		Prompt: buildAnalysisPrompt(text),
		Schema: analysisResponseSchema,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "analyze content", Err: err}
	}

	body := []byte(stripCodeFence(raw))
	if err := validateDocument("content-analysis", body); err != nil {
		return nil, &UpstreamError{Op: "analyze content", Err: fmt.Errorf("unexpected analysis shape: %w", err)}
	}

	var analysis models.ContentAnalysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, &UpstreamError{Op: "analyze content", Err: err}
	}
	return &analysis, nil
}

// GenerateQuestions builds cfg.QuestionCount questions in batches. Each batch
// is normalized with its offset so ids stay unique across the quiz.
func (s *GenerationService) GenerateQuestions(ctx context.Context, content string, analysis *models.ContentAnalysis, cfg models.QuizConfig, onProgress ProgressFunc) ([]quiz.Question, error) {
	if cfg.QuestionCount <= 0 {
		return []quiz.Question{}, nil
	}
	if analysis == nil {
		analysis = &models.ContentAnalysis{}
	}

	batchSize := min(s.batchSize, cfg.QuestionCount)
	totalBatches := (cfg.QuestionCount + batchSize - 1) / batchSize
	all := make([]quiz.Question, 0, cfg.QuestionCount)

	for batch := 0; batch < totalBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := batch * batchSize
		end := min(start+batchSize, cfg.QuestionCount)

		if onProgress != nil {
			progress := 35 + int(math.Round(float64(batch)/float64(totalBatches)*40))
			onProgress(models.StageGeneration, progress,
				fmt.Sprintf("Generating questions %d-%d of %d...", start+1, end, cfg.QuestionCount))
		}

		batchCfg := cfg
		batchCfg.QuestionCount = end - start
		questions, err := s.generateBatch(ctx, content, analysis, batchCfg, start)
		if err != nil {
			return nil, err
		}
		all = append(all, questions...)
	}

	return all, nil
}

func (s *GenerationService) generateBatch(ctx context.Context, content string, analysis *models.ContentAnalysis, cfg models.QuizConfig, startIndex int) ([]quiz.Question, error) {
	raw, err := s.model.Generate(ctx, ModelRequest{
		Model:  s.generationModel,
		System: generationSystemPrompt,
		Prompt: buildQuestionPrompt(content, analysis, cfg),
		Schema: questionBatchResponseSchema,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "generate questions", Err: err}
	}

	body := []byte(stripCodeFence(raw))
	if err := validateDocument("question-batch", body); err != nil {
		return nil, &UpstreamError{Op: "generate questions", Err: fmt.Errorf("unexpected batch shape: %w", err)}
	}
	questions, err := quiz.NormalizeJSON(body, startIndex)
	if err != nil {
		return nil, &UpstreamError{Op: "generate questions", Err: err}
	}
	return questions, nil
}

const transcriptionPrompt = `Extract and transcribe all text content from this medical document.
Focus on:
- Medical terminology and concepts
- Clinical information and procedures
- Diagnostic criteria and guidelines
- Treatment protocols and medications
- Anatomical and physiological details

Provide the complete text content in a structured, readable format.`

// TranscribeFile asks the generation model to read text out of an image or
// scanned document.
func (s *GenerationService) TranscribeFile(ctx context.Context, data []byte, mimeType string) (string, error) {
	text, err := s.model.Generate(ctx, ModelRequest{
		Model:  s.generationModel,
		Prompt: transcriptionPrompt,
		Blob:   &genai.Blob{MIMEType: mimeType, Data: data},
	})
	if err != nil {
		return "", &UpstreamError{Op: "transcribe file", Err: err}
	}
	return strings.TrimSpace(text), nil
}

func buildAnalysisPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Analyze this medical content and provide a structured analysis:\n\n")
	b.WriteString(text)
	b.WriteString(`

Focus on identifying:
- Main medical concepts and pathways
- Clinical terminology and definitions
- Disease processes and mechanisms
- Treatment approaches and protocols
- Diagnostic criteria and procedures`)
	return b.String()
}

const generationSystemPrompt = `You are an expert medical educator and quiz generator. Create medical quiz questions based on the provided content and analysis.

Use these question types and field layouts (every question also has id, type, question, explanation and difficulty of easy, medium or hard):
- multiple_choice: options (4 strings), correctAnswer (index)
- differential_diagnosis: options (10 strings), correctAnswers (3 indices)
- matching: leftItems, rightItems, correctMatches [{left, right}] (indices)
- lab_interpretation: labValues [{test, value, reference}], options, correctAnswer (index)
- flowchart: steps [{id, content, isBlank, correctAnswer}], correctAnswer only on blank steps
- word_scramble: hint, letters, correctAnswer
- fill_in_blank: question text with blanks, blanks [{position, correctAnswer, alternatives}]
- true_false: correctAnswer (boolean)
- short_answer: correctAnswers, keywords
- osce: scenario, tasks, markingScheme [{criteria, points, keywords}]

Each question must include a realistic clinical context, an appropriate difficulty, a detailed explanation and an evidence-based correct answer.

Return a JSON array of question objects.`

func buildQuestionPrompt(content string, analysis *models.ContentAnalysis, cfg models.QuizConfig) string {
	focus := "all topics"
	if len(cfg.FocusAreas) > 0 {
		focus = strings.Join(cfg.FocusAreas, ", ")
	}
	difficulty := cfg.Difficulty
	if difficulty == "" {
		difficulty = "mixed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on this medical content and analysis, generate %d medical quiz questions.\n\n", cfg.QuestionCount)
	b.WriteString("CONTENT:\n")
	b.WriteString(content)
	b.WriteString("\n\nANALYSIS:\n")
	fmt.Fprintf(&b, "Summary: %s\n", analysis.Summary)
	fmt.Fprintf(&b, "Key Concepts: %s\n", strings.Join(analysis.KeyConcepts, ", "))
	fmt.Fprintf(&b, "Medical Terms: %s\n", strings.Join(analysis.MedicalTerms, ", "))
	fmt.Fprintf(&b, "Topics: %s\n\n", strings.Join(analysis.Topics, ", "))
	b.WriteString("REQUIREMENTS:\n")
	fmt.Fprintf(&b, "- Question types to include: %s\n", strings.Join(cfg.QuestionTypes, ", "))
	fmt.Fprintf(&b, "- Focus areas: %s\n", focus)
	fmt.Fprintf(&b, "- Difficulty level: %s\n", difficulty)
	fmt.Fprintf(&b, "- Total questions: %d\n\n", cfg.QuestionCount)
	b.WriteString(`For differential diagnosis questions, provide 10 realistic options with 3 correct answers.
For matching, ensure accurate drug-indication pairings.
For lab interpretation, use realistic values and reference ranges.
For OSCE questions, include detailed marking schemes with keywords.`)
	return b.String()
}
