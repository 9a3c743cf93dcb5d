package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
)

const MaxQuestionCount = 50

var difficultyChoices = []string{"mixed", "easy", "medium", "hard"}

// analysisResponseSchema is sent to the analysis model.
var analysisResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":      {Type: genai.TypeString},
		"keyConcepts":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"medicalTerms": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"topics":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"summary", "keyConcepts", "medicalTerms", "topics"},
}

// questionBatchResponseSchema is sent to the generation model. Variant fields
// are left open; the normalizer fills whatever is missing.
var questionBatchResponseSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":          {Type: genai.TypeString},
			"type":        {Type: genai.TypeString},
			"question":    {Type: genai.TypeString},
			"explanation": {Type: genai.TypeString},
			"difficulty":  {Type: genai.TypeString},
		},
		Required: []string{"id", "type", "question"},
	},
}

var stringArray = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

// Definitions checked locally with jsonschema, keyed by name.
var schemaDefinitions = map[string]map[string]any{
	"content-analysis": {
		"type": "object",
		"properties": map[string]any{
			"summary":      map[string]any{"type": "string"},
			"keyConcepts":  stringArray,
			"medicalTerms": stringArray,
			"topics":       stringArray,
		},
		"required": []string{"summary", "keyConcepts", "medicalTerms", "topics"},
	},
	"question-batch": {
		"type":  "array",
		"items": map[string]any{"type": "object"},
	},
	"quiz-config": {
		"type": "object",
		"properties": map[string]any{
			"questionCount": map[string]any{"type": "integer", "minimum": 1, "maximum": MaxQuestionCount},
			"questionTypes": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"enum": quiz.TypeStrings()},
			},
			"difficulty": map[string]any{"enum": difficultyChoices},
			"focusAreas": stringArray,
		},
		"required": []string{"questionCount", "questionTypes", "difficulty"},
	},
	// Absent fields arrive as null. An empty email or avatar clears it.
	"profile-update": {
		"type": "object",
		"properties": map[string]any{
			"full_name": map[string]any{"type": []string{"string", "null"}, "maxLength": 100},
			"email": map[string]any{
				"type":      []string{"string", "null"},
				"maxLength": 254,
				"anyOf":     []any{map[string]any{"maxLength": 0}, map[string]any{"format": "email"}},
			},
			"bio": map[string]any{"type": []string{"string", "null"}, "maxLength": 500},
			"avatar_url": map[string]any{
				"type":      []string{"string", "null"},
				"maxLength": 2048,
				"anyOf":     []any{map[string]any{"maxLength": 0}, map[string]any{"format": "uri"}},
			},
		},
	},
}

var configFieldMessages = map[string]string{
	"questionCount": fmt.Sprintf("Question count must be between 1 and %d", MaxQuestionCount),
	"questionTypes": "Choose at least one supported question type",
	"difficulty":    "Difficulty must be one of mixed, easy, medium or hard",
	"focusAreas":    "Focus areas must be a list of strings",
}

var profileFieldMessages = map[string]string{
	"full_name":  "Full name must be at most 100 characters",
	"email":      "Enter a valid email address",
	"bio":        "Bio must be at most 500 characters",
	"avatar_url": "Avatar must be an absolute URL",
}

// schemaCache caches compiled schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

func compiledSchema(name string) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}
	def, ok := schemaDefinitions[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	// The compiler wants plain decoded JSON, not Go slices of strings.
	defBytes, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	schemaCache.Store(name, compiled)
	return compiled, nil
}

// validateDocument checks raw JSON against a named schema.
func validateDocument(name string, raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	compiled, err := compiledSchema(name)
	if err != nil {
		return err
	}
	return compiled.Validate(parsed)
}

// ValidateQuizConfig returns a *ValidationError naming each offending field.
func ValidateQuizConfig(cfg models.QuizConfig) error {
	return validateRequest("quiz-config", cfg, configFieldMessages, "config")
}

// ValidateProfileUpdate checks the lengths and formats of profile edits.
func ValidateProfileUpdate(req models.UpdateProfileRequest) error {
	return validateRequest("profile-update", req, profileFieldMessages, "profile")
}

func validateRequest(name string, v any, messages map[string]string, fallback string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = validateDocument(name, raw)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	fields := make(map[string]string)
	collectFieldErrors(verr, messages, fallback, fields)
	if len(fields) == 0 {
		fields[fallback] = "Invalid request"
	}
	return &ValidationError{Fields: fields}
}

func collectFieldErrors(verr *jsonschema.ValidationError, messages map[string]string, fallback string, fields map[string]string) {
	if len(verr.Causes) == 0 {
		field := fallback
		if len(verr.InstanceLocation) > 0 {
			field = verr.InstanceLocation[0]
		}
		if msg, ok := messages[field]; ok {
			fields[field] = msg
		} else {
			fields[field] = "Invalid value"
		}
		return
	}
	for _, cause := range verr.Causes {
		collectFieldErrors(cause, messages, fallback, fields)
	}
}
