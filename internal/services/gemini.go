package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ModelRequest is a single generation call. Schema, when set, asks the model
// for JSON matching it. Blob attaches a file before the prompt.
type ModelRequest struct {
	Model  string
	System string
	Prompt string
	Schema *genai.Schema
	Blob   *genai.Blob
}

// ContentModel generates text for a request.
type ContentModel interface {
	Generate(ctx context.Context, req ModelRequest) (string, error)
}

// GeminiClient calls the Gemini API with a bounded number of requests in
// flight.
type GeminiClient struct {
	client   *genai.Client
	rateChan chan struct{} // Token bucket
}

func NewGeminiClient(ctx context.Context, apiKey string, concurrentReqs int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiClient{
		client:   client,
		rateChan: rateChan,
	}, nil
}

func (g *GeminiClient) Close() {
	g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiClient) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiClient) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiClient) Generate(ctx context.Context, req ModelRequest) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	model := g.client.GenerativeModel(req.Model)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = req.Schema
	}

	parts := make([]genai.Part, 0, 2)
	if req.Blob != nil {
		parts = append(parts, *req.Blob)
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d on %s stopped due to %s", i, req.Model, cand.FinishReason)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// stripCodeFence removes a markdown fence some responses wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
