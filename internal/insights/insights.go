package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model produces no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Summarizer writes a short narrative for a snapshot.
type Summarizer interface {
	Summarize(ctx context.Context, s *snapshot.Snapshot) (string, error)
}

// Generator is the part of the genai client the summarizer uses.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSummarizer asks a Gemini model for the narrative.
type GeminiSummarizer struct {
	models Generator
	model  string
}

// NewGeminiSummarizer creates a summarizer backed by the Gemini API. The API
// key and backend come from the environment (GOOGLE_API_KEY or Vertex AI
// settings).
func NewGeminiSummarizer(ctx context.Context, model string) (*GeminiSummarizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiSummarizer: create genai client: %w", err)
	}
	return NewSummarizer(client.Models, model), nil
}

// NewSummarizer wraps an existing generator.
func NewSummarizer(models Generator, model string) *GeminiSummarizer {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiSummarizer{models: models, model: model}
}

const instructions = "You are a personal finance assistant. You receive a JSON snapshot of a " +
	"household finance dashboard: a ledger (income, expenditure, checking balance, " +
	"investment flows), per-tag breakdowns, a monthly series and brokerage positions.\n\n" +
	"Write at most five short Markdown bullet points covering:\n" +
	"- savings over the most recent months compared with earlier ones\n" +
	"- the largest expenditure tags\n" +
	"- the portfolio's unrealized and realized result\n\n" +
	"Use the currency amounts as given. Do not invent numbers that are not in the snapshot.\n" +
	"Do NOT wrap the response in code fences.\n"

// Prompt renders the request text for s.
func Prompt(s *snapshot.Snapshot) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("Prompt: %w", err)
	}
	return instructions + "\nSnapshot:\n" + string(b), nil
}

// Summarize implements Summarizer.
func (g *GeminiSummarizer) Summarize(ctx context.Context, s *snapshot.Snapshot) (string, error) {
	prompt, err := Prompt(s)
	if err != nil {
		return "", fmt.Errorf("Summarize: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Summarize: generate content: %w", err)
	}

	text := cleanModelText(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Summarize: %w", ErrEmptyResponse)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("snapshot_id", s.ID).
		Str("model", g.model).
		Int("chars", len(text)).
		Msg("Generated snapshot summary")
	return text, nil
}

// cleanModelText strips Markdown fences the model may add anyway.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return ""
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
