// Package chat holds TripStory's generative-AI collaborators: the route
// planner, the photo guide and the travel-video keyword step (all text, via
// Gemini), and the check-in photo generator with its ARK, Gemini and mock
// image backends.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/tripstory/internal/apperr"
)

// ErrEmptyResponse is returned when the model answered with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// TextModel generates text from a prompt and an optional system instruction.
type TextModel interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, apperr.Validation("create gemini client", errors.New("API key is required"))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiText is a TextModel backed by the genai SDK.
type GeminiText struct {
	client *genai.Client
	model  string
}

var _ TextModel = (*GeminiText)(nil)

// NewGeminiText wraps client. An empty model selects GetModelName().
func NewGeminiText(client *genai.Client, model string) *GeminiText {
	if model == "" {
		model = GetModelName()
	}
	return &GeminiText{client: client, model: model}
}

// GenerateText sends a single-turn text prompt.
func (g *GeminiText) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	const op = "gemini generate"
	start := time.Now()
	log.Debug().Str("model", g.model).Int("prompt_length", len(prompt)).Msg("Sending text prompt to Gemini")

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		log.Error().Err(err).Str("model", g.model).Msg("Failed to generate content")
		return "", apperr.Upstream(op, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", apperr.Upstream(op, ErrEmptyResponse)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", apperr.Upstream(op, ErrEmptyResponse)
	}
	log.Debug().
		Str("model", g.model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Received response from Gemini")
	return text, nil
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
