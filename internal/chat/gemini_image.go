package chat

// gemini_image.go provides a REST API client for Gemini 3 Pro Image. Direct
// HTTP calls keep the request shape (TEXT+IMAGE response modalities, inline
// reference image) explicit. The model returns image bytes, which are stored
// through an ImageSaver to obtain a URL.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

// geminiBaseURL is the Gemini REST API base URL.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ImageSaver persists generated image bytes and returns a URL for them.
type ImageSaver interface {
	SaveGenerated(ctx context.Context, data []byte, mimeType string) (string, error)
}

// GeminiImageClient calls the Gemini image model via REST API.
type GeminiImageClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	saver      ImageSaver
}

var _ ImageBackend = (*GeminiImageClient)(nil)

// NewGeminiImageClient creates a client whose results are stored by saver.
func NewGeminiImageClient(apiKey string, saver ImageSaver) *GeminiImageClient {
	return &GeminiImageClient{
		apiKey:  apiKey,
		model:   ModelGemini3ProImage,
		baseURL: geminiBaseURL,
		saver:   saver,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Image generation can take 10-30s
		},
	}
}

// --- REST API request/response types ---

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GeminiImageResult holds the raw output of an image call.
type GeminiImageResult struct {
	ImageData     []byte
	ImageMIMEType string
	// Text is any commentary returned alongside the image.
	Text string
}

// Name identifies the backend in logs and metrics.
func (c *GeminiImageClient) Name() string { return "gemini" }

// Generate composites the reference photo per prompt, stores the result and
// returns its URL.
func (c *GeminiImageClient) Generate(ctx context.Context, prompt string, ref journey.Photo) (string, error) {
	if c.saver == nil {
		return "", apperr.Validation("gemini image generation", errors.New("no image saver configured"))
	}
	result, err := c.EditImage(ctx, ref.Data, ref.MIMEType, prompt)
	if err != nil {
		return "", err
	}
	url, err := c.saver.SaveGenerated(ctx, result.ImageData, result.ImageMIMEType)
	if err != nil {
		return "", fmt.Errorf("store generated image: %w", err)
	}
	return url, nil
}

// EditImage sends a photo with an instruction and returns the edited image.
func (c *GeminiImageClient) EditImage(ctx context.Context, imageData []byte, imageMIMEType, instruction string) (*GeminiImageResult, error) {
	const op = "gemini image generation"
	startTime := time.Now()
	log.Info().
		Str("model", c.model).
		Int("image_bytes", len(imageData)).
		Str("image_mime", imageMIMEType).
		Msg("Sending image to Gemini for editing")

	req := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{
					InlineData: &geminiBlobData{
						MIMEType: imageMIMEType,
						Data:     base64.StdEncoding.EncodeToString(imageData),
					},
				},
				{Text: instruction},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Gemini image API returned error")
		return nil, apperr.Upstreamf(op, "API returned status %d: %s", resp.StatusCode, truncateString(string(respBody), 200))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, apperr.Upstream(op, fmt.Errorf("failed to parse response: %w", err))
	}
	if geminiResp.Error != nil {
		return nil, apperr.Upstreamf(op, "API error: %s (code: %d)", geminiResp.Error.Message, geminiResp.Error.Code)
	}

	result := &GeminiImageResult{}
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil {
				decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, apperr.Upstream(op, fmt.Errorf("failed to decode image data: %w", err))
				}
				result.ImageData = decoded
				result.ImageMIMEType = part.InlineData.MIMEType
			}
			if part.Text != "" {
				result.Text += part.Text
			}
		}
	}

	if result.ImageData == nil {
		return nil, apperr.Upstreamf(op, "no image returned in response (text: %s)", truncateString(result.Text, 200))
	}

	log.Info().
		Int("output_bytes", len(result.ImageData)).
		Str("output_mime", result.ImageMIMEType).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini image editing complete")
	return result, nil
}
