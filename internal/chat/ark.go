package chat

// ark.go calls the Volcengine ARK image generation REST API (Doubao
// Seedream). The API takes the traveller's photo as a data URL reference
// image and returns a hosted URL for the composite, so no upload step is
// needed.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/photo"
)

// arkBaseURL is the ARK API base URL (cn-beijing region).
const arkBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

// ArkImageClient generates check-in composites with Seedream.
type ArkImageClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ ImageBackend = (*ArkImageClient)(nil)

// NewArkImageClient creates a Seedream client.
func NewArkImageClient(apiKey string) *ArkImageClient {
	return &ArkImageClient{
		apiKey:  apiKey,
		model:   ModelSeedream40,
		baseURL: arkBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // generation takes 10-40s
		},
	}
}

// --- REST API request/response types ---

type arkImageRequest struct {
	Model                     string  `json:"model"`
	Prompt                    string  `json:"prompt"`
	Image                     string  `json:"image"`
	ResponseFormat            string  `json:"response_format"`
	Size                      string  `json:"size"`
	Seed                      int     `json:"seed"`
	GuidanceScale             float64 `json:"guidance_scale"`
	Watermark                 bool    `json:"watermark"`
	SequentialImageGeneration string  `json:"sequential_image_generation"`
}

type arkImageResponse struct {
	Data []struct {
		URL  string `json:"url"`
		Size string `json:"size,omitempty"`
	} `json:"data"`
	Usage *struct {
		GeneratedImages int `json:"generated_images"`
	} `json:"usage,omitempty"`
	Error *arkError `json:"error,omitempty"`
}

type arkError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Name identifies the backend in logs and metrics.
func (c *ArkImageClient) Name() string { return "ark" }

// Generate sends prompt and the reference photo to Seedream and returns the
// URL of the generated image.
func (c *ArkImageClient) Generate(ctx context.Context, prompt string, ref journey.Photo) (string, error) {
	const op = "ark image generation"
	startTime := time.Now()

	reqBody := arkImageRequest{
		Model:                     c.model,
		Prompt:                    prompt,
		Image:                     photo.DataURL(ref),
		ResponseFormat:            "url",
		Size:                      "1k",
		Seed:                      21,
		GuidanceScale:             5.5,
		Watermark:                 true,
		SequentialImageGeneration: "disabled",
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Info().
		Str("model", c.model).
		Int("image_bytes", len(ref.Data)).
		Str("prompt", truncateString(prompt, 80)).
		Msg("Calling ARK image generation")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Transport(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("ARK image generation API returned error")
		return "", apperr.Upstreamf(op, "API returned status %d: %s", resp.StatusCode, truncateString(string(respBody), 200))
	}

	var arkResp arkImageResponse
	if err := json.Unmarshal(respBody, &arkResp); err != nil {
		return "", apperr.Upstream(op, fmt.Errorf("failed to parse response: %w", err))
	}
	if arkResp.Error != nil {
		return "", apperr.Upstreamf(op, "API error: %s (code: %s)", arkResp.Error.Message, arkResp.Error.Code)
	}
	if len(arkResp.Data) == 0 || strings.TrimSpace(arkResp.Data[0].URL) == "" {
		return "", apperr.Upstreamf(op, "no image URL in response: %s", truncateString(string(respBody), 200))
	}

	log.Info().
		Str("model", c.model).
		Dur("duration", time.Since(startTime)).
		Msg("ARK image generation complete")
	return arkResp.Data[0].URL, nil
}
