package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

var refPhoto = journey.Photo{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}, MIMEType: "image/JPEG"}

func newTestArkClient(server *httptest.Server) *ArkImageClient {
	return &ArkImageClient{
		apiKey:     "ark-test-key",
		model:      ModelSeedream40,
		baseURL:    server.URL,
		httpClient: server.Client(),
	}
}

func TestArkGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer ark-test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req arkImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "doubao-seedream-4-0-250828" {
			t.Errorf("unexpected model %s", req.Model)
		}
		if !strings.HasPrefix(req.Image, "data:image/jpeg;base64,") {
			t.Errorf("expected lowercase data URL, got %s", req.Image[:30])
		}
		if req.ResponseFormat != "url" || req.Size != "1k" || req.Seed != 21 || req.GuidanceScale != 5.5 || !req.Watermark {
			t.Errorf("unexpected generation parameters: %+v", req)
		}
		if req.SequentialImageGeneration != "disabled" {
			t.Errorf("unexpected sequential_image_generation %s", req.SequentialImageGeneration)
		}
		if req.Prompt != "prompt text" {
			t.Errorf("unexpected prompt %q", req.Prompt)
		}
		fmt.Fprint(w, `{"data":[{"url":"https://ark-cdn.example.com/out.jpeg","size":"1024x1024"}],"usage":{"generated_images":1}}`)
	}))
	defer server.Close()

	url, err := newTestArkClient(server).Generate(context.Background(), "prompt text", refPhoto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://ark-cdn.example.com/out.jpeg" {
		t.Errorf("unexpected url %s", url)
	}
}

func TestArkGenerate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"error status", http.StatusTooManyRequests, `{"error":{"code":"RateLimit","message":"slow down"}}`},
		{"api error", http.StatusOK, `{"error":{"code":"InvalidParameter","message":"bad image"}}`},
		{"empty data", http.StatusOK, `{"data":[]}`},
		{"blank url", http.StatusOK, `{"data":[{"url":""}]}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			_, err := newTestArkClient(server).Generate(context.Background(), "p", refPhoto)
			if !apperr.Is(err, apperr.KindUpstream) {
				t.Errorf("expected upstream error, got %v", err)
			}
		})
	}
}

type memSaver struct {
	data []byte
	mime string
	err  error
}

func (s *memSaver) SaveGenerated(ctx context.Context, data []byte, mimeType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.data, s.mime = data, mimeType
	return "https://bucket.s3.amazonaws.com/checkins/x.png?sig", nil
}

func TestGeminiImageGenerate(t *testing.T) {
	out := []byte("generated-png")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/"+ModelGemini3ProImage+":generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "gemini-key" {
			t.Errorf("missing api key header")
		}
		var req geminiRequest
		json.NewDecoder(r.Body).Decode(&req)
		parts := req.Contents[0].Parts
		if len(parts) != 2 || parts[0].InlineData == nil || parts[1].Text != "prompt text" {
			t.Errorf("unexpected request parts: %+v", parts)
		}
		json.NewEncoder(w).Encode(geminiResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{Text: "here you go"},
				{InlineData: &geminiBlobData{MIMEType: "image/png", Data: base64.StdEncoding.EncodeToString(out)}},
			}},
		}}})
	}))
	defer server.Close()

	saver := &memSaver{}
	client := NewGeminiImageClient("gemini-key", saver)
	client.baseURL = server.URL
	client.httpClient = server.Client()

	url, err := client.Generate(context.Background(), "prompt text", refPhoto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://bucket.s3.amazonaws.com/checkins/x.png?sig" {
		t.Errorf("unexpected url %s", url)
	}
	if string(saver.data) != "generated-png" || saver.mime != "image/png" {
		t.Errorf("unexpected saved image %q (%s)", saver.data, saver.mime)
	}
}

func TestGeminiImageGenerate_NoImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"I cannot edit this photo."}]}}]}`)
	}))
	defer server.Close()

	saver := &memSaver{}
	client := NewGeminiImageClient("k", saver)
	client.baseURL = server.URL
	client.httpClient = server.Client()

	if _, err := client.Generate(context.Background(), "p", refPhoto); !apperr.Is(err, apperr.KindUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if saver.data != nil {
		t.Error("nothing should be saved")
	}
}

func TestGeminiImageGenerate_SaveFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"%s"}}]}}]}`,
			base64.StdEncoding.EncodeToString([]byte("img")))
	}))
	defer server.Close()

	saveErr := errors.New("bucket missing")
	client := NewGeminiImageClient("k", &memSaver{err: saveErr})
	client.baseURL = server.URL
	client.httpClient = server.Client()

	if _, err := client.Generate(context.Background(), "p", refPhoto); !errors.Is(err, saveErr) {
		t.Errorf("expected save error, got %v", err)
	}
}
