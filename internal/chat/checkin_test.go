package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

type recordingBackend struct {
	url     string
	err     error
	prompts []string
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Generate(ctx context.Context, prompt string, ref journey.Photo) (string, error) {
	b.prompts = append(b.prompts, prompt)
	return b.url, b.err
}

type stubGuides struct {
	guide string
	err   error
	calls int
}

func (g *stubGuides) PhotoGuide(ctx context.Context, poiName string) (string, error) {
	g.calls++
	return g.guide, g.err
}

func checkInReq() journey.CheckInRequest {
	return journey.CheckInRequest{POIName: "象鼻山", Photo: refPhoto}
}

func TestCheckIn_UsesGuide(t *testing.T) {
	backend := &recordingBackend{url: "https://gen.example.com/1.jpg"}
	guides := &stubGuides{guide: "黄昏逆光，江面倒影"}
	svc := NewCheckInService(guides, backend)

	url, err := svc.GenerateCheckInPhoto(context.Background(), checkInReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://gen.example.com/1.jpg" {
		t.Errorf("unexpected url %s", url)
	}
	if !strings.Contains(backend.prompts[0], "请参考此摄影指导拍摄：黄昏逆光，江面倒影") {
		t.Errorf("expected guided prompt, got %s", backend.prompts[0])
	}
}

func TestCheckIn_GuideFailureTolerated(t *testing.T) {
	backend := &recordingBackend{url: "https://gen.example.com/1.jpg"}
	svc := NewCheckInService(&stubGuides{err: errors.New("quota")}, backend)

	if _, err := svc.GenerateCheckInPhoto(context.Background(), checkInReq()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(backend.prompts[0], "背景是象鼻山") {
		t.Errorf("expected default prompt, got %s", backend.prompts[0])
	}
}

func TestCheckIn_ExplicitStyleGuideSkipsGuideStep(t *testing.T) {
	backend := &recordingBackend{url: "u"}
	guides := &stubGuides{guide: "unused"}
	req := checkInReq()
	req.StyleGuide = "雨后青山"

	NewCheckInService(guides, backend).GenerateCheckInPhoto(context.Background(), req)
	if guides.calls != 0 {
		t.Errorf("expected guide step skipped, got %d calls", guides.calls)
	}
	if !strings.Contains(backend.prompts[0], "雨后青山") {
		t.Errorf("expected explicit guide in prompt, got %s", backend.prompts[0])
	}
}

func TestCheckIn_BackendFailure(t *testing.T) {
	backendErr := apperr.Upstreamf("ark image generation", "status 500")
	svc := NewCheckInService(nil, &recordingBackend{err: backendErr})
	if _, err := svc.GenerateCheckInPhoto(context.Background(), checkInReq()); !errors.Is(err, backendErr) {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestCheckIn_Validation(t *testing.T) {
	svc := NewCheckInService(nil, &recordingBackend{url: "u"})
	if _, err := svc.GenerateCheckInPhoto(context.Background(), journey.CheckInRequest{Photo: refPhoto}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for blank POI, got %v", err)
	}
	if _, err := svc.GenerateCheckInPhoto(context.Background(), journey.CheckInRequest{POIName: "x"}); !errors.Is(err, journey.ErrNoPhoto) {
		t.Errorf("expected ErrNoPhoto, got %v", err)
	}
}

func TestMockBackend(t *testing.T) {
	svc := NewCheckInService(nil, MockBackend{})
	url, err := svc.GenerateCheckInPhoto(context.Background(), checkInReq())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != journey.SampleCheckIn {
		t.Errorf("expected sample check-in URL, got %s", url)
	}
	if svc.Backend() != "mock" {
		t.Errorf("expected mock backend name, got %s", svc.Backend())
	}
}
