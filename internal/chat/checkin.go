package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/assets"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/metrics"
)

// ImageBackend turns a prompt and a reference photo into a hosted image URL.
type ImageBackend interface {
	Name() string
	Generate(ctx context.Context, prompt string, ref journey.Photo) (string, error)
}

// GuideSource produces an optional photo style guide for a POI.
type GuideSource interface {
	PhotoGuide(ctx context.Context, poiName string) (string, error)
}

// MockBackend returns a canned image. It stands in for a real backend when
// no image-generation key is configured.
type MockBackend struct {
	URL string
}

// Name identifies the backend in logs and metrics.
func (m MockBackend) Name() string { return "mock" }

// Generate returns the canned URL.
func (m MockBackend) Generate(ctx context.Context, prompt string, ref journey.Photo) (string, error) {
	if m.URL == "" {
		return journey.SampleCheckIn, nil
	}
	return m.URL, nil
}

// CheckInService composes the photo-guide step and an image backend into a
// journey.PhotoGenerator.
type CheckInService struct {
	guides  GuideSource
	backend ImageBackend
}

var _ journey.PhotoGenerator = (*CheckInService)(nil)

// NewCheckInService creates a CheckInService. guides may be nil.
func NewCheckInService(guides GuideSource, backend ImageBackend) *CheckInService {
	return &CheckInService{guides: guides, backend: backend}
}

// Backend returns the name of the configured image backend.
func (s *CheckInService) Backend() string {
	return s.backend.Name()
}

// GenerateCheckInPhoto generates the traveller's check-in composite. The
// request's StyleGuide is used when set; otherwise a guide is requested from
// the guide source, and its failure only drops the guide.
func (s *CheckInService) GenerateCheckInPhoto(ctx context.Context, req journey.CheckInRequest) (string, error) {
	const op = "generate check-in photo"
	if strings.TrimSpace(req.POIName) == "" {
		return "", apperr.Validation(op, errors.New("empty POI name"))
	}
	if len(req.Photo.Data) == 0 {
		return "", apperr.Validation(op, journey.ErrNoPhoto)
	}

	start := time.Now()
	rec := metrics.New(metrics.Namespace).
		Dimension("Operation", "checkIn").
		Dimension("Backend", s.backend.Name())
	defer rec.Flush()

	guide := req.StyleGuide
	if guide == "" && s.guides != nil {
		g, err := s.guides.PhotoGuide(ctx, req.POIName)
		switch {
		case err == nil:
			guide = g
		case errors.Is(err, ErrNoModel):
		default:
			log.Warn().Err(err).Str("poi", req.POIName).Msg("Failed to generate photo guide, proceeding without it")
		}
	}

	prompt := assets.RenderCheckInPrompt(req.POIName, guide)
	url, err := s.backend.Generate(ctx, prompt, req.Photo)
	rec.Since("GenerationLatencyMs", start)
	if err != nil {
		rec.Count("GenerationFailure")
		return "", err
	}
	rec.Count("GenerationSuccess")
	log.Info().
		Str("poi", req.POIName).
		Str("backend", s.backend.Name()).
		Bool("guided", guide != "").
		Dur("duration", time.Since(start)).
		Msg("Check-in photo generated")
	return url, nil
}
