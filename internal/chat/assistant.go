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
	"github.com/fpang/tripstory/internal/jsonutil"
	"github.com/fpang/tripstory/internal/metrics"
)

// ErrNoModel is returned by text steps when no model is configured.
var ErrNoModel = errors.New("text model not configured")

// Assistant runs the text-only LLM steps: route planning, photo guides and
// travel-video keywords. A nil model is allowed; planning then always falls
// back to the default route and the other steps return ErrNoModel.
type Assistant struct {
	model TextModel
}

// NewAssistant creates an Assistant. model may be nil.
func NewAssistant(model TextModel) *Assistant {
	return &Assistant{model: model}
}

// PlanRoute asks the model for a route from origin to city. When no model is
// configured, the call fails, or the answer is unusable, the default route
// for city is returned instead and fallback is true.
func (a *Assistant) PlanRoute(ctx context.Context, origin, city string) (plan *journey.PlannedRoute, fallback bool) {
	start := time.Now()
	rec := metrics.New(metrics.Namespace).Dimension("Operation", "planRoute")
	defer func() {
		if fallback {
			rec.Count("PlanFallback")
		}
		rec.Since("PlanLatencyMs", start).Flush()
	}()

	log.Info().Str("origin", origin).Str("city", city).Msg("Generating route plan")

	if a.model == nil {
		log.Warn().Msg("No text model configured, using default route")
		return journey.DefaultPlan(city), true
	}

	raw, err := a.model.GenerateText(ctx, assets.PlannerSystemPrompt, assets.RenderPlanRoutePrompt(origin, city))
	if err != nil {
		log.Error().Err(err).Msg("Route planning failed, using default route")
		return journey.DefaultPlan(city), true
	}

	parsed, err := jsonutil.ParseJSON[journey.PlannedRoute](raw)
	if err != nil {
		log.Error().Err(err).Str("response", truncateString(raw, 200)).Msg("Unparseable route plan, using default route")
		return journey.DefaultPlan(city), true
	}

	plan = normalizePlan(&parsed, origin, city)
	if len(plan.Waypoints) == 0 {
		log.Warn().Msg("Route plan has no usable waypoints, using default route")
		return journey.DefaultPlan(city), true
	}

	log.Info().
		Str("start", plan.Start).
		Str("end", plan.End).
		Int("waypoints", len(plan.Waypoints)).
		Dur("duration", time.Since(start)).
		Msg("Route plan generated")
	return plan, false
}

// normalizePlan fills missing labels and drops unnamed stops.
func normalizePlan(p *journey.PlannedRoute, origin, city string) *journey.PlannedRoute {
	out := &journey.PlannedRoute{
		Start: strings.TrimSpace(p.Start),
		End:   strings.TrimSpace(p.End),
	}
	if out.Start == "" {
		out.Start = origin
	}
	if out.End == "" {
		out.End = city
	}
	for _, wp := range p.Waypoints {
		name := strings.TrimSpace(wp.Name)
		if name == "" {
			continue
		}
		stopCity := strings.TrimSpace(wp.City)
		if stopCity == "" {
			stopCity = city
		}
		out.Waypoints = append(out.Waypoints, journey.PlannedStop{Name: name, City: stopCity})
	}
	return out
}

// PhotoGuide asks the model for an image-generation style guide for poiName.
func (a *Assistant) PhotoGuide(ctx context.Context, poiName string) (string, error) {
	if a.model == nil {
		return "", ErrNoModel
	}
	if strings.TrimSpace(poiName) == "" {
		return "", apperr.Validation("photo guide", errors.New("empty POI name"))
	}
	guide, err := a.model.GenerateText(ctx, "", assets.RenderPhotoGuidePrompt(poiName))
	if err != nil {
		return "", err
	}
	log.Info().Str("poi", poiName).Str("guide", truncateString(guide, 120)).Msg("Photo guide generated")
	return guide, nil
}

// TravelKeyword asks the model for a video search keyword for the leg from
// origin to destination. Quotes are stripped from the answer.
func (a *Assistant) TravelKeyword(ctx context.Context, origin, destination string) (string, error) {
	if a.model == nil {
		return "", ErrNoModel
	}
	raw, err := a.model.GenerateText(ctx, "", assets.RenderTravelKeywordPrompt(origin, destination))
	if err != nil {
		return "", err
	}
	kw := jsonutil.StripQuotes(raw)
	if kw == "" {
		return "", apperr.Upstream("travel keyword", ErrEmptyResponse)
	}
	log.Debug().Str("origin", origin).Str("destination", destination).Str("keyword", kw).Msg("Travel keyword generated")
	return kw, nil
}
