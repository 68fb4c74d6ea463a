package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/chat"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/photo"
	"github.com/fpang/tripstory/internal/video"
)

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "tripstory",
	})
}

// GET /api/route?city=...
// Returns the canned route for a city.
func (s *Server) handleDefaultRoute(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		city = s.opts.DefaultCity
	}
	respondJSON(w, http.StatusOK, journey.DefaultRoute(city))
}

// --- Plan ---

type planRequest struct {
	Origin string `json:"origin"`
	City   string `json:"city"`
}

type planResponse struct {
	*journey.PlannedRoute
	Fallback bool `json:"fallback"`
}

// POST /api/plan
// Asks the planner for a route; the default route is returned when the
// planner is unavailable.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	city := strings.TrimSpace(req.City)
	if city == "" {
		city = s.opts.DefaultCity
	}
	plan, fallback := s.plan(r, strings.TrimSpace(req.Origin), city)
	respondJSON(w, http.StatusOK, planResponse{PlannedRoute: plan, Fallback: fallback})
}

func (s *Server) plan(r *http.Request, origin, city string) (*journey.PlannedRoute, bool) {
	if s.Planner == nil {
		return journey.DefaultPlan(city), true
	}
	return s.Planner.PlanRoute(r.Context(), origin, city)
}

// --- Check-in ---

type checkInRequest struct {
	POIName    string `json:"poiName"`
	Image      string `json:"image"`
	StyleGuide string `json:"styleGuide,omitempty"`
}

type checkInResponse struct {
	AIGeneratedPhoto string `json:"aiGeneratedPhoto"`
}

// POST /api/checkin
// One-shot check-in photo generation outside a journey.
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.POIName) == "" {
		httpError(w, http.StatusBadRequest, "poiName is required")
		return
	}
	if s.CheckIn == nil {
		httpError(w, http.StatusServiceUnavailable, "photo generation is not configured")
		return
	}
	p, _, ok := s.decodePhoto(w, req.Image)
	if !ok {
		return
	}

	url, err := s.CheckIn.GenerateCheckInPhoto(r.Context(), journey.CheckInRequest{
		POIName:    req.POIName,
		Photo:      p,
		StyleGuide: req.StyleGuide,
	})
	if err != nil {
		respondErr(w, err, "Generation failed")
		return
	}
	respondJSON(w, http.StatusOK, checkInResponse{AIGeneratedPhoto: url})
}

// decodePhoto parses and downscales a data-URL image, answering 400 on
// failure. The metadata is read from the original upload and may be nil.
func (s *Server) decodePhoto(w http.ResponseWriter, image string) (journey.Photo, *photo.Metadata, bool) {
	if strings.TrimSpace(image) == "" {
		httpError(w, http.StatusBadRequest, "image is required")
		return journey.Photo{}, nil, false
	}
	p, err := photo.DecodeDataURL(image)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid image", err.Error())
		return journey.Photo{}, nil, false
	}
	maxDim := s.opts.MaxPhotoDimension
	if maxDim <= 0 {
		maxDim = photo.DefaultMaxDimension
	}
	prepared, meta, err := photo.Prepare(p, maxDim)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid image", err.Error())
		return journey.Photo{}, nil, false
	}
	if meta != nil && meta.HasDate {
		log.Debug().Time("taken", meta.DateTaken).Str("camera", meta.CameraModel).Msg("Uploaded photo metadata")
	}
	return prepared, meta, true
}

// --- Photo guide ---

type photoGuideRequest struct {
	POIName string `json:"poiName"`
}

// POST /api/photo-guide
func (s *Server) handlePhotoGuide(w http.ResponseWriter, r *http.Request) {
	var req photoGuideRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if s.Guides == nil {
		httpError(w, http.StatusServiceUnavailable, "photo guide is not configured")
		return
	}
	guide, err := s.Guides.PhotoGuide(r.Context(), req.POIName)
	if errors.Is(err, chat.ErrNoModel) {
		httpError(w, http.StatusServiceUnavailable, "photo guide is not configured")
		return
	}
	if err != nil {
		respondErr(w, err, "Guide generation failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"guide": guide})
}

// --- Travel video ---

type travelVideoRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type travelVideoResponse struct {
	Keyword  string        `json:"keyword"`
	Video    *video.Result `json:"video"`
	EmbedURL string        `json:"embedUrl"`
}

// POST /api/travel-video
// Returns 404 when the search finds nothing or exhausts its retries.
func (s *Server) handleTravelVideo(w http.ResponseWriter, r *http.Request) {
	var req travelVideoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		httpError(w, http.StatusBadRequest, "origin and destination are required")
		return
	}
	if s.Videos == nil {
		httpError(w, http.StatusServiceUnavailable, "video search is not configured")
		return
	}

	keyword, res, err := s.Videos.Find(r.Context(), req.Origin, req.Destination)
	if err != nil {
		respondErr(w, err, "Failed to fetch video")
		return
	}
	if res == nil {
		httpError(w, http.StatusNotFound, "No video found")
		return
	}
	respondJSON(w, http.StatusOK, travelVideoResponse{
		Keyword:  keyword,
		Video:    res,
		EmbedURL: video.EmbedURL(res),
	})
}

// --- Gallery ---

// GET /api/gallery
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		respondJSON(w, http.StatusOK, map[string]any{"photos": []any{}})
		return
	}
	entries, err := s.Store.List(r.Context())
	if err != nil {
		respondErr(w, err, "Failed to load gallery")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": entries})
}
