package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/journey"
)

// GET /api/journey
func (s *Server) handleJourney(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Machine.Snapshot())
}

type journeyRouteRequest struct {
	Origin string                `json:"origin"`
	City   string                `json:"city"`
	Plan   *journey.PlannedRoute `json:"plan,omitempty"`
}

// POST /api/journey/route
// Confirms a plan: it is geocoded, loaded into the machine and persisted.
// Without a plan in the body one is requested from the planner first.
func (s *Server) handleJourneyRoute(w http.ResponseWriter, r *http.Request) {
	var req journeyRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	city := strings.TrimSpace(req.City)
	if city == "" {
		city = s.opts.DefaultCity
	}

	plan := req.Plan
	if plan == nil {
		plan, _ = s.plan(r, strings.TrimSpace(req.Origin), city)
	}

	var route *journey.Route
	if s.Resolver == nil {
		log.Warn().Str("city", city).Msg("No route resolver configured, loading default route")
		route = journey.DefaultRoute(city)
	} else {
		var err error
		route, err = s.Resolver.Resolve(r.Context(), city, plan)
		if err != nil {
			respondErr(w, err, "Failed to resolve route")
			return
		}
	}

	if err := s.Machine.LoadRoute(route); err != nil {
		respondErr(w, err, "Failed to load route")
		return
	}
	s.persistRoute(r.Context())
	respondJSON(w, http.StatusOK, s.Machine.Snapshot())
}

// persistRoute saves the machine's current route so photo edits and newly
// confirmed routes survive a restart. Failures are logged only.
func (s *Server) persistRoute(ctx context.Context) {
	if s.Store == nil {
		return
	}
	route := s.Machine.Snapshot().Route
	if route == nil {
		return
	}
	if err := s.Store.PutRoute(ctx, route); err != nil {
		log.Error().Err(err).Msg("Failed to persist route")
	}
}

// POST /api/journey/start
func (s *Server) handleJourneyStart(w http.ResponseWriter, r *http.Request) {
	s.respondAfter(w, s.Machine.StartJourney())
}

type arriveRequest struct {
	Index *int `json:"index"`
}

// POST /api/journey/arrive
func (s *Server) handleJourneyArrive(w http.ResponseWriter, r *http.Request) {
	var req arriveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		httpError(w, http.StatusBadRequest, "index is required")
		return
	}
	s.respondAfter(w, s.Machine.ArriveAtWaypoint(*req.Index))
}

type uploadRequest struct {
	Image string `json:"image"`
}

// POST /api/journey/photo
// Stores the traveller's photo for the next check-in.
func (s *Server) handleJourneyPhoto(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, meta, ok := s.decodePhoto(w, req.Image)
	if !ok {
		return
	}
	if wp := s.Machine.CurrentWaypoint(); wp != nil && meta != nil {
		if d := meta.DistanceKm(wp.Lat, wp.Lng); d >= 0 {
			log.Info().Str("waypoint", wp.Name).Float64("distanceKm", d).Msg("Uploaded photo location")
		}
	}
	s.respondAfter(w, s.Machine.SetUploadedPhoto(p))
}

// POST /api/journey/checkin
// Blocks until generation completes. The request context is detached so a
// dropped connection does not roll the journey back.
func (s *Server) handleJourneyCheckIn(w http.ResponseWriter, r *http.Request) {
	err := s.Machine.ConfirmCheckIn(context.WithoutCancel(r.Context()))
	if err != nil {
		respondErr(w, err, "Generation failed")
		return
	}
	respondJSON(w, http.StatusOK, s.Machine.Snapshot())
}

// POST /api/journey/resume
func (s *Server) handleJourneyResume(w http.ResponseWriter, r *http.Request) {
	s.respondAfter(w, s.Machine.ResumeJourney(context.WithoutCancel(r.Context())))
}

// POST /api/journey/reset
func (s *Server) handleJourneyReset(w http.ResponseWriter, r *http.Request) {
	s.Machine.Reset()
	respondJSON(w, http.StatusOK, s.Machine.Snapshot())
}

type selectPhotoRequest struct {
	URL string `json:"url"`
}

// POST /api/journey/waypoints/{index}/photo
func (s *Server) handleSelectWaypointPhoto(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req selectPhotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.Machine.SelectWaypointPhoto(index, req.URL)
	if err == nil {
		s.persistRoute(r.Context())
	}
	s.respondAfter(w, err)
}

type updatePhotosRequest struct {
	Photos []string `json:"photos"`
}

// POST /api/journey/waypoints/{index}/photos
func (s *Server) handleUpdateWaypointPhotos(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req updatePhotosRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.Machine.UpdateWaypointPOIPhotos(index, req.Photos)
	if err == nil {
		s.persistRoute(r.Context())
	}
	s.respondAfter(w, err)
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid waypoint index")
		return 0, false
	}
	return index, true
}

// respondAfter answers with the snapshot, or the mapped error.
func (s *Server) respondAfter(w http.ResponseWriter, err error) {
	if err != nil {
		respondErr(w, err, "Journey operation failed")
		return
	}
	respondJSON(w, http.StatusOK, s.Machine.Snapshot())
}

// --- Events ---

// GET /api/journey/events
// Streams a snapshot on connect, then every machine event, as SSE.
func (s *Server) handleJourneyEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := s.Machine.Subscribe()
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", s.Machine.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(s.opts.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, string(ev.Type), ev); err != nil {
				log.Debug().Err(err).Msg("Event stream closed")
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	return err
}
