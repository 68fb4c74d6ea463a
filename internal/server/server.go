// Package server exposes TripStory over HTTP: the stateless AI endpoints
// (plan, check-in, photo guide, travel video) and a journey controller that
// drives a journey.Machine and streams its changes as Server-Sent Events.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"

	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/store"
	"github.com/fpang/tripstory/internal/video"
)

// Planner proposes a route. fallback reports that the canned route was used.
type Planner interface {
	PlanRoute(ctx context.Context, origin, city string) (plan *journey.PlannedRoute, fallback bool)
}

// GuideSource writes a photo style guide for a point of interest.
type GuideSource interface {
	PhotoGuide(ctx context.Context, poiName string) (string, error)
}

// VideoFinder finds the travel video for a leg. A nil result means nothing was found.
type VideoFinder interface {
	Find(ctx context.Context, origin, destination string) (string, *video.Result, error)
}

// RouteResolver geocodes a planned route.
type RouteResolver interface {
	Resolve(ctx context.Context, city string, plan *journey.PlannedRoute) (*journey.Route, error)
}

// Deps are the collaborators behind the endpoints. Resolver may be nil, in
// which case confirmed plans load the default route for their city.
type Deps struct {
	Planner  Planner
	Guides   GuideSource
	CheckIn  journey.PhotoGenerator
	Videos   VideoFinder
	Resolver RouteResolver
	Store    store.Store
	Machine  *journey.Machine
}

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	DefaultCity    string
	// Streaming enables GET /api/journey/events. API Gateway cannot hold an
	// SSE stream open, so the Lambda build leaves it off.
	Streaming bool
	KeepAlive time.Duration
	// MaxPhotoDimension bounds uploaded photos before generation.
	MaxPhotoDimension int
}

const (
	defaultCity      = "Guilin"
	defaultKeepAlive = 15 * time.Second
	maxBodyBytes     = 20 << 20
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Deps
	opts Options
}

// New creates a Server.
func New(deps Deps, opts Options) *Server {
	if opts.DefaultCity == "" {
		opts.DefaultCity = defaultCity
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	return &Server{Deps: deps, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	if s.opts.Streaming {
		r.Get("/api/journey/events", s.handleJourneyEvents)
	}

	r.Group(func(r chi.Router) {
		r.Use(withGzip)
		r.Use(withBodyLimit)

		r.Get("/api/health", s.handleHealth)
		r.Get("/api/route", s.handleDefaultRoute)
		r.Post("/api/plan", s.handlePlan)
		r.Post("/api/checkin", s.handleCheckIn)
		r.Post("/api/photo-guide", s.handlePhotoGuide)
		r.Post("/api/travel-video", s.handleTravelVideo)
		r.Get("/api/gallery", s.handleGallery)

		r.Route("/api/journey", func(r chi.Router) {
			r.Get("/", s.handleJourney)
			r.Post("/route", s.handleJourneyRoute)
			r.Post("/start", s.handleJourneyStart)
			r.Post("/arrive", s.handleJourneyArrive)
			r.Post("/photo", s.handleJourneyPhoto)
			r.Post("/checkin", s.handleJourneyCheckIn)
			r.Post("/resume", s.handleJourneyResume)
			r.Post("/reset", s.handleJourneyReset)
			r.Post("/waypoints/{index}/photo", s.handleSelectWaypointPhoto)
			r.Post("/waypoints/{index}/photos", s.handleUpdateWaypointPhotos)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not found")
	})
	return r
}

func withGzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
