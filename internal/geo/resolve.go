package geo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/metrics"
)

// DefaultStay is the planned stay at each attraction, in seconds.
const DefaultStay = 3600

// DefaultConcurrency bounds parallel place searches.
const DefaultConcurrency = 4

// ErrNothingResolved means no stop of the plan could be geocoded.
var ErrNothingResolved = errors.New("no stop could be resolved")

// POISearcher finds a single point of interest.
type POISearcher interface {
	SearchPOI(ctx context.Context, keyword, city string) (*POI, error)
}

// Resolver geocodes planned routes.
type Resolver struct {
	search      POISearcher
	concurrency int
}

// NewResolver creates a Resolver over search.
func NewResolver(search POISearcher) *Resolver {
	return &Resolver{search: search, concurrency: DefaultConcurrency}
}

// Resolve geocodes plan within city. The start point is resolved first with
// no stay; attractions are resolved concurrently and keep their planned
// order. Stops AMap cannot find are dropped. Path connects the resolved
// stops in order.
func (r *Resolver) Resolve(ctx context.Context, city string, plan *journey.PlannedRoute) (*journey.Route, error) {
	if plan == nil {
		return nil, apperr.Validation("resolve route", journey.ErrNoRoute)
	}
	start := time.Now()
	rec := metrics.New(metrics.Namespace).Dimension("Operation", "resolveRoute")

	route := &journey.Route{Start: plan.Start, End: plan.End}

	startPOI, err := r.find(ctx, plan.Start, city)
	if err != nil {
		return nil, err
	}
	if startPOI != nil {
		route.Waypoints = append(route.Waypoints, waypointFrom(startPOI, city, 0, journey.StartImg))
	}

	stops := make([]*POI, len(plan.Waypoints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, stop := range plan.Waypoints {
		g.Go(func() error {
			stopCity := stop.City
			if stopCity == "" {
				stopCity = city
			}
			poi, err := r.find(gctx, stop.Name, stopCity)
			if err != nil {
				return err
			}
			stops[i] = poi
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dropped := 0
	for i, poi := range stops {
		if poi == nil {
			dropped++
			continue
		}
		stopCity := plan.Waypoints[i].City
		if stopCity == "" {
			stopCity = city
		}
		route.Waypoints = append(route.Waypoints, waypointFrom(poi, stopCity, DefaultStay, journey.PlaceholderImg))
	}

	for _, wp := range route.Waypoints {
		route.Path = append(route.Path, [2]float64{wp.Lng, wp.Lat})
	}

	rec.Metric("ResolvedStops", float64(len(route.Waypoints)), metrics.UnitCount).
		Metric("DroppedStops", float64(dropped), metrics.UnitCount).
		Since("ResolveLatencyMs", start).
		Flush()

	if len(route.Waypoints) == 0 {
		return nil, apperr.Upstream("resolve route", ErrNothingResolved)
	}

	log.Info().
		Str("start", route.Start).
		Str("end", route.End).
		Int("waypoints", len(route.Waypoints)).
		Int("dropped", dropped).
		Dur("duration", time.Since(start)).
		Msg("Route resolved")
	return route, nil
}

// find searches one stop. Search failures other than cancellation count as
// "not found" so one bad stop does not sink the whole route.
func (r *Resolver) find(ctx context.Context, name, city string) (*POI, error) {
	if name == "" {
		return nil, nil
	}
	poi, err := r.search.SearchPOI(ctx, name, city)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("poi", name).Str("city", city).Msg("POI search failed, dropping stop")
		return nil, nil
	}
	if poi == nil {
		log.Warn().Str("poi", name).Str("city", city).Msg("POI not found, dropping stop")
	}
	return poi, nil
}

func waypointFrom(poi *POI, city string, stay int, placeholder string) journey.Waypoint {
	wp := journey.Waypoint{
		Name:      poi.Name,
		City:      city,
		Lat:       poi.Lat,
		Lng:       poi.Lng,
		Stay:      stay,
		POIPhotos: append([]string(nil), poi.Photos...),
	}
	if len(poi.Photos) > 0 {
		wp.Images = append([]string(nil), poi.Photos...)
		wp.PhotoURL = poi.Photos[0]
	} else {
		wp.Images = []string{placeholder}
	}
	return wp
}
