package journey

import (
	"context"
	"slices"
)

// State is a step of the journey state machine.
type State string

const (
	StateIdle        State = "Idle"
	StateMoving      State = "Moving"
	StateArrived     State = "Arrived"
	StateAwaitAction State = "AwaitAction"
	StateGenerating  State = "Generating"
	StateFinished    State = "Finished"
)

// Waypoint is a single stop on a route.
type Waypoint struct {
	Name string  `json:"name" dynamodbav:"name"`
	City string  `json:"city" dynamodbav:"city"`
	Lat  float64 `json:"lat" dynamodbav:"lat"`
	Lng  float64 `json:"lng" dynamodbav:"lng"`
	// Stay is the planned stay duration in seconds.
	Stay   int      `json:"stay" dynamodbav:"stay"`
	Images []string `json:"images" dynamodbav:"images"`
	// PhotoURL is the currently selected point-of-interest photo.
	PhotoURL  string   `json:"photoUrl,omitempty" dynamodbav:"photoUrl,omitempty"`
	POIPhotos []string `json:"poiPhotos,omitempty" dynamodbav:"poiPhotos,omitempty"`
}

// HasPhoto reports whether url is one of the waypoint's known photos.
func (w *Waypoint) HasPhoto(url string) bool {
	return slices.Contains(w.POIPhotos, url) || slices.Contains(w.Images, url)
}

// Route is a fully geocoded trip plan.
type Route struct {
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Waypoints []Waypoint `json:"waypoints"`
	// Path is a polyline of [lng, lat] pairs.
	Path [][2]float64 `json:"path,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate the machine's route.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	out := &Route{Start: r.Start, End: r.End, Path: slices.Clone(r.Path)}
	out.Waypoints = make([]Waypoint, len(r.Waypoints))
	for i, wp := range r.Waypoints {
		wp.Images = slices.Clone(wp.Images)
		wp.POIPhotos = slices.Clone(wp.POIPhotos)
		out.Waypoints[i] = wp
	}
	return out
}

// PlannedStop is a named, not yet geocoded stop.
type PlannedStop struct {
	Name string `json:"name"`
	City string `json:"city"`
}

// PlannedRoute is the LLM's proposal before geocoding.
type PlannedRoute struct {
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Waypoints []PlannedStop `json:"waypoints"`
}

// Photo is a user-supplied image.
type Photo struct {
	Data     []byte
	MIMEType string
}

// CheckInRequest is the input to photo generation.
type CheckInRequest struct {
	POIName string
	Photo   Photo
	// StyleGuide optionally steers the composition.
	StyleGuide string
}

// Segment is the travel video found for the leg between two stops.
type Segment struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Keyword     string `json:"keyword,omitempty"`
	VideoID     string `json:"videoId,omitempty"`
	EmbedURL    string `json:"embedUrl,omitempty"`
}

// PhotoGenerator composites a user photo into a point of interest and returns
// the URL of the generated image.
type PhotoGenerator interface {
	GenerateCheckInPhoto(ctx context.Context, req CheckInRequest) (string, error)
}

// SegmentLookup finds the travel video for a leg. A nil segment with a nil
// error means nothing was found.
type SegmentLookup interface {
	LookupSegment(ctx context.Context, origin, destination string) (*Segment, error)
}

// Gallery is the persistent, append-only list of generated photos.
type Gallery interface {
	Append(ctx context.Context, photoURL string) error
}
