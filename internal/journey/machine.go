// Package journey implements the waypoint-by-waypoint travel and check-in
// flow of a trip.
//
// A Machine walks a Route: it starts Idle, moves toward the next waypoint,
// arrives, waits for the traveller to check in with a photo, generates an AI
// composite of that photo at the waypoint, and resumes toward the next stop
// until the route is exhausted.
//
//	Idle ──Start──▶ Moving ──Arrive(i)──▶ Arrived ──(timer)──▶ AwaitAction
//	                  ▲                                          │   ▲
//	                  │                                 CheckIn  │   │ failure
//	                  │                                          ▼   │
//	                  └────────────Resume──────────── Finished ◀─ Generating
//
// Resume from the last waypoint returns to Idle with the index set to
// len(Waypoints). Long-running work (generation, segment lookup, settle
// delay) runs outside the lock; a Reset while it is in flight cancels it and
// the late result is discarded, including its gallery append.
package journey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/retry"
)

const (
	// DefaultArriveDelay is how long the traveller looks at the scenery
	// before the check-in prompt appears.
	DefaultArriveDelay = 1500 * time.Millisecond

	// DefaultSettleDelay lets the segment video buffer before moving on.
	DefaultSettleDelay = 2 * time.Second
)

// User-visible notices.
const (
	NoticeGenerationFailed = "AI Generation failed. Please try again or skip."
	NoticeJourneyFinished  = "Journey Finished! Time to plan your next adventure."
	NoticeGalleryFailed    = "Photo generated, but saving it to your album failed."
)

// Validation causes. They are returned wrapped in an *apperr.Error of kind
// KindValidation; the machine's state is unchanged when one is returned.
var (
	ErrNoRoute      = errors.New("no route loaded")
	ErrEmptyRoute   = errors.New("route has no waypoints")
	ErrNoPhoto      = errors.New("no photo uploaded")
	ErrNoWaypoint   = errors.New("no current waypoint")
	ErrIndexRange   = errors.New("waypoint index out of range")
	ErrWrongState   = errors.New("not allowed in current state")
	ErrBusy         = errors.New("another operation is pending")
	ErrUnknownPhoto = errors.New("photo is not one of the waypoint's photos")
	ErrNoGenerator  = errors.New("photo generator not configured")
)

// ErrEmptyResult is the upstream failure for a generation that returned no URL.
var ErrEmptyResult = errors.New("generation returned empty result")

// ErrReset is returned by an operation whose journey was reset while it ran.
var ErrReset = errors.New("journey was reset")

// Options tunes the machine's delays.
type Options struct {
	ArriveDelay time.Duration
	SettleDelay time.Duration
	// Sleep waits out the settle delay. Defaults to retry.SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.ArriveDelay <= 0 {
		o.ArriveDelay = DefaultArriveDelay
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	} else if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.Sleep == nil {
		o.Sleep = retry.SleepContext
	}
	return o
}

// Machine is the journey state machine. It is safe for concurrent use.
type Machine struct {
	gen     PhotoGenerator
	lookup  SegmentLookup
	gallery Gallery
	opts    Options

	mu        sync.Mutex
	route     *Route
	state     State
	index     int
	uploaded  *Photo
	generated string
	segment   *Segment
	pending   bool // a resume is waiting on its lookup or settle delay

	// epoch changes on every Reset/LoadRoute; timers and in-flight work
	// compare it before applying their result.
	epoch       uint64
	arriveTimer *time.Timer
	cancelOp    context.CancelFunc

	subs    map[int]chan Event
	nextSub int
}

// New creates an Idle machine. lookup and gallery may be nil: segment lookup
// is then skipped and generated photos are not persisted.
func New(gen PhotoGenerator, lookup SegmentLookup, gallery Gallery, opts Options) *Machine {
	return &Machine{
		gen:     gen,
		lookup:  lookup,
		gallery: gallery,
		opts:    opts.withDefaults(),
		state:   StateIdle,
		index:   -1,
		subs:    make(map[int]chan Event),
	}
}

func invalid(op string, cause error, format string, args ...any) error {
	if format == "" {
		return apperr.Validation(op, cause)
	}
	return apperr.Validation(op, fmt.Errorf("%w: "+format, append([]any{cause}, args...)...))
}

// LoadRoute installs a confirmed route and resets the journey to Idle.
func (m *Machine) LoadRoute(r *Route) error {
	if r == nil {
		return invalid("load route", ErrNoRoute, "")
	}
	if len(r.Waypoints) == 0 {
		return invalid("load route", ErrEmptyRoute, "")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.route = r.Clone()
	log.Info().
		Str("start", r.Start).
		Str("end", r.End).
		Int("waypoints", len(r.Waypoints)).
		Msg("Route loaded")
	m.emitLocked(Event{Type: EventRoute, State: m.state, Index: m.index})
	m.emitStateLocked()
	return nil
}

// Reset cancels any pending timer or in-flight work and returns to Idle
// before the first waypoint. The route is kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.emitStateLocked()
}

func (m *Machine) resetLocked() {
	m.epoch++
	if m.arriveTimer != nil {
		m.arriveTimer.Stop()
		m.arriveTimer = nil
	}
	if m.cancelOp != nil {
		m.cancelOp()
		m.cancelOp = nil
	}
	m.state = StateIdle
	m.index = -1
	m.uploaded = nil
	m.generated = ""
	m.segment = nil
	m.pending = false
}

// StartJourney moves from Idle toward the first waypoint. Starting a journey
// whose waypoints are exhausted begins it again from the start.
func (m *Machine) StartJourney() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.route == nil {
		return invalid("start journey", ErrNoRoute, "")
	}
	if m.state != StateIdle {
		return invalid("start journey", ErrWrongState, "state %s", m.state)
	}
	if m.index >= len(m.route.Waypoints) {
		m.index = -1
	}

	m.state = StateMoving
	log.Info().Int("index", m.index).Msg("Journey started")
	m.emitStateLocked()
	return nil
}

// ArriveAtWaypoint records arrival at waypoint index and schedules the
// transition to AwaitAction after the arrive delay.
func (m *Machine) ArriveAtWaypoint(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.route == nil {
		return invalid("arrive", ErrNoRoute, "")
	}
	if index < 0 || index >= len(m.route.Waypoints) {
		return invalid("arrive", ErrIndexRange, "index %d, %d waypoints", index, len(m.route.Waypoints))
	}
	if m.state != StateMoving {
		return invalid("arrive", ErrWrongState, "state %s", m.state)
	}

	m.index = index
	m.state = StateArrived
	log.Info().
		Int("index", index).
		Str("waypoint", m.route.Waypoints[index].Name).
		Msg("Arrived at waypoint")
	m.emitStateLocked()

	if m.arriveTimer != nil {
		m.arriveTimer.Stop()
	}
	epoch := m.epoch
	m.arriveTimer = time.AfterFunc(m.opts.ArriveDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch || m.state != StateArrived || m.index != index {
			return
		}
		m.arriveTimer = nil
		m.state = StateAwaitAction
		m.emitStateLocked()
	})
	return nil
}

// SetUploadedPhoto stores the traveller's photo for the next check-in.
func (m *Machine) SetUploadedPhoto(p Photo) error {
	if len(p.Data) == 0 {
		return invalid("upload photo", ErrNoPhoto, "empty image")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded = &Photo{Data: p.Data, MIMEType: p.MIMEType}
	return nil
}

// ConfirmCheckIn generates the AI check-in photo for the current waypoint.
// It blocks until generation completes. On success the machine is Finished
// and the photo is appended to the gallery; on failure a notice is emitted
// and the machine returns to AwaitAction.
func (m *Machine) ConfirmCheckIn(ctx context.Context) error {
	const op = "check in"

	m.mu.Lock()
	if m.state == StateGenerating || m.pending {
		m.mu.Unlock()
		return invalid(op, ErrBusy, "")
	}
	if m.uploaded == nil {
		m.mu.Unlock()
		return invalid(op, ErrNoPhoto, "")
	}
	wp := m.currentWaypointLocked()
	if wp == nil {
		m.mu.Unlock()
		return invalid(op, ErrNoWaypoint, "")
	}
	if m.state != StateAwaitAction {
		state := m.state
		m.mu.Unlock()
		return invalid(op, ErrWrongState, "state %s", state)
	}
	if m.gen == nil {
		m.mu.Unlock()
		return invalid(op, ErrNoGenerator, "")
	}

	req := CheckInRequest{POIName: wp.Name, Photo: *m.uploaded}
	index := m.index
	epoch := m.epoch
	opCtx, cancel := context.WithCancel(ctx)
	m.cancelOp = cancel
	m.state = StateGenerating
	m.emitStateLocked()
	m.mu.Unlock()
	defer cancel()

	log.Info().Str("waypoint", req.POIName).Int("index", index).Msg("Generating check-in photo")
	start := time.Now()
	url, err := m.gen.GenerateCheckInPhoto(opCtx, req)
	if err == nil && strings.TrimSpace(url) == "" {
		err = apperr.Upstream("generate check-in photo", ErrEmptyResult)
	}

	var galleryErr error
	if err == nil && m.gallery != nil {
		m.mu.Lock()
		reset := m.epoch != epoch
		m.mu.Unlock()
		if reset {
			log.Info().Str("waypoint", req.POIName).Msg("Journey reset during generation, photo discarded")
			return invalid(op, ErrReset, "")
		}
		galleryErr = m.gallery.Append(opCtx, url)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return invalid(op, ErrReset, "")
	}
	m.cancelOp = nil

	if err != nil {
		log.Error().Err(err).Str("waypoint", req.POIName).Dur("duration", time.Since(start)).Msg("Check-in generation failed")
		m.state = StateAwaitAction
		m.emitStateLocked()
		m.emitNoticeLocked(NoticeGenerationFailed)
		return fmt.Errorf("%s: %w", op, err)
	}

	m.generated = url
	m.state = StateFinished
	log.Info().Str("waypoint", req.POIName).Dur("duration", time.Since(start)).Msg("Check-in photo generated")
	m.emitStateLocked()
	if galleryErr != nil {
		log.Error().Err(galleryErr).Str("url", url).Msg("Failed to persist generated photo to gallery")
		m.emitNoticeLocked(NoticeGalleryFailed)
	}
	return nil
}

// ResumeJourney clears the check-in state and continues. With waypoints
// remaining it looks up the next segment's video, waits the settle delay and
// moves on; at the last waypoint the journey completes and the machine
// returns to Idle with the index set to len(Waypoints).
func (m *Machine) ResumeJourney(ctx context.Context) error {
	const op = "resume journey"

	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return invalid(op, ErrBusy, "")
	}
	if m.route == nil {
		m.mu.Unlock()
		return invalid(op, ErrNoRoute, "")
	}
	if m.state != StateAwaitAction && m.state != StateFinished {
		state := m.state
		m.mu.Unlock()
		return invalid(op, ErrWrongState, "state %s", state)
	}

	m.uploaded = nil
	m.generated = ""
	n := len(m.route.Waypoints)

	if m.index >= n-1 {
		defer m.mu.Unlock()
		m.state = StateIdle
		m.index = n
		m.segment = nil
		log.Info().Int("waypoints", n).Msg("Journey complete")
		m.emitStateLocked()
		m.emitNoticeLocked(NoticeJourneyFinished)
		return nil
	}

	origin, destination := m.segmentEndpointsLocked()
	epoch := m.epoch
	opCtx, cancel := context.WithCancel(ctx)
	m.cancelOp = cancel
	m.pending = true
	m.mu.Unlock()
	defer cancel()

	var seg *Segment
	if m.lookup != nil {
		var err error
		seg, err = m.lookup.LookupSegment(opCtx, origin, destination)
		if err != nil {
			log.Warn().Err(err).Str("origin", origin).Str("destination", destination).Msg("Segment lookup failed, continuing without video")
			seg = nil
		}
	}
	sleepErr := m.opts.Sleep(opCtx, m.opts.SettleDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return invalid(op, ErrReset, "")
	}
	m.cancelOp = nil
	m.pending = false
	if sleepErr != nil {
		return fmt.Errorf("%s: %w", op, sleepErr)
	}

	m.segment = seg
	m.state = StateMoving
	log.Info().Str("origin", origin).Str("destination", destination).Bool("video", seg != nil).Msg("Journey resumed")
	m.emitStateLocked()
	return nil
}

// segmentEndpointsLocked names the leg from the current position to the next waypoint.
func (m *Machine) segmentEndpointsLocked() (string, string) {
	next := m.index + 1
	if m.index < 0 {
		return m.route.Start, m.route.Waypoints[0].Name
	}
	return m.route.Waypoints[m.index].Name, m.route.Waypoints[next].Name
}

// UpdateWaypointPOIPhotos replaces a waypoint's point-of-interest photos and
// selects the first one if nothing is selected yet.
func (m *Machine) UpdateWaypointPOIPhotos(index int, photos []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wp, err := m.waypointLocked("update photos", index)
	if err != nil {
		return err
	}
	wp.POIPhotos = append([]string(nil), photos...)
	if wp.PhotoURL == "" && len(photos) > 0 {
		wp.PhotoURL = photos[0]
	}
	m.emitLocked(Event{Type: EventRoute, State: m.state, Index: m.index})
	return nil
}

// SelectWaypointPhoto selects url as the waypoint's displayed photo. url must
// be one of the waypoint's POI photos or candidate images.
func (m *Machine) SelectWaypointPhoto(index int, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wp, err := m.waypointLocked("select photo", index)
	if err != nil {
		return err
	}
	if !wp.HasPhoto(url) {
		return invalid("select photo", ErrUnknownPhoto, "%s", url)
	}
	wp.PhotoURL = url
	m.emitLocked(Event{Type: EventRoute, State: m.state, Index: m.index})
	return nil
}

func (m *Machine) waypointLocked(op string, index int) (*Waypoint, error) {
	if m.route == nil {
		return nil, invalid(op, ErrNoRoute, "")
	}
	if index < 0 || index >= len(m.route.Waypoints) {
		return nil, invalid(op, ErrIndexRange, "index %d, %d waypoints", index, len(m.route.Waypoints))
	}
	return &m.route.Waypoints[index], nil
}

func (m *Machine) currentWaypointLocked() *Waypoint {
	if m.route == nil || m.index < 0 || m.index >= len(m.route.Waypoints) {
		return nil
	}
	return &m.route.Waypoints[m.index]
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Index returns the current waypoint index (-1 before the first stop).
func (m *Machine) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// GeneratedPhoto returns the URL generated by the last successful check-in.
func (m *Machine) GeneratedPhoto() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generated
}

// CurrentWaypoint returns a copy of the current waypoint, or nil.
func (m *Machine) CurrentWaypoint() *Waypoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	wp := m.currentWaypointLocked()
	if wp == nil {
		return nil
	}
	cp := *wp
	return &cp
}

// Snapshot is a point-in-time view of the machine for rendering.
type Snapshot struct {
	State            State     `json:"trackState"`
	Index            int       `json:"currentWaypointIndex"`
	Route            *Route    `json:"route,omitempty"`
	CurrentWaypoint  *Waypoint `json:"currentWaypoint,omitempty"`
	Progress         float64   `json:"progress"`
	HasUploadedPhoto bool      `json:"hasUploadedPhoto"`
	GeneratedPhoto   string    `json:"generatedPhoto,omitempty"`
	Segment          *Segment  `json:"segment,omitempty"`
	Processing       bool      `json:"isProcessing"`
}

// Snapshot returns a copy of the machine's observable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:            m.state,
		Index:            m.index,
		Route:            m.route.Clone(),
		HasUploadedPhoto: m.uploaded != nil,
		GeneratedPhoto:   m.generated,
		Processing:       m.pending || m.state == StateGenerating,
	}
	if wp := m.currentWaypointLocked(); wp != nil {
		cp := *wp
		s.CurrentWaypoint = &cp
	}
	if m.segment != nil {
		seg := *m.segment
		s.Segment = &seg
	}
	if m.route != nil && len(m.route.Waypoints) > 0 {
		s.Progress = float64(m.index+1) / float64(len(m.route.Waypoints)) * 100
		if s.Progress > 100 {
			s.Progress = 100
		}
	}
	return s
}
