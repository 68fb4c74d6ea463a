package journey

import (
	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/metrics"
)

// EventType distinguishes change notifications.
type EventType string

const (
	// EventState is sent after every state or index change.
	EventState EventType = "state"
	// EventNotice carries a user-visible message (failure or completion).
	EventNotice EventType = "notice"
	// EventRoute is sent when a route is loaded or a waypoint's photos change.
	EventRoute EventType = "route"
)

// Event is a change notification emitted by a Machine.
type Event struct {
	Type   EventType `json:"type"`
	State  State     `json:"state"`
	Index  int       `json:"index"`
	Notice string    `json:"notice,omitempty"`
}

// subscriberBuffer bounds how far a slow subscriber can fall behind before
// events are dropped for it.
const subscriberBuffer = 32

// Subscribe returns a channel of change notifications and a function that
// unsubscribes and closes the channel.
func (m *Machine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var done bool
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if done {
			return
		}
		done = true
		delete(m.subs, id)
		close(ch)
	}
}

// emitLocked fans ev out to subscribers without blocking. m.mu must be held.
func (m *Machine) emitLocked(ev Event) {
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Int("subscriber", id).Str("event", string(ev.Type)).Msg("Subscriber lagging, event dropped")
		}
	}
}

// emitStateLocked notifies subscribers of the current state and counts the
// transition.
func (m *Machine) emitStateLocked() {
	metrics.New(metrics.Namespace).
		Dimension("State", string(m.state)).
		Count("JourneyTransition").
		Flush()
	m.emitLocked(Event{Type: EventState, State: m.state, Index: m.index})
}

func (m *Machine) emitNoticeLocked(msg string) {
	m.emitLocked(Event{Type: EventNotice, State: m.state, Index: m.index, Notice: msg})
}
