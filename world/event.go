package world

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/samvival/hexcore/internal/callbackguard"
)

// Clock is the store's logical time: a non-negative integer advanced by
// exactly one for every event emitted through AddEvent or AddEventState.
type Clock uint64

// MaxClock is used as the disabled-at sentinel for modifiers that have
// never been disabled: "active at every clock this side of forever".
const MaxClock Clock = ^Clock(0)

// EventState records where in its lifecycle a typed event value is.
type EventState int

const (
	// EventAtomic marks an event with no separate start/end, the common
	// case for most domain events (an item was picked up, a tile was
	// revealed).
	EventAtomic EventState = iota
	// EventStarted marks the beginning of a multi-event span (an attack
	// windup beginning).
	EventStarted
	// EventEnded marks the end of a multi-event span.
	EventEnded
)

func (s EventState) String() string {
	switch s {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	default:
		return "atomic"
	}
}

// Event wraps a caller-supplied event payload of type E with the clock it
// occurred at and its lifecycle state.
type Event[E any] struct {
	Data       E
	OccurredAt Clock
	State      EventState
}

// eventCallback is the type-erased shape of a registered callback; the
// concrete type parameter is closed over at registration time the same way
// component dispatch closures are (see component.go).
type eventCallback[E any] func(*Store, Event[E])

// eventSubLog holds every event of a single registered type, in
// non-decreasing clock order, plus the callbacks to fire when a new one is
// appended.
type eventSubLog[E any] struct {
	events    []Event[E]
	callbacks []eventCallback[E]
}

// eventLogEntry is the type-erased interface every eventSubLog[E] satisfies,
// letting the Store keep a homogeneous registry keyed by reflect.Type.
type eventLogEntry interface {
	cloneUpTo(c Clock) eventLogEntry
	updateTo(src eventLogEntry, c Clock)
	len() int
	snapshot() ([]byte, error)
	restoreFrom(data []byte) error
}

func (l *eventSubLog[E]) cloneUpTo(c Clock) eventLogEntry {
	out := &eventSubLog[E]{}
	for _, e := range l.events {
		if e.OccurredAt <= c {
			out.events = append(out.events, e)
		}
	}
	return out
}

func (l *eventSubLog[E]) updateTo(src eventLogEntry, c Clock) {
	from := src.(*eventSubLog[E])
	highWater := Clock(0)
	haveAny := len(l.events) > 0
	if haveAny {
		highWater = l.events[len(l.events)-1].OccurredAt
	}
	start := len(from.events)
	for start > 0 && (!haveAny || from.events[start-1].OccurredAt > highWater) {
		start--
	}
	for _, e := range from.events[start:] {
		if e.OccurredAt <= c && (!haveAny || e.OccurredAt > highWater) {
			l.events = append(l.events, e)
		}
	}
}

func (l *eventSubLog[E]) len() int { return len(l.events) }

// snapshot encodes every recorded event of type E, not its callbacks:
// callbacks are Go closures installed by the running process and, like
// modifier effects (see component.go's snapshotBase), have no generic
// serialized form.
func (l *eventSubLog[E]) snapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(l.events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *eventSubLog[E]) restoreFrom(data []byte) error {
	var events []Event[E]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&events); err != nil {
		return err
	}
	l.events = events
	return nil
}

// eventLog is the store-wide (or view-wide) collection of every registered
// event sub-log, type-erased behind reflect.Type the same way component
// data/modifiers are.
type eventLog struct {
	subLogs map[reflect.Type]eventLogEntry
}

func newEventLog() *eventLog {
	return &eventLog{subLogs: make(map[reflect.Type]eventLogEntry)}
}

func registerEventType[E any](l *eventLog) {
	t := reflect.TypeFor[E]()
	if _, ok := l.subLogs[t]; ok {
		return
	}
	l.subLogs[t] = &eventSubLog[E]{}
}

func subLog[E any](l *eventLog, where string) *eventSubLog[E] {
	t := reflect.TypeFor[E]()
	entry, ok := l.subLogs[t]
	if !ok {
		panic(fmt.Sprintf("world: event type %s is not registered (%s)", t, where))
	}
	sl, ok := entry.(*eventSubLog[E])
	if !ok {
		panic(fmt.Sprintf("world: event type %s registered with a mismatched type (%s)", t, where))
	}
	return sl
}

func (l *eventLog) cloneUpTo(c Clock) *eventLog {
	out := newEventLog()
	for t, e := range l.subLogs {
		out.subLogs[t] = e.cloneUpTo(c)
	}
	return out
}

func (l *eventLog) updateTo(src *eventLog, c Clock) {
	for t, dst := range l.subLogs {
		if from, ok := src.subLogs[t]; ok {
			dst.updateTo(from, c)
		}
	}
}

// RegisterEventType installs a per-type sub-log and callback list for E.
// Like component registration, this is meant to happen once at startup.
func RegisterEventType[E any](s *Store) {
	t := reflect.TypeFor[E]()
	if _, ok := s.events.subLogs[t]; ok {
		return
	}
	registerEventType[E](s.events)
	registerEventType[E](s.liveView.events)
	s.eventRegistrars = append(s.eventRegistrars, registerEventType[E])

	if blob, ok := s.pendingEventBlobs[t.String()]; ok {
		if err := s.events.subLogs[t].restoreFrom(blob); err != nil {
			s.log().Error("failed to restore persisted event log", "type", t, "error", err)
		} else {
			s.liveView.events.subLogs[t].restoreFrom(blob)
		}
		delete(s.pendingEventBlobs, t.String())
	}
}

// AddCallback registers fn to run every time an event of type E is appended.
// Callbacks may themselves call AddEvent; that re-entrancy is allowed, but a
// callback that panics is recovered and logged rather than unwinding the
// whole AddEvent call (see internal/callbackguard).
func AddCallback[E any](s *Store, fn func(*Store, Event[E])) {
	sl := subLog[E](s.events, "AddCallback")
	sl.callbacks = append(sl.callbacks, fn)
}

// AddEvent appends an event of type E at the store's current clock, then
// advances the clock by one and catches the live view up to it. Callbacks
// registered for E run after the clock has advanced and the live view has
// been synchronised, so they observe the world exactly as any other reader
// would immediately after this call returns.
func AddEvent[E any](s *Store, data E) Event[E] {
	return addEventWithState(s, data, EventAtomic)
}

// AddEventState is AddEvent with an explicit lifecycle state, for event
// types that model a Started/Ended span rather than a single atomic fact.
func AddEventState[E any](s *Store, data E, state EventState) Event[E] {
	return addEventWithState(s, data, state)
}

func addEventWithState[E any](s *Store, data E, state EventState) Event[E] {
	sl := subLog[E](s.events, "AddEvent")
	evt := Event[E]{Data: data, OccurredAt: s.currentClock, State: state}
	sl.events = append(sl.events, evt)

	s.currentClock++
	s.updateViewToClock(s.liveView, s.currentClock)

	for _, cb := range sl.callbacks {
		cb := cb
		ok := callbackguard.Run(func() { cb(s, evt) })
		if !ok {
			s.log().Warn("event callback panicked and was recovered", "event_type", reflect.TypeFor[E](), "clock", evt.OccurredAt)
		}
	}
	return evt
}

// Events returns every event of type E recorded up to the view's clock, in
// clock order.
func Events[E any](v *View) []Event[E] {
	sl := subLog[E](v.events, "Events")
	return sl.events
}

// MostRecentEvent returns the last recorded event of type E visible in v,
// and false if none has occurred yet.
func MostRecentEvent[E any](v *View) (Event[E], bool) {
	sl := subLog[E](v.events, "MostRecentEvent")
	if len(sl.events) == 0 {
		var zero Event[E]
		return zero, false
	}
	return sl.events[len(sl.events)-1], true
}

// EventAt returns the event of type E that occurred at exactly clock c, if
// any.
func EventAt[E any](v *View, c Clock) (Event[E], bool) {
	sl := subLog[E](v.events, "EventAt")
	for _, e := range sl.events {
		if e.OccurredAt == c {
			return e, true
		}
	}
	var zero Event[E]
	return zero, false
}
