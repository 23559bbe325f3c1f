package world

import "testing"

func TestAddEventAdvancesClockAndRecordsOccurredAt(t *testing.T) {
	s := newTestStore(t)

	evt := AddEvent(s, tick{})
	if evt.OccurredAt != 0 {
		t.Fatalf("first event should be recorded at clock 0, got %d", evt.OccurredAt)
	}
	if s.currentClock != 1 {
		t.Fatalf("store clock after one AddEvent = %d, want 1", s.currentClock)
	}
	if evt.State != EventAtomic {
		t.Fatalf("AddEvent should record EventAtomic by default")
	}
}

func TestAddEventStateRecordsLifecycle(t *testing.T) {
	s := newTestStore(t)
	evt := AddEventState(s, tick{}, EventStarted)
	if evt.State != EventStarted {
		t.Fatalf("AddEventState should preserve the requested state, got %v", evt.State)
	}
}

func TestEventAtFindsExactClock(t *testing.T) {
	s := newTestStore(t)
	AddEvent(s, tick{}) // clock 0
	AddEvent(s, tick{}) // clock 1

	v := s.View()
	if _, ok := EventAt[tick](v, 0); !ok {
		t.Fatalf("expected an event at clock 0")
	}
	if _, ok := EventAt[tick](v, 1); !ok {
		t.Fatalf("expected an event at clock 1")
	}
	if _, ok := EventAt[tick](v, 2); ok {
		t.Fatalf("no event was recorded at clock 2")
	}
}

func TestMostRecentEventReturnsLast(t *testing.T) {
	s := newTestStore(t)
	if _, ok := MostRecentEvent[tick](s.View()); ok {
		t.Fatalf("MostRecentEvent should report false before any event was recorded")
	}

	AddEvent(s, tick{})
	second := AddEvent(s, tick{})

	got, ok := MostRecentEvent[tick](s.View())
	if !ok || got.OccurredAt != second.OccurredAt {
		t.Fatalf("MostRecentEvent = (%+v, %v), want (%+v, true)", got, ok, second)
	}
}

func TestEventsReturnsAllInClockOrder(t *testing.T) {
	s := newTestStore(t)
	AddEvent(s, tick{})
	AddEvent(s, tick{})
	AddEvent(s, tick{})

	evts := Events[tick](s.View())
	if len(evts) != 3 {
		t.Fatalf("Events returned %d entries, want 3", len(evts))
	}
	for i, e := range evts {
		if e.OccurredAt != Clock(i) {
			t.Fatalf("events[%d].OccurredAt = %d, want %d", i, e.OccurredAt, i)
		}
	}
}

func TestAddCallbackFiresAfterViewIsCurrent(t *testing.T) {
	s := newTestStore(t)

	var observedClock Clock
	AddCallback(s, func(s *Store, e Event[tick]) {
		observedClock = s.View().Clock()
	})

	AddEvent(s, tick{})
	if observedClock != s.currentClock {
		t.Fatalf("callback observed view clock %d, want current store clock %d", observedClock, s.currentClock)
	}
}

// TestAddCallbackReentrancy exercises a callback that itself calls AddEvent,
// the one re-entrancy case AddEvent's doc comment explicitly allows.
func TestAddCallbackReentrancy(t *testing.T) {
	s := newTestStore(t)

	var nested bool
	AddCallback(s, func(s *Store, e Event[tick]) {
		if !nested && e.OccurredAt == 0 {
			nested = true
			AddEvent(s, tick{})
		}
	})

	AddEvent(s, tick{}) // clock 0 -> 1, callback fires and adds clock 1 -> 2

	if s.currentClock != 2 {
		t.Fatalf("store clock after re-entrant AddEvent = %d, want 2", s.currentClock)
	}
	if len(Events[tick](s.View())) != 2 {
		t.Fatalf("expected both the outer and the re-entrant event to be recorded")
	}
}

// TestAddCallbackPanicRecovered confirms a panicking callback does not
// unwind AddEvent or prevent the clock from advancing.
func TestAddCallbackPanicRecovered(t *testing.T) {
	s := newTestStore(t)

	var ranAfterPanic bool
	AddCallback(s, func(s *Store, e Event[tick]) {
		panic("boom")
	})
	AddCallback(s, func(s *Store, e Event[tick]) {
		ranAfterPanic = true
	})

	AddEvent(s, tick{})

	if s.currentClock != 1 {
		t.Fatalf("clock should still advance despite a panicking callback, got %d", s.currentClock)
	}
	if !ranAfterPanic {
		t.Fatalf("a later callback must still run after an earlier one panics")
	}
}
