package world

import "reflect"

// View is a reconstruction of the store's effective data at a particular
// clock (module F). It bundles an entity list, a constant-layer and
// effective-layer data store per registered component type, per-type and
// global modifier cursors used for incremental catch-up, snapshots of every
// secondary index, and a clock-filtered copy of the event log.
//
// The live view (Store.View) is one instance of View kept continuously
// caught up to the store's current clock; ViewAtTime builds independent
// snapshots that are never touched again by the store.
type View struct {
	clock Clock

	entities        []entityRecord
	entityCursorPos int

	constant  map[reflect.Type]any
	effective map[reflect.Type]any

	constCursor       map[reflect.Type]int
	dynCursor         map[reflect.Type]int
	globalConstCursor uint64

	indices map[reflect.Type]any

	events *eventLog
}

func newView() *View {
	return &View{
		constant:    make(map[reflect.Type]any),
		effective:   make(map[reflect.Type]any),
		constCursor: make(map[reflect.Type]int),
		dynCursor:   make(map[reflect.Type]int),
		indices:     make(map[reflect.Type]any),
		events:      newEventLog(),
	}
}

// Clock returns the logical clock this view is reconstructed at.
func (v *View) Clock() Clock { return v.clock }

// Entities returns every entity visible in this view, in creation order.
func (v *View) Entities() []Entity {
	out := make([]Entity, len(v.entities))
	for i, r := range v.entities {
		out[i] = r.entity
	}
	return out
}
