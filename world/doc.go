// Package world implements a temporal entity/component/modifier store: an
// append-only log of typed modifications indexed by a monotonic logical
// clock, serving read views reconstituted at any past clock value.
//
// The package is organised the way a single-threaded simulation expects to
// use it: callers attach base data to entities, submit modifiers against a
// component type, and emit events that advance the store's clock. A live
// View is kept continuously synchronised to the current clock; additional
// snapshot Views can be reconstructed at any earlier clock on demand.
//
// Component types are registered once per type with RegisterComponent,
// normally at startup; a type registered after events have already been
// emitted still joins the live view and every later catch-up or snapshot.
package world
