// Package state provides thread-safe state sharing between the reconciler and
// the UI.
//
// # Overview
//
// The reconciler owns the authoritative instance.State on its own goroutine.
// Store receives a copy after every change (instance.Publisher) along with
// operator notices (instance.Notifier), and the UI reads Snapshot on its
// refresh tick:
//
//	Reconciler loop:               UI refresh tick:
//	┌────────────────┐            ┌─────────────────┐
//	│ apply result   │            │                 │
//	│      ↓         │            │                 │
//	│ store.Publish()│───────────→│ store.Snapshot()│
//	│ store.Notify() │  (mutex)   │      ↓          │
//	│                │            │  render         │
//	└────────────────┘            └─────────────────┘
//
// # Update Semantics
//
// Publish replaces the whole instance state. Notify replaces the current
// notice; notices are not queued, so the operator always sees the latest one.
// Dismiss clears it. Version increases on each change so readers can skip
// redundant renders.
//
// # Copying
//
// Artifact images are cloned on the way in and on the way out, and the last
// poll error is re-wrapped, so no caller shares memory with the store.
//
// The zero Store is ready to use.
package state
