// Package instance reconciles the lifecycle of one gateway instance.
//
// A Reconciler polls the gateway on a fixed interval, normalizes the watched
// instance into a Snapshot, and publishes the resulting State. It also runs the
// operator commands (connect, disconnect, delete) and fetches the pairing
// artifact whenever the instance enters the pairing state.
//
// # Concurrency
//
// All State mutation happens on the goroutine running Reconciler.Run. Gateway
// calls run on helper goroutines and post their results back to that loop, so
// no lock guards State. Invariants kept by the loop:
//
//   - at most one poll is in flight; scheduled ticks are skipped while one is
//   - at most one command is pending; further commands return ErrBusy
//   - a command's follow-up poll starts only after the command settles
//   - an artifact is fetched once per entry into pairing, tagged with an
//     attempt ID; results for older attempts are dropped
//   - a failed poll never replaces the last good snapshot, except a malformed
//     response, which is shown as not found
//
// Cancelling the context passed to Run stops the loop. Run returns once every
// helper goroutine has exited; their late results are discarded.
package instance
