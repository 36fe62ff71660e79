package instance

import (
	"errors"

	"github.com/five82/courier/internal/evolution"
)

var (
	// ErrBusy is returned when a command is issued while another is in flight.
	ErrBusy = errors.New("another command is in flight")
	// ErrStopped is returned when the reconciler loop is not running.
	ErrStopped = errors.New("reconciler is not running")
	// ErrNotPairing is returned when an artifact is requested outside PAIRING.
	ErrNotPairing = errors.New("instance is not waiting for pairing")
)

// FailureKind classifies gateway failures.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTransient
	FailureRejected
	FailureMalformed
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureRejected:
		return "rejected"
	case FailureMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Classify maps an error to its FailureKind. Unrecognized errors count as
// transient.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var rej *evolution.RejectionError
	switch {
	case errors.As(err, &rej):
		return FailureRejected
	case errors.Is(err, evolution.ErrMalformed):
		return FailureMalformed
	default:
		return FailureTransient
	}
}
