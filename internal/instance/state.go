package instance

import (
	"time"

	"github.com/five82/courier/internal/evolution"
)

// ConnectionState is the normalized connection state of the watched instance.
type ConnectionState int

const (
	StateNotFound ConnectionState = iota
	StateClosed
	StateConnecting
	StatePairing
	StateOpen
)

func (s ConnectionState) String() string {
	switch s {
	case StateNotFound:
		return "not_found"
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StatePairing:
		return "pairing"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ParseConnectionState maps the gateway's raw state string. Matching is exact;
// anything else, including other casings, maps to StateClosed.
func ParseConnectionState(raw string) ConnectionState {
	switch raw {
	case "open":
		return StateOpen
	case "connecting":
		return StateConnecting
	case "qrcode":
		return StatePairing
	default:
		return StateClosed
	}
}

// Snapshot is one poll's view of the watched instance. It is never mutated
// after construction.
type Snapshot struct {
	Found        bool
	State        ConnectionState
	RawState     string
	Owner        string
	DisplayName  string
	MessageCount *int
	ContactCount *int
	ChatCount    *int
	FetchedAt    time.Time
}

// ConnectionState returns StateNotFound for absent instances and State otherwise.
func (s Snapshot) ConnectionState() ConnectionState {
	if !s.Found {
		return StateNotFound
	}
	return s.State
}

// NotFoundSnapshot returns the snapshot for an absent instance.
func NotFoundSnapshot(at time.Time) Snapshot {
	return Snapshot{Found: false, State: StateNotFound, FetchedAt: at}
}

// SnapshotFrom normalizes a gateway instance record.
func SnapshotFrom(inst evolution.Instance, at time.Time) Snapshot {
	return Snapshot{
		Found:        true,
		State:        ParseConnectionState(inst.Status),
		RawState:     inst.Status,
		Owner:        inst.OwnerJID,
		DisplayName:  inst.ProfileName,
		MessageCount: inst.MessageCount,
		ContactCount: inst.ContactCount,
		ChatCount:    inst.ChatCount,
		FetchedAt:    at,
	}
}

// Command is a user-triggered mutation.
type Command int

const (
	CommandNone Command = iota
	CommandConnect
	CommandDisconnect
	CommandDelete
)

func (c Command) String() string {
	switch c {
	case CommandConnect:
		return "connect"
	case CommandDisconnect:
		return "disconnect"
	case CommandDelete:
		return "delete"
	default:
		return "none"
	}
}

// Artifact is a pairing artifact tied to one pairing attempt.
type Artifact struct {
	Image       []byte
	ImageType   string
	Code        string
	PairingCode string
	AttemptID   string
	FetchID     string // distinct for every fetch, including regenerations
	Source      ArtifactSource
	ObtainedAt  time.Time
}

// State is the reconciled view owned by the Reconciler and published to readers.
type State struct {
	Instance string
	Current  Snapshot
	Pending  Command
	Artifact *Artifact

	ArtifactLoading     bool
	LastPolled          time.Time
	LastPollError       error
	ConsecutiveFailures int
}

// IsOffline reports whether the gateway has failed several polls in a row.
func (s State) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Busy reports whether a command is in flight.
func (s State) Busy() bool {
	return s.Pending != CommandNone
}

// Action is something the operator may do in the current state.
type Action int

const (
	ActionConnect Action = iota
	ActionDisconnect
	ActionDelete
	ActionRegenerate
)

func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "connect"
	case ActionDisconnect:
		return "disconnect"
	case ActionDelete:
		return "delete"
	case ActionRegenerate:
		return "regenerate"
	default:
		return "unknown"
	}
}

// Actions lists the actions offered for the current connection state. Nothing
// is offered while a command is in flight.
func (s State) Actions() []Action {
	if s.Busy() {
		return nil
	}
	switch s.Current.ConnectionState() {
	case StateNotFound:
		return []Action{ActionConnect}
	case StateClosed:
		return []Action{ActionConnect, ActionDelete}
	case StateConnecting:
		return []Action{ActionDelete}
	case StatePairing:
		return []Action{ActionRegenerate, ActionDelete}
	case StateOpen:
		return []Action{ActionDisconnect, ActionDelete}
	default:
		return nil
	}
}

// Allows reports whether a is currently offered.
func (s State) Allows(a Action) bool {
	for _, candidate := range s.Actions() {
		if candidate == a {
			return true
		}
	}
	return false
}
