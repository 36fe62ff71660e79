package instance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/five82/courier/internal/evolution"
)

func TestParseConnectionState(t *testing.T) {
	tests := map[string]ConnectionState{
		"open":       StateOpen,
		"OPEN":       StateClosed,
		" open":      StateClosed,
		"QRCODE":     StateClosed,
		"connecting": StateConnecting,
		"qrcode":     StatePairing,
		"close":      StateClosed,
		"":           StateClosed,
		"refused":    StateClosed,
	}
	for raw, want := range tests {
		if got := ParseConnectionState(raw); got != want {
			t.Errorf("ParseConnectionState(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestState_Actions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []Action
	}{
		{name: "not found", state: State{}, want: []Action{ActionConnect}},
		{name: "closed", state: stateIn(StateClosed), want: []Action{ActionConnect, ActionDelete}},
		{name: "connecting", state: stateIn(StateConnecting), want: []Action{ActionDelete}},
		{name: "pairing", state: stateIn(StatePairing), want: []Action{ActionRegenerate, ActionDelete}},
		{name: "open", state: stateIn(StateOpen), want: []Action{ActionDisconnect, ActionDelete}},
		{name: "busy", state: func() State {
			s := stateIn(StateOpen)
			s.Pending = CommandDisconnect
			return s
		}(), want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.state.Actions()); diff != "" {
				t.Fatalf("actions mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if !stateIn(StateOpen).Allows(ActionDisconnect) {
		t.Fatalf("open should allow disconnect")
	}
	if stateIn(StateOpen).Allows(ActionConnect) {
		t.Fatalf("open should not allow connect")
	}
}

func TestState_IsOffline(t *testing.T) {
	for failures, want := range map[int]bool{0: false, 1: false, 2: true, 5: true} {
		if got := (State{ConsecutiveFailures: failures}).IsOffline(); got != want {
			t.Errorf("IsOffline with %d failures = %v, want %v", failures, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{nil, FailureNone},
		{fmt.Errorf("%w: refused", evolution.ErrTransient), FailureTransient},
		{errors.New("something else"), FailureTransient},
		{fmt.Errorf("list: %w", &evolution.RejectionError{Status: 401}), FailureRejected},
		{fmt.Errorf("%w: no state", evolution.ErrMalformed), FailureMalformed},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func stateIn(cs ConnectionState) State {
	return State{Instance: "agente", Current: Snapshot{Found: true, State: cs}}
}
