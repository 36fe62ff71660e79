package ui

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/courier/internal/evolution"
	"github.com/five82/courier/internal/instance"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 2, "he"},
		{"hello", 0, ""},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestTruncateMiddle(t *testing.T) {
	if got := truncateMiddle("  ", 10); got != "" {
		t.Fatalf("truncateMiddle blank = %q, want empty", got)
	}
	if got := truncateMiddle("abcdefgh", 4); got != "abcd" {
		t.Fatalf("truncateMiddle short limit = %q, want abcd", got)
	}
	got := truncateMiddle("/home/op/.local/share/courier/pairing-agente.png", 30)
	if len([]rune(got)) != 30 {
		t.Fatalf("got %q (%d runes), want 30", got, len([]rune(got)))
	}
	if got[len(got)-4:] != ".png" {
		t.Fatalf("truncateMiddle dropped the file name: %q", got)
	}
}

func TestFormatOwner(t *testing.T) {
	if got := formatOwner("5511999990000@s.whatsapp.net"); got != "+5511999990000" {
		t.Fatalf("formatOwner = %q", got)
	}
	if got := formatOwner("plain"); got != "plain" {
		t.Fatalf("formatOwner without server = %q", got)
	}
}

func TestFormatCounts(t *testing.T) {
	n := func(v int) *int { return &v }
	if got := formatCounts(n(42), nil, n(3)); got != "42 messages  3 chats" {
		t.Fatalf("formatCounts = %q", got)
	}
	if got := formatCounts(nil, nil, nil); got != "" {
		t.Fatalf("formatCounts with no counts = %q, want empty", got)
	}
}

func TestFormatPairingCode(t *testing.T) {
	cases := map[string]string{
		"wzyeh1yy":  "WZYE-H1YY",
		"WZYE-H1YY": "WZYE-H1YY",
		" ":         "",
		"ABC":       "ABC",
	}
	for in, want := range cases {
		if got := formatPairingCode(in); got != want {
			t.Fatalf("formatPairingCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestArtifactPath(t *testing.T) {
	if got := artifactPath("/d", "agente", "image/png"); got != filepath.Join("/d", "pairing-agente.png") {
		t.Fatalf("artifactPath = %q", got)
	}
	if got := artifactPath("/d", "../sales team", "image/jpeg"); got != filepath.Join("/d", "pairing-___sales_team.jpg") {
		t.Fatalf("artifactPath did not sanitize: %q", got)
	}
}

func TestWriteArtifact_NoImageWritesNothing(t *testing.T) {
	path, err := writeArtifact(t.TempDir(), "agente", instance.Artifact{Code: "2@abc"})
	if err != nil || path != "" {
		t.Fatalf("writeArtifact = (%q, %v), want nothing written", path, err)
	}
	if _, err := writeArtifact("", "agente", instance.Artifact{Image: []byte("x")}); err == nil {
		t.Fatal("expected an error without a directory")
	}
}

func TestDescribePollError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&evolution.RejectionError{Status: 401}, "gateway refused the API key (HTTP 401)"},
		{&evolution.RejectionError{Status: 500}, "gateway returned HTTP 500"},
		{fmt.Errorf("list: %w", evolution.ErrMalformed), "gateway sent an unexpected response"},
		{fmt.Errorf("list: %w", evolution.ErrTransient), "gateway unreachable"},
		{errors.New("other"), "other"},
	}
	for _, tc := range cases {
		if got := describePollError(tc.err); got != tc.want {
			t.Fatalf("describePollError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestHumanizeSince(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{0, "now"},
		{12 * time.Second, "12s ago"},
		{3 * time.Minute, "3m ago"},
		{2 * time.Hour, "2h ago"},
	}
	for _, tc := range cases {
		if got := humanizeSince(now.Add(-tc.ago), now); got != tc.want {
			t.Fatalf("humanizeSince(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}
