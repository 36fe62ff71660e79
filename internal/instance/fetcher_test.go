package instance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/five82/courier/internal/evolution"
)

func TestParseArtifactSource(t *testing.T) {
	tests := []struct {
		in      string
		want    ArtifactSource
		wantErr bool
	}{
		{in: "", want: SourceConnect},
		{in: "connect", want: SourceConnect},
		{in: " QRCode ", want: SourceQRCode},
		{in: "pairing", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseArtifactSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseArtifactSource(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseArtifactSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArtifactFetcher_PreferredSourceFirst(t *testing.T) {
	api := newFakeGateway()
	api.connectPayload = evolution.PairingPayload{Image: pngBytes, ImageType: "image/png", PairingCode: "ABCD-1234"}
	api.qrPayload = evolution.PairingPayload{Image: []byte("other"), ImageType: "image/png"}

	f := NewArtifactFetcher(api, "agente", SourceConnect)
	art, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if art.Source != SourceConnect || art.PairingCode != "ABCD-1234" {
		t.Fatalf("artifact = %+v, want connect source with pairing code", art)
	}
	if api.count("qrcode") != 0 {
		t.Fatalf("fallback used although preferred source succeeded")
	}
	if art.ObtainedAt.IsZero() {
		t.Fatalf("ObtainedAt not set")
	}
}

func TestArtifactFetcher_FallsBackAndRemembers(t *testing.T) {
	api := newFakeGateway()
	api.qrPayload = evolution.PairingPayload{Image: pngBytes, ImageType: "image/png"}

	f := NewArtifactFetcher(api, "agente", SourceConnect)
	art, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if art.Source != SourceQRCode {
		t.Fatalf("Source = %q, want qrcode", art.Source)
	}
	if f.Preferred() != SourceQRCode {
		t.Fatalf("Preferred = %q, want qrcode after fallback", f.Preferred())
	}

	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if got := api.count("connect"); got != 1 {
		t.Fatalf("connect called %d times, want 1", got)
	}
	if got := api.count("qrcode"); got != 2 {
		t.Fatalf("qrcode called %d times, want 2", got)
	}
}

func TestArtifactFetcher_RejectionFallsBack(t *testing.T) {
	api := newFakeGateway()
	api.qrErr = &evolution.RejectionError{Method: "GET", Path: "/instance/qrcode/agente", Status: 404}
	api.connectPayload = evolution.PairingPayload{Image: pngBytes, ImageType: "image/png"}

	art, err := NewArtifactFetcher(api, "agente", SourceQRCode).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if art.Source != SourceConnect {
		t.Fatalf("Source = %q, want connect", art.Source)
	}
}

func TestArtifactFetcher_TransientDoesNotFallBack(t *testing.T) {
	api := newFakeGateway()
	api.connectErr = fmt.Errorf("%w: timeout", evolution.ErrTransient)
	api.qrPayload = evolution.PairingPayload{Image: pngBytes}

	_, err := NewArtifactFetcher(api, "agente", SourceConnect).Fetch(context.Background())
	if !errors.Is(err, evolution.ErrTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
	if api.count("qrcode") != 0 {
		t.Fatalf("fallback attempted after transient failure")
	}
}

func TestArtifactFetcher_NoArtifactAnywhere(t *testing.T) {
	api := newFakeGateway()

	_, err := NewArtifactFetcher(api, "agente", SourceConnect).Fetch(context.Background())
	if Classify(err) != FailureMalformed {
		t.Fatalf("err = %v, want malformed", err)
	}
	if api.count("connect") != 1 || api.count("qrcode") != 1 {
		t.Fatalf("connect=%d qrcode=%d, want one each", api.count("connect"), api.count("qrcode"))
	}
}
