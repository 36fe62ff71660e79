package evolution

import (
	"errors"
	"testing"
)

func TestDecodePairing_Shapes(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantImage   string
		wantType    string
		wantCode    string
		wantPairing string
		wantAny     bool
	}{
		{
			name:        "connect endpoint flat fields",
			body:        `{"pairingCode":"WZYEH1YY","code":"2@abc","base64":"data:image/png;base64,aGVsbG8=","count":1}`,
			wantImage:   "hello",
			wantType:    "image/png",
			wantCode:    "2@abc",
			wantPairing: "WZYEH1YY",
			wantAny:     true,
		},
		{
			name:      "qrcode endpoint nested object",
			body:      `{"qrcode":{"base64":"data:image/jpeg;base64,aGVsbG8=","code":"2@def"}}`,
			wantImage: "hello",
			wantType:  "image/jpeg",
			wantCode:  "2@def",
			wantAny:   true,
		},
		{
			name:      "artifact field with bare base64",
			body:      `{"artifact":"aGVsbG8="}`,
			wantImage: "hello",
			wantType:  "image/png",
			wantAny:   true,
		},
		{
			name:      "qrcode as bare string",
			body:      `{"qrcode":"data:image/png;base64,aGVsbG8"}`,
			wantImage: "hello",
			wantType:  "image/png",
			wantAny:   true,
		},
		{
			name:     "code only",
			body:     `{"code":"2@only"}`,
			wantCode: "2@only",
			wantAny:  true,
		},
		{
			name:    "already connected answer",
			body:    `{"instance":{"instanceName":"agente","state":"open"}}`,
			wantAny: false,
		},
		{
			name:    "empty body",
			body:    "",
			wantAny: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePairing([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodePairing returned error: %v", err)
			}
			if string(got.Image) != tt.wantImage {
				t.Fatalf("Image = %q, want %q", got.Image, tt.wantImage)
			}
			if got.ImageType != tt.wantType {
				t.Fatalf("ImageType = %q, want %q", got.ImageType, tt.wantType)
			}
			if got.Code != tt.wantCode || got.PairingCode != tt.wantPairing {
				t.Fatalf("codes = %q/%q, want %q/%q", got.Code, got.PairingCode, tt.wantCode, tt.wantPairing)
			}
			if got.HasArtifact() != tt.wantAny {
				t.Fatalf("HasArtifact = %v, want %v", got.HasArtifact(), tt.wantAny)
			}
		})
	}
}

func TestDecodePairing_Malformed(t *testing.T) {
	for _, body := range []string{
		`[1,2,3]`,
		`{"base64":"%%%not-base64%%%"}`,
		`{"base64":"data:image/png,plain"}`,
		`{"qrcode":{"base64":12}}`,
	} {
		if _, err := DecodePairing([]byte(body)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("DecodePairing(%s) error = %v, want ErrMalformed", body, err)
		}
	}
}
