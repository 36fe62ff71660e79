package instance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/five82/courier/internal/evolution"
)

// ArtifactSource names the gateway endpoint that yields pairing artifacts.
type ArtifactSource string

const (
	SourceConnect ArtifactSource = "connect"
	SourceQRCode  ArtifactSource = "qrcode"
)

// ParseArtifactSource validates a configured source name. Empty means connect.
func ParseArtifactSource(raw string) (ArtifactSource, error) {
	switch ArtifactSource(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SourceConnect:
		return SourceConnect, nil
	case SourceQRCode:
		return SourceQRCode, nil
	default:
		return "", fmt.Errorf("unknown artifact source %q (want connect or qrcode)", raw)
	}
}

func (s ArtifactSource) other() ArtifactSource {
	if s == SourceQRCode {
		return SourceConnect
	}
	return SourceQRCode
}

// ArtifactFetcher retrieves the pairing artifact for the current attempt.
//
// Gateways differ in where they put the artifact, so the fetcher starts with
// the preferred endpoint and falls back to the other one when the first is
// rejected or returns no artifact. Whichever endpoint succeeds becomes the
// preferred one. Concurrent fetches share a single request.
type ArtifactFetcher struct {
	api  evolution.API
	name string
	now  func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	preferred ArtifactSource
}

// NewArtifactFetcher returns a fetcher for instance name starting with source.
func NewArtifactFetcher(api evolution.API, name string, source ArtifactSource) *ArtifactFetcher {
	if source == "" {
		source = SourceConnect
	}
	return &ArtifactFetcher{api: api, name: name, now: time.Now, preferred: source}
}

// Preferred returns the endpoint tried first.
func (f *ArtifactFetcher) Preferred() ArtifactSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preferred
}

// Fetch retrieves the artifact. A transient failure on the first endpoint is
// returned immediately without trying the other one.
func (f *ArtifactFetcher) Fetch(ctx context.Context) (Artifact, error) {
	v, err, _ := f.group.Do(f.name, func() (any, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return Artifact{}, err
	}
	return v.(Artifact), nil
}

func (f *ArtifactFetcher) fetch(ctx context.Context) (Artifact, error) {
	first := f.Preferred()
	var lastErr error
	for _, src := range []ArtifactSource{first, first.other()} {
		payload, err := f.call(ctx, src)
		if err != nil {
			if Classify(err) == FailureTransient {
				return Artifact{}, err
			}
			lastErr = err
			continue
		}
		if !payload.HasArtifact() {
			lastErr = fmt.Errorf("%w: %s endpoint returned no pairing artifact", evolution.ErrMalformed, src)
			continue
		}
		f.mu.Lock()
		f.preferred = src
		f.mu.Unlock()
		return Artifact{
			Image:       payload.Image,
			ImageType:   payload.ImageType,
			Code:        payload.Code,
			PairingCode: payload.PairingCode,
			Source:      src,
			ObtainedAt:  f.now(),
		}, nil
	}
	return Artifact{}, lastErr
}

func (f *ArtifactFetcher) call(ctx context.Context, src ArtifactSource) (evolution.PairingPayload, error) {
	if src == SourceQRCode {
		return f.api.QRCode(ctx, f.name)
	}
	return f.api.Connect(ctx, f.name)
}
