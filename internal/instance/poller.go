package instance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/five82/courier/internal/evolution"
)

// Poller queries the gateway for the watched instance.
type Poller struct {
	api  evolution.API
	name string
	now  func() time.Time
}

// NewPoller returns a Poller for the instance called name.
func NewPoller(api evolution.API, name string) *Poller {
	return &Poller{api: api, name: name, now: time.Now}
}

// Poll lists instances and extracts the watched one by exact, case-sensitive
// name. An absent instance yields a NotFound snapshot and no error. A
// malformed listing, or a matching entry with no connection state, yields a
// NotFound snapshot together with an error wrapping evolution.ErrMalformed.
// Any other failure returns a zero Snapshot and the error.
func (p *Poller) Poll(ctx context.Context) (Snapshot, error) {
	list, err := p.api.ListInstances(ctx)
	at := p.now()
	if err != nil {
		if errors.Is(err, evolution.ErrMalformed) {
			return NotFoundSnapshot(at), err
		}
		return Snapshot{}, err
	}
	for _, inst := range list {
		if inst.Name != p.name {
			continue
		}
		if strings.TrimSpace(inst.Status) == "" {
			return NotFoundSnapshot(at), fmt.Errorf("%w: instance %q has no connection state", evolution.ErrMalformed, p.name)
		}
		return SnapshotFrom(inst, at), nil
	}
	return NotFoundSnapshot(at), nil
}
