package instance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/five82/courier/internal/evolution"
)

// fakeGateway is an in-memory evolution.API. Methods listed in block wait on
// their gate channel (or ctx) before doing anything.
type fakeGateway struct {
	mu sync.Mutex

	instances      map[string]string
	afterConnect   string
	keepOnDelete   bool
	listErr        error
	connectErr     error
	createErr      error
	logoutErr      error
	deleteErr      error
	qrErr          error
	connectPayload evolution.PairingPayload
	qrPayload      evolution.PairingPayload

	block map[string]chan struct{}
	calls map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		instances:    map[string]string{},
		afterConnect: "qrcode",
		block:        map[string]chan struct{}{},
		calls:        map[string]int{},
	}
}

func (f *fakeGateway) set(fn func(f *fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGateway) gate(method string) chan struct{} {
	ch := make(chan struct{})
	f.set(func(f *fakeGateway) { f.block[method] = ch })
	return ch
}

func (f *fakeGateway) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeGateway) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	gate := f.block[method]
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", evolution.ErrTransient, ctx.Err())
	}
}

// ListInstances answers with the instances as they were when the request
// arrived, so a gated list returns a stale view once released.
func (f *fakeGateway) ListInstances(ctx context.Context) ([]evolution.Instance, error) {
	f.mu.Lock()
	f.calls["list"]++
	gate := f.block["list"]
	err := f.listErr
	out := make([]evolution.Instance, 0, len(f.instances))
	for name, status := range f.instances {
		out = append(out, evolution.Instance{Name: name, Status: status})
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", evolution.ErrTransient, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeGateway) Connect(ctx context.Context, name string) (evolution.PairingPayload, error) {
	if err := f.enter(ctx, "connect"); err != nil {
		return evolution.PairingPayload{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return evolution.PairingPayload{}, f.connectErr
	}
	if _, ok := f.instances[name]; ok {
		f.instances[name] = f.afterConnect
	}
	return f.connectPayload, nil
}

func (f *fakeGateway) Create(ctx context.Context, name string) (evolution.PairingPayload, error) {
	if err := f.enter(ctx, "create"); err != nil {
		return evolution.PairingPayload{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return evolution.PairingPayload{}, f.createErr
	}
	f.instances[name] = f.afterConnect
	return f.connectPayload, nil
}

func (f *fakeGateway) QRCode(ctx context.Context, name string) (evolution.PairingPayload, error) {
	if err := f.enter(ctx, "qrcode"); err != nil {
		return evolution.PairingPayload{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.qrPayload, f.qrErr
}

func (f *fakeGateway) Logout(ctx context.Context, name string) error {
	if err := f.enter(ctx, "logout"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logoutErr != nil {
		return f.logoutErr
	}
	if _, ok := f.instances[name]; ok {
		f.instances[name] = "close"
	}
	return nil
}

func (f *fakeGateway) Delete(ctx context.Context, name string) error {
	if err := f.enter(ctx, "delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !f.keepOnDelete {
		delete(f.instances, name)
	}
	return nil
}

// recorder captures every published State and Notice.
type recorder struct {
	mu      sync.Mutex
	states  []State
	notices []Notice
}

func (r *recorder) Publish(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return State{}
	}
	return r.states[len(r.states)-1]
}

func (r *recorder) history() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) noticesFor(topic Topic) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, n := range r.notices {
		if n.Topic == topic {
			out = append(out, n)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// startReconciler runs a reconciler for "agente" with a long interval so only
// the initial poll and out-of-band polls happen. It returns once the initial
// poll has been applied.
func startReconciler(t *testing.T, api *fakeGateway, opts Options) (*Reconciler, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts.Instance = "agente"
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	opts.Publisher = rec
	opts.Notifier = rec

	r, err := NewReconciler(api, opts)
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Errorf("reconciler did not stop")
		}
	})

	waitFor(t, "initial poll", func() bool {
		s := rec.last()
		return !s.LastPolled.IsZero() || s.ConsecutiveFailures > 0
	})
	return r, rec
}
