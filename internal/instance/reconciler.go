package instance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/courier/internal/evolution"
)

// DefaultPollInterval is the cadence of scheduled polls.
const DefaultPollInterval = 5 * time.Second

// Publisher receives a copy of the reconciled State after every change.
type Publisher interface {
	Publish(State)
}

// Options configure a Reconciler.
type Options struct {
	Instance  string
	Interval  time.Duration // zero uses DefaultPollInterval
	Source    ArtifactSource
	Notifier  Notifier
	Publisher Publisher
	Logger    *zap.Logger
}

// Reconciler owns the reconciled State of one gateway instance. All state
// changes happen on the goroutine running Run; gateway calls run on helper
// goroutines and hand their results back to that loop.
type Reconciler struct {
	api       evolution.API
	name      string
	interval  time.Duration
	poller    *Poller
	fetcher   *ArtifactFetcher
	notifier  Notifier
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time
	newID     func() string

	requests chan request
	events   chan any
	done     chan struct{}
	started  atomic.Bool
	wg       sync.WaitGroup

	// Owned by the Run goroutine.
	state   State
	polling bool
	repoll  bool
	attempt string
	fetches int
	// gen counts settled commands; polls issued under an older gen are dropped.
	gen uint64
}

type pollReason int

const (
	pollScheduled pollReason = iota
	pollOutOfBand
)

type requestKind int

const (
	requestCommand requestKind = iota
	requestRefresh
	requestRegenerate
)

type request struct {
	kind    requestKind
	command Command
	reply   chan error
}

type pollResult struct {
	gen  uint64
	snap Snapshot
	err  error
}

type commandResult struct {
	command Command
	created bool
	err     error
}

type artifactResult struct {
	attempt  string
	fetch    string
	artifact Artifact
	err      error
}

// NewReconciler builds a Reconciler for opts.Instance. Call Run to start it.
func NewReconciler(api evolution.API, opts Options) (*Reconciler, error) {
	if api == nil {
		return nil, errors.New("gateway api is nil")
	}
	if opts.Instance == "" {
		return nil, errors.New("instance name required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		api:       api,
		name:      opts.Instance,
		interval:  interval,
		poller:    NewPoller(api, opts.Instance),
		fetcher:   NewArtifactFetcher(api, opts.Instance, opts.Source),
		notifier:  opts.Notifier,
		publisher: opts.Publisher,
		log:       logger.With(zap.String("instance", opts.Instance)),
		now:       time.Now,
		newID:     uuid.NewString,
		requests:  make(chan request),
		events:    make(chan any),
		done:      make(chan struct{}),
		state: State{
			Instance: opts.Instance,
			Current:  NotFoundSnapshot(time.Time{}),
		},
	}, nil
}

// Instance returns the watched instance name.
func (r *Reconciler) Instance() string { return r.name }

// Run polls immediately and then on every interval until ctx is cancelled.
// It returns after every helper goroutine has finished; results that arrive
// after cancellation are discarded.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("reconciler already started")
	}
	defer func() {
		close(r.done)
		r.wg.Wait()
		r.log.Info("reconciler stopped")
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reconciler started", zap.Duration("interval", r.interval))
	r.publish()
	r.startPoll(ctx, pollScheduled)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.startPoll(ctx, pollScheduled)
		case req := <-r.requests:
			if ctx.Err() != nil {
				return nil
			}
			r.handle(ctx, req)
		case ev := <-r.events:
			if ctx.Err() != nil {
				return nil
			}
			switch res := ev.(type) {
			case pollResult:
				r.applyPoll(ctx, res)
			case commandResult:
				r.applyCommand(ctx, res)
			case artifactResult:
				r.applyArtifact(res)
			}
		}
	}
}

// Connect opens a session, or creates the instance when the gateway does not
// know it. It returns ErrBusy when another command is in flight.
func (r *Reconciler) Connect(ctx context.Context) error {
	return r.submit(ctx, request{kind: requestCommand, command: CommandConnect})
}

// Disconnect logs the instance out.
func (r *Reconciler) Disconnect(ctx context.Context) error {
	return r.submit(ctx, request{kind: requestCommand, command: CommandDisconnect})
}

// Delete removes the instance from the gateway.
func (r *Reconciler) Delete(ctx context.Context) error {
	return r.submit(ctx, request{kind: requestCommand, command: CommandDelete})
}

// Refresh requests an immediate poll. If a poll is in flight, one more poll
// runs as soon as it settles.
func (r *Reconciler) Refresh(ctx context.Context) error {
	return r.submit(ctx, request{kind: requestRefresh})
}

// RegenerateArtifact fetches a fresh pairing artifact. It returns
// ErrNotPairing outside the pairing state.
func (r *Reconciler) RegenerateArtifact(ctx context.Context) error {
	return r.submit(ctx, request{kind: requestRegenerate})
}

func (r *Reconciler) submit(ctx context.Context, req request) error {
	if !r.started.Load() {
		return ErrStopped
	}
	req.reply = make(chan error, 1)
	select {
	case r.requests <- req:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-r.done:
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrStopped
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, req request) {
	switch req.kind {
	case requestRefresh:
		r.startPoll(ctx, pollOutOfBand)
		req.reply <- nil

	case requestRegenerate:
		if r.state.Current.ConnectionState() != StatePairing {
			req.reply <- ErrNotPairing
			return
		}
		if r.attempt == "" {
			r.attempt = r.newID()
		}
		r.startFetch(ctx)
		r.publish()
		req.reply <- nil

	case requestCommand:
		if r.state.Pending != CommandNone {
			r.log.Info("command rejected",
				zap.Stringer("command", req.command),
				zap.Stringer("pending", r.state.Pending))
			req.reply <- ErrBusy
			return
		}
		cmd := req.command
		create := cmd == CommandConnect && !r.state.Current.Found
		r.state.Pending = cmd
		r.publish()
		req.reply <- nil

		r.log.Info("command issued", zap.Stringer("command", cmd), zap.Bool("create", create))
		r.spawn(func() {
			err := r.execute(ctx, cmd, create)
			r.post(commandResult{command: cmd, created: create, err: err})
		})
	}
}

func (r *Reconciler) execute(ctx context.Context, cmd Command, create bool) error {
	switch cmd {
	case CommandConnect:
		var (
			payload evolution.PairingPayload
			err     error
		)
		if create {
			payload, err = r.api.Create(ctx, r.name)
		} else {
			payload, err = r.api.Connect(ctx, r.name)
		}
		if err == nil && payload.HasArtifact() {
			r.log.Debug("connect response carried pairing material")
		}
		return err
	case CommandDisconnect:
		return r.api.Logout(ctx, r.name)
	case CommandDelete:
		return r.api.Delete(ctx, r.name)
	default:
		return fmt.Errorf("unknown command %d", cmd)
	}
}

func (r *Reconciler) startPoll(ctx context.Context, reason pollReason) {
	if r.polling {
		if reason == pollScheduled {
			r.log.Debug("poll skipped, previous poll still in flight")
			return
		}
		r.repoll = true
		return
	}
	r.polling = true
	gen := r.gen
	r.spawn(func() {
		snap, err := r.poller.Poll(ctx)
		r.post(pollResult{gen: gen, snap: snap, err: err})
	})
}

func (r *Reconciler) applyPoll(ctx context.Context, res pollResult) {
	r.polling = false

	if res.gen != r.gen {
		// Issued before the last command settled. The follow-up poll queued by
		// that command replaces it.
		r.log.Debug("discarding poll issued before the last command settled")
		r.repoll = true
	} else {
		r.applyPollResult(ctx, res)
	}

	if r.repoll {
		r.repoll = false
		r.startPoll(ctx, pollOutOfBand)
	}
}

func (r *Reconciler) applyPollResult(ctx context.Context, res pollResult) {
	switch kind := Classify(res.err); kind {
	case FailureNone:
		r.state.LastPollError = nil
		r.state.ConsecutiveFailures = 0
		r.applySnapshot(ctx, res.snap)
	case FailureMalformed:
		r.state.LastPollError = res.err
		r.state.ConsecutiveFailures++
		r.log.Warn("poll returned malformed response", zap.Error(res.err))
		r.notify(LevelWarning, TopicPoll, "Unexpected gateway response", res.err.Error())
		r.applySnapshot(ctx, res.snap)
	default:
		r.state.LastPollError = res.err
		r.state.ConsecutiveFailures++
		r.log.Warn("poll failed",
			zap.Stringer("kind", kind),
			zap.Int("consecutive", r.state.ConsecutiveFailures),
			zap.Error(res.err))
		r.notify(LevelError, TopicPoll, "Gateway poll failed", res.err.Error())
	}
	r.publish()
}

func (r *Reconciler) applySnapshot(ctx context.Context, snap Snapshot) {
	prev := r.state.Current.ConnectionState()
	r.state.Current = snap
	r.state.LastPolled = snap.FetchedAt

	next := snap.ConnectionState()
	if prev == next {
		return
	}
	r.log.Info("connection state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	r.notify(LevelInfo, TopicTransition, transitionTitle(next), fmt.Sprintf("%s -> %s", prev, next))

	if prev == StatePairing {
		r.clearArtifact()
	}
	if next == StatePairing {
		r.attempt = r.newID()
		r.log.Info("pairing attempt started", zap.String("attempt", r.attempt))
		r.startFetch(ctx)
	}
}

func (r *Reconciler) applyCommand(ctx context.Context, res commandResult) {
	r.state.Pending = CommandNone
	r.gen++

	if res.err != nil {
		kind := Classify(res.err)
		r.log.Warn("command failed",
			zap.Stringer("command", res.command),
			zap.Stringer("kind", kind),
			zap.Error(res.err))
		r.notify(LevelError, TopicCommand, commandFailedTitle(res.command), res.err.Error())
	} else {
		r.log.Info("command completed", zap.Stringer("command", res.command))
		switch res.command {
		case CommandConnect:
			if res.created {
				r.notify(LevelInfo, TopicCommand, "Instance created", "Waiting for the QR code.")
			} else {
				r.notify(LevelInfo, TopicCommand, "Connecting", "Waiting for the QR code.")
			}
		case CommandDisconnect:
			r.notify(LevelInfo, TopicCommand, "Disconnecting", "The session is being closed.")
		case CommandDelete:
			prev := r.state.Current.ConnectionState()
			r.state.Current = NotFoundSnapshot(r.now())
			r.clearArtifact()
			if prev != StateNotFound {
				r.notify(LevelInfo, TopicTransition, transitionTitle(StateNotFound), fmt.Sprintf("%s -> %s", prev, StateNotFound))
			}
			r.notify(LevelInfo, TopicCommand, "Instance deleted", "The instance was removed from the gateway.")
		}
	}
	r.publish()
	r.startPoll(ctx, pollOutOfBand)
}

func (r *Reconciler) startFetch(ctx context.Context) {
	attempt, fetch := r.attempt, r.newID()
	r.fetches++
	r.state.ArtifactLoading = true
	r.spawn(func() {
		art, err := r.fetcher.Fetch(ctx)
		r.post(artifactResult{attempt: attempt, fetch: fetch, artifact: art, err: err})
	})
}

func (r *Reconciler) applyArtifact(res artifactResult) {
	r.fetches--
	r.state.ArtifactLoading = r.fetches > 0

	if res.attempt != r.attempt || r.state.Current.ConnectionState() != StatePairing {
		r.log.Debug("discarding pairing artifact for a finished attempt", zap.String("attempt", res.attempt))
		r.publish()
		return
	}
	if res.err != nil {
		r.log.Warn("pairing artifact fetch failed",
			zap.String("attempt", res.attempt),
			zap.Stringer("kind", Classify(res.err)),
			zap.Error(res.err))
		r.notify(LevelWarning, TopicArtifact, "Could not fetch the QR code", res.err.Error())
		r.publish()
		return
	}
	art := res.artifact
	art.AttemptID = res.attempt
	art.FetchID = res.fetch
	r.state.Artifact = &art
	r.log.Info("pairing artifact ready",
		zap.String("attempt", res.attempt),
		zap.String("fetch", res.fetch),
		zap.String("source", string(art.Source)),
		zap.Int("bytes", len(art.Image)))
	r.notify(LevelInfo, TopicArtifact, "QR code ready", "Scan it from WhatsApp > Linked devices.")
	r.publish()
}

func (r *Reconciler) clearArtifact() {
	r.state.Artifact = nil
	r.attempt = ""
}

func (r *Reconciler) spawn(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// post hands a result to the loop, or drops it once the loop has stopped.
func (r *Reconciler) post(ev any) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Reconciler) publish() {
	if r.publisher != nil {
		r.publisher.Publish(r.state)
	}
}

func (r *Reconciler) notify(level Level, topic Topic, title, detail string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(Notice{
		At:       r.now(),
		Instance: r.name,
		Level:    level,
		Topic:    topic,
		Title:    title,
		Detail:   detail,
	})
}

func transitionTitle(s ConnectionState) string {
	switch s {
	case StateOpen:
		return "WhatsApp connected"
	case StateConnecting:
		return "Connecting"
	case StatePairing:
		return "Waiting for QR scan"
	case StateClosed:
		return "Disconnected"
	default:
		return "Instance not found"
	}
}

func commandFailedTitle(c Command) string {
	switch c {
	case CommandConnect:
		return "Could not connect the instance"
	case CommandDisconnect:
		return "Could not disconnect the instance"
	case CommandDelete:
		return "Could not delete the instance"
	default:
		return "Command failed"
	}
}
