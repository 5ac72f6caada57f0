// Package recovery tracks a redirect-based sign-in across the external-app
// hand-off. The originating process may be suspended or killed before the
// redirect returns, so every piece of this state machine lives in the durable
// flag store and is re-read on each transition.
package recovery

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shuttertrack/shuttertrack/internal/flagstore"
	"go.uber.org/zap"
)

// Flag keys, fixed for compatibility with state written by older releases.
const (
	keyPendingCallback = "PendingOAuthCallback"
	keyInProgress      = "GoogleSignInInProgress"
	keyStartedUTC      = "GoogleSignInStartedUtc"
	keyResumeAttempts  = "GoogleSignInResumeAttempts"
)

const (
	// resumeTimeout bounds how long a started flow may wait for its redirect.
	resumeTimeout = 5 * time.Minute
	// maxResumeAttempts bounds automatic relaunches of the external hand-off.
	maxResumeAttempts = 3
)

// defaultPollDelays is the bounded re-check schedule used after a relaunch,
// because the platform gives no push signal for "redirect arrived while
// suspended".
var defaultPollDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Launcher re-invokes the external sign-in flow. Injected at construction so
// the hand-off is a capability, not something this package probes for.
type Launcher interface {
	Relaunch(ctx context.Context) error
}

// NoopLauncher does nothing. Used where no external flow is available.
type NoopLauncher struct{}

func (NoopLauncher) Relaunch(context.Context) error { return nil }

// StateKind tags the tracker's persisted state.
type StateKind int

const (
	StateIdle StateKind = iota
	StateStarted
	StateDelivered
)

// State is the tagged view over the underlying flags. A partially written
// flag set (URI present without the in-progress marker, or vice versa) reads
// as the closest safe kind; Consume only fires when both halves are present.
type State struct {
	Kind       StateKind
	StartedAt  time.Time
	Attempts   int
	PendingURI string
}

// ResumeOutcome reports what AttemptResume did.
type ResumeOutcome int

const (
	// ResumeIdle: no sign-in is in progress.
	ResumeIdle ResumeOutcome = iota
	// ResumeDelivered: a callback URI is waiting; the caller should Consume it.
	ResumeDelivered
	// ResumeRelaunched: the external flow was re-invoked.
	ResumeRelaunched
	// ResumeTimedOut: the flow exceeded its window and was cleared.
	ResumeTimedOut
	// ResumeExhausted: the relaunch budget is spent; flags were left as-is.
	ResumeExhausted
)

// Tracker is the single-instance recovery state machine. One redirect flow
// may be outstanding at a time.
type Tracker struct {
	flags    flagstore.Store
	launcher Launcher
	log      *zap.Logger

	mu         sync.Mutex
	now        func() time.Time
	pollDelays []time.Duration
}

// NewTracker builds a tracker over the durable flag store.
func NewTracker(flags flagstore.Store, launcher Launcher, log *zap.Logger) *Tracker {
	if launcher == nil {
		launcher = NoopLauncher{}
	}
	return &Tracker{
		flags:      flags,
		launcher:   launcher,
		log:        log,
		now:        time.Now,
		pollDelays: defaultPollDelays,
	}
}

// Begin marks a redirect sign-in as started: Idle -> Started.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.flags.Set(keyInProgress, "true"); err != nil {
		return err
	}
	if err := t.flags.Set(keyStartedUTC, strconv.FormatInt(t.now().UTC().UnixMilli(), 10)); err != nil {
		return err
	}
	if err := t.flags.Set(keyResumeAttempts, "0"); err != nil {
		return err
	}
	return nil
}

// Deliver records the callback URI routed back by the platform shell. Called
// from the URL-dispatch entry point, possibly on cold start and possibly
// racing Begin or Consume; readers tolerate the partial states that can
// produce.
func (t *Tracker) Deliver(uri string) error {
	if uri == "" {
		return nil
	}
	return t.flags.Set(keyPendingCallback, uri)
}

// Consume returns the delivered URI and clears the whole state, or ("",
// false) when nothing usable is stored. Only the first caller to observe a
// non-empty URI gets it; later and concurrent callers see cleared state. The
// clear follows the successful read, so a crash in between re-delivers
// rather than losing the callback.
func (t *Tracker) Consume() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	uri, err := t.flags.Get(keyPendingCallback, "")
	if err != nil || uri == "" {
		return "", false
	}
	inProgress, err := t.flags.Get(keyInProgress, "")
	if err != nil || inProgress != "true" {
		return "", false
	}

	t.clearLocked()
	return uri, true
}

// State returns the tagged view of the persisted flags.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readLocked()
}

// AttemptResume is invoked opportunistically (process resume, app foreground)
// while a flow is outstanding. It times out stale flows, stops after the
// relaunch budget, and otherwise re-invokes the external flow and briefly
// polls for a late-arriving callback.
func (t *Tracker) AttemptResume(ctx context.Context) (ResumeOutcome, error) {
	t.mu.Lock()
	state := t.readLocked()

	switch state.Kind {
	case StateIdle:
		t.mu.Unlock()
		return ResumeIdle, nil
	case StateDelivered:
		t.mu.Unlock()
		return ResumeDelivered, nil
	}

	elapsed := t.now().UTC().Sub(state.StartedAt)
	if elapsed > resumeTimeout {
		t.clearLocked()
		t.mu.Unlock()
		t.log.Info("redirect sign-in timed out", zap.Duration("elapsed", elapsed))
		return ResumeTimedOut, nil
	}

	if state.Attempts >= maxResumeAttempts {
		t.mu.Unlock()
		t.log.Info("redirect sign-in resume attempts exhausted", zap.Int("attempts", state.Attempts))
		return ResumeExhausted, nil
	}

	if err := t.flags.Set(keyResumeAttempts, strconv.Itoa(state.Attempts+1)); err != nil {
		t.mu.Unlock()
		return ResumeRelaunched, err
	}
	t.mu.Unlock()

	if err := t.launcher.Relaunch(ctx); err != nil {
		t.log.Warn("external sign-in relaunch failed", zap.Error(err))
		return ResumeRelaunched, err
	}

	if t.awaitDelivery(ctx) {
		return ResumeDelivered, nil
	}
	return ResumeRelaunched, nil
}

// awaitDelivery polls the pending-callback key on the bounded schedule.
// Returns true when a URI showed up.
func (t *Tracker) awaitDelivery(ctx context.Context) bool {
	for _, delay := range t.pollDelays {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if uri, err := t.flags.Get(keyPendingCallback, ""); err == nil && uri != "" {
			return true
		}
	}
	return false
}

func (t *Tracker) readLocked() State {
	uri, _ := t.flags.Get(keyPendingCallback, "")
	inProgress, _ := t.flags.Get(keyInProgress, "")

	if uri != "" && inProgress == "true" {
		return State{Kind: StateDelivered, PendingURI: uri}
	}
	if inProgress != "true" {
		// Includes the partial "URI without marker" write; nothing usable yet.
		return State{Kind: StateIdle}
	}

	state := State{Kind: StateStarted}
	if raw, _ := t.flags.Get(keyStartedUTC, ""); raw != "" {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			state.StartedAt = time.UnixMilli(millis).UTC()
		}
	}
	if raw, _ := t.flags.Get(keyResumeAttempts, "0"); raw != "" {
		if attempts, err := strconv.Atoi(raw); err == nil {
			state.Attempts = attempts
		}
	}
	return state
}

// clearLocked removes all recovery flags. Partial failures leave keys behind;
// the idempotent checks above treat leftovers as nothing usable.
func (t *Tracker) clearLocked() {
	for _, key := range []string{keyPendingCallback, keyInProgress, keyStartedUTC, keyResumeAttempts} {
		if err := t.flags.Remove(key); err != nil {
			t.log.Warn("recovery flag clear failed", zap.String("key", key), zap.Error(err))
		}
	}
}
