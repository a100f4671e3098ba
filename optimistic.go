package social

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Notifier is the UI surface the engine reports to. Implementations must
// not block.
type Notifier interface {
	// Toast shows a transient, non-blocking error.
	Toast(message string)
	// FriendOnline announces that a friend just came online.
	FriendOnline(friend FriendSummary)
	// PlaySound plays the unread notification sound.
	PlaySound()
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Toast(string)               {}
func (NopNotifier) FriendOnline(FriendSummary) {}
func (NopNotifier) PlaySound()                 {}

// Op is one optimistic mutation.
//
// Apply changes the cache and returns the function that undoes exactly that
// change. Remote performs the backend call; Confirm, when set, splices the
// canonical entity returned by Remote into the cache.
type Op[T any] struct {
	Name    string
	Apply   func() (rollback func(), err error)
	Remote  func(ctx context.Context) (T, error)
	Confirm func(canonical T)
	// FailureText is shown in the toast on failure; defaults to a generic text.
	FailureText string
}

// Optimistic runs Ops: apply locally, call the backend, then confirm or
// roll back.
type Optimistic struct {
	// applyMu makes capture+apply and rollback of one Op atomic with respect
	// to other Ops. It is never held across a Remote call.
	applyMu  sync.Mutex
	notifier Notifier
	log      zerolog.Logger
	stale    func() bool
}

// NewOptimistic creates a controller. stale reports whether the owner was
// torn down; responses arriving after that are dropped.
func NewOptimistic(notifier Notifier, log zerolog.Logger, stale func() bool) *Optimistic {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if stale == nil {
		stale = func() bool { return false }
	}
	return &Optimistic{
		notifier: notifier,
		log:      log.With().Str("component", "optimistic").Logger(),
		stale:    stale,
	}
}

// Run executes op. On a failed or empty Remote result the cache is restored
// to its pre-mutation value, a toast is shown and the error is returned.
func Run[T any](ctx context.Context, o *Optimistic, op Op[T]) (T, error) {
	var zero T
	if o.stale() {
		return zero, ErrHubDestroyed
	}

	o.applyMu.Lock()
	rollback, err := op.Apply()
	o.applyMu.Unlock()
	if err != nil {
		return zero, err
	}

	canonical, err := op.Remote(ctx)

	if o.stale() {
		o.log.Debug().Str("op", op.Name).Msg("dropping response after teardown")
		return zero, ErrHubDestroyed
	}
	if err != nil {
		o.applyMu.Lock()
		rollback()
		o.applyMu.Unlock()

		o.log.Warn().Err(err).Str("op", op.Name).Msg("mutation rolled back")
		text := op.FailureText
		if text == "" {
			text = "Action failed, please try again."
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			text = apiErr.Message
		}
		o.notifier.Toast(text)
		return zero, err
	}

	if op.Confirm != nil {
		o.applyMu.Lock()
		op.Confirm(canonical)
		o.applyMu.Unlock()
	}
	return canonical, nil
}

// Swap builds an Apply that replaces a value read by get with next using
// set, and restores the captured value on rollback.
func Swap[V any](get func() (V, error), set func(V) error, next V) func() (func(), error) {
	return func() (func(), error) {
		prev, err := get()
		if err != nil {
			return nil, err
		}
		if err := set(next); err != nil {
			return nil, err
		}
		return func() { _ = set(prev) }, nil
	}
}
