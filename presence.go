package social

import (
	"sync"

	"github.com/rs/zerolog"
)

// PresenceBridge applies presence pushes to the cache and drives the
// friend-online and unread-sound notifications.
type PresenceBridge struct {
	cache    *CacheStore
	notifier Notifier
	sound    func() bool
	log      zerolog.Logger

	mu          sync.Mutex
	lastTotal   int
	lastVersion uint64
	observed    bool
}

// NewPresenceBridge creates a bridge. sound reports whether the unread
// sound is enabled; nil means always.
func NewPresenceBridge(cache *CacheStore, notifier Notifier, sound func() bool, log zerolog.Logger) *PresenceBridge {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if sound == nil {
		sound = func() bool { return true }
	}
	return &PresenceBridge{
		cache:    cache,
		notifier: notifier,
		sound:    sound,
		log:      log.With().Str("component", "presence").Logger(),
	}
}

// Apply patches the cache with ev and announces friends coming online.
func (p *PresenceBridge) Apply(ev PresenceEvent) PresencePatch {
	patch := p.cache.PatchPresence(ev)
	if !patch.Found {
		p.log.Debug().Str("player_id", ev.PlayerID).Msg("presence for unknown player")
		return patch
	}
	if patch.IsFriend && ev.Online && !patch.WasOnline && ev.PlayerID != p.cache.SelfID() {
		p.notifier.FriendOnline(patch.Friend)
	}
	return patch
}

// ObserveTotals plays the notification sound when the total unread count
// grew since the previous observation. The first observation only sets the
// baseline. It reports whether the sound was played.
func (p *PresenceBridge) ObserveTotals(t Totals) bool {
	return p.ObserveAt(0, t)
}

// ObserveAt is ObserveTotals for totals taken at a cache version. Totals
// older than the last observed version are ignored. Version 0 is unordered.
func (p *PresenceBridge) ObserveAt(version uint64, t Totals) bool {
	p.mu.Lock()
	if version != 0 && version <= p.lastVersion {
		p.mu.Unlock()
		p.log.Debug().Uint64("version", version).Msg("stale totals dropped")
		return false
	}
	if version != 0 {
		p.lastVersion = version
	}
	increased := p.observed && t.Total > p.lastTotal
	p.lastTotal = t.Total
	p.observed = true
	p.mu.Unlock()

	if !increased || !p.sound() {
		return false
	}
	p.notifier.PlaySound()
	return true
}
