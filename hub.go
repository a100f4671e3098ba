package social

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tab is one panel of the social hub.
type Tab string

const (
	TabFriends     Tab = "friends"
	TabGroups      Tab = "groups"
	TabRequests    Tab = "requests"
	TabLeaderboard Tab = "leaderboard"
	TabRooms       Tab = "rooms"
	TabSettings    Tab = "settings"
)

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	switch t {
	case TabFriends, TabGroups, TabRequests, TabLeaderboard, TabRooms, TabSettings:
		return true
	}
	return false
}

func tabFor(kind ConversationKind) Tab {
	if kind == KindGroup {
		return TabGroups
	}
	return TabFriends
}

// ============================================================================
// Options
// ============================================================================

type hubConfig struct {
	log         zerolog.Logger
	bus         *EventBus
	notifier    Notifier
	prefs       *Preferences
	selfID      string
	refresh     time.Duration
	search      time.Duration
	groupDetail time.Duration
}

type HubOption func(*hubConfig)

func WithLogger(log zerolog.Logger) HubOption {
	return func(c *hubConfig) { c.log = log }
}

// WithBus shares a bus between hubs and push sources.
func WithBus(bus *EventBus) HubOption {
	return func(c *hubConfig) { c.bus = bus }
}

func WithNotifier(n Notifier) HubOption {
	return func(c *hubConfig) { c.notifier = n }
}

func WithPreferences(p *Preferences) HubOption {
	return func(c *hubConfig) { c.prefs = p }
}

func WithSelfID(id string) HubOption {
	return func(c *hubConfig) { c.selfID = id }
}

// WithDebounceWindows overrides the refresh, search and group detail windows.
func WithDebounceWindows(refresh, search, groupDetail time.Duration) HubOption {
	return func(c *hubConfig) {
		c.refresh, c.search, c.groupDetail = refresh, search, groupDetail
	}
}

// ============================================================================
// Hub
// ============================================================================

// Hub is one instance of the social panel's engine. Several hubs may share a
// bus; each one ignores the open/close events it published itself, and a
// destroyed hub ignores everything.
type Hub struct {
	id       string
	log      zerolog.Logger
	bus      *EventBus
	cache    *CacheStore
	backend  Backend
	notifier Notifier
	prefs    *Preferences

	optimistic *Optimistic
	reads      *ReadReceiptSync
	presence   *PresenceBridge
	temp       tempIDs

	ctx       context.Context
	cancel    context.CancelFunc
	destroyed atomic.Bool
	// primed is set once the first snapshot is loaded; the unread sound
	// stays silent until then.
	primed atomic.Bool

	mu     sync.Mutex
	open   bool
	tab    Tab
	active ConversationRef

	searchMu    sync.Mutex
	searchQuery string
	searchCb    func([]PlayerSummary)

	refreshConvs    *Debouncer
	refreshRequests *Debouncer
	refreshGroups   *Debouncer
	groupDetail     *KeyedDebouncer
	search          *Debouncer

	unsubs []func()
}

// NewHub creates a hub bound to backend and subscribes it to the bus.
func NewHub(backend Backend, opts ...HubOption) *Hub {
	cfg := hubConfig{
		log:         zerolog.Nop(),
		refresh:     WindowCacheRefresh,
		search:      WindowSearch,
		groupDetail: WindowGroupDetail,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bus == nil {
		cfg.bus = NewEventBus(cfg.log)
	}
	if cfg.notifier == nil {
		cfg.notifier = NopNotifier{}
	}
	if cfg.prefs == nil {
		cfg.prefs = NewPreferences(nil)
	}

	id := uuid.NewString()
	h := &Hub{
		id:       id,
		log:      cfg.log.With().Str("hub", id).Logger(),
		bus:      cfg.bus,
		cache:    NewCacheStore(cfg.selfID),
		backend:  backend,
		notifier: cfg.notifier,
		prefs:    cfg.prefs,
		tab:      cfg.prefs.LastTab(),
		temp:     tempIDs{now: time.Now},
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.optimistic = NewOptimistic(h.notifier, h.log, h.isDestroyed)
	h.reads = NewReadReceiptSync(h.cache, backend, h.isViewing, func() context.Context { return h.ctx }, h.log)
	h.presence = NewPresenceBridge(h.cache, h.notifier, h.prefs.SoundEnabled, h.log)
	h.cache.SetChangeHook(func(version uint64, t Totals) {
		if h.primed.Load() {
			h.presence.ObserveAt(version, t)
		}
	})

	h.refreshConvs = NewDebouncer(cfg.refresh, h.refreshConversations)
	h.refreshRequests = NewDebouncer(cfg.refresh, h.refreshFriendRequests)
	h.refreshGroups = NewDebouncer(cfg.refresh, h.refreshGroupList)
	h.groupDetail = NewKeyedDebouncer(cfg.groupDetail, h.refreshGroupDetail)
	h.search = NewDebouncer(cfg.search, h.runSearch)

	h.subscribe()
	return h
}

// ID returns the hub's instance id, used as the origin of its events.
func (h *Hub) ID() string { return h.id }

// Bus returns the hub's event bus.
func (h *Hub) Bus() *EventBus { return h.bus }

// Cache returns the hub's cache for read access.
func (h *Hub) Cache() *CacheStore { return h.cache }

// Preferences returns the hub's preferences.
func (h *Hub) Preferences() *Preferences { return h.prefs }

func (h *Hub) isDestroyed() bool { return h.destroyed.Load() }

func (h *Hub) subscribe() {
	b := h.bus
	h.unsubs = append(h.unsubs,
		Subscribe(b, TopicHubOpen, func(ev Event[HubToggle]) { h.onToggle(ev.Origin, true) }),
		Subscribe(b, TopicHubClose, func(ev Event[HubToggle]) { h.onToggle(ev.Origin, false) }),
		Subscribe(b, TopicConversationsRefresh, guard(h, func(Event[RefreshSignal]) { h.refreshConvs.Trigger() })),
		Subscribe(b, TopicFriendRequestsRefresh, guard(h, func(Event[RefreshSignal]) { h.refreshRequests.Trigger() })),
		Subscribe(b, TopicGroupsRefresh, guard(h, func(ev Event[RefreshSignal]) {
			if ev.Payload.GroupID != "" {
				h.groupDetail.Trigger(ev.Payload.GroupID)
				return
			}
			h.refreshGroups.Trigger()
		})),
		Subscribe(b, TopicPresence, guard(h, func(ev Event[PresenceEvent]) { h.presence.Apply(ev.Payload) })),
		Subscribe(b, TopicRoom, guard(h, func(ev Event[RoomChange]) { h.cache.PatchRoom(ev.Payload) })),
		Subscribe(b, TopicPrivacy, guard(h, func(ev Event[PrivacyChange]) { h.cache.ApplyPrivacy(ev.Payload) })),
		Subscribe(b, TopicMessage, guard(h, func(ev Event[IncomingMessage]) { h.receiveMessage(ev.Payload) })),
		Subscribe(b, TopicReadReceipt, guard(h, func(ev Event[ReadReceipt]) {
			r := ev.Payload
			h.cache.MarkConversationAsRead(ConversationRef{Kind: r.Kind, ID: r.ID}, r.MessageID, r.ReadAt, r.ReaderID)
		})),
		Subscribe(b, TopicWelcome, guard(h, func(ev Event[WelcomePayload]) { h.Seed(ev.Payload) })),
	)
}

// guard drops events delivered after Destroy.
func guard[T any](h *Hub, fn func(Event[T])) func(Event[T]) {
	return func(ev Event[T]) {
		if h.isDestroyed() {
			return
		}
		fn(ev)
	}
}

// ── Open / close ─────────────────────────────────────────

// Open shows the panel and tells the other listeners.
func (h *Hub) Open() { h.toggle(true) }

// Close hides the panel and tells the other listeners.
func (h *Hub) Close() { h.toggle(false) }

// IsOpen reports whether the panel is shown.
func (h *Hub) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

func (h *Hub) toggle(open bool) {
	if h.isDestroyed() {
		return
	}
	h.setOpen(open)
	topic := TopicHubClose
	if open {
		topic = TopicHubOpen
	}
	Publish(h.bus, topic, h.id, HubToggle{})
	if open {
		h.markActiveRead()
	}
}

// onToggle reacts to open/close published by someone else. It never
// republishes, so two hubs cannot bounce the event between them.
func (h *Hub) onToggle(origin string, open bool) {
	if h.isDestroyed() || origin == h.id {
		return
	}
	h.setOpen(open)
	if open {
		h.markActiveRead()
	}
}

func (h *Hub) setOpen(open bool) {
	h.mu.Lock()
	h.open = open
	h.mu.Unlock()
}

// ── Navigation ───────────────────────────────────────────

// SetActiveTab switches the visible tab and remembers it.
func (h *Hub) SetActiveTab(t Tab) {
	if h.isDestroyed() || !t.Valid() {
		return
	}
	h.mu.Lock()
	h.tab = t
	h.mu.Unlock()
	if err := h.prefs.SetLastTab(t); err != nil {
		h.log.Warn().Err(err).Msg("cannot persist last tab")
	}
	h.markActiveRead()
}

// ActiveTab returns the visible tab.
func (h *Hub) ActiveTab() Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tab
}

// ViewConversation selects ref, switching to its tab, and marks it read
// when the panel is open.
func (h *Hub) ViewConversation(ref ConversationRef) {
	if h.isDestroyed() {
		return
	}
	h.mu.Lock()
	h.active = ref
	h.tab = tabFor(ref.Kind)
	h.mu.Unlock()
	h.reads.MarkRead(ref)
}

// LeaveConversation deselects the current conversation.
func (h *Hub) LeaveConversation() {
	h.mu.Lock()
	h.active = ConversationRef{}
	h.mu.Unlock()
}

func (h *Hub) isViewing(ref ConversationRef) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open && h.tab == tabFor(ref.Kind) && h.active == ref
}

func (h *Hub) markActiveRead() {
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()
	if active.ID != "" {
		h.reads.MarkRead(active)
	}
}

// Thread returns the render-ready view of a conversation.
func (h *Hub) Thread(ref ConversationRef) Thread {
	conv, ok := h.cache.Conversation(ref)
	return Reconcile(conv, ok, h.cache.SelfID())
}

// Totals returns the unread badge counters.
func (h *Hub) Totals() Totals { return h.cache.Totals() }

// ── Push handlers ────────────────────────────────────────

// Seed loads a welcome snapshot into the cache.
func (h *Hub) Seed(w WelcomePayload) {
	if h.isDestroyed() {
		return
	}
	h.cache.Seed(w)
	h.prime()
	h.markActiveRead()
}

// prime records the first baseline of the unread counters.
func (h *Hub) prime() {
	if h.primed.CompareAndSwap(false, true) {
		t, version := h.cache.VersionedTotals()
		h.presence.ObserveAt(version, t)
	}
}

func (h *Hub) receiveMessage(in IncomingMessage) {
	h.reads.Receive(ConversationRef{Kind: in.Kind, ID: in.ID}, in.Message)
}

// ── Refresh ──────────────────────────────────────────────

// Refresh re-fetches profile, privacy, friends, requests, conversations and
// groups.
func (h *Hub) Refresh(ctx context.Context) error {
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	profile, err := h.backend.FetchProfile(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	if profile.PlayerID != "" {
		h.cache.UpdateProfile(profile)
	}
	err = errors.Join(
		h.loadPrivacy(ctx),
		h.loadFriendRequests(ctx),
		h.loadGroups(ctx),
		h.loadConversations(ctx),
	)
	if !h.isDestroyed() {
		h.prime()
	}
	return err
}

// RefreshLeaderboard re-fetches one leaderboard category.
func (h *Hub) RefreshLeaderboard(ctx context.Context, category string) error {
	rows, err := h.backend.FetchLeaderboard(ctx, category)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	h.cache.UpdateLeaderboard(rows)
	return nil
}

// RefreshRooms re-fetches the public room list.
func (h *Hub) RefreshRooms(ctx context.Context) error {
	rooms, err := h.backend.FetchPublicRooms(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	h.cache.UpdatePublicRooms(rooms)
	return nil
}

// loadPrivacy refreshes the profile's privacy from its own endpoint. It is
// skipped while no profile is cached.
func (h *Hub) loadPrivacy(ctx context.Context) error {
	if _, ok := h.cache.Profile(); !ok {
		return nil
	}
	p, err := h.backend.FetchPrivacy(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	if err := h.cache.SetPrivacy(p); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (h *Hub) loadConversations(ctx context.Context) error {
	direct, err := h.backend.FetchConversations(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	h.cache.UpdateFriendConversations(direct)

	groups, err := h.backend.FetchGroupConversations(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	h.cache.UpdateGroupConversations(groups)
	h.markActiveRead()
	return nil
}

func (h *Hub) loadFriendRequests(ctx context.Context) error {
	friends, err := h.backend.FetchFriends(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	h.cache.UpdateFriends(friends)

	reqs, err := h.backend.FetchFriendRequests(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	h.cache.UpdateFriendRequests(reqs)
	return nil
}

func (h *Hub) loadGroups(ctx context.Context) error {
	groups, err := h.backend.FetchGroups(ctx)
	if h.isDestroyed() {
		return ErrHubDestroyed
	}
	if err != nil {
		return err
	}
	h.cache.UpdateGroups(groups)
	return nil
}

func (h *Hub) refreshConversations() {
	h.background("conversations", h.loadConversations)
}

func (h *Hub) refreshFriendRequests() {
	h.background("friend requests", h.loadFriendRequests)
}

func (h *Hub) refreshGroupList() {
	h.background("groups", h.loadGroups)
}

func (h *Hub) refreshGroupDetail(groupID string) {
	h.background("group detail", func(ctx context.Context) error {
		g, err := h.backend.FetchGroup(ctx, groupID)
		if h.isDestroyed() {
			return ErrHubDestroyed
		}
		if err != nil {
			return err
		}
		h.cache.PutGroup(g)
		return nil
	})
}

func (h *Hub) background(what string, fn func(ctx context.Context) error) {
	if h.isDestroyed() {
		return
	}
	err := fn(h.ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrHubDestroyed), errors.Is(err, context.Canceled):
		h.log.Debug().Str("refresh", what).Msg("dropping refresh after teardown")
	default:
		h.log.Warn().Err(err).Str("refresh", what).Msg("refresh failed")
	}
}

// ── Search ───────────────────────────────────────────────

// Search looks players up as the user types. Only the last query of a
// burst is sent; cb receives its results. An empty query yields nil.
func (h *Hub) Search(query string, cb func([]PlayerSummary)) {
	if h.isDestroyed() {
		return
	}
	h.searchMu.Lock()
	h.searchQuery, h.searchCb = strings.TrimSpace(query), cb
	h.searchMu.Unlock()
	h.search.Trigger()
}

func (h *Hub) runSearch() {
	h.searchMu.Lock()
	query, cb := h.searchQuery, h.searchCb
	h.searchMu.Unlock()
	if cb == nil || h.isDestroyed() {
		return
	}
	if query == "" {
		cb(nil)
		return
	}
	results, err := h.backend.SearchPlayers(h.ctx, query)
	if h.isDestroyed() {
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("query", query).Msg("player search failed")
		results = nil
	}
	h.searchMu.Lock()
	current := h.searchQuery
	h.searchMu.Unlock()
	if current != query {
		return
	}
	cb(results)
}

// ── Lifecycle ────────────────────────────────────────────

// Destroy tears the hub down: pending timers are cancelled, bus handlers
// removed, in-flight responses dropped and the cache discarded.
func (h *Hub) Destroy() {
	if !h.destroyed.CompareAndSwap(false, true) {
		return
	}
	h.cancel()
	h.refreshConvs.Stop()
	h.refreshRequests.Stop()
	h.refreshGroups.Stop()
	h.groupDetail.Stop()
	h.search.Stop()
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
	h.cache.Reset()
	h.log.Debug().Msg("hub destroyed")
}

// Wait blocks until background read receipts have been delivered.
func (h *Hub) Wait() { h.reads.Wait() }

// Destroyed reports whether Destroy was called.
func (h *Hub) Destroyed() bool { return h.isDestroyed() }
