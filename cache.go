package social

import (
	"sort"
	"sync"
)

// ============================================================================
// CacheStore
// ============================================================================

type convEntry struct {
	conv Conversation
	// seen holds every positive id appended so far; unread counting uses it
	// because the message list itself is not deduplicated on write.
	seen map[int64]struct{}
	// peerRead holds the read marker of every other reader.
	peerRead map[string]int64
}

func (e *convEntry) maxID() int64 {
	var maxID int64
	for id := range e.seen {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

func newConvEntry(conv Conversation) *convEntry {
	e := &convEntry{
		conv:     copyConversation(conv),
		seen:     make(map[int64]struct{}, len(conv.Messages)),
		peerRead: make(map[string]int64),
	}
	for _, m := range e.conv.Messages {
		if m.ID > 0 {
			e.seen[m.ID] = struct{}{}
		}
	}
	return e
}

// CacheStore is the canonical in-memory snapshot of social state. Every
// getter returns a copy; state changes only through the named methods.
type CacheStore struct {
	mu       sync.RWMutex
	selfID   string
	profile  *Profile
	friends  []FriendSummary
	requests FriendRequests
	convs    map[ConversationKind]map[string]*convEntry
	groups   []Group
	board    []LeaderboardRow
	rooms    []PublicRoom

	// version counts state changes; hooks use it to order their totals.
	version  uint64
	onChange func(version uint64, t Totals)
}

// NewCacheStore creates an empty cache for the given local player.
func NewCacheStore(selfID string) *CacheStore {
	return &CacheStore{
		selfID: selfID,
		convs: map[ConversationKind]map[string]*convEntry{
			KindDirect: {},
			KindGroup:  {},
		},
	}
}

// SetChangeHook installs fn, called after every mutation that changed state
// with the change's version and the totals taken under the same lock. fn
// runs without the cache lock held, so calls may arrive out of version order.
func (c *CacheStore) SetChangeHook(fn func(version uint64, t Totals)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *CacheStore) write(fn func() bool) bool {
	c.mu.Lock()
	changed := fn()
	hook := c.onChange
	var (
		version uint64
		totals  Totals
	)
	if changed {
		c.version++
		version = c.version
		if hook != nil {
			totals = c.totals()
		}
	}
	c.mu.Unlock()
	if changed && hook != nil {
		hook(version, totals)
	}
	return changed
}

// SelfID returns the local player id.
func (c *CacheStore) SelfID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selfID
}

// ── Profile ──────────────────────────────────────────────

// Profile returns the local player's profile.
func (c *CacheStore) Profile() (Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return Profile{}, false
	}
	return *c.profile, true
}

// UpdateProfile replaces the profile; a non-empty PlayerID also becomes the self id.
func (c *CacheStore) UpdateProfile(p Profile) {
	c.write(func() bool {
		c.profile = &p
		if p.PlayerID != "" {
			c.selfID = p.PlayerID
		}
		return true
	})
}

// SetPrivacy replaces the privacy settings of the local profile.
func (c *CacheStore) SetPrivacy(p PrivacySettings) error {
	var err error
	c.write(func() bool {
		if c.profile == nil {
			err = ErrNotFound
			return false
		}
		c.profile.Privacy = p
		return true
	})
	return err
}

// ── Friends ──────────────────────────────────────────────

// Friends returns the friend list.
func (c *CacheStore) Friends() []FriendSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]FriendSummary{}, c.friends...)
}

// Friend returns one friend.
func (c *CacheStore) Friend(playerID string) (FriendSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.friends {
		if f.PlayerID == playerID {
			return f, true
		}
	}
	return FriendSummary{}, false
}

// UpdateFriends replaces the friend list.
func (c *CacheStore) UpdateFriends(list []FriendSummary) {
	c.write(func() bool {
		c.friends = append([]FriendSummary{}, list...)
		return true
	})
}

// AddFriend inserts or replaces one friend.
func (c *CacheStore) AddFriend(f FriendSummary) {
	c.write(func() bool {
		for i := range c.friends {
			if c.friends[i].PlayerID == f.PlayerID {
				c.friends[i] = f
				return true
			}
		}
		c.friends = append(c.friends, f)
		return true
	})
}

// RemoveFriend drops a friend and returns the removed entry.
func (c *CacheStore) RemoveFriend(playerID string) (FriendSummary, bool) {
	var removed FriendSummary
	ok := c.write(func() bool {
		for i, f := range c.friends {
			if f.PlayerID == playerID {
				removed = f
				c.friends = append(c.friends[:i:i], c.friends[i+1:]...)
				return true
			}
		}
		return false
	})
	return removed, ok
}

// RestoreFriend puts f back at index unless already present.
func (c *CacheStore) RestoreFriend(index int, f FriendSummary) {
	c.write(func() bool {
		for _, cur := range c.friends {
			if cur.PlayerID == f.PlayerID {
				return false
			}
		}
		c.friends = insertAt(c.friends, index, f)
		return true
	})
}

// FriendRequests returns both request lists.
func (c *CacheStore) FriendRequests() FriendRequests {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyRequests(c.requests)
}

// UpdateFriendRequests replaces both request lists.
func (c *CacheStore) UpdateFriendRequests(r FriendRequests) {
	c.write(func() bool {
		c.requests = copyRequests(r)
		return true
	})
}

// RemoveIncomingRequest drops one incoming request.
func (c *CacheStore) RemoveIncomingRequest(playerID string) (FriendRequest, bool) {
	var removed FriendRequest
	ok := c.write(func() bool {
		for i, r := range c.requests.Incoming {
			if r.PlayerID == playerID {
				removed = r
				c.requests.Incoming = append(c.requests.Incoming[:i:i], c.requests.Incoming[i+1:]...)
				return true
			}
		}
		return false
	})
	return removed, ok
}

// RestoreIncomingRequest puts r back at index, clamped to the list.
func (c *CacheStore) RestoreIncomingRequest(index int, r FriendRequest) {
	c.write(func() bool {
		for _, cur := range c.requests.Incoming {
			if cur.PlayerID == r.PlayerID {
				return false
			}
		}
		c.requests.Incoming = insertAt(c.requests.Incoming, index, r)
		return true
	})
}

// ── Conversations ────────────────────────────────────────

// FriendConversations returns direct conversations, most recent first.
func (c *CacheStore) FriendConversations() []Conversation {
	return c.conversations(KindDirect)
}

// GroupConversations returns group conversations, most recent first.
func (c *CacheStore) GroupConversations() []Conversation {
	return c.conversations(KindGroup)
}

func (c *CacheStore) conversations(kind ConversationKind) []Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Conversation, 0, len(c.convs[kind]))
	for _, e := range c.convs[kind] {
		out = append(out, copyConversation(e.conv))
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := lastActivity(out[i]), lastActivity(out[j])
		if li != lj {
			return li > lj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Conversation returns one conversation.
func (c *CacheStore) Conversation(ref ConversationRef) (Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.convs[ref.Kind][ref.ID]
	if !ok {
		return Conversation{}, false
	}
	return copyConversation(e.conv), true
}

// ReadState returns the highest positive message id and the local read
// marker of a conversation without copying its messages.
func (c *CacheStore) ReadState(ref ConversationRef) (maxID, lastRead int64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.convs[ref.Kind][ref.ID]
	if !ok {
		return 0, 0, false
	}
	return e.maxID(), e.conv.LastReadID, true
}

// UpdateFriendConversations replaces all direct conversations.
func (c *CacheStore) UpdateFriendConversations(list []Conversation) {
	c.replaceConversations(KindDirect, list)
}

// UpdateGroupConversations replaces all group conversations.
func (c *CacheStore) UpdateGroupConversations(list []Conversation) {
	c.replaceConversations(KindGroup, list)
}

func (c *CacheStore) replaceConversations(kind ConversationKind, list []Conversation) {
	c.write(func() bool {
		next := make(map[string]*convEntry, len(list))
		for _, conv := range list {
			conv.Kind = kind
			e := newConvEntry(conv)
			if prev, ok := c.convs[kind][conv.ID]; ok {
				for reader, id := range prev.peerRead {
					e.peerRead[reader] = id
				}
			}
			next[conv.ID] = e
		}
		c.convs[kind] = next
		return true
	})
}

// AddMessage appends msg to a conversation, creating the conversation on
// first reference, and reports whether it did. It does not deduplicate.
func (c *CacheStore) AddMessage(ref ConversationRef, msg Message, status MessageStatus) (created bool) {
	c.write(func() bool {
		_, existed := c.convs[ref.Kind][ref.ID]
		created = !existed
		c.appendMessage(c.entry(ref), msg, status)
		return true
	})
	return created
}

// AddReadMessage appends msg and moves the local read marker to the
// conversation's highest id in the same write, so the unread total never
// counts msg. It returns the new marker and whether it moved.
func (c *CacheStore) AddReadMessage(ref ConversationRef, msg Message, at string) (maxID int64, moved bool) {
	c.write(func() bool {
		e := c.entry(ref)
		c.appendMessage(e, msg, StatusNone)
		maxID = e.maxID()
		moved = c.markSelfRead(e, maxID, at)
		return true
	})
	return maxID, moved
}

func (c *CacheStore) appendMessage(e *convEntry, msg Message, status MessageStatus) {
	msg.Status = status
	e.conv.Messages = append(e.conv.Messages, msg)
	if msg.ID <= 0 {
		return
	}
	if _, dup := e.seen[msg.ID]; !dup {
		e.seen[msg.ID] = struct{}{}
		if msg.SenderID != c.selfID && msg.ID > e.conv.LastReadID {
			e.conv.UnreadCount++
		}
	}
}

// PruneConversation drops ref when it holds no messages. It reports
// whether the conversation was removed.
func (c *CacheStore) PruneConversation(ref ConversationRef) bool {
	return c.write(func() bool {
		e, ok := c.convs[ref.Kind][ref.ID]
		if !ok || len(e.conv.Messages) > 0 {
			return false
		}
		delete(c.convs[ref.Kind], ref.ID)
		return true
	})
}

// ReplaceMessage swaps the message with tempID for msg, keeping its list
// position. When tempID is gone msg is appended instead, so the confirmed
// message is never lost. It reports whether tempID was found.
func (c *CacheStore) ReplaceMessage(ref ConversationRef, tempID int64, msg Message) bool {
	found := false
	c.write(func() bool {
		e := c.entry(ref)
		for i := range e.conv.Messages {
			if e.conv.Messages[i].ID == tempID {
				e.conv.Messages[i] = msg
				found = true
				break
			}
		}
		if !found {
			e.conv.Messages = append(e.conv.Messages, msg)
		}
		if msg.ID > 0 {
			e.seen[msg.ID] = struct{}{}
		}
		return true
	})
	return found
}

// RemoveMessage drops every entry with the given id.
func (c *CacheStore) RemoveMessage(ref ConversationRef, id int64) bool {
	return c.write(func() bool {
		e, ok := c.convs[ref.Kind][ref.ID]
		if !ok {
			return false
		}
		kept := e.conv.Messages[:0:0]
		for _, m := range e.conv.Messages {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		if len(kept) == len(e.conv.Messages) {
			return false
		}
		e.conv.Messages = kept
		if id > 0 {
			delete(e.seen, id)
		}
		return true
	})
}

// MarkConversationAsRead records that readerID has read the conversation up
// to maxID. Markers never move backward; a call at or below the current
// marker is a no-op and returns false.
func (c *CacheStore) MarkConversationAsRead(ref ConversationRef, maxID int64, at, readerID string) bool {
	return c.write(func() bool {
		e, ok := c.convs[ref.Kind][ref.ID]
		if !ok {
			return false
		}
		if readerID == "" || readerID == c.selfID {
			return c.markSelfRead(e, maxID, at)
		}

		if maxID <= e.peerRead[readerID] {
			return false
		}
		e.peerRead[readerID] = maxID
		for i := range e.conv.Messages {
			m := &e.conv.Messages[i]
			if m.ID > 0 && m.ID <= maxID && m.SenderID == c.selfID {
				if m.ReadAt == "" {
					m.ReadAt = at
				}
				if m.Status != StatusPending {
					m.Status = StatusRead
				}
			}
		}
		return true
	})
}

func (c *CacheStore) markSelfRead(e *convEntry, maxID int64, at string) bool {
	if maxID <= e.conv.LastReadID {
		return false
	}
	e.conv.LastReadID = maxID
	for i := range e.conv.Messages {
		m := &e.conv.Messages[i]
		if m.ID > 0 && m.ID <= maxID && m.SenderID != c.selfID && m.ReadAt == "" {
			m.ReadAt = at
		}
	}
	e.conv.UnreadCount = c.countUnread(e)
	return true
}

func (c *CacheStore) countUnread(e *convEntry) int {
	counted := make(map[int64]struct{})
	for _, m := range e.conv.Messages {
		if m.ID > 0 && m.ID > e.conv.LastReadID && m.SenderID != c.selfID {
			counted[m.ID] = struct{}{}
		}
	}
	return len(counted)
}

func (c *CacheStore) entry(ref ConversationRef) *convEntry {
	e, ok := c.convs[ref.Kind][ref.ID]
	if !ok {
		e = newConvEntry(Conversation{Kind: ref.Kind, ID: ref.ID})
		if ref.Kind == KindGroup {
			for _, g := range c.groups {
				if g.ID == ref.ID {
					e.conv.Name, e.conv.Visibility = g.Name, g.Visibility
				}
			}
		} else {
			for _, f := range c.friends {
				if f.PlayerID == ref.ID {
					e.conv.Name, e.conv.Avatar = f.Name, f.Avatar
				}
			}
		}
		c.convs[ref.Kind][ref.ID] = e
	}
	return e
}

// ── Groups ───────────────────────────────────────────────

// Groups returns all groups.
func (c *CacheStore) Groups() []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = copyGroup(g)
	}
	return out
}

// Group returns one group.
func (c *CacheStore) Group(id string) (Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.groupIndex(id); i >= 0 {
		return copyGroup(c.groups[i]), true
	}
	return Group{}, false
}

// UpdateGroups replaces the group list.
func (c *CacheStore) UpdateGroups(list []Group) {
	c.write(func() bool {
		c.groups = make([]Group, len(list))
		for i, g := range list {
			c.groups[i] = copyGroup(g)
		}
		return true
	})
}

// PutGroup inserts or replaces one group, keeping its list position.
func (c *CacheStore) PutGroup(g Group) {
	c.write(func() bool {
		g = copyGroup(g)
		if i := c.groupIndex(g.ID); i >= 0 {
			c.groups[i] = g
		} else {
			c.groups = append(c.groups, g)
		}
		if e, ok := c.convs[KindGroup][g.ID]; ok {
			e.conv.Name, e.conv.Visibility = g.Name, g.Visibility
		}
		return true
	})
}

// RemoveGroup drops a group and its conversation.
func (c *CacheStore) RemoveGroup(id string) bool {
	return c.write(func() bool {
		i := c.groupIndex(id)
		if i < 0 {
			return false
		}
		c.groups = append(c.groups[:i:i], c.groups[i+1:]...)
		delete(c.convs[KindGroup], id)
		return true
	})
}

// SetMemberRole changes one member's role.
func (c *CacheStore) SetMemberRole(groupID, playerID string, role Role) error {
	return c.updateGroup(groupID, func(g *Group) bool {
		for i := range g.Members {
			if g.Members[i].PlayerID == playerID {
				g.Members[i].Role = role
				return true
			}
		}
		return false
	})
}

// RemoveMember drops one member from a group.
func (c *CacheStore) RemoveMember(groupID, playerID string) error {
	return c.updateGroup(groupID, func(g *Group) bool {
		for i := range g.Members {
			if g.Members[i].PlayerID == playerID {
				g.Members = append(g.Members[:i:i], g.Members[i+1:]...)
				return true
			}
		}
		return false
	})
}

// InsertMember puts m back at index, clamped to the member list.
func (c *CacheStore) InsertMember(groupID string, index int, m GroupMember) error {
	return c.updateGroup(groupID, func(g *Group) bool {
		if _, ok := g.Member(m.PlayerID); ok {
			return false
		}
		g.Members = insertAt(g.Members, index, m)
		return true
	})
}

// RenameGroup renames a group and its conversation.
func (c *CacheStore) RenameGroup(groupID, name string) error {
	return c.updateGroup(groupID, func(g *Group) bool {
		g.Name = name
		if e, ok := c.convs[KindGroup][groupID]; ok {
			e.conv.Name = name
		}
		return true
	})
}

// SetGroupVisibility changes a group's visibility.
func (c *CacheStore) SetGroupVisibility(groupID string, v Visibility) error {
	return c.updateGroup(groupID, func(g *Group) bool {
		g.Visibility = v
		if e, ok := c.convs[KindGroup][groupID]; ok {
			e.conv.Visibility = v
		}
		return true
	})
}

func (c *CacheStore) updateGroup(id string, fn func(g *Group) bool) error {
	err := ErrNotFound
	c.write(func() bool {
		i := c.groupIndex(id)
		if i < 0 {
			return false
		}
		if !fn(&c.groups[i]) {
			return false
		}
		err = nil
		return true
	})
	return err
}

func (c *CacheStore) groupIndex(id string) int {
	for i := range c.groups {
		if c.groups[i].ID == id {
			return i
		}
	}
	return -1
}

// ── Presence ─────────────────────────────────────────────

// PresencePatch describes what PatchPresence touched.
type PresencePatch struct {
	Found     bool
	IsFriend  bool
	WasOnline bool
	Friend    FriendSummary
}

// PatchPresence applies the carried fields of ev to the matching friend and
// group members, leaving every other field as is.
func (c *CacheStore) PatchPresence(ev PresenceEvent) PresencePatch {
	var patch PresencePatch
	c.write(func() bool {
		for i := range c.friends {
			f := &c.friends[i]
			if f.PlayerID != ev.PlayerID {
				continue
			}
			patch.Found, patch.IsFriend, patch.WasOnline = true, true, f.IsOnline
			f.IsOnline = ev.Online
			if ev.RoomID != nil {
				f.RoomID = *ev.RoomID
			}
			if ev.LastEventAt != nil {
				f.LastEventAt = *ev.LastEventAt
			}
			patch.Friend = *f
		}
		c.eachMember(ev.PlayerID, func(m *GroupMember) {
			if !patch.Found {
				patch.Found, patch.WasOnline = true, m.IsOnline
			}
			m.IsOnline = ev.Online
			if ev.RoomID != nil {
				m.RoomID = *ev.RoomID
			}
			if ev.LastEventAt != nil {
				m.LastEventAt = *ev.LastEventAt
			}
		})
		return patch.Found
	})
	return patch
}

// PatchRoom moves a friend or member to another room (nil = no room).
func (c *CacheStore) PatchRoom(rc RoomChange) bool {
	room := ""
	if rc.RoomID != nil {
		room = *rc.RoomID
	}
	return c.write(func() bool {
		found := false
		for i := range c.friends {
			if c.friends[i].PlayerID == rc.PlayerID {
				c.friends[i].RoomID = room
				found = true
			}
		}
		c.eachMember(rc.PlayerID, func(m *GroupMember) {
			m.RoomID = room
			found = true
		})
		return found
	})
}

// ApplyPrivacy applies a privacy push. Hidden fields of other players are
// cleared; the local player's settings replace the profile's.
func (c *CacheStore) ApplyPrivacy(pc PrivacyChange) bool {
	return c.write(func() bool {
		if pc.PlayerID == "" || pc.PlayerID == c.selfID {
			if c.profile == nil {
				return false
			}
			c.profile.Privacy = pc.Privacy
			return true
		}
		found := false
		hide := func(online *bool, room *string) {
			found = true
			if !pc.Privacy.ShowOnlineStatus {
				*online = false
			}
			if !pc.Privacy.ShowRoom {
				*room = ""
			}
		}
		for i := range c.friends {
			if c.friends[i].PlayerID == pc.PlayerID {
				hide(&c.friends[i].IsOnline, &c.friends[i].RoomID)
			}
		}
		c.eachMember(pc.PlayerID, func(m *GroupMember) { hide(&m.IsOnline, &m.RoomID) })
		return found
	})
}

func (c *CacheStore) eachMember(playerID string, fn func(m *GroupMember)) {
	for gi := range c.groups {
		for mi := range c.groups[gi].Members {
			if c.groups[gi].Members[mi].PlayerID == playerID {
				fn(&c.groups[gi].Members[mi])
			}
		}
	}
}

// ── Leaderboard & rooms ──────────────────────────────────

// Leaderboard returns the leaderboard rows.
func (c *CacheStore) Leaderboard() []LeaderboardRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]LeaderboardRow{}, c.board...)
}

// UpdateLeaderboard replaces the leaderboard rows.
func (c *CacheStore) UpdateLeaderboard(rows []LeaderboardRow) {
	c.write(func() bool {
		c.board = append([]LeaderboardRow{}, rows...)
		return true
	})
}

// PublicRooms returns the public room list.
func (c *CacheStore) PublicRooms() []PublicRoom {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]PublicRoom{}, c.rooms...)
}

// UpdatePublicRooms replaces the public room list.
func (c *CacheStore) UpdatePublicRooms(rooms []PublicRoom) {
	c.write(func() bool {
		c.rooms = append([]PublicRoom{}, rooms...)
		return true
	})
}

// ── Counters & lifecycle ─────────────────────────────────

// Totals computes the unread badge counters from current state.
func (c *CacheStore) Totals() Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totals()
}

// VersionedTotals returns the totals with the version they were taken at.
func (c *CacheStore) VersionedTotals() (Totals, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totals(), c.version
}

func (c *CacheStore) totals() Totals {
	var t Totals
	for _, e := range c.convs[KindDirect] {
		t.Friends += max(0, e.conv.UnreadCount)
	}
	for _, e := range c.convs[KindGroup] {
		t.Groups += max(0, e.conv.UnreadCount)
	}
	t.Requests = len(c.requests.Incoming)
	t.Total = t.Friends + t.Groups + t.Requests
	return t
}

// Seed loads a welcome snapshot.
func (c *CacheStore) Seed(w WelcomePayload) {
	if w.Profile != nil {
		c.UpdateProfile(*w.Profile)
	}
	c.UpdateFriends(w.Friends)
	c.UpdateFriendRequests(w.Requests)
	c.UpdateGroups(w.Groups)
	c.UpdateFriendConversations(w.Conversations)
	c.UpdateGroupConversations(w.GroupConversations)
}

// Reset discards all cached state.
func (c *CacheStore) Reset() {
	c.write(func() bool {
		c.profile = nil
		c.friends = nil
		c.requests = FriendRequests{}
		c.convs = map[ConversationKind]map[string]*convEntry{KindDirect: {}, KindGroup: {}}
		c.groups = nil
		c.board = nil
		c.rooms = nil
		return true
	})
}

// ============================================================================
// Helpers
// ============================================================================

// insertAt returns a new slice with v at i, clamped to [0, len(s)].
func insertAt[T any](s []T, i int, v T) []T {
	i = min(max(i, 0), len(s))
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}

func copyConversation(conv Conversation) Conversation {
	conv.Messages = append([]Message{}, conv.Messages...)
	return conv
}

func copyGroup(g Group) Group {
	if g.Members != nil {
		g.Members = append([]GroupMember{}, g.Members...)
	}
	return g
}

func copyRequests(r FriendRequests) FriendRequests {
	return FriendRequests{
		Incoming: append([]FriendRequest{}, r.Incoming...),
		Outgoing: append([]FriendRequest{}, r.Outgoing...),
	}
}

func lastActivity(conv Conversation) string {
	last := ""
	for _, m := range conv.Messages {
		if m.CreatedAt > last {
			last = m.CreatedAt
		}
	}
	return last
}
