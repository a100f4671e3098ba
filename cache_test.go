package social

import (
	"errors"
	"reflect"
	"testing"
)

func seededCache() *CacheStore {
	c := NewCacheStore(selfID)
	c.UpdateFriends([]FriendSummary{
		{PlayerID: friendID, Name: "Bob", IsOnline: false, RoomID: "r-1", LastEventAt: ts(0)},
		{PlayerID: "p-carol", Name: "Carol"},
	})
	c.UpdateFriendRequests(FriendRequests{Incoming: []FriendRequest{
		{PlayerID: "p-dan", Name: "Dan"},
		{PlayerID: "p-eve", Name: "Eve"},
	}})
	c.UpdateGroups([]Group{{
		ID: groupID, Name: "Gardeners", Visibility: VisibilityPrivate, OwnerID: selfID,
		Members: []GroupMember{
			{PlayerID: selfID, Role: RoleOwner},
			{PlayerID: friendID, Role: RoleAdmin},
			{PlayerID: "p-carol", Role: RoleMember},
		},
	}})
	c.UpdateFriendConversations([]Conversation{{
		ID: friendID,
		Messages: []Message{
			{ID: 10, SenderID: friendID, Body: "hi", CreatedAt: ts(0)},
			{ID: 11, SenderID: selfID, Body: "hello", CreatedAt: ts(10)},
		},
		LastReadID: 10,
	}})
	return c
}

// ============================================================================
// Copies
// ============================================================================

func TestCacheStoreReturnsCopies(t *testing.T) {
	c := seededCache()

	friends := c.Friends()
	friends[0].Name = "mutated"
	if f, _ := c.Friend(friendID); f.Name != "Bob" {
		t.Fatalf("friend name = %q after caller mutation", f.Name)
	}

	conv, _ := c.Conversation(directRef(friendID))
	conv.Messages[0].Body = "mutated"
	if again, _ := c.Conversation(directRef(friendID)); again.Messages[0].Body != "hi" {
		t.Fatal("message mutated through returned copy")
	}

	g, _ := c.Group(groupID)
	g.Members[0].Role = RoleMember
	if again, _ := c.Group(groupID); again.Members[0].Role != RoleOwner {
		t.Fatal("member mutated through returned copy")
	}

	reqs := c.FriendRequests()
	reqs.Incoming[0].Name = "mutated"
	if c.FriendRequests().Incoming[0].Name != "Dan" {
		t.Fatal("request mutated through returned copy")
	}
}

// ============================================================================
// Messages & unread
// ============================================================================

func TestCacheStoreAddMessage(t *testing.T) {
	t.Run("counts unread once per id", func(t *testing.T) {
		c := seededCache()
		ref := directRef(friendID)
		msg := Message{ID: 12, SenderID: friendID, Body: "again", CreatedAt: ts(20)}
		c.AddMessage(ref, msg, StatusNone)
		c.AddMessage(ref, msg, StatusNone)

		conv, _ := c.Conversation(ref)
		if len(conv.Messages) != 4 {
			t.Fatalf("len = %d, want 4 (no write-time dedup)", len(conv.Messages))
		}
		if conv.UnreadCount != 1 {
			t.Fatalf("UnreadCount = %d, want 1", conv.UnreadCount)
		}
	})

	t.Run("own and temp messages are not unread", func(t *testing.T) {
		c := seededCache()
		ref := directRef(friendID)
		c.AddMessage(ref, Message{ID: 13, SenderID: selfID, CreatedAt: ts(30)}, StatusNone)
		c.AddMessage(ref, Message{ID: -5, SenderID: friendID, CreatedAt: ts(31)}, StatusPending)
		if conv, _ := c.Conversation(ref); conv.UnreadCount != 0 {
			t.Fatalf("UnreadCount = %d, want 0", conv.UnreadCount)
		}
	})

	t.Run("creates conversation on first reference", func(t *testing.T) {
		c := seededCache()
		ref := directRef("p-carol")
		c.AddMessage(ref, Message{ID: 1, SenderID: "p-carol", CreatedAt: ts(0)}, StatusNone)
		conv, ok := c.Conversation(ref)
		if !ok {
			t.Fatal("conversation not created")
		}
		if conv.Name != "Carol" {
			t.Errorf("Name = %q, want Carol from friend list", conv.Name)
		}
		if conv.UnreadCount != 1 {
			t.Errorf("UnreadCount = %d, want 1", conv.UnreadCount)
		}
	})

	t.Run("stores status", func(t *testing.T) {
		c := seededCache()
		ref := directRef(friendID)
		c.AddMessage(ref, Message{ID: -1, SenderID: selfID, CreatedAt: ts(40)}, StatusPending)
		conv, _ := c.Conversation(ref)
		if last := conv.Messages[len(conv.Messages)-1]; last.Status != StatusPending {
			t.Fatalf("Status = %q", last.Status)
		}
	})
}

func TestCacheStoreReplaceMessage(t *testing.T) {
	c := seededCache()
	ref := directRef(friendID)
	c.AddMessage(ref, Message{ID: -100, SenderID: selfID, Body: "x", CreatedAt: ts(20)}, StatusPending)
	c.AddMessage(ref, Message{ID: 12, SenderID: friendID, Body: "y", CreatedAt: ts(21)}, StatusNone)

	if !c.ReplaceMessage(ref, -100, Message{ID: 57, SenderID: selfID, Body: "x", CreatedAt: ts(20)}) {
		t.Fatal("temp message not found")
	}
	conv, _ := c.Conversation(ref)
	if conv.Messages[2].ID != 57 {
		t.Fatalf("position 2 id = %d, want 57 in place", conv.Messages[2].ID)
	}

	if c.ReplaceMessage(ref, -999, Message{ID: 58, SenderID: selfID, CreatedAt: ts(22)}) {
		t.Fatal("reported found for unknown temp id")
	}
	conv, _ = c.Conversation(ref)
	if conv.Messages[len(conv.Messages)-1].ID != 58 {
		t.Fatal("confirmed message lost when temp id was gone")
	}
}

func TestCacheStoreRemoveMessage(t *testing.T) {
	c := seededCache()
	ref := directRef(friendID)
	c.AddMessage(ref, Message{ID: -7, SenderID: selfID, CreatedAt: ts(20)}, StatusPending)
	if !c.RemoveMessage(ref, -7) {
		t.Fatal("RemoveMessage returned false")
	}
	if c.RemoveMessage(ref, -7) {
		t.Fatal("second RemoveMessage returned true")
	}
	if c.RemoveMessage(directRef("nobody"), 1) {
		t.Fatal("RemoveMessage on unknown conversation returned true")
	}
}

// ============================================================================
// Read markers
// ============================================================================

func TestCacheStoreMarkConversationAsRead(t *testing.T) {
	t.Run("self marker is monotonic", func(t *testing.T) {
		c := seededCache()
		ref := directRef(friendID)
		c.AddMessage(ref, Message{ID: 12, SenderID: friendID, CreatedAt: ts(20)}, StatusNone)
		c.AddMessage(ref, Message{ID: 13, SenderID: friendID, CreatedAt: ts(21)}, StatusNone)

		if !c.MarkConversationAsRead(ref, 12, ts(30), selfID) {
			t.Fatal("advance returned false")
		}
		conv, _ := c.Conversation(ref)
		if conv.LastReadID != 12 || conv.UnreadCount != 1 {
			t.Fatalf("LastReadID=%d UnreadCount=%d, want 12/1", conv.LastReadID, conv.UnreadCount)
		}
		if c.MarkConversationAsRead(ref, 11, ts(31), selfID) {
			t.Fatal("moved backward")
		}
		if c.MarkConversationAsRead(ref, 12, ts(31), "") {
			t.Fatal("repeat at same id returned true")
		}
		conv, _ = c.Conversation(ref)
		if conv.LastReadID != 12 {
			t.Fatalf("LastReadID = %d after backward call", conv.LastReadID)
		}
		for _, m := range conv.Messages {
			if m.ID == 12 && m.ReadAt != ts(30) {
				t.Fatalf("ReadAt = %q, want first read time", m.ReadAt)
			}
		}
	})

	t.Run("peer reader marks own messages read", func(t *testing.T) {
		c := seededCache()
		ref := directRef(friendID)
		c.AddMessage(ref, Message{ID: -3, SenderID: selfID, CreatedAt: ts(30)}, StatusPending)
		if !c.MarkConversationAsRead(ref, 11, ts(40), friendID) {
			t.Fatal("peer read returned false")
		}
		conv, _ := c.Conversation(ref)
		for _, m := range conv.Messages {
			switch m.ID {
			case 11:
				if m.Status != StatusRead || m.ReadAt != ts(40) {
					t.Errorf("own message: Status=%q ReadAt=%q", m.Status, m.ReadAt)
				}
			case 10:
				if m.ReadAt != "" {
					t.Errorf("peer message got ReadAt %q", m.ReadAt)
				}
			case -3:
				if m.Status != StatusPending {
					t.Errorf("pending message Status = %q", m.Status)
				}
			}
		}
		if conv.LastReadID != 10 {
			t.Errorf("peer read moved local marker to %d", conv.LastReadID)
		}
		if c.MarkConversationAsRead(ref, 11, ts(41), friendID) {
			t.Error("repeated peer read returned true")
		}
	})

	t.Run("unknown conversation", func(t *testing.T) {
		c := seededCache()
		if c.MarkConversationAsRead(directRef("nobody"), 5, ts(0), "") {
			t.Fatal("returned true for unknown conversation")
		}
	})
}

func TestCacheStoreTotals(t *testing.T) {
	c := seededCache()
	c.AddMessage(directRef(friendID), Message{ID: 12, SenderID: friendID, CreatedAt: ts(20)}, StatusNone)
	c.AddMessage(groupRef(groupID), Message{ID: 1, SenderID: friendID, CreatedAt: ts(20)}, StatusNone)
	c.AddMessage(groupRef(groupID), Message{ID: 2, SenderID: "p-carol", CreatedAt: ts(21)}, StatusNone)

	got := c.Totals()
	want := Totals{Friends: 1, Groups: 2, Requests: 2, Total: 5}
	if got != want {
		t.Fatalf("Totals = %+v, want %+v", got, want)
	}
}

func TestCacheStoreChangeHook(t *testing.T) {
	c := seededCache()
	var versions []uint64
	var totals []Totals
	c.SetChangeHook(func(version uint64, tot Totals) {
		versions = append(versions, version)
		totals = append(totals, tot)
		_ = c.Totals()
	})
	_, start := c.VersionedTotals()
	c.AddMessage(directRef(friendID), Message{ID: 12, SenderID: friendID}, StatusNone)
	c.MarkConversationAsRead(directRef(friendID), 1, ts(0), "")
	c.MarkConversationAsRead(directRef(friendID), 12, ts(0), "")
	if len(versions) != 2 {
		t.Fatalf("hook calls = %d, want 2 (no-op writes do not fire)", len(versions))
	}
	if versions[0] != start+1 || versions[1] != start+2 {
		t.Fatalf("versions = %v, start %d", versions, start)
	}
	if totals[0].Friends != 1 || totals[1].Friends != 0 {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestCacheStoreAddReadMessage(t *testing.T) {
	c := seededCache()
	var seen []Totals
	c.SetChangeHook(func(_ uint64, tot Totals) { seen = append(seen, tot) })
	before := c.Totals()

	maxID, moved := c.AddReadMessage(directRef(friendID), Message{ID: 12, SenderID: friendID, CreatedAt: ts(30)}, ts(31))
	if !moved || maxID != 12 {
		t.Fatalf("AddReadMessage = (%d, %t)", maxID, moved)
	}
	if len(seen) != 1 || seen[0].Friends != 0 || seen[0].Total > before.Total {
		t.Fatalf("hook totals = %+v, before %+v", seen, before)
	}
	conv, _ := c.Conversation(directRef(friendID))
	if conv.LastReadID != 12 || conv.UnreadCount != 0 {
		t.Fatalf("conv = %+v", conv)
	}
	if last := conv.Messages[len(conv.Messages)-1]; last.ID != 12 || last.ReadAt != ts(31) {
		t.Fatalf("last = %+v", last)
	}
}

func TestCacheStorePruneConversation(t *testing.T) {
	c := seededCache()
	ref := directRef("p-zed")
	if !c.AddMessage(ref, Message{ID: -5, SenderID: selfID}, StatusPending) {
		t.Fatal("AddMessage should report a created conversation")
	}
	if c.AddMessage(ref, Message{ID: -6, SenderID: selfID}, StatusPending) {
		t.Fatal("second AddMessage reported creation")
	}
	if c.PruneConversation(ref) {
		t.Fatal("pruned a conversation with messages")
	}
	c.RemoveMessage(ref, -5)
	c.RemoveMessage(ref, -6)
	if !c.PruneConversation(ref) {
		t.Fatal("empty conversation not pruned")
	}
	if _, ok := c.Conversation(ref); ok {
		t.Fatal("conversation still cached")
	}
	if c.PruneConversation(directRef(friendID)) {
		t.Fatal("pruned a conversation with history")
	}
}

// ============================================================================
// Presence, rooms, privacy
// ============================================================================

func TestCacheStorePatchPresence(t *testing.T) {
	t.Run("keeps fields not carried", func(t *testing.T) {
		c := seededCache()
		patch := c.PatchPresence(PresenceEvent{PlayerID: friendID, Online: true})
		if !patch.Found || !patch.IsFriend || patch.WasOnline {
			t.Fatalf("patch = %+v", patch)
		}
		f, _ := c.Friend(friendID)
		if !f.IsOnline || f.RoomID != "r-1" || f.LastEventAt != ts(0) {
			t.Fatalf("friend = %+v", f)
		}
	})

	t.Run("carried null clears room", func(t *testing.T) {
		c := seededCache()
		empty := ""
		c.PatchPresence(PresenceEvent{PlayerID: friendID, Online: true, RoomID: &empty})
		if f, _ := c.Friend(friendID); f.RoomID != "" {
			t.Fatalf("RoomID = %q", f.RoomID)
		}
	})

	t.Run("patches group members", func(t *testing.T) {
		c := seededCache()
		room := "r-9"
		c.PatchPresence(PresenceEvent{PlayerID: "p-carol", Online: true, RoomID: &room})
		g, _ := c.Group(groupID)
		m, _ := g.Member("p-carol")
		if !m.IsOnline || m.RoomID != "r-9" {
			t.Fatalf("member = %+v", m)
		}
	})

	t.Run("unknown player", func(t *testing.T) {
		c := seededCache()
		if patch := c.PatchPresence(PresenceEvent{PlayerID: "p-zed", Online: true}); patch.Found {
			t.Fatal("found unknown player")
		}
	})
}

func TestCacheStorePatchRoom(t *testing.T) {
	c := seededCache()
	room := "r-2"
	if !c.PatchRoom(RoomChange{PlayerID: friendID, RoomID: &room}) {
		t.Fatal("PatchRoom returned false")
	}
	if f, _ := c.Friend(friendID); f.RoomID != "r-2" {
		t.Fatalf("RoomID = %q", f.RoomID)
	}
	c.PatchRoom(RoomChange{PlayerID: friendID})
	if f, _ := c.Friend(friendID); f.RoomID != "" {
		t.Fatalf("RoomID = %q after leaving", f.RoomID)
	}
}

func TestCacheStoreApplyPrivacy(t *testing.T) {
	c := seededCache()
	c.PatchPresence(PresenceEvent{PlayerID: friendID, Online: true})
	c.ApplyPrivacy(PrivacyChange{PlayerID: friendID, Privacy: PrivacySettings{ShowOnlineStatus: false, ShowRoom: false}})
	f, _ := c.Friend(friendID)
	if f.IsOnline || f.RoomID != "" {
		t.Fatalf("hidden fields kept: %+v", f)
	}

	if c.ApplyPrivacy(PrivacyChange{Privacy: PrivacySettings{ShowRoom: true}}) {
		t.Fatal("self privacy applied without a profile")
	}
	c.UpdateProfile(Profile{PlayerID: selfID, Name: "Me"})
	c.ApplyPrivacy(PrivacyChange{Privacy: PrivacySettings{ShowRoom: true}})
	if p, _ := c.Profile(); !p.Privacy.ShowRoom {
		t.Fatal("self privacy not applied")
	}
}

// ============================================================================
// Restore helpers
// ============================================================================

func TestCacheStoreRestore(t *testing.T) {
	t.Run("friend at original index", func(t *testing.T) {
		c := seededCache()
		before := c.Friends()
		removed, ok := c.RemoveFriend(friendID)
		if !ok {
			t.Fatal("RemoveFriend failed")
		}
		c.RestoreFriend(0, removed)
		c.RestoreFriend(0, removed)
		if got := c.Friends(); !reflect.DeepEqual(got, before) {
			t.Fatalf("friends = %+v, want %+v", got, before)
		}
	})

	t.Run("request at original index", func(t *testing.T) {
		c := seededCache()
		before := c.FriendRequests()
		r, _ := c.RemoveIncomingRequest("p-dan")
		c.RestoreIncomingRequest(0, r)
		if got := c.FriendRequests(); !reflect.DeepEqual(got, before) {
			t.Fatalf("requests = %+v, want %+v", got, before)
		}
	})

	t.Run("member at original index", func(t *testing.T) {
		c := seededCache()
		before, _ := c.Group(groupID)
		m, _ := before.Member(friendID)
		if err := c.RemoveMember(groupID, friendID); err != nil {
			t.Fatal(err)
		}
		if err := c.InsertMember(groupID, 1, m); err != nil {
			t.Fatal(err)
		}
		if got, _ := c.Group(groupID); !reflect.DeepEqual(got, before) {
			t.Fatalf("group = %+v, want %+v", got, before)
		}
		if err := c.InsertMember("g-none", 0, m); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("insert index is clamped", func(t *testing.T) {
		got := insertAt([]int{1, 2}, 10, 3)
		if !reflect.DeepEqual(got, []int{1, 2, 3}) {
			t.Fatalf("got %v", got)
		}
		got = insertAt([]int{1, 2}, -4, 0)
		if !reflect.DeepEqual(got, []int{0, 1, 2}) {
			t.Fatalf("got %v", got)
		}
	})
}

func TestCacheStoreGroups(t *testing.T) {
	c := seededCache()
	c.AddMessage(groupRef(groupID), Message{ID: 1, SenderID: friendID, CreatedAt: ts(0)}, StatusNone)

	if err := c.RenameGroup(groupID, "Growers"); err != nil {
		t.Fatal(err)
	}
	if conv, _ := c.Conversation(groupRef(groupID)); conv.Name != "Growers" {
		t.Fatalf("conversation name = %q", conv.Name)
	}
	if err := c.SetMemberRole(groupID, "p-zed", RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	c.PutGroup(Group{ID: groupID, Name: "Fresh", Visibility: VisibilityPublic})
	if g, _ := c.Group(groupID); g.Name != "Fresh" || len(c.Groups()) != 1 {
		t.Fatalf("PutGroup did not replace in place: %+v", c.Groups())
	}
	if !c.RemoveGroup(groupID) {
		t.Fatal("RemoveGroup returned false")
	}
	if _, ok := c.Conversation(groupRef(groupID)); ok {
		t.Fatal("group conversation kept after RemoveGroup")
	}
}

func TestCacheStoreConversationOrder(t *testing.T) {
	c := NewCacheStore(selfID)
	c.UpdateFriendConversations([]Conversation{
		{ID: "a", Messages: []Message{{ID: 1, CreatedAt: ts(0)}}},
		{ID: "b", Messages: []Message{{ID: 2, CreatedAt: ts(50)}}},
		{ID: "c"},
	})
	list := c.FriendConversations()
	if list[0].ID != "b" || list[1].ID != "a" || list[2].ID != "c" {
		t.Fatalf("order = %s %s %s", list[0].ID, list[1].ID, list[2].ID)
	}
	for _, conv := range list {
		if conv.Kind != KindDirect {
			t.Fatalf("Kind = %q", conv.Kind)
		}
	}
}

func TestCacheStoreReset(t *testing.T) {
	c := seededCache()
	c.Reset()
	if len(c.Friends()) != 0 || len(c.Groups()) != 0 || (c.Totals() != Totals{}) {
		t.Fatal("state kept after Reset")
	}
	if _, ok := c.Profile(); ok {
		t.Fatal("profile kept after Reset")
	}
}
