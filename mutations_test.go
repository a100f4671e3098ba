package social

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testWelcome() WelcomePayload {
	return WelcomePayload{
		Profile: &Profile{PlayerID: selfID, Name: "Me", Privacy: PrivacySettings{ShowOnlineStatus: true, ShowRoom: true, AllowFriendRequests: true}},
		Friends: []FriendSummary{
			{PlayerID: friendID, Name: "Bob", RoomID: "r-1"},
			{PlayerID: "p-carol", Name: "Carol"},
		},
		Requests: FriendRequests{Incoming: []FriendRequest{
			{PlayerID: "p-dan", Name: "Dan"},
			{PlayerID: "p-eve", Name: "Eve"},
		}},
		Conversations: []Conversation{{
			ID: friendID,
			Messages: []Message{
				{ID: 1, SenderID: friendID, Body: "hey", CreatedAt: ts(0)},
				{ID: 2, SenderID: friendID, Body: "there", CreatedAt: ts(60)},
			},
			LastReadID: 2,
		}},
		Groups: []Group{
			{
				ID: groupID, Name: "Gardeners", Visibility: VisibilityPrivate, OwnerID: selfID,
				Members: []GroupMember{
					{PlayerID: selfID, Role: RoleOwner},
					{PlayerID: friendID, Role: RoleAdmin},
					{PlayerID: "p-carol", Role: RoleMember},
				},
			},
			{
				ID: "g-2", Name: "Neighbours", Visibility: VisibilityPublic, OwnerID: "p-own",
				Members: []GroupMember{
					{PlayerID: "p-own", Role: RoleOwner},
					{PlayerID: selfID, Role: RoleAdmin},
					{PlayerID: friendID, Role: RoleAdmin},
					{PlayerID: "p-carol", Role: RoleMember},
				},
			},
			{
				ID: "g-3", Name: "Visitors", Visibility: VisibilityPublic, OwnerID: "p-own",
				Members: []GroupMember{
					{PlayerID: "p-own", Role: RoleOwner},
					{PlayerID: selfID, Role: RoleMember},
				},
			},
		},
	}
}

func newTestHub(t *testing.T, fb *fakeBackend, opts ...HubOption) (*Hub, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	opts = append([]HubOption{
		WithSelfID(selfID),
		WithNotifier(n),
		WithDebounceWindows(10*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond),
	}, opts...)
	h := NewHub(fb, opts...)
	t.Cleanup(h.Destroy)
	h.Seed(testWelcome())
	return h, n
}

// ============================================================================
// Temp ids
// ============================================================================

func TestTempIDs(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	ids := tempIDs{now: func() time.Time { return fixed }}
	a, b, c := ids.next(), ids.next(), ids.next()
	if a != -1_700_000_000_000 {
		t.Fatalf("first id = %d", a)
	}
	if !(a > b && b > c) {
		t.Fatalf("ids not strictly decreasing: %d %d %d", a, b, c)
	}

	later := tempIDs{now: func() time.Time { return fixed }}
	later.last = -1_800_000_000_000
	if id := later.next(); id != -1_800_000_000_001 {
		t.Fatalf("id = %d, want below previous", id)
	}
}

// ============================================================================
// SendMessage
// ============================================================================

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed id replaces temp id", func(t *testing.T) {
		fb := newFakeBackend()
		fb.sent = Message{ID: 57, SenderID: selfID, Body: "hi!", CreatedAt: ts(120)}
		h, _ := newTestHub(t, fb)

		msg, err := h.SendMessage(ctx, directRef(friendID), "  hi!  ")
		if err != nil {
			t.Fatal(err)
		}
		if msg.ID != 57 {
			t.Fatalf("ID = %d", msg.ID)
		}
		conv, _ := h.Cache().Conversation(directRef(friendID))
		found := false
		for _, m := range conv.Messages {
			if m.ID < 0 {
				t.Fatalf("temp id %d still cached", m.ID)
			}
			if m.ID == 57 {
				found = true
			}
		}
		if !found || len(conv.Messages) != 3 {
			t.Fatalf("messages = %+v", conv.Messages)
		}
		th := h.Thread(directRef(friendID))
		if th.StatusID != 57 || th.Status != StatusSent {
			t.Fatalf("status = (%d, %q)", th.StatusID, th.Status)
		}
	})

	t.Run("pending entry is visible during the call", func(t *testing.T) {
		fb := newFakeBackend()
		fb.sent = Message{ID: 58, SenderID: selfID, Body: "wait", CreatedAt: ts(130)}
		fb.gate = make(chan struct{})
		h, _ := newTestHub(t, fb)

		done := make(chan error, 1)
		go func() {
			_, err := h.SendMessage(ctx, directRef(friendID), "wait")
			done <- err
		}()
		eventually(t, func() bool { return fb.count("SendDirectMessage") == 1 }, "send started")
		th := h.Thread(directRef(friendID))
		if th.Status != StatusPending || th.StatusID >= 0 {
			t.Fatalf("status = (%d, %q), want pending temp", th.StatusID, th.Status)
		}
		close(fb.gate)
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	})

	t.Run("failure restores the conversation", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = errors.New("offline")
		h, n := newTestHub(t, fb)
		before, _ := h.Cache().Conversation(directRef(friendID))

		if _, err := h.SendMessage(ctx, directRef(friendID), "lost"); err == nil {
			t.Fatal("expected error")
		}
		after, _ := h.Cache().Conversation(directRef(friendID))
		if !reflect.DeepEqual(before, after) {
			t.Fatalf("conversation changed:\nbefore %+v\nafter  %+v", before, after)
		}
		if toasts, _, _ := n.snapshot(); len(toasts) != 1 {
			t.Fatalf("toasts = %v", toasts)
		}
	})

	t.Run("failure to a new conversation leaves nothing behind", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = errors.New("offline")
		h, _ := newTestHub(t, fb)
		ref := directRef("p-carol")
		if _, ok := h.Cache().Conversation(ref); ok {
			t.Fatal("fixture already has a conversation with Carol")
		}
		before := h.Cache().FriendConversations()

		if _, err := h.SendMessage(ctx, ref, "hi"); err == nil {
			t.Fatal("expected error")
		}
		if _, ok := h.Cache().Conversation(ref); ok {
			t.Fatal("conversation left in the cache")
		}
		if th := h.Thread(ref); th.State != ThreadMissing {
			t.Fatalf("thread state = %q, want missing", th.State)
		}
		if after := h.Cache().FriendConversations(); !reflect.DeepEqual(before, after) {
			t.Fatalf("conversations changed:\nbefore %+v\nafter  %+v", before, after)
		}
	})

	t.Run("empty confirmation is a failure", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		_, err := h.SendMessage(ctx, groupRef(groupID), "hello group")
		if !errors.Is(err, ErrNoResult) {
			t.Fatalf("err = %v, want ErrNoResult", err)
		}
		if fb.count("SendGroupMessage") != 1 {
			t.Fatal("group endpoint not used")
		}
	})

	t.Run("blank body", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		if _, err := h.SendMessage(ctx, directRef(friendID), "   "); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("err = %v", err)
		}
		if fb.count("SendDirectMessage") != 0 {
			t.Fatal("backend called for blank body")
		}
	})
}

// ============================================================================
// Friends
// ============================================================================

func TestFriendMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("accept moves request to friends", func(t *testing.T) {
		fb := newFakeBackend()
		fb.accepted = FriendSummary{PlayerID: "p-dan", Name: "Dan", IsOnline: true}
		h, _ := newTestHub(t, fb)

		f, err := h.AcceptFriendRequest(ctx, "p-dan")
		if err != nil {
			t.Fatal(err)
		}
		if !f.IsOnline {
			t.Fatalf("friend = %+v", f)
		}
		if got, ok := h.Cache().Friend("p-dan"); !ok || !got.IsOnline {
			t.Fatalf("cached friend = %+v (%v)", got, ok)
		}
		if n := len(h.Cache().FriendRequests().Incoming); n != 1 {
			t.Fatalf("incoming = %d, want 1", n)
		}
	})

	t.Run("failed accept round-trips", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = &APIError{Code: "GONE", Message: "Request expired"}
		h, n := newTestHub(t, fb)
		friends, reqs := h.Cache().Friends(), h.Cache().FriendRequests()

		if _, err := h.AcceptFriendRequest(ctx, "p-dan"); err == nil {
			t.Fatal("expected error")
		}
		if !reflect.DeepEqual(friends, h.Cache().Friends()) {
			t.Fatal("friends changed after rollback")
		}
		if !reflect.DeepEqual(reqs, h.Cache().FriendRequests()) {
			t.Fatal("requests changed after rollback")
		}
		if toasts, _, _ := n.snapshot(); len(toasts) != 1 || toasts[0] != "Request expired" {
			t.Fatalf("toasts = %v", toasts)
		}
	})

	t.Run("empty accept result rolls back", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		if _, err := h.AcceptFriendRequest(ctx, "p-eve"); !errors.Is(err, ErrNoResult) {
			t.Fatalf("err = %v", err)
		}
		if _, ok := h.Cache().Friend("p-eve"); ok {
			t.Fatal("placeholder friend kept")
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		if _, err := h.AcceptFriendRequest(ctx, "p-zed"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		if fb.count("AcceptFriendRequest") != 0 {
			t.Fatal("backend called for unknown request")
		}
	})

	t.Run("failed reject restores position", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = errors.New("offline")
		h, _ := newTestHub(t, fb)
		before := h.Cache().FriendRequests()
		_ = h.RejectFriendRequest(ctx, "p-dan")
		if !reflect.DeepEqual(before, h.Cache().FriendRequests()) {
			t.Fatalf("requests = %+v", h.Cache().FriendRequests())
		}
	})

	t.Run("remove friend", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		if err := h.RemoveFriend(ctx, friendID); err != nil {
			t.Fatal(err)
		}
		if _, ok := h.Cache().Friend(friendID); ok {
			t.Fatal("friend kept")
		}

		fb.setErr(errors.New("offline"))
		before := h.Cache().Friends()
		_ = h.RemoveFriend(ctx, "p-carol")
		if !reflect.DeepEqual(before, h.Cache().Friends()) {
			t.Fatal("friend list changed after failed remove")
		}
	})
}

// ============================================================================
// Groups
// ============================================================================

func TestChangeMemberRole(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		group   string
		target  string
		role    Role
		wantErr error
	}{
		{"owner promotes member", groupID, "p-carol", RoleAdmin, nil},
		{"owner demotes admin", groupID, friendID, RoleMember, nil},
		{"ownership cannot be assigned", groupID, "p-carol", RoleOwner, ErrNotPermitted},
		{"unknown role", groupID, "p-carol", Role("king"), ErrNotPermitted},
		{"admin cannot change admin", "g-2", friendID, RoleMember, ErrNotPermitted},
		{"admin cannot grant admin", "g-2", "p-carol", RoleAdmin, ErrNotPermitted},
		{"member cannot change anyone", "g-3", "p-own", RoleMember, ErrNotPermitted},
		{"unknown member", groupID, "p-zed", RoleMember, ErrNotFound},
		{"unknown group", "g-none", "p-carol", RoleMember, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend()
			fb.member = GroupMember{PlayerID: tt.target, Role: tt.role}
			h, _ := newTestHub(t, fb)

			_, err := h.ChangeMemberRole(ctx, tt.group, tt.target, tt.role)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if fb.count("SetMemberRole") != 0 {
					t.Fatal("backend called for rejected change")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			g, _ := h.Cache().Group(tt.group)
			if m, _ := g.Member(tt.target); m.Role != tt.role {
				t.Fatalf("role = %q, want %q", m.Role, tt.role)
			}
		})
	}

	t.Run("failure restores role", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = errors.New("offline")
		h, _ := newTestHub(t, fb)
		before, _ := h.Cache().Group(groupID)
		_, _ = h.ChangeMemberRole(ctx, groupID, "p-carol", RoleAdmin)
		if after, _ := h.Cache().Group(groupID); !reflect.DeepEqual(before, after) {
			t.Fatalf("group = %+v", after)
		}
	})
}

func TestKickMember(t *testing.T) {
	ctx := context.Background()

	t.Run("failure restores member at its position", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = errors.New("offline")
		h, _ := newTestHub(t, fb)
		before, _ := h.Cache().Group(groupID)
		if err := h.KickMember(ctx, groupID, friendID); err == nil {
			t.Fatal("expected error")
		}
		if after, _ := h.Cache().Group(groupID); !reflect.DeepEqual(before, after) {
			t.Fatalf("members = %+v, want %+v", after.Members, before.Members)
		}
	})

	t.Run("admin kicks member", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		if err := h.KickMember(ctx, "g-2", "p-carol"); err != nil {
			t.Fatal(err)
		}
		g, _ := h.Cache().Group("g-2")
		if _, ok := g.Member("p-carol"); ok {
			t.Fatal("member kept")
		}
	})

	t.Run("admin cannot kick admin", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		if err := h.KickMember(ctx, "g-2", friendID); !errors.Is(err, ErrNotPermitted) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestRenameGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("validates name", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		for _, name := range []string{"", "   ", strings.Repeat("é", MaxGroupNameLength+1)} {
			if _, err := h.RenameGroup(ctx, groupID, name); !errors.Is(err, ErrInvalidName) {
				t.Fatalf("name %q: err = %v", name, err)
			}
		}
		if _, err := h.RenameGroup(ctx, groupID, strings.Repeat("é", MaxGroupNameLength)); err == nil {
			t.Fatal("expected ErrNoResult from empty fake result")
		} else if !errors.Is(err, ErrNoResult) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("confirm applies canonical name", func(t *testing.T) {
		fb := newFakeBackend()
		fb.renamed = Group{ID: groupID, Name: "Green Thumbs"}
		h, _ := newTestHub(t, fb)
		if _, err := h.RenameGroup(ctx, groupID, " green thumbs "); err != nil {
			t.Fatal(err)
		}
		if g, _ := h.Cache().Group(groupID); g.Name != "Green Thumbs" {
			t.Fatalf("Name = %q", g.Name)
		}
	})

	t.Run("members cannot rename", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		if _, err := h.RenameGroup(ctx, "g-3", "Mine"); !errors.Is(err, ErrNotPermitted) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("failure restores name", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = errors.New("offline")
		h, _ := newTestHub(t, fb)
		_, _ = h.RenameGroup(ctx, groupID, "Other")
		if g, _ := h.Cache().Group(groupID); g.Name != "Gardeners" {
			t.Fatalf("Name = %q", g.Name)
		}
	})
}

func TestSetGroupVisibility(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBackend()
	fb.renamed = Group{ID: groupID, Visibility: VisibilityPublic}
	h, _ := newTestHub(t, fb)

	if _, err := h.SetGroupVisibility(ctx, groupID, Visibility("hidden")); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v", err)
	}
	if _, err := h.SetGroupVisibility(ctx, groupID, VisibilityPublic); err != nil {
		t.Fatal(err)
	}
	if g, _ := h.Cache().Group(groupID); g.Visibility != VisibilityPublic {
		t.Fatalf("Visibility = %q", g.Visibility)
	}
}

// ============================================================================
// Privacy
// ============================================================================

func TestUpdatePrivacy(t *testing.T) {
	ctx := context.Background()

	t.Run("applies settings", func(t *testing.T) {
		fb := newFakeBackend()
		h, _ := newTestHub(t, fb)
		want := PrivacySettings{ShowOnlineStatus: false, ShowRoom: true}
		if _, err := h.UpdatePrivacy(ctx, want); err != nil {
			t.Fatal(err)
		}
		if p, _ := h.Cache().Profile(); p.Privacy != want {
			t.Fatalf("Privacy = %+v", p.Privacy)
		}
	})

	t.Run("failure restores settings", func(t *testing.T) {
		fb := newFakeBackend()
		fb.err = errors.New("offline")
		h, _ := newTestHub(t, fb)
		before, _ := h.Cache().Profile()
		_, _ = h.UpdatePrivacy(ctx, PrivacySettings{})
		if after, _ := h.Cache().Profile(); after != before {
			t.Fatalf("profile = %+v", after)
		}
	})

	t.Run("no profile", func(t *testing.T) {
		fb := newFakeBackend()
		h := NewHub(fb, WithSelfID(selfID))
		defer h.Destroy()
		if _, err := h.UpdatePrivacy(ctx, PrivacySettings{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}
