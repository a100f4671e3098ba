package social

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeBackend is an in-memory Backend. Fetches return the configured
// fields; mutations return the configured results or err.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	profile    Profile
	friends    []FriendSummary
	requests   FriendRequests
	convs      []Conversation
	groupConvs []Conversation
	groups     []Group
	group      Group
	board      []LeaderboardRow
	rooms      []PublicRoom
	players    []PlayerSummary

	sent     Message
	accepted FriendSummary
	member   GroupMember
	renamed  Group
	privacy  PrivacySettings
	err      error

	// gate, when set, blocks every call until it is closed.
	gate chan struct{}
	// lastQuery records the last SearchPlayers query.
	lastQuery string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int)}
}

func (f *fakeBackend) record(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls[name]++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeBackend) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeBackend) FetchProfile(ctx context.Context) (Profile, error) {
	if err := f.record(ctx, "FetchProfile"); err != nil {
		return Profile{}, err
	}
	return f.profile, nil
}

func (f *fakeBackend) FetchFriends(ctx context.Context) ([]FriendSummary, error) {
	if err := f.record(ctx, "FetchFriends"); err != nil {
		return nil, err
	}
	return f.friends, nil
}

func (f *fakeBackend) FetchFriendRequests(ctx context.Context) (FriendRequests, error) {
	if err := f.record(ctx, "FetchFriendRequests"); err != nil {
		return FriendRequests{}, err
	}
	return f.requests, nil
}

func (f *fakeBackend) AcceptFriendRequest(ctx context.Context, playerID string) (FriendSummary, error) {
	if err := f.record(ctx, "AcceptFriendRequest"); err != nil {
		return FriendSummary{}, err
	}
	return f.accepted, f.failure()
}

func (f *fakeBackend) RejectFriendRequest(ctx context.Context, playerID string) error {
	if err := f.record(ctx, "RejectFriendRequest"); err != nil {
		return err
	}
	return f.failure()
}

func (f *fakeBackend) RemoveFriend(ctx context.Context, playerID string) error {
	if err := f.record(ctx, "RemoveFriend"); err != nil {
		return err
	}
	return f.failure()
}

func (f *fakeBackend) FetchConversations(ctx context.Context) ([]Conversation, error) {
	if err := f.record(ctx, "FetchConversations"); err != nil {
		return nil, err
	}
	return f.convs, nil
}

func (f *fakeBackend) FetchGroupConversations(ctx context.Context) ([]Conversation, error) {
	if err := f.record(ctx, "FetchGroupConversations"); err != nil {
		return nil, err
	}
	return f.groupConvs, nil
}

func (f *fakeBackend) SendDirectMessage(ctx context.Context, playerID, body string) (Message, error) {
	if err := f.record(ctx, "SendDirectMessage"); err != nil {
		return Message{}, err
	}
	return f.sent, f.failure()
}

func (f *fakeBackend) SendGroupMessage(ctx context.Context, groupID, body string) (Message, error) {
	if err := f.record(ctx, "SendGroupMessage"); err != nil {
		return Message{}, err
	}
	return f.sent, f.failure()
}

func (f *fakeBackend) MarkDirectRead(ctx context.Context, playerID string, upTo int64) error {
	if err := f.record(ctx, "MarkDirectRead"); err != nil {
		return err
	}
	return f.failure()
}

func (f *fakeBackend) MarkGroupRead(ctx context.Context, groupID string, upTo int64) error {
	if err := f.record(ctx, "MarkGroupRead"); err != nil {
		return err
	}
	return f.failure()
}

func (f *fakeBackend) FetchGroups(ctx context.Context) ([]Group, error) {
	if err := f.record(ctx, "FetchGroups"); err != nil {
		return nil, err
	}
	return f.groups, nil
}

func (f *fakeBackend) FetchGroup(ctx context.Context, groupID string) (Group, error) {
	if err := f.record(ctx, "FetchGroup"); err != nil {
		return Group{}, err
	}
	return f.group, nil
}

func (f *fakeBackend) SetMemberRole(ctx context.Context, groupID, playerID string, role Role) (GroupMember, error) {
	if err := f.record(ctx, "SetMemberRole"); err != nil {
		return GroupMember{}, err
	}
	return f.member, f.failure()
}

func (f *fakeBackend) KickMember(ctx context.Context, groupID, playerID string) error {
	if err := f.record(ctx, "KickMember"); err != nil {
		return err
	}
	return f.failure()
}

func (f *fakeBackend) RenameGroup(ctx context.Context, groupID, name string) (Group, error) {
	if err := f.record(ctx, "RenameGroup"); err != nil {
		return Group{}, err
	}
	return f.renamed, f.failure()
}

func (f *fakeBackend) SetGroupVisibility(ctx context.Context, groupID string, v Visibility) (Group, error) {
	if err := f.record(ctx, "SetGroupVisibility"); err != nil {
		return Group{}, err
	}
	return f.renamed, f.failure()
}

func (f *fakeBackend) FetchLeaderboard(ctx context.Context, category string) ([]LeaderboardRow, error) {
	if err := f.record(ctx, "FetchLeaderboard"); err != nil {
		return nil, err
	}
	return f.board, nil
}

func (f *fakeBackend) FetchPublicRooms(ctx context.Context) ([]PublicRoom, error) {
	if err := f.record(ctx, "FetchPublicRooms"); err != nil {
		return nil, err
	}
	return f.rooms, nil
}

func (f *fakeBackend) FetchPrivacy(ctx context.Context) (PrivacySettings, error) {
	if err := f.record(ctx, "FetchPrivacy"); err != nil {
		return PrivacySettings{}, err
	}
	return f.privacy, nil
}

func (f *fakeBackend) UpdatePrivacy(ctx context.Context, p PrivacySettings) (PrivacySettings, error) {
	if err := f.record(ctx, "UpdatePrivacy"); err != nil {
		return PrivacySettings{}, err
	}
	return p, f.failure()
}

func (f *fakeBackend) SearchPlayers(ctx context.Context, query string) ([]PlayerSummary, error) {
	if err := f.record(ctx, "SearchPlayers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastQuery = query
	f.mu.Unlock()
	return f.players, nil
}

// recordingNotifier records every notification.
type recordingNotifier struct {
	mu     sync.Mutex
	toasts []string
	online []FriendSummary
	sounds int
}

func (n *recordingNotifier) Toast(message string) {
	n.mu.Lock()
	n.toasts = append(n.toasts, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) FriendOnline(f FriendSummary) {
	n.mu.Lock()
	n.online = append(n.online, f)
	n.mu.Unlock()
}

func (n *recordingNotifier) PlaySound() {
	n.mu.Lock()
	n.sounds++
	n.mu.Unlock()
}

func (n *recordingNotifier) snapshot() (toasts []string, online []FriendSummary, sounds int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.toasts...), append([]FriendSummary{}, n.online...), n.sounds
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

const (
	selfID   = "p-self"
	friendID = "p-bob"
	groupID  = "g-1"
)

func ts(sec int) string {
	return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second).Format(time.RFC3339)
}

func directRef(id string) ConversationRef { return ConversationRef{Kind: KindDirect, ID: id} }

func groupRef(id string) ConversationRef { return ConversationRef{Kind: KindGroup, ID: id} }
