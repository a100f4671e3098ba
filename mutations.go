package social

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxGroupNameLength is the longest accepted group name, in runes.
const MaxGroupNameLength = 32

// tempIDs hands out negative ids for unconfirmed sends. Ids derive from the
// clock in milliseconds and are strictly decreasing within a process, so two
// sends in the same millisecond do not collide.
type tempIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (t *tempIDs) next() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := -t.now().UnixMilli()
	if t.last != 0 && id >= t.last {
		id = t.last - 1
	}
	t.last = id
	return id
}

// scope derives a context that is also cancelled by Destroy.
func (h *Hub) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(h.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// ── Messages ─────────────────────────────────────────────

// SendMessage appends a pending message to ref and posts it. The pending
// entry is replaced in place by the confirmed message, or removed on failure.
func (h *Hub) SendMessage(ctx context.Context, ref ConversationRef, body string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Message{}, ErrEmptyMessage
	}
	ctx, cancel := h.scope(ctx)
	defer cancel()

	tempID := h.temp.next()
	pending := Message{
		ID:        tempID,
		SenderID:  h.cache.SelfID(),
		Body:      body,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	return Run(ctx, h.optimistic, Op[Message]{
		Name: "send_message",
		Apply: func() (func(), error) {
			created := h.cache.AddMessage(ref, pending, StatusPending)
			return func() {
				h.cache.RemoveMessage(ref, tempID)
				if created {
					h.cache.PruneConversation(ref)
				}
			}, nil
		},
		Remote: func(ctx context.Context) (Message, error) {
			var (
				msg Message
				err error
			)
			if ref.Kind == KindGroup {
				msg, err = h.backend.SendGroupMessage(ctx, ref.ID, body)
			} else {
				msg, err = h.backend.SendDirectMessage(ctx, ref.ID, body)
			}
			if err == nil && msg.ID <= 0 {
				err = ErrNoResult
			}
			return msg, err
		},
		Confirm: func(msg Message) {
			h.cache.ReplaceMessage(ref, tempID, msg)
		},
		FailureText: "Message not sent.",
	})
}

// ── Friends ──────────────────────────────────────────────

// AcceptFriendRequest moves an incoming request into the friend list.
func (h *Hub) AcceptFriendRequest(ctx context.Context, playerID string) (FriendSummary, error) {
	ctx, cancel := h.scope(ctx)
	defer cancel()

	return Run(ctx, h.optimistic, Op[FriendSummary]{
		Name: "accept_friend_request",
		Apply: func() (func(), error) {
			index, req, ok := h.incomingRequest(playerID)
			if !ok {
				return nil, fmt.Errorf("friend request %s: %w", playerID, ErrNotFound)
			}
			_, wasFriend := h.cache.Friend(playerID)
			h.cache.RemoveIncomingRequest(playerID)
			if !wasFriend {
				h.cache.AddFriend(FriendSummary{PlayerID: req.PlayerID, Name: req.Name, Avatar: req.Avatar})
			}
			return func() {
				if !wasFriend {
					h.cache.RemoveFriend(playerID)
				}
				h.cache.RestoreIncomingRequest(index, req)
			}, nil
		},
		Remote: func(ctx context.Context) (FriendSummary, error) {
			f, err := h.backend.AcceptFriendRequest(ctx, playerID)
			if err == nil && f.PlayerID == "" {
				err = ErrNoResult
			}
			return f, err
		},
		Confirm:     h.cache.AddFriend,
		FailureText: "Could not accept the friend request.",
	})
}

// RejectFriendRequest drops an incoming request.
func (h *Hub) RejectFriendRequest(ctx context.Context, playerID string) error {
	ctx, cancel := h.scope(ctx)
	defer cancel()

	_, err := Run(ctx, h.optimistic, Op[struct{}]{
		Name: "reject_friend_request",
		Apply: func() (func(), error) {
			index, req, ok := h.incomingRequest(playerID)
			if !ok {
				return nil, fmt.Errorf("friend request %s: %w", playerID, ErrNotFound)
			}
			h.cache.RemoveIncomingRequest(playerID)
			return func() { h.cache.RestoreIncomingRequest(index, req) }, nil
		},
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, h.backend.RejectFriendRequest(ctx, playerID)
		},
		FailureText: "Could not reject the friend request.",
	})
	return err
}

// RemoveFriend drops a friend.
func (h *Hub) RemoveFriend(ctx context.Context, playerID string) error {
	ctx, cancel := h.scope(ctx)
	defer cancel()

	_, err := Run(ctx, h.optimistic, Op[struct{}]{
		Name: "remove_friend",
		Apply: func() (func(), error) {
			index := -1
			for i, f := range h.cache.Friends() {
				if f.PlayerID == playerID {
					index = i
					break
				}
			}
			removed, ok := h.cache.RemoveFriend(playerID)
			if !ok {
				return nil, fmt.Errorf("friend %s: %w", playerID, ErrNotFound)
			}
			return func() { h.cache.RestoreFriend(index, removed) }, nil
		},
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, h.backend.RemoveFriend(ctx, playerID)
		},
		FailureText: "Could not remove this friend.",
	})
	return err
}

func (h *Hub) incomingRequest(playerID string) (int, FriendRequest, bool) {
	for i, r := range h.cache.FriendRequests().Incoming {
		if r.PlayerID == playerID {
			return i, r, true
		}
	}
	return -1, FriendRequest{}, false
}

// ── Groups ───────────────────────────────────────────────

// actorRole returns the local player's role in a group.
func (h *Hub) actorRole(groupID string) (Group, Role, error) {
	g, ok := h.cache.Group(groupID)
	if !ok {
		return Group{}, "", fmt.Errorf("group %s: %w", groupID, ErrNotFound)
	}
	self := h.cache.SelfID()
	if m, ok := g.Member(self); ok {
		return g, m.Role, nil
	}
	if self != "" && g.OwnerID == self {
		return g, RoleOwner, nil
	}
	return g, "", fmt.Errorf("not a member of group %s: %w", groupID, ErrNotPermitted)
}

// ChangeMemberRole sets a member's role. The actor must outrank both the
// member's current role and the new one; ownership cannot be assigned.
func (h *Hub) ChangeMemberRole(ctx context.Context, groupID, playerID string, role Role) (GroupMember, error) {
	if !role.Valid() || role == RoleOwner {
		return GroupMember{}, fmt.Errorf("role %q: %w", role, ErrNotPermitted)
	}
	ctx, cancel := h.scope(ctx)
	defer cancel()

	return Run(ctx, h.optimistic, Op[GroupMember]{
		Name: "change_member_role",
		Apply: func() (func(), error) {
			g, actor, err := h.actorRole(groupID)
			if err != nil {
				return nil, err
			}
			target, ok := g.Member(playerID)
			if !ok {
				return nil, fmt.Errorf("member %s: %w", playerID, ErrNotFound)
			}
			if !actor.Outranks(target.Role) || !actor.Outranks(role) {
				return nil, fmt.Errorf("%s cannot make %s %s: %w", actor, target.Role, role, ErrNotPermitted)
			}
			return Swap(
				func() (Role, error) { return target.Role, nil },
				func(r Role) error { return h.cache.SetMemberRole(groupID, playerID, r) },
				role,
			)()
		},
		Remote: func(ctx context.Context) (GroupMember, error) {
			m, err := h.backend.SetMemberRole(ctx, groupID, playerID, role)
			if err == nil && !m.Role.Valid() {
				err = ErrNoResult
			}
			return m, err
		},
		Confirm: func(m GroupMember) {
			_ = h.cache.SetMemberRole(groupID, playerID, m.Role)
		},
		FailureText: "Could not change the member's role.",
	})
}

// KickMember removes a member the actor outranks.
func (h *Hub) KickMember(ctx context.Context, groupID, playerID string) error {
	ctx, cancel := h.scope(ctx)
	defer cancel()

	_, err := Run(ctx, h.optimistic, Op[struct{}]{
		Name: "kick_member",
		Apply: func() (func(), error) {
			g, actor, err := h.actorRole(groupID)
			if err != nil {
				return nil, err
			}
			index := -1
			var target GroupMember
			for i, m := range g.Members {
				if m.PlayerID == playerID {
					index, target = i, m
					break
				}
			}
			if index < 0 {
				return nil, fmt.Errorf("member %s: %w", playerID, ErrNotFound)
			}
			if !actor.Outranks(target.Role) {
				return nil, fmt.Errorf("%s cannot kick %s: %w", actor, target.Role, ErrNotPermitted)
			}
			if err := h.cache.RemoveMember(groupID, playerID); err != nil {
				return nil, err
			}
			return func() { _ = h.cache.InsertMember(groupID, index, target) }, nil
		},
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, h.backend.KickMember(ctx, groupID, playerID)
		},
		FailureText: "Could not remove the member.",
	})
	return err
}

// RenameGroup renames a group. Names are trimmed and must hold between 1
// and MaxGroupNameLength runes.
func (h *Hub) RenameGroup(ctx context.Context, groupID, name string) (Group, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxGroupNameLength {
		return Group{}, fmt.Errorf("group name %q: %w", name, ErrInvalidName)
	}
	ctx, cancel := h.scope(ctx)
	defer cancel()

	return Run(ctx, h.optimistic, Op[Group]{
		Name: "rename_group",
		Apply: func() (func(), error) {
			g, _, err := h.requireAdmin(groupID)
			if err != nil {
				return nil, err
			}
			return Swap(
				func() (string, error) { return g.Name, nil },
				func(v string) error { return h.cache.RenameGroup(groupID, v) },
				name,
			)()
		},
		Remote: func(ctx context.Context) (Group, error) {
			g, err := h.backend.RenameGroup(ctx, groupID, name)
			if err == nil && g.ID == "" {
				err = ErrNoResult
			}
			return g, err
		},
		Confirm: func(g Group) {
			if g.Name != "" {
				_ = h.cache.RenameGroup(groupID, g.Name)
			}
		},
		FailureText: "Could not rename the group.",
	})
}

// SetGroupVisibility toggles a group between public and private.
func (h *Hub) SetGroupVisibility(ctx context.Context, groupID string, v Visibility) (Group, error) {
	if v != VisibilityPublic && v != VisibilityPrivate {
		return Group{}, fmt.Errorf("visibility %q: %w", v, ErrNotPermitted)
	}
	ctx, cancel := h.scope(ctx)
	defer cancel()

	return Run(ctx, h.optimistic, Op[Group]{
		Name: "set_group_visibility",
		Apply: func() (func(), error) {
			g, _, err := h.requireAdmin(groupID)
			if err != nil {
				return nil, err
			}
			return Swap(
				func() (Visibility, error) { return g.Visibility, nil },
				func(v Visibility) error { return h.cache.SetGroupVisibility(groupID, v) },
				v,
			)()
		},
		Remote: func(ctx context.Context) (Group, error) {
			g, err := h.backend.SetGroupVisibility(ctx, groupID, v)
			if err == nil && g.ID == "" {
				err = ErrNoResult
			}
			return g, err
		},
		Confirm: func(g Group) {
			if g.Visibility != "" {
				_ = h.cache.SetGroupVisibility(groupID, g.Visibility)
			}
		},
		FailureText: "Could not change the group visibility.",
	})
}

func (h *Hub) requireAdmin(groupID string) (Group, Role, error) {
	g, actor, err := h.actorRole(groupID)
	if err != nil {
		return Group{}, "", err
	}
	if actor != RoleOwner && actor != RoleAdmin {
		return Group{}, "", fmt.Errorf("%s cannot edit group %s: %w", actor, groupID, ErrNotPermitted)
	}
	return g, actor, nil
}

// ── Privacy ──────────────────────────────────────────────

// UpdatePrivacy replaces the local player's privacy settings.
func (h *Hub) UpdatePrivacy(ctx context.Context, p PrivacySettings) (PrivacySettings, error) {
	ctx, cancel := h.scope(ctx)
	defer cancel()

	return Run(ctx, h.optimistic, Op[PrivacySettings]{
		Name: "update_privacy",
		Apply: Swap(
			func() (PrivacySettings, error) {
				profile, ok := h.cache.Profile()
				if !ok {
					return PrivacySettings{}, fmt.Errorf("profile: %w", ErrNotFound)
				}
				return profile.Privacy, nil
			},
			h.cache.SetPrivacy,
			p,
		),
		Remote: func(ctx context.Context) (PrivacySettings, error) {
			return h.backend.UpdatePrivacy(ctx, p)
		},
		Confirm: func(canonical PrivacySettings) {
			_ = h.cache.SetPrivacy(canonical)
		},
		FailureText: "Could not save privacy settings.",
	})
}
