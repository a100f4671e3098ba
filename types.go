package social

import (
	"encoding/json"
	"errors"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents a backend error carried in a result envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	// ErrNoResult is returned when an endpoint answers without a usable entity.
	ErrNoResult = errors.New("social: empty or malformed result")
	// ErrHubDestroyed is returned when a response arrives after teardown.
	ErrHubDestroyed = errors.New("social: hub destroyed")
	// ErrNotPermitted is returned when the acting player's role is too low.
	ErrNotPermitted = errors.New("social: not permitted")
	// ErrInvalidName is returned for an empty or oversized group name.
	ErrInvalidName = errors.New("social: invalid name")
	// ErrNotFound is returned when the target entity is not cached.
	ErrNotFound = errors.New("social: not found")
	// ErrEmptyMessage is returned when a message body is blank.
	ErrEmptyMessage = errors.New("social: empty message")
)

// Result is the generic backend response envelope.
type Result struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// Decode unmarshals the Data field into the provided type.
func (r *Result) Decode(v interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// ============================================================================
// Messages & Conversations
// ============================================================================

// MessageStatus is the local-only delivery state of a message.
type MessageStatus string

const (
	StatusNone    MessageStatus = ""
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusRead    MessageStatus = "read"
)

// Message is a single chat line. Negative ids are temp ids of unconfirmed sends.
type Message struct {
	ID        int64         `json:"id"`
	SenderID  string        `json:"senderId"`
	Body      string        `json:"body"`
	CreatedAt string        `json:"createdAt"`
	ReadAt    string        `json:"readAt,omitempty"`
	Status    MessageStatus `json:"-"`
}

// IsTemp reports whether the message is a not-yet-confirmed local send.
func (m Message) IsTemp() bool { return m.ID < 0 }

// ConversationKind distinguishes friend conversations from group conversations.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Conversation is a direct (keyed by counterpart player id) or group
// (keyed by group id) message thread.
type Conversation struct {
	Kind        ConversationKind `json:"kind"`
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	Avatar      string           `json:"avatar,omitempty"`
	Visibility  Visibility       `json:"visibility,omitempty"`
	Messages    []Message        `json:"messages"`
	UnreadCount int              `json:"unreadCount"`
	LastReadID  int64            `json:"lastReadId,omitempty"`
}

// ConversationRef addresses one conversation in the cache.
type ConversationRef struct {
	Kind ConversationKind
	ID   string
}

// ============================================================================
// Friends & Groups
// ============================================================================

// FriendSummary is a friend list entry with presence.
type FriendSummary struct {
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	IsOnline    bool   `json:"isOnline"`
	RoomID      string `json:"roomId,omitempty"`
	LastEventAt string `json:"lastEventAt,omitempty"`
}

// FriendRequest is a pending request in either direction.
type FriendRequest struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// FriendRequests holds both request lists.
type FriendRequests struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}

// Role is a group member role. Owner > Admin > Member.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Outranks reports whether r is strictly above other.
func (r Role) Outranks(other Role) bool { return r.rank() > other.rank() }

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() > 0 }

// Visibility of a group in the public browser.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// GroupMember is a member of a group with presence and role.
type GroupMember struct {
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	IsOnline    bool   `json:"isOnline"`
	RoomID      string `json:"roomId,omitempty"`
	LastEventAt string `json:"lastEventAt,omitempty"`
	Role        Role   `json:"role"`
}

// Group is a chat group the player belongs to.
type Group struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Visibility Visibility    `json:"visibility"`
	OwnerID    string        `json:"ownerId"`
	Members    []GroupMember `json:"members,omitempty"`
}

// Member returns the member with the given player id.
func (g *Group) Member(playerID string) (GroupMember, bool) {
	for _, m := range g.Members {
		if m.PlayerID == playerID {
			return m, true
		}
	}
	return GroupMember{}, false
}

// ============================================================================
// Presence & Privacy
// ============================================================================

// PresenceEvent is a transient presence push. Nil fields were not carried.
type PresenceEvent struct {
	PlayerID    string  `json:"playerId"`
	Online      bool    `json:"online"`
	RoomID      *string `json:"roomId,omitempty"`
	LastEventAt *string `json:"lastEventAt,omitempty"`
}

// RoomChange is pushed when a player moves between rooms.
type RoomChange struct {
	PlayerID string  `json:"playerId"`
	RoomID   *string `json:"roomId"`
}

// PrivacySettings controls what other players can see.
type PrivacySettings struct {
	ShowOnlineStatus    bool `json:"showOnlineStatus"`
	ShowRoom            bool `json:"showRoom"`
	AllowFriendRequests bool `json:"allowFriendRequests"`
}

// PrivacyChange is pushed when a player changes privacy. An empty PlayerID
// means the local player.
type PrivacyChange struct {
	PlayerID string          `json:"playerId,omitempty"`
	Privacy  PrivacySettings `json:"privacy"`
}

// Profile is the local player's own profile.
type Profile struct {
	PlayerID string          `json:"playerId"`
	Name     string          `json:"name"`
	Avatar   string          `json:"avatar,omitempty"`
	Privacy  PrivacySettings `json:"privacy"`
}

// ============================================================================
// Leaderboard & Rooms
// ============================================================================

// LeaderboardRow is a ranked player entry.
type LeaderboardRow struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Score    int64  `json:"score"`
}

// PublicRoom is a joinable room listed in the room browser.
type PublicRoom struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HostName    string `json:"hostName,omitempty"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// PlayerSummary is a player search hit.
type PlayerSummary struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	IsFriend bool   `json:"isFriend"`
}

// ============================================================================
// Snapshots
// ============================================================================

// WelcomePayload is the bulk snapshot delivered on connection.
type WelcomePayload struct {
	Profile            *Profile        `json:"profile,omitempty"`
	Friends            []FriendSummary `json:"friends"`
	Requests           FriendRequests  `json:"requests"`
	Conversations      []Conversation  `json:"conversations"`
	Groups             []Group         `json:"groups"`
	GroupConversations []Conversation  `json:"groupConversations"`
}

// Totals are the derived unread badge counters.
type Totals struct {
	Friends  int `json:"friends"`
	Groups   int `json:"groups"`
	Requests int `json:"requests"`
	Total    int `json:"total"`
}
