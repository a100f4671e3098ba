// Package social is the client-side synchronization engine of the in-game
// social hub: friends, groups, direct and group messaging, presence,
// leaderboards and public rooms.
//
// A Hub keeps a local CacheStore consistent with the backend. Pushes arrive
// through a PushWSClient, PushSSEClient or PushWebhook, are routed onto an
// EventBus by a Router, and the Hub applies them to the cache. User actions go through optimistic
// mutations that update the cache first and roll back on failure.
//
// Example:
//
//	client := social.NewClient(token, social.WithBaseURL("https://api.example.com"))
//	hub := social.NewHub(client, social.WithSelfID(playerID))
//	defer hub.Destroy()
//
//	router := social.NewRouter(hub.Bus(), log)
//	push := social.NewPushWSClient(baseURL, social.RealtimeConfig{Token: token, AutoReconnect: true}, router)
//	_ = push.Connect(ctx)
//
//	hub.Open()
//	_, _ = hub.SendMessage(ctx, social.ConversationRef{Kind: social.KindDirect, ID: friendID}, "hi!")
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://mg-api.ariedam.fr"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Backend contract
// ============================================================================

// Backend is the set of remote endpoints the engine calls. Fetches return
// empty values on malformed payloads; mutations return ErrNoResult when the
// backend answers without a usable entity.
type Backend interface {
	FetchProfile(ctx context.Context) (Profile, error)
	FetchFriends(ctx context.Context) ([]FriendSummary, error)
	FetchFriendRequests(ctx context.Context) (FriendRequests, error)
	AcceptFriendRequest(ctx context.Context, playerID string) (FriendSummary, error)
	RejectFriendRequest(ctx context.Context, playerID string) error
	RemoveFriend(ctx context.Context, playerID string) error

	FetchConversations(ctx context.Context) ([]Conversation, error)
	FetchGroupConversations(ctx context.Context) ([]Conversation, error)
	SendDirectMessage(ctx context.Context, playerID, body string) (Message, error)
	SendGroupMessage(ctx context.Context, groupID, body string) (Message, error)
	MarkDirectRead(ctx context.Context, playerID string, upTo int64) error
	MarkGroupRead(ctx context.Context, groupID string, upTo int64) error

	FetchGroups(ctx context.Context) ([]Group, error)
	FetchGroup(ctx context.Context, groupID string) (Group, error)
	SetMemberRole(ctx context.Context, groupID, playerID string, role Role) (GroupMember, error)
	KickMember(ctx context.Context, groupID, playerID string) error
	RenameGroup(ctx context.Context, groupID, name string) (Group, error)
	SetGroupVisibility(ctx context.Context, groupID string, v Visibility) (Group, error)

	FetchLeaderboard(ctx context.Context, category string) ([]LeaderboardRow, error)
	FetchPublicRooms(ctx context.Context) ([]PublicRoom, error)
	FetchPrivacy(ctx context.Context) (PrivacySettings, error)
	UpdatePrivacy(ctx context.Context, p PrivacySettings) (PrivacySettings, error)
	SearchPlayers(ctx context.Context, query string) ([]PlayerSummary, error)
}

// ============================================================================
// Client
// ============================================================================

// Client implements Backend over the REST API.
type Client struct {
	token      string
	playerID   string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ Backend = (*Client)(nil)

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithPlayerID sends the player id with every request.
func WithPlayerID(id string) ClientOption {
	return func(c *Client) { c.playerID = id }
}

func WithClientLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a backend client authenticated with a session token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "client").Logger()
	return c
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// ============================================================================
// Internal request helpers
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.playerID != "" {
		req.Header.Set("X-Player-Id", c.playerID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// do performs a request and unwraps the envelope. A malformed envelope
// yields ErrNoResult.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, query map[string]string) (*Result, error) {
	data, status, err := c.doRequest(ctx, method, path, body, query)
	if err != nil {
		return nil, err
	}
	res, err := decodeJSON[Result](data)
	if err != nil {
		if status >= 400 {
			return nil, fmt.Errorf("%s %s: http %d", method, path, status)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNoResult)
	}
	if !res.OK {
		if res.Error != nil {
			return nil, res.Error
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNoResult)
	}
	return res, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// fetch reads an entity, falling back to fallback when the payload is
// malformed. Transport and API errors are still returned.
func fetch[T any](ctx context.Context, c *Client, path string, query map[string]string, fallback T) (T, error) {
	res, err := c.do(ctx, "GET", path, nil, query)
	if err != nil {
		if errors.Is(err, ErrNoResult) {
			c.log.Warn().Str("path", path).Msg("malformed payload, using empty value")
			return fallback, nil
		}
		return fallback, err
	}
	var out T
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return fallback, nil
	}
	if err := res.Decode(&out); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("malformed payload, using empty value")
		return fallback, nil
	}
	return out, nil
}

// mutate performs a write and decodes the canonical entity it returns.
func mutate[T any](ctx context.Context, c *Client, method, path string, body interface{}) (T, error) {
	var out T
	res, err := c.do(ctx, method, path, body, nil)
	if err != nil {
		return out, err
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return out, fmt.Errorf("%s %s: %w", method, path, ErrNoResult)
	}
	if err := res.Decode(&out); err != nil {
		return out, fmt.Errorf("%s %s: %w", method, path, ErrNoResult)
	}
	return out, nil
}

func (c *Client) exec(ctx context.Context, method, path string, body interface{}) error {
	_, err := c.do(ctx, method, path, body, nil)
	return err
}

// ============================================================================
// Profile & Friends
// ============================================================================

func (c *Client) FetchProfile(ctx context.Context) (Profile, error) {
	return fetch(ctx, c, "/api/social/me", nil, Profile{})
}

func (c *Client) FetchFriends(ctx context.Context) ([]FriendSummary, error) {
	return fetch(ctx, c, "/api/social/friends", nil, []FriendSummary{})
}

func (c *Client) FetchFriendRequests(ctx context.Context) (FriendRequests, error) {
	return fetch(ctx, c, "/api/social/friends/requests", nil, FriendRequests{})
}

func (c *Client) AcceptFriendRequest(ctx context.Context, playerID string) (FriendSummary, error) {
	return mutate[FriendSummary](ctx, c, "POST", "/api/social/friends/requests/"+url.PathEscape(playerID)+"/accept", nil)
}

func (c *Client) RejectFriendRequest(ctx context.Context, playerID string) error {
	return c.exec(ctx, "POST", "/api/social/friends/requests/"+url.PathEscape(playerID)+"/reject", nil)
}

func (c *Client) RemoveFriend(ctx context.Context, playerID string) error {
	return c.exec(ctx, "DELETE", "/api/social/friends/"+url.PathEscape(playerID), nil)
}

// ============================================================================
// Conversations & Messages
// ============================================================================

func (c *Client) FetchConversations(ctx context.Context) ([]Conversation, error) {
	return fetch(ctx, c, "/api/social/conversations", nil, []Conversation{})
}

func (c *Client) FetchGroupConversations(ctx context.Context) ([]Conversation, error) {
	return fetch(ctx, c, "/api/social/groups/conversations", nil, []Conversation{})
}

func (c *Client) SendDirectMessage(ctx context.Context, playerID, body string) (Message, error) {
	return mutate[Message](ctx, c, "POST", "/api/social/direct/"+url.PathEscape(playerID)+"/messages", map[string]string{"body": body})
}

func (c *Client) SendGroupMessage(ctx context.Context, groupID, body string) (Message, error) {
	return mutate[Message](ctx, c, "POST", "/api/social/groups/"+url.PathEscape(groupID)+"/messages", map[string]string{"body": body})
}

func (c *Client) MarkDirectRead(ctx context.Context, playerID string, upTo int64) error {
	return c.exec(ctx, "POST", "/api/social/direct/"+url.PathEscape(playerID)+"/read", map[string]int64{"messageId": upTo})
}

func (c *Client) MarkGroupRead(ctx context.Context, groupID string, upTo int64) error {
	return c.exec(ctx, "POST", "/api/social/groups/"+url.PathEscape(groupID)+"/read", map[string]int64{"messageId": upTo})
}

// ============================================================================
// Groups
// ============================================================================

func (c *Client) FetchGroups(ctx context.Context) ([]Group, error) {
	return fetch(ctx, c, "/api/social/groups", nil, []Group{})
}

func (c *Client) FetchGroup(ctx context.Context, groupID string) (Group, error) {
	g, err := fetch(ctx, c, "/api/social/groups/"+url.PathEscape(groupID), nil, Group{})
	if err == nil && g.ID == "" {
		return g, fmt.Errorf("group %s: %w", groupID, ErrNoResult)
	}
	return g, err
}

func (c *Client) SetMemberRole(ctx context.Context, groupID, playerID string, role Role) (GroupMember, error) {
	path := "/api/social/groups/" + url.PathEscape(groupID) + "/members/" + url.PathEscape(playerID)
	return mutate[GroupMember](ctx, c, "PATCH", path, map[string]Role{"role": role})
}

func (c *Client) KickMember(ctx context.Context, groupID, playerID string) error {
	return c.exec(ctx, "DELETE", "/api/social/groups/"+url.PathEscape(groupID)+"/members/"+url.PathEscape(playerID), nil)
}

func (c *Client) RenameGroup(ctx context.Context, groupID, name string) (Group, error) {
	return mutate[Group](ctx, c, "PATCH", "/api/social/groups/"+url.PathEscape(groupID), map[string]string{"name": name})
}

func (c *Client) SetGroupVisibility(ctx context.Context, groupID string, v Visibility) (Group, error) {
	return mutate[Group](ctx, c, "PATCH", "/api/social/groups/"+url.PathEscape(groupID), map[string]Visibility{"visibility": v})
}

// ============================================================================
// Leaderboard, Rooms, Privacy, Search
// ============================================================================

func (c *Client) FetchLeaderboard(ctx context.Context, category string) ([]LeaderboardRow, error) {
	var query map[string]string
	if category != "" {
		query = map[string]string{"category": category}
	}
	return fetch(ctx, c, "/api/social/leaderboard", query, []LeaderboardRow{})
}

func (c *Client) FetchPublicRooms(ctx context.Context) ([]PublicRoom, error) {
	return fetch(ctx, c, "/api/social/rooms", nil, []PublicRoom{})
}

func (c *Client) FetchPrivacy(ctx context.Context) (PrivacySettings, error) {
	return fetch(ctx, c, "/api/social/privacy", nil, PrivacySettings{})
}

func (c *Client) UpdatePrivacy(ctx context.Context, p PrivacySettings) (PrivacySettings, error) {
	return mutate[PrivacySettings](ctx, c, "PUT", "/api/social/privacy", p)
}

func (c *Client) SearchPlayers(ctx context.Context, query string) ([]PlayerSummary, error) {
	return fetch(ctx, c, "/api/social/players/search", map[string]string{"q": query}, []PlayerSummary{})
}
