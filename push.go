package social

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Push envelope types.
const (
	PushWelcome               = "welcome"
	PushPresence              = "presence"
	PushRoomChanged           = "room_changed"
	PushPrivacyUpdated        = "privacy_updated"
	PushConversationsRefresh  = "conversations_refresh"
	PushFriendRequestsRefresh = "friend_requests_refresh"
	PushGroupsRefresh         = "groups_refresh"
	PushMessage               = "message"
	PushRead                  = "read"
	PushPing                  = "ping"
	PushPong                  = "pong"
)

// Envelope is the wire format of every push frame: {"type": ..., "payload": ...}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Router turns push frames into bus events published with OriginPush.
// Unknown types and malformed frames are skipped.
type Router struct {
	bus *EventBus
	log zerolog.Logger
}

func NewRouter(bus *EventBus, log zerolog.Logger) *Router {
	return &Router{bus: bus, log: log.With().Str("component", "router").Logger()}
}

// HandleFrame routes one raw {"type","payload"} frame.
func (r *Router) HandleFrame(data []byte) error {
	if !gjson.ValidBytes(data) {
		r.log.Warn().Int("bytes", len(data)).Msg("skipping malformed frame")
		return fmt.Errorf("malformed frame: %w", ErrNoResult)
	}
	frame := gjson.ParseBytes(data)
	return r.Route(frame.Get("type").String(), frame.Get("payload"))
}

// HandleEvent routes a frame whose type arrived out of band, as with SSE
// "event:" lines. A payload that is itself an envelope is unwrapped.
func (r *Router) HandleEvent(eventType string, data []byte) error {
	if !gjson.ValidBytes(data) {
		r.log.Warn().Str("type", eventType).Msg("skipping malformed event")
		return fmt.Errorf("malformed %s event: %w", eventType, ErrNoResult)
	}
	payload := gjson.ParseBytes(data)
	if inner := payload.Get("type"); inner.Exists() && inner.String() == eventType && payload.Get("payload").Exists() {
		payload = payload.Get("payload")
	}
	return r.Route(eventType, payload)
}

// Route publishes payload as the bus event matching eventType.
func (r *Router) Route(eventType string, payload gjson.Result) error {
	var err error
	switch eventType {
	case PushWelcome:
		err = publishDecoded(r, TopicWelcome, payload)
	case PushPresence:
		err = r.presence(payload)
	case PushRoomChanged:
		if id := payload.Get("playerId").String(); id != "" {
			Publish(r.bus, TopicRoom, OriginPush, RoomChange{PlayerID: id, RoomID: optString(payload.Get("roomId"))})
		} else {
			err = ErrNoResult
		}
	case PushPrivacyUpdated:
		err = r.privacy(payload)
	case PushConversationsRefresh:
		Publish(r.bus, TopicConversationsRefresh, OriginPush, RefreshSignal{})
	case PushFriendRequestsRefresh:
		Publish(r.bus, TopicFriendRequestsRefresh, OriginPush, RefreshSignal{})
	case PushGroupsRefresh:
		Publish(r.bus, TopicGroupsRefresh, OriginPush, RefreshSignal{GroupID: payload.Get("groupId").String()})
	case PushMessage:
		err = r.message(payload)
	case PushRead:
		err = r.read(payload)
	case PushPing, PushPong:
	default:
		r.log.Debug().Str("type", eventType).Msg("ignoring unknown push type")
		return nil
	}
	if err != nil {
		r.log.Warn().Err(err).Str("type", eventType).Msg("skipping push")
		return fmt.Errorf("%s: %w", eventType, err)
	}
	return nil
}

func (r *Router) presence(p gjson.Result) error {
	id := p.Get("playerId").String()
	if id == "" {
		return ErrNoResult
	}
	online := p.Get("online")
	if !online.Exists() {
		online = p.Get("isOnline")
	}
	Publish(r.bus, TopicPresence, OriginPush, PresenceEvent{
		PlayerID:    id,
		Online:      online.Bool(),
		RoomID:      optString(p.Get("roomId")),
		LastEventAt: optString(p.Get("lastEventAt")),
	})
	return nil
}

func (r *Router) privacy(p gjson.Result) error {
	settings := p.Get("privacy")
	if !settings.Exists() {
		settings = p
	}
	var ps PrivacySettings
	if err := json.Unmarshal([]byte(settings.Raw), &ps); err != nil {
		return err
	}
	Publish(r.bus, TopicPrivacy, OriginPush, PrivacyChange{PlayerID: p.Get("playerId").String(), Privacy: ps})
	return nil
}

func (r *Router) message(p gjson.Result) error {
	kind, id := conversationTarget(p, p.Get("message.senderId"))
	if id == "" {
		return ErrNoResult
	}
	var msg Message
	if err := json.Unmarshal([]byte(p.Get("message").Raw), &msg); err != nil {
		return err
	}
	if msg.ID <= 0 {
		return ErrNoResult
	}
	Publish(r.bus, TopicMessage, OriginPush, IncomingMessage{Kind: kind, ID: id, Message: msg})
	return nil
}

func (r *Router) read(p gjson.Result) error {
	kind, id := conversationTarget(p, p.Get("readerId"))
	reader := p.Get("readerId").String()
	upTo := p.Get("messageId").Int()
	if id == "" || reader == "" || upTo <= 0 {
		return ErrNoResult
	}
	Publish(r.bus, TopicReadReceipt, OriginPush, ReadReceipt{
		Kind:      kind,
		ID:        id,
		ReaderID:  reader,
		MessageID: upTo,
		ReadAt:    p.Get("readAt").String(),
	})
	return nil
}

// conversationTarget reads a groupId or, for direct threads, the
// counterpart id, falling back to peer when conversationId is absent.
func conversationTarget(p, peer gjson.Result) (ConversationKind, string) {
	if g := p.Get("groupId").String(); g != "" {
		return KindGroup, g
	}
	if id := p.Get("conversationId").String(); id != "" {
		return KindDirect, id
	}
	return KindDirect, peer.String()
}

func publishDecoded[T any](r *Router, topic Topic[T], payload gjson.Result) error {
	if !payload.IsObject() {
		return ErrNoResult
	}
	var v T
	if err := json.Unmarshal([]byte(payload.Raw), &v); err != nil {
		return err
	}
	Publish(r.bus, topic, OriginPush, v)
	return nil
}

// optString maps an absent field to nil and JSON null to a pointer to "".
func optString(v gjson.Result) *string {
	if !v.Exists() {
		return nil
	}
	s := ""
	if v.Type != gjson.Null {
		s = v.String()
	}
	return &s
}
