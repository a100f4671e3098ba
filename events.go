package social

import (
	"sync"

	"github.com/rs/zerolog"
)

// ============================================================================
// Topics
// ============================================================================

// Topic names one bus channel and fixes its payload type.
type Topic[T any] struct{ name string }

// Name returns the channel name.
func (t Topic[T]) Name() string { return t.name }

// RefreshSignal asks listeners to re-fetch a collection. GroupID narrows a
// groups refresh to one group's detail.
type RefreshSignal struct {
	GroupID string `json:"groupId,omitempty"`
}

// HubToggle is the payload of open/close events.
type HubToggle struct{}

// ReadReceipt is pushed when someone reads a conversation up to MessageID.
type ReadReceipt struct {
	Kind      ConversationKind `json:"kind"`
	ID        string           `json:"id"`
	ReaderID  string           `json:"readerId"`
	MessageID int64            `json:"messageId"`
	ReadAt    string           `json:"readAt"`
}

// IncomingMessage is a message pushed into a conversation.
type IncomingMessage struct {
	Kind    ConversationKind `json:"kind"`
	ID      string           `json:"id"`
	Message Message          `json:"message"`
}

var (
	TopicConversationsRefresh  = Topic[RefreshSignal]{"conversations.refresh"}
	TopicFriendRequestsRefresh = Topic[RefreshSignal]{"friend-requests.refresh"}
	TopicGroupsRefresh         = Topic[RefreshSignal]{"groups.refresh"}
	TopicPresence              = Topic[PresenceEvent]{"presence.update"}
	TopicPrivacy               = Topic[PrivacyChange]{"privacy.update"}
	TopicRoom                  = Topic[RoomChange]{"room.update"}
	TopicHubOpen               = Topic[HubToggle]{"hub.open"}
	TopicHubClose              = Topic[HubToggle]{"hub.close"}
	TopicMessage               = Topic[IncomingMessage]{"message.new"}
	TopicReadReceipt           = Topic[ReadReceipt]{"message.read"}
	TopicWelcome               = Topic[WelcomePayload]{"welcome"}
)

// OriginPush is the origin of events produced by the push router.
const OriginPush = "push"

// Event is one delivery on a topic. Origin identifies who published it.
type Event[T any] struct {
	Topic   string
	Origin  string
	Payload T
}

// ============================================================================
// EventBus
// ============================================================================

type subscription struct {
	id int
	fn func(origin string, payload any)
}

// EventBus is a synchronous publish/subscribe hub. Handlers run on the
// publisher's goroutine in subscription order; a panicking handler is
// recovered and logged.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
	log    zerolog.Logger
}

// NewEventBus creates an empty bus.
func NewEventBus(log zerolog.Logger) *EventBus {
	return &EventBus{
		subs: make(map[string][]subscription),
		log:  log.With().Str("component", "bus").Logger(),
	}
}

// Subscribe registers h on topic and returns a function that removes it.
func Subscribe[T any](b *EventBus, topic Topic[T], h func(Event[T])) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic.name] = append(b.subs[topic.name], subscription{
		id: id,
		fn: func(origin string, payload any) {
			p, _ := payload.(T)
			h(Event[T]{Topic: topic.name, Origin: origin, Payload: p})
		},
	})
	b.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { b.remove(topic.name, id) }) }
}

// Publish delivers payload to every subscriber of topic.
func Publish[T any](b *EventBus, topic Topic[T], origin string, payload T) {
	b.mu.RLock()
	handlers := append([]subscription(nil), b.subs[topic.name]...)
	b.mu.RUnlock()

	for _, s := range handlers {
		b.deliver(topic.name, s, origin, payload)
	}
}

func (b *EventBus) deliver(topic string, s subscription, origin string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("topic", topic).Interface("panic", r).Msg("subscriber panicked")
		}
	}()
	s.fn(origin, payload)
}

func (b *EventBus) remove(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of handlers on a topic name.
func (b *EventBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
