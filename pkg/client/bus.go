package client

import "sync"

// Topic identifies a class of local notifications.
type Topic string

// Topics published by the client.
const (
	// TopicConnection carries ConnectionChange on connect, disconnect
	// and reconnect.
	TopicConnection Topic = "connection"

	// TopicRoster carries []protocol.User whenever the room roster
	// changes, including the initial roster on join.
	TopicRoster Topic = "roster"

	// TopicCode carries protocol.CodeChange for remote edits.
	TopicCode Topic = "code"

	// TopicInitialState carries protocol.InitialState: the host's
	// snapshot, to be applied as a full replace.
	TopicInitialState Topic = "initial_state"

	// TopicShareRequest carries protocol.RequestCode. Only the host
	// receives these; the holder of the buffer answers via ShareCode.
	TopicShareRequest Topic = "share_request"

	// TopicCursor carries protocol.CursorUpdate for remote cursors.
	TopicCursor Topic = "cursor"

	// TopicPointer carries protocol.MouseUpdate for remote pointers.
	TopicPointer Topic = "pointer"

	// TopicLanguage carries protocol.LanguageChange.
	TopicLanguage Topic = "language"

	// TopicOutput carries protocol.CodeOutput.
	TopicOutput Topic = "output"

	// TopicUserLeft carries protocol.UserLeft.
	TopicUserLeft Topic = "user_left"

	// TopicError carries protocol.ErrorMessage for server-side errors
	// outside a pending Join call.
	TopicError Topic = "error"
)

// ConnectionChange is the TopicConnection payload.
type ConnectionChange struct {
	Connected bool
}

// Message is one bus notification.
type Message struct {
	Topic   Topic
	Payload any
}

// subscriberBuffer is each subscriber's queue length. A subscriber
// that falls this far behind starts losing messages rather than
// stalling the read loop.
const subscriberBuffer = 64

// Bus is a small publish/subscribe fan-out for local notifications.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Message
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan Message)}
}

// Subscribe registers for a topic. The returned cancel function must
// be called to release the subscription; the channel is closed then.
func (b *Bus) Subscribe(topic Topic) (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers payload to every subscriber of topic. Never blocks:
// full subscribers miss the message.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- Message{Topic: topic, Payload: payload}:
		default:
		}
	}
}
