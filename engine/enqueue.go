package engine

import (
	"github.com/rs/zerolog"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/utils/logging"
)

// Message is an inbound network event together with its origin.
type Message struct {
	OriginID lattice.Identifier
	Payload  interface{}
}

// MessageStore abstracts how messages are buffered in memory between receipt
// and handling.
type MessageStore interface {
	Put(*Message) bool
	Get() (*Message, bool)
}

// Pattern matches messages, typically by payload type, and routes them into
// a store.
type Pattern struct {
	Match MatchFunc
	Store MessageStore
}

type MatchFunc func(*Message) bool

// MessageHandler routes inbound messages into per-pattern stores and
// notifies a single consumer. It decouples the network delivery goroutines
// from the engine's processing loop.
type MessageHandler struct {
	log      zerolog.Logger
	notify   chan struct{}
	patterns []Pattern
}

func NewMessageHandler(log zerolog.Logger, patterns ...Pattern) *MessageHandler {
	// one message of buffer covers the blind period between the consumer
	// draining the stores and re-subscribing to the notifier
	return &MessageHandler{
		log:      log.With().Str("component", "message_handler").Logger(),
		notify:   make(chan struct{}, 1),
		patterns: patterns,
	}
}

// Process routes the message into the store of the first matching pattern.
// Unmatched or dropped messages are logged and discarded, never escalated.
func (h *MessageHandler) Process(originID lattice.Identifier, payload interface{}) {
	msg := &Message{
		OriginID: originID,
		Payload:  payload,
	}

	for _, pattern := range h.patterns {
		if !pattern.Match(msg) {
			continue
		}
		if !pattern.Store.Put(msg) {
			h.log.Warn().
				Str("msg_type", logging.Type(payload)).
				Hex("origin_id", originID[:]).
				Msg("dropping message, queue full")
		}
		h.doNotify()
		return
	}

	h.log.Debug().
		Str("msg_type", logging.Type(payload)).
		Hex("origin_id", originID[:]).
		Msg("discarding unknown message type")
}

func (h *MessageHandler) doNotify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// GetNotifier returns the channel the consumer listens on for new messages.
func (h *MessageHandler) GetNotifier() <-chan struct{} {
	return h.notify
}

// FifoMessageStore adapts a FifoQueue to the MessageStore interface.
type FifoMessageStore struct {
	*FifoQueue
}

func NewFifoMessageStore(maxCapacity int) *FifoMessageStore {
	return &FifoMessageStore{FifoQueue: NewFifoQueue(maxCapacity)}
}

func (s *FifoMessageStore) Put(msg *Message) bool {
	return s.Push(msg)
}

func (s *FifoMessageStore) Get() (*Message, bool) {
	element, ok := s.Pop()
	if !ok {
		return nil, false
	}
	return element.(*Message), true
}
