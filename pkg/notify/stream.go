package notify

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
)

// AllTopic receives every message regardless of request.
const AllTopic = "*"

// Event is the envelope pushed to stream subscribers.
type Event struct {
	Kind         string               `json:"kind"`
	RequestID    string               `json:"request_id"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Diff         *domain.RequestDiff  `json:"diff,omitempty"`
}

// StreamManager handles active stream subscriptions, keyed by request ID.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // topic -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates a StreamManager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for the topic. The returned cancel
// func unregisters and closes it.
func (sm *StreamManager) Subscribe(topic string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[topic]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, topic)
				}
			}
		})
	}
}

// Broadcast sends msg to the topic's subscribers and to AllTopic.
// Slow subscribers with a full buffer miss the message.
func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sm.logger.Debug("StreamManager: Broadcasting", "topic", topic, "payload_size", len(msg))
	sm.send(topic, msg)
	if topic != AllTopic {
		sm.send(AllTopic, msg)
	}
}

func (sm *StreamManager) send(topic, msg string) {
	for ch := range sm.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "topic", topic)
		}
	}
}

// Publish implements ports.NotificationSink.
func (sm *StreamManager) Publish(n *domain.Notification) {
	sm.emit(Event{Kind: "notification", RequestID: n.RequestID, Notification: n})
}

// PublishDiff pushes a request diff to subscribers.
func (sm *StreamManager) PublishDiff(d *domain.RequestDiff) {
	if d == nil {
		return
	}
	sm.emit(Event{Kind: "diff", RequestID: d.RequestID, Diff: d})
}

func (sm *StreamManager) emit(ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		sm.logger.Error("StreamManager: encode failed", "err", err)
		return
	}
	sm.Broadcast(ev.RequestID, string(raw))
}

// Subscribers returns the number of subscriptions on a topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}
