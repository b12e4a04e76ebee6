package devserver

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Message is one runtime queue registration as sent to clients.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	CSS  string `json:"css"`
}

const (
	messageTypeCSS    = "css"
	messageTypeRemove = "remove"
)

// Queue holds the latest theme css per module in registration order and
// forwards every registration and removal to its listener.
type Queue struct {
	mu       sync.Mutex
	entries  *orderedmap.OrderedMap[string, string]
	listener func(Message)
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{entries: orderedmap.New[string, string]()}
}

// Push registers css for id, replacing an earlier registration in place.
func (q *Queue) Push(id, css string) {
	q.mu.Lock()
	q.entries.Set(id, css)
	listener := q.listener
	q.mu.Unlock()

	if listener != nil {
		listener(Message{Type: messageTypeCSS, ID: id, CSS: css})
	}
}

// Remove drops the registration for id. Clients are told only when id was
// registered.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	_, present := q.entries.Delete(id)
	listener := q.listener
	q.mu.Unlock()

	if present && listener != nil {
		listener(Message{Type: messageTypeRemove, ID: id})
	}
}

// Snapshot returns the current registrations in order.
func (q *Queue) Snapshot() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := make([]Message, 0, q.entries.Len())
	for pair := q.entries.Oldest(); pair != nil; pair = pair.Next() {
		msgs = append(msgs, Message{Type: messageTypeCSS, ID: pair.Key, CSS: pair.Value})
	}
	return msgs
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

func (q *Queue) setListener(fn func(Message)) {
	q.mu.Lock()
	q.listener = fn
	q.mu.Unlock()
}
