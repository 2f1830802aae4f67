package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/healthsync/go-connectors/core"
)

// EventQueue buffers normalized events in order of arrival. Dequeue is for
// tests and local workers; production deployments swap in a broker-backed
// queue.
type EventQueue struct {
	mu     sync.Mutex
	events []queuedEvent
}

type queuedEvent struct {
	MessageID string
	Event     core.NormalizedEvent
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

func (q *EventQueue) Enqueue(_ context.Context, event core.NormalizedEvent) (string, error) {
	if q == nil {
		return "", fmt.Errorf("memory: event queue is nil")
	}
	if strings.TrimSpace(event.UserID) == "" {
		return "", fmt.Errorf("memory: event user id is required")
	}
	messageID := uuid.NewString()
	q.mu.Lock()
	q.events = append(q.events, queuedEvent{MessageID: messageID, Event: event})
	q.mu.Unlock()
	return messageID, nil
}

func (q *EventQueue) Dequeue(_ context.Context) (string, core.NormalizedEvent, bool) {
	if q == nil {
		return "", core.NormalizedEvent{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return "", core.NormalizedEvent{}, false
	}
	head := q.events[0]
	q.events = q.events[1:]
	return head.MessageID, head.Event, true
}

func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

var _ core.EventQueue = (*EventQueue)(nil)
