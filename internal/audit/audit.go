package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types emitted by the engine.
const (
	EventLoginSuccess         = "login_success"
	EventLoginFailure         = "login_failure"
	EventRefreshSuccess       = "refresh_success"
	EventRefreshFailure       = "refresh_failure"
	EventRefreshReuseDetected = "refresh_reuse_detected"
	EventLogout               = "logout"
	EventAccountCreated       = "account_created"
	EventAccountStatusChanged = "account_status_changed"
	EventSessionsRevoked      = "sessions_revoked"
)

const eventCount = 9

func eventIndex(eventType string) (int, bool) {
	switch eventType {
	case EventLoginSuccess:
		return 0, true
	case EventLoginFailure:
		return 1, true
	case EventRefreshSuccess:
		return 2, true
	case EventRefreshFailure:
		return 3, true
	case EventRefreshReuseDetected:
		return 4, true
	case EventLogout:
		return 5, true
	case EventAccountCreated:
		return 6, true
	case EventAccountStatusChanged:
		return 7, true
	case EventSessionsRevoked:
		return 8, true
	default:
		return 0, false
	}
}

// Known reports whether eventType is one the engine emits.
func Known(eventType string) bool {
	_, ok := eventIndex(eventType)
	return ok
}

// Critical events record replay or an admin decision and are never dropped
// for lack of queue space.
func Critical(eventType string) bool {
	switch eventType {
	case EventRefreshReuseDetected, EventAccountStatusChanged, EventSessionsRevoked:
		return true
	default:
		return false
	}
}

// Event is one security-relevant record. Metadata never carries secrets.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}
