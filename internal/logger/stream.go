package logger

import (
	"encoding/json"
	"sync"
)

const defaultStreamDepth = 500

// Broadcaster fans a log entry out to connected clients. The websocket
// hub satisfies it; the interface avoids an import cycle back through
// the packages that log.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Entry is one parsed log line kept for the live log view.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Stream is an io.Writer fed with zerolog's JSON output. It keeps the
// most recent entries in a fixed ring and forwards each one to the hub
// as a "logs:entry" event.
type Stream struct {
	mu      sync.RWMutex
	hub     Broadcaster
	entries []Entry
	next    int
	filled  bool
}

// NewStream creates a stream holding the given number of entries.
func NewStream(depth int) *Stream {
	if depth <= 0 {
		depth = defaultStreamDepth
	}
	return &Stream{entries: make([]Entry, depth)}
}

// SetHub attaches the event hub once it exists. Entries written before
// that are only buffered.
func (s *Stream) SetHub(hub Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = hub
}

// Write buffers and forwards one log line. Lines that are not JSON are
// counted as written and dropped.
func (s *Stream) Write(p []byte) (int, error) {
	entry, err := parseEntry(p)
	if err != nil {
		return len(p), nil
	}

	s.mu.Lock()
	s.entries[s.next] = entry
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.filled = true
	}
	hub := s.hub
	s.mu.Unlock()

	if hub != nil {
		_ = hub.Broadcast("logs:entry", entry)
	}
	return len(p), nil
}

// Recent returns the buffered entries, oldest first.
func (s *Stream) Recent() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.filled {
		return append([]Entry(nil), s.entries[:s.next]...)
	}
	out := make([]Entry, 0, len(s.entries))
	out = append(out, s.entries[s.next:]...)
	out = append(out, s.entries[:s.next]...)
	return out
}

// parseEntry lifts the well-known zerolog keys out of a JSON log line;
// whatever remains lands in Fields.
func parseEntry(data []byte) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, err
	}

	entry := Entry{}
	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, nil
}
