package logger

import (
	"fmt"
	"sync"
	"testing"
)

type recordingHub struct {
	mu       sync.Mutex
	types    []string
	payloads []interface{}
}

func (r *recordingHub) Broadcast(msgType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, msgType)
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestStreamParsesEntries(t *testing.T) {
	s := NewStream(10)
	line := `{"level":"info","component":"tmdb","time":"2025-06-01T12:00:00Z","status":200,"message":"fetched movie details"}`
	if _, err := s.Write([]byte(line)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries := s.Recent()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != "info" || entry.Component != "tmdb" || entry.Message != "fetched movie details" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("unexpected timestamp: %q", entry.Timestamp)
	}
	if entry.Fields["status"] != float64(200) {
		t.Errorf("extra keys must land in fields, got %v", entry.Fields)
	}
}

func TestStreamKeepsNewestEntries(t *testing.T) {
	s := NewStream(3)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(s, `{"level":"info","message":"entry %d"}`, i)
	}

	entries := s.Recent()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"entry 3", "entry 4", "entry 5"}
	for i, entry := range entries {
		if entry.Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, entry.Message, want[i])
		}
	}
}

func TestStreamForwardsToHub(t *testing.T) {
	s := NewStream(10)
	hub := &recordingHub{}
	s.SetHub(hub)

	s.Write([]byte(`{"level":"warn","message":"queue full"}`))

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.types) != 1 || hub.types[0] != "logs:entry" {
		t.Fatalf("expected one logs:entry broadcast, got %v", hub.types)
	}
	if entry, ok := hub.payloads[0].(Entry); !ok || entry.Message != "queue full" {
		t.Errorf("unexpected payload: %#v", hub.payloads[0])
	}
}

func TestStreamIgnoresNonJSON(t *testing.T) {
	s := NewStream(10)
	n, err := s.Write([]byte("12:00 INF plain console line"))
	if err != nil || n == 0 {
		t.Fatalf("non-JSON lines must be accepted and dropped, n=%d err=%v", n, err)
	}
	if len(s.Recent()) != 0 {
		t.Errorf("non-JSON lines must not be buffered")
	}
}

func TestLoggerFeedsStream(t *testing.T) {
	l := New(Config{Level: "debug", Format: "json"})
	defer l.Close()

	l.Info().Str("component", "ingest").Msg("consumer started")

	entries := l.Stream().Recent()
	if len(entries) != 1 {
		t.Fatalf("expected the log call to reach the stream, got %d entries", len(entries))
	}
	if entries[0].Component != "ingest" || entries[0].Message != "consumer started" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}
