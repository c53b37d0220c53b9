package emby

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

// fakeItemServer serves a single item and records every update posted
// back to it.
type fakeItemServer struct {
	mu         sync.Mutex
	item       map[string]any
	updates    []map[string]any
	failUpdate bool
}

func (f *fakeItemServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		f.mu.Lock()
		json.NewEncoder(w).Encode(f.item)
		f.mu.Unlock()
	case r.Method == http.MethodPost:
		if f.failUpdate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.updates = append(f.updates, payload)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeItemServer) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeItemServer) lastUpdate() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

func newTestWriter(t *testing.T, item map[string]any) (*Writer, *fakeItemServer) {
	t.Helper()
	fake := &fakeItemServer{item: item}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewClient(config.EmbyConfig{
		ServerURL: server.URL,
		APIKey:    "test-key",
		UserID:    "u1",
		Timeout:   5,
	}, zerolog.Nop())
	return NewWriter(client, zerolog.Nop()), fake
}

func payloadStrings(t *testing.T, payload map[string]any, key string) []string {
	t.Helper()
	arr, ok := payload[key].([]any)
	if !ok {
		t.Fatalf("payload %s is not an array: %v", key, payload[key])
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			t.Fatalf("payload %s holds a non-string: %v", key, e)
		}
		out = append(out, s)
	}
	return out
}

func TestApplyMergeWritesUnion(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":   "42",
		"Name": "The Matrix",
		"Tags": []string{"Horror"},
	})

	diff, err := writer.Apply(context.Background(), "42", []string{"Action", "US"}, tagging.ModeMerge)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !diff.Changed() {
		t.Fatal("expected an update to be written")
	}
	if fake.updateCount() != 1 {
		t.Fatalf("expected exactly 1 write, got %d", fake.updateCount())
	}

	payload := fake.lastUpdate()
	tags := payloadStrings(t, payload, "Tags")
	want := []string{"Action", "Horror", "US"}
	if len(tags) != len(want) {
		t.Fatalf("unexpected Tags: %v", tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("unexpected Tags: %v, want %v", tags, want)
		}
	}

	// TagItems mirrors the flat list
	items, ok := payload["TagItems"].([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("unexpected TagItems: %v", payload["TagItems"])
	}
	first, _ := items[0].(map[string]any)
	if first["Name"] != "Action" {
		t.Errorf("unexpected first TagItem: %v", first)
	}
}

func TestApplyOverwriteReplaces(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":   "42",
		"Tags": []string{"Old", "Stale"},
	})

	diff, err := writer.Apply(context.Background(), "42", []string{"Fresh"}, tagging.ModeOverwrite)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !diff.Changed() {
		t.Fatal("expected an update to be written")
	}

	tags := payloadStrings(t, fake.lastUpdate(), "Tags")
	if len(tags) != 1 || tags[0] != "Fresh" {
		t.Errorf("unexpected Tags: %v", tags)
	}
}

func TestApplyNoChangeSkipsWrite(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":   "42",
		"Tags": []string{"Action", "Horror"},
	})

	// Requested tags are a subset of what is already there.
	diff, err := writer.Apply(context.Background(), "42", []string{"Action"}, tagging.ModeMerge)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff.Changed() {
		t.Error("expected no update for an unchanged tag set")
	}
	if fake.updateCount() != 0 {
		t.Errorf("expected zero writes, got %d", fake.updateCount())
	}
}

func TestApplyOverwriteSameSetSkipsWrite(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":   "42",
		"Tags": []string{"B", "A"},
	})

	diff, err := writer.Apply(context.Background(), "42", []string{"A", "B", "A"}, tagging.ModeOverwrite)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff.Changed() || fake.updateCount() != 0 {
		t.Errorf("reordered duplicate of the same set must not write, changed=%v writes=%d", diff.Changed(), fake.updateCount())
	}
}

func TestApplyUnlocksTagsField(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":           "42",
		"Tags":         []string{},
		"LockedFields": []string{"Name", "Tags", "Overview"},
	})

	if _, err := writer.Apply(context.Background(), "42", []string{"Action"}, tagging.ModeMerge); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	locked := payloadStrings(t, fake.lastUpdate(), "LockedFields")
	if len(locked) != 2 || locked[0] != "Name" || locked[1] != "Overview" {
		t.Errorf("expected Tags removed from LockedFields, got %v", locked)
	}
}

func TestApplyLeavesOtherLocksAlone(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":           "42",
		"LockedFields": []string{"Name"},
	})

	if _, err := writer.Apply(context.Background(), "42", []string{"Action"}, tagging.ModeMerge); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	locked := payloadStrings(t, fake.lastUpdate(), "LockedFields")
	if len(locked) != 1 || locked[0] != "Name" {
		t.Errorf("unrelated locks must survive, got %v", locked)
	}
}

func TestApplyPreservesUnrelatedFields(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":       "42",
		"Name":     "The Matrix",
		"Overview": "A hacker discovers reality is a simulation.",
		"Genres":   []string{"Action", "Science Fiction"},
	})

	if _, err := writer.Apply(context.Background(), "42", []string{"Keeper"}, tagging.ModeMerge); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	payload := fake.lastUpdate()
	if payload["Name"] != "The Matrix" {
		t.Errorf("Name not preserved: %v", payload["Name"])
	}
	if payload["Overview"] != "A hacker discovers reality is a simulation." {
		t.Errorf("Overview not preserved: %v", payload["Overview"])
	}
	genres, _ := payload["Genres"].([]any)
	if len(genres) != 2 {
		t.Errorf("Genres not preserved: %v", payload["Genres"])
	}
}

func TestApplyFlatTagsWinOverStructured(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":       "42",
		"Tags":     []string{"FlatOnly"},
		"TagItems": []map[string]any{{"Name": "StructuredOnly"}},
	})

	if _, err := writer.Apply(context.Background(), "42", []string{"New"}, tagging.ModeMerge); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	tags := payloadStrings(t, fake.lastUpdate(), "Tags")
	want := []string{"FlatOnly", "New"}
	if len(tags) != len(want) || tags[0] != want[0] || tags[1] != want[1] {
		t.Errorf("flat list must win as the original set, got %v", tags)
	}
}

func TestApplyStructuredFallback(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":       "42",
		"TagItems": []map[string]any{{"Name": "Legacy"}},
	})

	if _, err := writer.Apply(context.Background(), "42", []string{"New"}, tagging.ModeMerge); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	tags := payloadStrings(t, fake.lastUpdate(), "Tags")
	want := []string{"Legacy", "New"}
	if len(tags) != len(want) || tags[0] != want[0] || tags[1] != want[1] {
		t.Errorf("structured tags must seed the original set, got %v", tags)
	}
}

func TestApplyWriteFailure(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":   "42",
		"Tags": []string{},
	})
	fake.failUpdate = true

	diff, err := writer.Apply(context.Background(), "42", []string{"Action"}, tagging.ModeMerge)
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
	if diff != nil {
		t.Error("failed write must not report a diff")
	}
}

func TestPreviewNeverWrites(t *testing.T) {
	writer, fake := newTestWriter(t, map[string]any{
		"Id":   "42",
		"Tags": []string{"Horror"},
	})

	diff, err := writer.Preview(context.Background(), "42", []string{"Action"}, tagging.ModeMerge)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !diff.Changed() {
		t.Error("expected a changed diff")
	}
	if len(diff.Final) != 2 {
		t.Errorf("unexpected final set: %v", diff.Final)
	}
	if fake.updateCount() != 0 {
		t.Errorf("preview must not write, got %d writes", fake.updateCount())
	}
}
