package emby

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

// Writer applies computed tag sets to media items.
type Writer struct {
	client *Client
	logger zerolog.Logger
}

// NewWriter creates a tag writer on top of an Emby client.
func NewWriter(client *Client, logger zerolog.Logger) *Writer {
	return &Writer{
		client: client,
		logger: logger.With().Str("component", "tag-writer").Logger(),
	}
}

// Apply fetches the item fresh, computes the tag diff for the given
// mode, and writes the updated representation back in a single POST.
// An unchanged tag set is a success with no write; the returned diff
// tells the caller whether a write happened via Changed(). A failed
// write is returned as-is, retries are the caller's business.
func (w *Writer) Apply(ctx context.Context, itemID string, requested []string, mode tagging.Mode) (*tagging.Diff, error) {
	raw, err := w.client.GetItemRaw(ctx, itemID)
	if err != nil {
		return nil, err
	}

	diff := tagging.Compute(rawTags(raw), requested, mode)
	if !diff.Changed() {
		w.logger.Debug().Str("item_id", itemID).Msg("tags already up to date")
		return &diff, nil
	}

	raw["Tags"] = diff.Final
	tagItems := make([]map[string]any, len(diff.Final))
	for i, tag := range diff.Final {
		tagItems[i] = map[string]any{"Name": tag}
	}
	raw["TagItems"] = tagItems

	// A locked Tags field silently discards the update, so lift the
	// lock within the same payload. The remaining locks are untouched.
	if locked := rawStrings(raw["LockedFields"]); containsFold(locked, "Tags") {
		raw["LockedFields"] = removeFold(locked, "Tags")
		w.logger.Debug().Str("item_id", itemID).Msg("unlocking Tags field for update")
	}

	if err := w.client.UpdateItem(ctx, itemID, raw); err != nil {
		return nil, err
	}

	w.logger.Info().
		Str("item_id", itemID).
		Str("mode", string(mode)).
		Strs("added", diff.Added()).
		Strs("removed", diff.Removed()).
		Msg("item tags updated")
	return &diff, nil
}

// Preview computes the tag diff for an item without writing anything.
func (w *Writer) Preview(ctx context.Context, itemID string, requested []string, mode tagging.Mode) (*tagging.Diff, error) {
	raw, err := w.client.GetItemRaw(ctx, itemID)
	if err != nil {
		return nil, err
	}
	diff := tagging.Compute(rawTags(raw), requested, mode)
	return &diff, nil
}

// rawTags extracts the item's current tag set from the raw
// representation. The flat Tags list wins when both it and the
// structured TagItems list are non-empty.
func rawTags(raw map[string]any) []string {
	if tags := rawStrings(raw["Tags"]); len(tags) > 0 {
		return tags
	}
	items, ok := raw["TagItems"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := m["Name"].(string); ok && name != "" {
			out = append(out, name)
		}
	}
	return out
}

// rawStrings converts a decoded JSON array into a string slice,
// dropping non-string entries.
func rawStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, e := range list {
		if strings.EqualFold(e, s) {
			return true
		}
	}
	return false
}

func removeFold(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		if !strings.EqualFold(e, s) {
			out = append(out, e)
		}
	}
	return out
}
