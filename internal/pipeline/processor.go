// Package pipeline runs the per-item tagging flow shared by the webhook
// consumer and bulk runs: resolve catalog metadata, evaluate the rule
// set, apply the resulting tag diff to the media server.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/history"
	"github.com/pipi20xx/emby-auto-tags/internal/mediaserver/emby"
	"github.com/pipi20xx/emby-auto-tags/internal/metadata/tmdb"
	"github.com/pipi20xx/emby-auto-tags/internal/rules"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
	"github.com/pipi20xx/emby-auto-tags/internal/websocket"
)

// ErrNotEligible marks items the pipeline cannot process: no provider
// id, no item id, or a kind outside movie/series. Callers treat it as a
// skip, not a failure.
var ErrNotEligible = errors.New("item not eligible for tagging")

// Notification is a media server webhook payload. Only the embedded
// item matters; the pipeline refetches everything else fresh.
type Notification struct {
	Event string    `json:"Event"`
	Item  emby.Item `json:"Item"`
}

// Result describes one pipeline pass over an item.
type Result struct {
	ItemID     string     `json:"itemId"`
	ItemName   string     `json:"itemName,omitempty"`
	Kind       rules.Kind `json:"kind"`
	ProviderID string     `json:"providerId"`
	Tags       []string   `json:"tags"`
	Updated    bool       `json:"updated"`
}

// Processor wires the catalog client, rule store, and tag writer into
// the per-item flow. History and the event hub are optional; a nil
// value disables that side effect.
type Processor struct {
	catalog *tmdb.Client
	server  *emby.Client
	writer  *emby.Writer
	rules   *rules.Store
	history *history.Service
	hub     *websocket.Hub
	logger  zerolog.Logger
}

// NewProcessor creates a pipeline processor.
func NewProcessor(catalog *tmdb.Client, server *emby.Client, writer *emby.Writer, ruleStore *rules.Store, historyService *history.Service, hub *websocket.Hub, logger zerolog.Logger) *Processor {
	return &Processor{
		catalog: catalog,
		server:  server,
		writer:  writer,
		rules:   ruleStore,
		history: historyService,
		hub:     hub,
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
}

// GenerateTags resolves catalog metadata for the provider id and
// evaluates the rule set against it.
func (p *Processor) GenerateTags(ctx context.Context, providerID string, kind rules.Kind) ([]string, *tmdb.Details, error) {
	mediaType := tmdb.MediaTypeMovie
	if kind != rules.KindMovie {
		mediaType = tmdb.MediaTypeTV
	}

	details, err := p.catalog.Details(ctx, providerID, mediaType)
	if err != nil {
		return nil, nil, err
	}

	ruleSet, err := p.rules.Load()
	if err != nil {
		return nil, nil, err
	}

	tags := rules.Evaluate(details.Countries, details.GenreIDs, details.Year, kind, ruleSet)
	return tags, details, nil
}

// ProcessItem runs one item through metadata lookup, rule evaluation,
// and tag write-back. Items without a provider id or of an unhandled
// kind return ErrNotEligible. When no rule matches, nothing is written
// and the item still counts as processed.
func (p *Processor) ProcessItem(ctx context.Context, item *emby.Item, mode tagging.Mode, source history.Source) (*Result, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("%w: missing item id", ErrNotEligible)
	}
	providerID := item.TMDBID()
	if providerID == "" {
		return nil, fmt.Errorf("%w: item %q has no tmdb provider id", ErrNotEligible, item.ID)
	}
	kind, ok := rules.ParseKind(item.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported item type %q", ErrNotEligible, item.Type)
	}

	tags, details, err := p.GenerateTags(ctx, providerID, kind)
	if err != nil {
		return nil, err
	}

	if item.Name == "" {
		clone := *item
		clone.Name = details.Title
		item = &clone
	}
	return p.ApplyTags(ctx, item, tags, mode, source)
}

// ApplyTags writes a precomputed tag set to one item, recording history
// and broadcasting when something changed. Bulk runs resolve metadata
// once per title and call this for every local copy sharing the
// provider id.
func (p *Processor) ApplyTags(ctx context.Context, item *emby.Item, tags []string, mode tagging.Mode, source history.Source) (*Result, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("%w: missing item id", ErrNotEligible)
	}
	kind, ok := rules.ParseKind(item.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported item type %q", ErrNotEligible, item.Type)
	}

	result := &Result{
		ItemID:     item.ID,
		ItemName:   item.Name,
		Kind:       kind,
		ProviderID: item.TMDBID(),
		Tags:       tags,
	}

	if len(tags) == 0 {
		p.logger.Debug().
			Str("item_id", item.ID).
			Str("title", item.Name).
			Msg("no rules matched, nothing to write")
		return result, nil
	}

	diff, err := p.writer.Apply(ctx, item.ID, tags, mode)
	if err != nil {
		return nil, err
	}
	result.Updated = diff.Changed()

	if result.Updated {
		p.logger.Info().
			Str("item_id", item.ID).
			Str("title", result.ItemName).
			Str("source", string(source)).
			Strs("tags", tags).
			Msg("item tagged")
		p.recordWrite(ctx, result, diff, mode, source)
	}

	return result, nil
}

// ProcessNotification parses a webhook payload and runs its item
// through the pipeline. Malformed or incomplete payloads surface as
// ErrNotEligible so the consumer skips them without failing.
func (p *Processor) ProcessNotification(ctx context.Context, payload []byte, mode tagging.Mode) (*Result, error) {
	var note Notification
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ErrNotEligible, err)
	}
	if note.Item.ID == "" {
		return nil, fmt.Errorf("%w: payload carries no item", ErrNotEligible)
	}
	return p.ProcessItem(ctx, &note.Item, mode, history.SourceWebhook)
}

func (p *Processor) recordWrite(ctx context.Context, result *Result, diff *tagging.Diff, mode tagging.Mode, source history.Source) {
	if p.history != nil {
		_, err := p.history.Record(ctx, history.CreateInput{
			ItemID:      result.ItemID,
			ItemName:    result.ItemName,
			ItemKind:    string(result.Kind),
			ProviderID:  result.ProviderID,
			Mode:        string(mode),
			Source:      source,
			TagsAdded:   diff.Added(),
			TagsRemoved: diff.Removed(),
			TagsFinal:   diff.Final,
		})
		if err != nil {
			p.logger.Error().Err(err).Str("item_id", result.ItemID).Msg("failed to record history entry")
		}
	}

	if p.hub != nil {
		_ = p.hub.Broadcast("item:tagged", map[string]any{
			"itemId":   result.ItemID,
			"itemName": result.ItemName,
			"source":   string(source),
			"mode":     string(mode),
			"added":    diff.Added(),
			"removed":  diff.Removed(),
			"final":    diff.Final,
		})
	}
}
