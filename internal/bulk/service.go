// Package bulk walks the media server library and drives the shared
// tagging pipeline across every item in scope. Each run is tracked by
// a task record that survives for the life of the process.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/history"
	"github.com/pipi20xx/emby-auto-tags/internal/mediaserver/emby"
	"github.com/pipi20xx/emby-auto-tags/internal/pipeline"
	"github.com/pipi20xx/emby-auto-tags/internal/rules"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
	"github.com/pipi20xx/emby-auto-tags/internal/websocket"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrRunInProgress = errors.New("a bulk run is already in progress")
	ErrNoTags        = errors.New("no tags given")
)

// Service runs library-wide tagging and maintenance passes. One run at
// a time; a second start is rejected with the running task's id.
type Service struct {
	processor *pipeline.Processor
	server    *emby.Client
	writer    *emby.Writer
	history   *history.Service
	tasks     *table
	logger    zerolog.Logger

	mu        sync.Mutex
	runningID string
}

// NewService creates a new bulk service. The history service and hub
// are optional.
func NewService(processor *pipeline.Processor, server *emby.Client, writer *emby.Writer, historyService *history.Service, hub *websocket.Hub, logger zerolog.Logger) *Service {
	return &Service{
		processor: processor,
		server:    server,
		writer:    writer,
		history:   historyService,
		tasks:     newTable(hub),
		logger:    logger.With().Str("component", "bulk").Logger(),
	}
}

// Run starts tagging every item in scope and returns the task handle
// immediately; progress is polled through Task. The source labels the
// resulting history entries (bulk vs. scheduled sweep).
func (s *Service) Run(mode tagging.Mode, scope Scope, source history.Source) (*Task, error) {
	return s.start(TypeTag, mode, scope, func(ctx context.Context, taskID string) error {
		return s.runTagging(ctx, taskID, mode, scope, source)
	})
}

// ClearTags starts a run that wipes all tags from every item in scope.
func (s *Service) ClearTags(scope Scope) (*Task, error) {
	return s.start(TypeClearTags, tagging.ModeOverwrite, scope, func(ctx context.Context, taskID string) error {
		return s.runMaintenance(ctx, taskID, scope, nil)
	})
}

// RemoveTags starts a run that strips the given tags from every item
// in scope. Items not carrying any of them are left untouched.
func (s *Service) RemoveTags(tags []string, scope Scope) (*Task, error) {
	if len(tags) == 0 {
		return nil, ErrNoTags
	}
	removals := append([]string(nil), tags...)
	return s.start(TypeRemoveTags, tagging.ModeOverwrite, scope, func(ctx context.Context, taskID string) error {
		return s.runMaintenance(ctx, taskID, scope, removals)
	})
}

// Task returns a snapshot of one task.
func (s *Service) Task(id string) (*Task, error) {
	task, ok := s.tasks.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return &task, nil
}

// Tasks returns snapshots of every task, newest first.
func (s *Service) Tasks() []Task {
	return s.tasks.all()
}

// Running reports the id of the currently executing task, if any.
func (s *Service) Running() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningID, s.runningID != ""
}

func (s *Service) start(taskType Type, mode tagging.Mode, scope Scope, fn func(context.Context, string) error) (*Task, error) {
	s.mu.Lock()
	if s.runningID != "" {
		id := s.runningID
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: task %s", ErrRunInProgress, id)
	}
	task := s.tasks.create(taskType, mode, scope)
	s.runningID = task.ID
	s.mu.Unlock()

	go s.execute(task.ID, fn)
	return &task, nil
}

// execute owns the task for its whole life. Per-item failures are
// counted inside fn; an error or panic escaping fn marks the task
// failed. The in-flight guard clears before the terminal status lands,
// so a caller that saw the task finish can start the next run.
func (s *Service) execute(taskID string, fn func(context.Context, string) error) {
	err := s.runGuarded(taskID, fn)

	s.mu.Lock()
	s.runningID = ""
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("task_id", taskID).Msg("bulk task failed")
		s.tasks.setFailed(taskID, err.Error())
		return
	}
	s.tasks.setCompleted(taskID)
}

// runGuarded converts a panic inside the run into an error so the task
// always reaches a terminal status.
func (s *Service) runGuarded(taskID string, fn func(context.Context, string) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(context.Background(), taskID)
}

func (s *Service) runTagging(ctx context.Context, taskID string, mode tagging.Mode, scope Scope, source history.Source) error {
	items, err := s.enumerate(ctx, scope)
	if err != nil {
		return fmt.Errorf("listing library items: %w", err)
	}

	groups := groupItems(items, s.logger)
	s.tasks.setRunning(taskID)
	s.logger.Info().
		Int("items", len(items)).
		Int("titles", len(groups)).
		Str("mode", string(mode)).
		Str("scope", string(scope)).
		Msg("bulk tagging started")

	for _, group := range groups {
		tags, _, err := s.processor.GenerateTags(ctx, group.providerID, group.kind)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("provider_id", group.providerID).
				Str("kind", string(group.kind)).
				Msg("metadata lookup failed")
			for range group.items {
				s.tasks.itemFailed(taskID)
			}
			continue
		}

		// Every local copy of the title gets its own write.
		for i := range group.items {
			result, err := s.processor.ApplyTags(ctx, &group.items[i], tags, mode, source)
			if err != nil {
				s.logger.Warn().Err(err).Str("item_id", group.items[i].ID).Msg("tag write failed")
				s.tasks.itemFailed(taskID)
				continue
			}
			s.tasks.itemProcessed(taskID, result.Updated)
		}
	}
	return nil
}

// runMaintenance clears all tags (nil removals) or strips the given
// tags from every item in scope. Both variants write in overwrite
// mode; no metadata lookups happen.
func (s *Service) runMaintenance(ctx context.Context, taskID string, scope Scope, removals []string) error {
	items, err := s.enumerate(ctx, scope)
	if err != nil {
		return fmt.Errorf("listing library items: %w", err)
	}

	s.tasks.setRunning(taskID)
	s.logger.Info().
		Int("items", len(items)).
		Str("scope", string(scope)).
		Strs("removals", removals).
		Msg("bulk maintenance started")

	for i := range items {
		item := &items[i]
		if item.ID == "" {
			continue
		}

		current := item.CurrentTags()
		var final []string
		if removals != nil {
			final = subtract(current, removals)
			if len(final) == len(current) {
				// Nothing to strip, skip the write round trip.
				s.tasks.itemProcessed(taskID, false)
				continue
			}
		} else if len(current) == 0 {
			s.tasks.itemProcessed(taskID, false)
			continue
		}

		diff, err := s.writer.Apply(ctx, item.ID, final, tagging.ModeOverwrite)
		if err != nil {
			s.logger.Warn().Err(err).Str("item_id", item.ID).Msg("tag write failed")
			s.tasks.itemFailed(taskID)
			continue
		}
		s.tasks.itemProcessed(taskID, diff.Changed())
		if diff.Changed() {
			s.recordMaintenance(ctx, item, diff)
		}
	}
	return nil
}

// enumerate pages through the library. Totals reported by the server
// can drift while paging, so a short page also ends the walk.
func (s *Service) enumerate(ctx context.Context, scope Scope) ([]emby.Item, error) {
	favorites := scope == ScopeFavorites
	pageSize := s.server.PageSize()

	var items []emby.Item
	for start := 0; ; {
		page, err := s.server.ListPage(ctx, start, pageSize, favorites)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		start += len(page.Items)
		if len(page.Items) < pageSize || start >= page.TotalRecordCount {
			break
		}
	}
	return items, nil
}

// itemGroup collects the local copies sharing one provider id and
// kind, so each title costs a single metadata lookup.
type itemGroup struct {
	providerID string
	kind       rules.Kind
	items      []emby.Item
}

// groupItems buckets items by (provider id, kind) preserving first-seen
// order. Items without usable identifiers are dropped without touching
// any counter.
func groupItems(items []emby.Item, logger zerolog.Logger) []itemGroup {
	index := make(map[string]int)
	var groups []itemGroup

	for _, item := range items {
		providerID := item.TMDBID()
		kind, ok := rules.ParseKind(item.Type)
		if item.ID == "" || providerID == "" || !ok {
			logger.Debug().
				Str("item_id", item.ID).
				Str("name", item.Name).
				Str("type", item.Type).
				Msg("skipping item without usable identifiers")
			continue
		}

		key := string(kind) + ":" + providerID
		if i, seen := index[key]; seen {
			groups[i].items = append(groups[i].items, item)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, itemGroup{providerID: providerID, kind: kind, items: []emby.Item{item}})
	}
	return groups
}

func (s *Service) recordMaintenance(ctx context.Context, item *emby.Item, diff *tagging.Diff) {
	if s.history == nil {
		return
	}
	kind, _ := rules.ParseKind(item.Type)
	_, err := s.history.Record(ctx, history.CreateInput{
		ItemID:      item.ID,
		ItemName:    item.Name,
		ItemKind:    string(kind),
		ProviderID:  item.TMDBID(),
		Mode:        string(tagging.ModeOverwrite),
		Source:      history.SourceManual,
		TagsAdded:   diff.Added(),
		TagsRemoved: diff.Removed(),
		TagsFinal:   diff.Final,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to record history entry")
	}
}

// subtract returns current minus removals, preserving order.
func subtract(current, removals []string) []string {
	drop := make(map[string]struct{}, len(removals))
	for _, tag := range removals {
		drop[tag] = struct{}{}
	}
	result := make([]string, 0, len(current))
	for _, tag := range current {
		if _, ok := drop[tag]; !ok {
			result = append(result, tag)
		}
	}
	return result
}
