package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/history"
	"github.com/pipi20xx/emby-auto-tags/internal/scheduler"
)

const HistoryPruneTaskID = "history-prune"

// HistoryPruneTask deletes tag history older than the retention window.
type HistoryPruneTask struct {
	history *history.Service
	days    int
	logger  zerolog.Logger
}

// NewHistoryPruneTask creates a prune task keeping the most recent days of history.
func NewHistoryPruneTask(historyService *history.Service, days int, logger zerolog.Logger) *HistoryPruneTask {
	return &HistoryPruneTask{
		history: historyService,
		days:    days,
		logger:  logger.With().Str("task", HistoryPruneTaskID).Logger(),
	}
}

// Run deletes entries older than the retention window.
func (t *HistoryPruneTask) Run(ctx context.Context) error {
	pruned, err := t.history.PruneOlderThan(ctx, t.days)
	if err != nil {
		return err
	}
	if pruned > 0 {
		t.logger.Info().
			Int64("pruned", pruned).
			Int("retentionDays", t.days).
			Msg("history pruned")
	}
	return nil
}

// RegisterHistoryPruneTask registers nightly history pruning. A retention of
// zero or less disables pruning and registers nothing.
func RegisterHistoryPruneTask(sched *scheduler.Scheduler, historyService *history.Service, retentionDays int, logger zerolog.Logger) error {
	if retentionDays <= 0 {
		return nil
	}

	task := NewHistoryPruneTask(historyService, retentionDays, logger)

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryPruneTaskID,
		Name:        "History Cleanup",
		Description: "Deletes tag history entries older than the retention period",
		Cron:        "0 2 * * *",
		RunOnStart:  false,
		Func:        task.Run,
	})
}

// UpdateHistoryPruneTask re-registers pruning after a settings change.
func UpdateHistoryPruneTask(sched *scheduler.Scheduler, historyService *history.Service, retentionDays int, logger zerolog.Logger) error {
	if err := sched.UnregisterTask(HistoryPruneTaskID); err != nil {
		return fmt.Errorf("unregister history prune task: %w", err)
	}
	return RegisterHistoryPruneTask(sched, historyService, retentionDays, logger)
}
