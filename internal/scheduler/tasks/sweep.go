package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/bulk"
	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/history"
	"github.com/pipi20xx/emby-auto-tags/internal/scheduler"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

const SweepTaskID = "library-sweep"

const defaultSweepCron = "0 4 * * *"

// SweepTask kicks off a full-library tagging run. The run itself is
// tracked by the bulk task table; this task only starts it.
type SweepTask struct {
	bulk   *bulk.Service
	mode   tagging.Mode
	logger zerolog.Logger
}

// NewSweepTask creates a sweep task writing tags in the given mode.
func NewSweepTask(bulkService *bulk.Service, mode tagging.Mode, logger zerolog.Logger) *SweepTask {
	return &SweepTask{
		bulk:   bulkService,
		mode:   mode,
		logger: logger.With().Str("task", SweepTaskID).Logger(),
	}
}

// Run starts a bulk tagging pass over the whole library. A run already in
// flight is reported as a failure rather than queued behind it.
func (t *SweepTask) Run(ctx context.Context) error {
	task, err := t.bulk.Run(t.mode, bulk.ScopeAll, history.SourceSweep)
	if err != nil {
		return err
	}

	t.logger.Info().
		Str("taskId", task.ID).
		Str("mode", string(t.mode)).
		Msg("library sweep started")
	return nil
}

// RegisterSweepTask registers the scheduled library sweep. Disabled sweeps
// register nothing.
func RegisterSweepTask(sched *scheduler.Scheduler, bulkService *bulk.Service, cfg config.SchedulerConfig, logger zerolog.Logger) error {
	if !cfg.SweepEnabled {
		return nil
	}

	mode := tagging.ModeMerge
	if cfg.SweepMode != "" {
		parsed, err := tagging.ParseMode(cfg.SweepMode)
		if err != nil {
			return fmt.Errorf("sweep task: %w", err)
		}
		mode = parsed
	}

	cron := cfg.SweepCron
	if cron == "" {
		cron = defaultSweepCron
	}

	task := NewSweepTask(bulkService, mode, logger)

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          SweepTaskID,
		Name:        "Library Sweep",
		Description: "Runs the tagging rules across every item in the library",
		Cron:        cron,
		RunOnStart:  false,
		Func:        task.Run,
	})
}

// UpdateSweepTask re-registers the sweep after a settings change.
func UpdateSweepTask(sched *scheduler.Scheduler, bulkService *bulk.Service, cfg config.SchedulerConfig, logger zerolog.Logger) error {
	if err := sched.UnregisterTask(SweepTaskID); err != nil {
		return fmt.Errorf("unregister sweep task: %w", err)
	}
	return RegisterSweepTask(sched, bulkService, cfg, logger)
}
