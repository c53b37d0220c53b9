package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/history"
	"github.com/pipi20xx/emby-auto-tags/internal/scheduler"
	"github.com/pipi20xx/emby-auto-tags/internal/testutil"
)

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(zerolog.Nop())
	if err != nil {
		t.Fatalf("scheduler.New failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestRegisterSweepTaskDisabled(t *testing.T) {
	sched := newTestScheduler(t)

	cfg := config.SchedulerConfig{SweepEnabled: false, SweepCron: "0 4 * * *", SweepMode: "merge"}
	if err := RegisterSweepTask(sched, nil, cfg, zerolog.Nop()); err != nil {
		t.Fatalf("RegisterSweepTask failed: %v", err)
	}

	if got := len(sched.ListTasks()); got != 0 {
		t.Errorf("disabled sweep must register nothing, got %d tasks", got)
	}
}

func TestRegisterSweepTaskDefaultsCron(t *testing.T) {
	sched := newTestScheduler(t)

	cfg := config.SchedulerConfig{SweepEnabled: true, SweepMode: "overwrite"}
	if err := RegisterSweepTask(sched, nil, cfg, zerolog.Nop()); err != nil {
		t.Fatalf("RegisterSweepTask failed: %v", err)
	}

	info, err := sched.GetTask(SweepTaskID)
	if err != nil {
		t.Fatalf("sweep task not registered: %v", err)
	}
	if info.Cron != defaultSweepCron {
		t.Errorf("expected default cron %q, got %q", defaultSweepCron, info.Cron)
	}
}

func TestRegisterSweepTaskRejectsBadMode(t *testing.T) {
	sched := newTestScheduler(t)

	cfg := config.SchedulerConfig{SweepEnabled: true, SweepMode: "append"}
	if err := RegisterSweepTask(sched, nil, cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected unknown sweep mode to be rejected")
	}
}

func TestUpdateSweepTaskTogglesRegistration(t *testing.T) {
	sched := newTestScheduler(t)

	enabled := config.SchedulerConfig{SweepEnabled: true, SweepCron: "0 4 * * *", SweepMode: "merge"}
	if err := RegisterSweepTask(sched, nil, enabled, zerolog.Nop()); err != nil {
		t.Fatalf("RegisterSweepTask failed: %v", err)
	}

	disabled := enabled
	disabled.SweepEnabled = false
	if err := UpdateSweepTask(sched, nil, disabled, zerolog.Nop()); err != nil {
		t.Fatalf("UpdateSweepTask failed: %v", err)
	}
	if _, err := sched.GetTask(SweepTaskID); err == nil {
		t.Error("expected sweep task to be removed after disabling")
	}

	enabled.SweepCron = "30 5 * * *"
	if err := UpdateSweepTask(sched, nil, enabled, zerolog.Nop()); err != nil {
		t.Fatalf("UpdateSweepTask re-enable failed: %v", err)
	}
	info, err := sched.GetTask(SweepTaskID)
	if err != nil {
		t.Fatalf("sweep task not re-registered: %v", err)
	}
	if info.Cron != "30 5 * * *" {
		t.Errorf("expected updated cron, got %q", info.Cron)
	}
}

func TestRegisterHistoryPruneTaskDisabled(t *testing.T) {
	sched := newTestScheduler(t)

	if err := RegisterHistoryPruneTask(sched, nil, 0, zerolog.Nop()); err != nil {
		t.Fatalf("RegisterHistoryPruneTask failed: %v", err)
	}
	if got := len(sched.ListTasks()); got != 0 {
		t.Errorf("zero retention must register nothing, got %d tasks", got)
	}
}

func TestHistoryPruneTaskRun(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	service := history.NewService(tdb.Conn, testutil.NopLogger())
	ctx := context.Background()

	if _, err := service.Record(ctx, history.CreateInput{ItemID: "fresh", Mode: "merge", Source: history.SourceSweep}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	stale := time.Now().UTC().AddDate(0, 0, -120).Format(time.RFC3339)
	if _, err := tdb.Conn.ExecContext(ctx, `
		INSERT INTO tag_history (created_at, item_id, mode, source)
		VALUES (?, 'stale', 'merge', 'sweep')`, stale); err != nil {
		t.Fatalf("failed to plant stale entry: %v", err)
	}

	task := NewHistoryPruneTask(service, 90, zerolog.Nop())
	if err := task.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result, err := service.List(ctx, history.ListOptions{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.TotalCount != 1 || result.Items[0].ItemID != "fresh" {
		t.Errorf("expected only the fresh entry to survive, got %+v", result.Items)
	}
}

func TestHistoryPruneTaskRegisters(t *testing.T) {
	sched := newTestScheduler(t)

	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	service := history.NewService(tdb.Conn, testutil.NopLogger())

	if err := RegisterHistoryPruneTask(sched, service, 90, zerolog.Nop()); err != nil {
		t.Fatalf("RegisterHistoryPruneTask failed: %v", err)
	}
	info, err := sched.GetTask(HistoryPruneTaskID)
	if err != nil {
		t.Fatalf("prune task not registered: %v", err)
	}
	if info.Cron != "0 2 * * *" {
		t.Errorf("unexpected cron %q", info.Cron)
	}
}
