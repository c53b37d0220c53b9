package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func noop(ctx context.Context) error { return nil }

func TestRegisterTaskRejectsDuplicateID(t *testing.T) {
	s := newTestScheduler(t)

	cfg := TaskConfig{ID: "nightly", Name: "Nightly", Cron: "0 2 * * *", Func: noop}
	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("first RegisterTask failed: %v", err)
	}
	if err := s.RegisterTask(cfg); err == nil {
		t.Fatal("expected duplicate ID to be rejected")
	}
}

func TestRegisterTaskRejectsBadCron(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RegisterTask(TaskConfig{ID: "bad", Name: "Bad", Cron: "not a cron", Func: noop})
	if err == nil {
		t.Fatal("expected invalid cron expression to be rejected")
	}
}

func TestRunNowExecutesTask(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{})
	err := s.RegisterTask(TaskConfig{
		ID:   "manual",
		Name: "Manual",
		Cron: "0 2 * * *",
		Func: func(ctx context.Context) error {
			close(ran)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("manual"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task never executed")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := s.GetTask("manual")
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if info.LastRun != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lastRun never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunNowRecordsFailure(t *testing.T) {
	s := newTestScheduler(t)

	ran := make(chan struct{})
	err := s.RegisterTask(TaskConfig{
		ID:   "broken",
		Name: "Broken",
		Cron: "0 2 * * *",
		Func: func(ctx context.Context) error {
			close(ran)
			return errors.New("upstream down")
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("broken"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task never executed")
	}

	// A failed run still counts as a run.
	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := s.GetTask("broken")
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if info.LastRun != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lastRun never recorded for failed run")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunNowUnknownTask(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.RunNow("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestRunNowRejectsRunningTask(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{})
	release := make(chan struct{})
	err := s.RegisterTask(TaskConfig{
		ID:   "slow",
		Name: "Slow",
		Cron: "0 2 * * *",
		Func: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}

	if err := s.RunNow("slow"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	<-started

	if err := s.RunNow("slow"); !errors.Is(err, ErrTaskRunning) {
		t.Errorf("expected ErrTaskRunning, got %v", err)
	}
	close(release)
}

func TestUnregisterTask(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.RegisterTask(TaskConfig{ID: "gone", Name: "Gone", Cron: "0 2 * * *", Func: noop}); err != nil {
		t.Fatalf("RegisterTask failed: %v", err)
	}
	if err := s.UnregisterTask("gone"); err != nil {
		t.Fatalf("UnregisterTask failed: %v", err)
	}

	if _, err := s.GetTask("gone"); err == nil {
		t.Error("expected task to be gone after unregister")
	}
	if got := len(s.ListTasks()); got != 0 {
		t.Errorf("expected empty task list, got %d", got)
	}

	// Unknown IDs are tolerated so settings can be re-applied blindly.
	if err := s.UnregisterTask("never-existed"); err != nil {
		t.Errorf("UnregisterTask for unknown ID should be a no-op, got %v", err)
	}
}

func TestListTasks(t *testing.T) {
	s := newTestScheduler(t)

	for _, id := range []string{"one", "two"} {
		if err := s.RegisterTask(TaskConfig{ID: id, Name: id, Cron: "0 2 * * *", Func: noop}); err != nil {
			t.Fatalf("RegisterTask %s failed: %v", id, err)
		}
	}

	tasks := s.ListTasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	seen := map[string]bool{}
	for _, info := range tasks {
		seen[info.ID] = true
		if info.Cron != "0 2 * * *" {
			t.Errorf("task %s cron = %q", info.ID, info.Cron)
		}
	}
	if !seen["one"] || !seen["two"] {
		t.Errorf("unexpected task set: %v", seen)
	}
}
