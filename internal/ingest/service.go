// Package ingest accepts media server webhook notifications and feeds
// them to the tagging pipeline through a FIFO queue with a single
// consumer, so the webhook endpoint always answers immediately.
package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipi20xx/emby-auto-tags/internal/config"
	"github.com/pipi20xx/emby-auto-tags/internal/pipeline"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

var (
	// ErrDisabled indicates the webhook receiver is turned off.
	ErrDisabled = errors.New("webhook receiver is disabled")
	// ErrInvalidToken indicates the shared secret did not match.
	ErrInvalidToken = errors.New("invalid webhook token")
	// ErrQueueFull indicates the notification queue is at capacity.
	ErrQueueFull = errors.New("notification queue is full")
	// ErrStopped indicates the service no longer accepts notifications.
	ErrStopped = errors.New("notification intake is stopped")
)

// State describes what the consumer loop is doing.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateDraining   State = "draining"
	StateStopped    State = "stopped"
)

// NotificationProcessor runs one webhook payload through the pipeline.
type NotificationProcessor interface {
	ProcessNotification(ctx context.Context, payload []byte, mode tagging.Mode) (*pipeline.Result, error)
}

// Stats is a snapshot of the queue counters.
type Stats struct {
	State     State  `json:"state"`
	Depth     int    `json:"depth"`
	Accepted  uint64 `json:"accepted"`
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
}

type queueItem struct {
	payload    []byte
	enqueuedAt time.Time
}

// Service owns the notification queue and its consumer loop. Exactly
// one payload is in flight at a time, in strict enqueue order.
type Service struct {
	processor NotificationProcessor
	logger    zerolog.Logger

	mu    sync.RWMutex
	cfg   config.WebhookConfig
	state State

	queue     chan queueItem
	accepting atomic.Bool
	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}

	accepted  atomic.Uint64
	processed atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// NewService creates the intake service. The queue capacity is taken
// from the configuration and fixed for the service's lifetime.
func NewService(processor NotificationProcessor, cfg config.WebhookConfig, logger zerolog.Logger) *Service {
	size := cfg.QueueSize
	if size < 1 {
		size = 256
	}
	s := &Service{
		processor: processor,
		cfg:       cfg,
		state:     StateIdle,
		queue:     make(chan queueItem, size),
		done:      make(chan struct{}),
		logger:    logger.With().Str("component", "ingest").Logger(),
	}
	s.accepting.Store(true)
	return s
}

// SetConfig applies new webhook settings. Token, enabled flags, and
// write mode take effect immediately; the queue capacity does not.
func (s *Service) SetConfig(cfg config.WebhookConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() config.WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the consumer loop state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns a snapshot of the queue counters.
func (s *Service) Stats() Stats {
	return Stats{
		State:     s.State(),
		Depth:     len(s.queue),
		Accepted:  s.accepted.Load(),
		Processed: s.processed.Load(),
		Skipped:   s.skipped.Load(),
		Failed:    s.failed.Load(),
		Rejected:  s.rejected.Load(),
	}
}

// Enqueue validates the shared token and queues a raw payload. It
// returns whether the payload was queued; an accepted notification with
// automation disabled is logged but not queued. The call never waits on
// processing.
func (s *Service) Enqueue(token string, payload []byte) (bool, error) {
	cfg := s.config()

	if !cfg.Enabled {
		s.rejected.Add(1)
		return false, ErrDisabled
	}
	if cfg.SecretToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.SecretToken)) != 1 {
		s.rejected.Add(1)
		return false, ErrInvalidToken
	}
	if !s.accepting.Load() {
		s.rejected.Add(1)
		return false, ErrStopped
	}
	if !cfg.AutomationEnabled {
		s.logger.Info().Msg("notification received, automation disabled")
		return false, nil
	}

	select {
	case s.queue <- queueItem{payload: payload, enqueuedAt: time.Now()}:
		s.accepted.Add(1)
		return true, nil
	default:
		s.rejected.Add(1)
		return false, ErrQueueFull
	}
}

// Start launches the consumer loop.
func (s *Service) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	s.logger.Info().Int("queue_size", cap(s.queue)).Msg("notification consumer started")
}

// Stop shuts the intake down: new pushes are refused, queued payloads
// are processed up to the configured drain timeout, then the loop is
// cancelled. Cancellation lands between payloads, never mid-item.
func (s *Service) Stop() {
	s.accepting.Store(false)
	if !s.started.Load() {
		s.setState(StateStopped)
		return
	}
	s.setState(StateDraining)

	drain := time.Duration(s.config().DrainTimeout) * time.Second
	if drain <= 0 {
		drain = 30 * time.Second
	}
	deadline := time.NewTimer(drain)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

drainLoop:
	for len(s.queue) > 0 {
		select {
		case <-deadline.C:
			s.logger.Warn().Int("remaining", len(s.queue)).Msg("drain timeout reached, dropping queued notifications")
			break drainLoop
		case <-tick.C:
		}
	}

	s.cancel()
	select {
	case <-s.done:
	case <-time.After(drain):
		s.logger.Warn().Msg("consumer did not stop in time")
	}
	s.setState(StateStopped)
	s.logger.Info().Msg("notification consumer stopped")
}

// run is the consumer loop. It must never exit except on cancellation.
func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-s.queue:
			s.setState(StateProcessing)
			s.consume(item)
			s.setState(StateIdle)
		}
	}
}

// consume processes one payload. Failures are logged and counted; they
// never stop the loop. The item runs against a fresh context so a
// shutdown mid-item lets the item finish.
func (s *Service) consume(item queueItem) {
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			s.logger.Error().Interface("panic", r).Msg("recovered from notification processing panic")
		}
	}()

	mode, err := tagging.ParseMode(s.config().WriteMode)
	if err != nil {
		mode = tagging.ModeMerge
	}

	result, err := s.processor.ProcessNotification(context.Background(), item.payload, mode)
	switch {
	case errors.Is(err, pipeline.ErrNotEligible):
		s.skipped.Add(1)
		s.logger.Debug().Err(err).Msg("notification skipped")
	case err != nil:
		s.failed.Add(1)
		s.logger.Error().Err(err).Msg("notification processing failed")
	default:
		s.processed.Add(1)
		s.logger.Debug().
			Str("item_id", result.ItemID).
			Bool("updated", result.Updated).
			Dur("queue_wait", time.Since(item.enqueuedAt)).
			Msg("notification processed")
	}
}
