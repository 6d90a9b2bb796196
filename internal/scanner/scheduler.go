package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/whale-tracker/internal/logging"
)

// Scheduler runs scan cycles at a fixed interval. One cycle runs at a time;
// a tick that fires while the previous cycle is still in flight is dropped.
// Stop only prevents new cycles from starting: the in-flight cycle keeps its
// context and finishes on its own.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	cycleMu sync.Mutex
}

// NewScheduler creates a scheduler for the given engine and interval
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
	}
}

// IsRunning reports whether the scheduler loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the scan loop. An immediate cycle runs before the first
// tick. Calling Start on a running scheduler is a no-op. Cycles run on the
// given context, which outlives Stop; cancelling it also ends the loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logging.Warn("[Scheduler] Start called while already running")
		return
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop := s.stop
	done := s.done
	s.mu.Unlock()

	logging.WithField("interval", s.interval.String()).Info("[Scheduler] Started")

	go func() {
		defer close(done)

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				logging.Info("[Scheduler] Stopped")
				return
			case <-ctx.Done():
				logging.Info("[Scheduler] Stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// runCycle executes one cycle unless a previous one is still in flight
func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		logging.Warn("[Scheduler] Previous scan cycle still running, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()

	s.engine.RunScanCycle(ctx)
}

// Stop halts the loop and waits for an in-flight cycle to finish. Calling
// Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stop
	done := s.done
	s.mu.Unlock()

	close(stop)
	<-done

	// Block until any in-flight cycle releases the lock
	s.cycleMu.Lock()
	s.cycleMu.Unlock() //nolint:staticcheck // immediate unlock is the wait
}
