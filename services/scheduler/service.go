// Package scheduler runs reconciliation passes on a fixed interval. Pass
// errors are logged and swallowed here: the engine is idempotent, so the
// next tick heals whatever a failed pass left behind.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	syncsvc "busymirror/services/sync"
)

// Syncer is the slice of the sync service the scheduler drives.
type Syncer interface {
	Synchronize() (syncsvc.Summary, error)
}

// Status holds the current state of the scheduler loop.
type Status struct {
	Running       bool      `json:"running"`
	Interval      string    `json:"interval"`
	LastRunAt     time.Time `json:"lastRunAt"`
	NextRunAt     time.Time `json:"nextRunAt"`
	LastError     string    `json:"lastError,omitempty"`
	PassesStarted int       `json:"passesStarted"`
}

// Service triggers synchronization passes periodically.
type Service struct {
	syncer   Syncer
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runNow  chan struct{}

	statusMu      sync.RWMutex
	lastRunAt     time.Time
	nextRunAt     time.Time
	lastError     string
	passesStarted int
}

// New creates a scheduler driving syncer every interval.
func New(syncer Syncer, interval time.Duration) *Service {
	return &Service{
		syncer:   syncer,
		interval: interval,
		runNow:   make(chan struct{}, 1),
	}
}

// Start launches the background loop. The first pass runs immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)
	log.Printf("[scheduler] started, interval %s", s.interval)
}

// Stop halts the loop and waits for any in-flight pass, honoring ctx's
// deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout waiting for pass)")
	}
	s.running = false
}

// RunNow triggers an immediate pass without waiting for the next tick.
// Non-blocking; a pending trigger is collapsed into one.
func (s *Service) RunNow() {
	select {
	case s.runNow <- struct{}{}:
	default:
	}
}

// Status returns the scheduler's current state.
func (s *Service) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return Status{
		Running:       running,
		Interval:      s.interval.String(),
		LastRunAt:     s.lastRunAt,
		NextRunAt:     s.nextRunAt,
		LastError:     s.lastError,
		PassesStarted: s.passesStarted,
	}
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runPass()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.statusMu.Lock()
		s.nextRunAt = time.Now().Add(s.interval)
		s.statusMu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass()
		case <-s.runNow:
			s.runPass()
			// Next automatic pass is a full interval from this one.
			ticker.Reset(s.interval)
		}
	}
}

func (s *Service) runPass() {
	s.statusMu.Lock()
	s.passesStarted++
	s.lastRunAt = time.Now()
	s.statusMu.Unlock()

	summary, err := s.syncer.Synchronize()

	s.statusMu.Lock()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.statusMu.Unlock()

	if err != nil {
		log.Printf("[scheduler] pass failed, next tick will retry: %v", err)
		return
	}
	log.Printf("[scheduler] pass done: %d created, %d deleted", summary.Created(), summary.Deleted())
}
