package exports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qualitrack/core/utils"

	"github.com/robfig/cron/v3"
)

type runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs the exporter whenever its cron schedule comes due.
type Scheduler struct {
	schedule cron.Schedule
	exporter runner
	logger   *utils.Logger
	tick     time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	lastRun time.Time
	wg      sync.WaitGroup
}

func NewScheduler(spec string, exporter runner, logger *utils.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("export schedule %q: %w", spec, err)
	}
	return &Scheduler{schedule: sched, exporter: exporter, logger: logger, tick: 30 * time.Second}, nil
}

func (s *Scheduler) StartWithContext(ctx context.Context) {
	if s == nil || s.exporter == nil {
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	if s.lastRun.IsZero() {
		s.lastRun = utils.NowUTC()
	}
	s.wg.Add(1)
	s.mu.Unlock()
	s.logger.Printf("export scheduler started, next run at %s", s.Next().Format(time.RFC3339))

	ticker := time.NewTicker(s.tick)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.RunOnce(runCtx, utils.NowUTC()); err != nil {
					s.logger.Errorf("scheduled export failed: %v", err)
				}
			case <-runCtx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	wasRunning := s.running
	s.mu.Unlock()
	if !wasRunning || cancel == nil {
		return nil
	}
	cancel()
	waitDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce exports when the schedule has a slot between the previous run and
// now. It reports whether an export ran.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (bool, error) {
	if s == nil || s.exporter == nil {
		return false, nil
	}
	s.mu.Lock()
	last := s.lastRun
	if last.IsZero() {
		s.lastRun = now
		s.mu.Unlock()
		return false, nil
	}
	due := s.schedule.Next(last)
	if due.After(now) {
		s.mu.Unlock()
		return false, nil
	}
	s.lastRun = now
	s.mu.Unlock()
	_, err := s.exporter.Run(ctx)
	return true, err
}

// Next returns the next slot after the last run.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.lastRun
	if base.IsZero() {
		base = utils.NowUTC()
	}
	return s.schedule.Next(base)
}
