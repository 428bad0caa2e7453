// Package scheduler runs periodic jobs in the background.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job once at start and then on its interval. A job never overlaps
// itself: ticks that arrive while a run is in progress are dropped.
type Scheduler struct {
	jobs    []Job
	log     zerolog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

func New(log zerolog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, log: log.With().Str("component", "scheduler").Logger()}
}

// Start launches one worker per job. Workers stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("job %s: interval must be positive", job.Name)
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.worker(ctx, job)
	}
	return nil
}

// Stop cancels the workers and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) worker(ctx context.Context, job Job) {
	defer s.wg.Done()
	log := s.log.With().Str("job", job.Name).Logger()
	log.Info().Dur("interval", job.Interval).Msg("job scheduled")

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.run(ctx, log, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, log, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, log zerolog.Logger, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
		}
	}()

	if err := job.Run(ctx); err != nil {
		log.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("job finished")
}
