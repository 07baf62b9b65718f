package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ledger-bot/internal/logger"
)

// Job is a named periodic task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs jobs on UTC cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a job. An empty spec disables it.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		logger.Infof("📅 Job %s disabled", job.Name)
		return nil
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no function", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}
	s.entries[job.Name] = id
	return nil
}

func (s *Scheduler) run(job Job) {
	logger.Infof("🕘 Triggered %s", job.Name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("❌ %s panicked: %v", job.Name, r)
		}
	}()
	if err := job.Run(s.ctx); err != nil {
		logger.Errorf("❌ %s failed: %v", job.Name, err)
		return
	}
	logger.Infow("job finished", "job", job.Name, "took", time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for name, next := range s.Next() {
		logger.Infof("📅 %s next run at %s", name, next.Format(time.RFC3339))
	}
}

// Stop waits for running jobs after cancelling their context.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	logger.Info("📅 Scheduler stopped")
}

// Next returns the next activation of every registered job. Before Start
// the times are computed from the schedules directly.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	now := time.Now().UTC()
	for name, id := range s.entries {
		e := s.cron.Entry(id)
		next := e.Next
		if next.IsZero() && e.Schedule != nil {
			next = e.Schedule.Next(now)
		}
		out[name] = next
	}
	return out
}
