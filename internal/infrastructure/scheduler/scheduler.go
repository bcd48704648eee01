// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of background work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Config holds scheduler settings
type Config struct {
	// JobTimeout bounds a single run; zero means no limit
	JobTimeout time.Duration
	// Location is the time zone schedules are read in; nil means local
	Location *time.Location
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{JobTimeout: 10 * time.Minute}
}

type registeredJob struct {
	job      Job
	schedule string
	running  sync.Mutex
}

// Scheduler runs registered jobs on their cron schedules. A job whose
// previous run has not finished is skipped rather than stacked.
type Scheduler struct {
	config Config
	cron   *cron.Cron
	logger *zap.Logger

	mu        sync.Mutex
	jobs      map[string]*registeredJob
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// New creates a new scheduler. Schedules use the standard five-field cron
// syntax plus descriptors such as @every 5m.
func New(config Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []cron.Option{}
	if config.Location != nil {
		opts = append(opts, cron.WithLocation(config.Location))
	}
	return &Scheduler{
		config: config,
		cron:   cron.New(opts...),
		logger: logger.Named("scheduler"),
		jobs:   make(map[string]*registeredJob),
	}
}

// AddJob registers job to run on schedule
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %q is already registered", job.Name())
	}

	rj := &registeredJob{job: job, schedule: schedule}
	if _, err := s.cron.AddFunc(schedule, func() { s.trigger(rj) }); err != nil {
		return fmt.Errorf("%w %q for job %s: %v", ErrInvalidSchedule, schedule, job.Name(), err)
	}
	s.jobs[job.Name()] = rj

	s.logger.Info("Job registered", zap.String("job", job.Name()), zap.String("schedule", schedule))
	return nil
}

// Start starts running jobs on their schedules
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true
	s.cron.Start()

	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop stops scheduling, cancels running jobs and waits for them to return
// or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs a registered job immediately and waits for it
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	rj, ok := s.jobs[name]
	running := s.isRunning
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !running {
		return ErrSchedulerNotRunning
	}
	return s.run(rj)
}

// Jobs returns the registered job names and their schedules
func (s *Scheduler) Jobs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.jobs))
	for name, rj := range s.jobs {
		out[name] = rj.schedule
	}
	return out
}

// trigger is the cron entry point; run logs its own failures
func (s *Scheduler) trigger(rj *registeredJob) {
	_ = s.run(rj)
}

func (s *Scheduler) run(rj *registeredJob) error {
	if !rj.running.TryLock() {
		s.logger.Warn("Skipping job, previous run still in progress", zap.String("job", rj.job.Name()))
		return ErrJobAlreadyRunning
	}
	defer rj.running.Unlock()

	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	log := s.logger.With(zap.String("job", rj.job.Name()))
	log.Debug("Job started")

	err := s.safeRun(ctx, rj.job)
	if err != nil {
		log.Error("Job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}
	log.Info("Job completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
