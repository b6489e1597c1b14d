package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/metrics"
)

const (
	defaultInterval   = 5 * time.Minute
	defaultJobTimeout = 2 * time.Minute
)

type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding Lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// Report summarizes one cycle.
type Report struct {
	Skipped bool
	Results map[string]string
}

// Failed lists the jobs that did not succeed.
func (r Report) Failed() []string {
	var out []string
	for name, result := range r.Results {
		if result != metrics.JobSucceeded {
			out = append(out, name)
		}
	}
	return out
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil || params.Registry.Len() == 0 {
		return nil, fmt.Errorf("at least one job required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes one cycle. A cycle is skipped when another instance
// holds the lock. Job failures land in the report, not the error.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.IncCycle(metrics.CycleLockError)
		return Report{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		s.metrics.IncCycle(metrics.CycleSkipped)
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return Report{Skipped: true}, nil
	}
	defer func() {
		// release must outlive a canceled cycle ctx
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(relCtx); err != nil {
			s.logg.WarnErr(ctx, "cron lock release failed", err)
		}
	}()

	s.metrics.IncCycle(metrics.CycleRan)
	report := Report{Results: make(map[string]string, s.registry.Len())}
	for i, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := s.extendLock(ctx); err != nil {
				return report, err
			}
		}
		report.Results[job.Name()] = s.runJob(ctx, job)
	}
	return report, nil
}

type extender interface {
	Extend(ctx context.Context) error
}

func (s *Service) extendLock(ctx context.Context) error {
	ext, ok := s.lock.(extender)
	if !ok {
		return nil
	}
	if err := ext.Extend(ctx); err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) string {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := safeRun(runCtx, job)
	took := time.Since(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())

	result := metrics.JobSucceeded
	var panicErr *panicError
	switch {
	case err == nil:
		s.logg.Info(jobCtx, "cron job complete")
	case errors.As(err, &panicErr):
		result = metrics.JobPanicked
		s.logg.Error(jobCtx, "cron job panicked", err)
	case errors.Is(err, context.DeadlineExceeded):
		result = metrics.JobTimedOut
		s.logg.Error(jobCtx, "cron job timed out", err)
	default:
		result = metrics.JobFailed
		s.logg.Error(jobCtx, "cron job failed", err)
	}
	s.metrics.ObserveRun(job.Name(), result, took)
	return result
}

type panicError struct{ value any }

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return job.Run(ctx)
}
