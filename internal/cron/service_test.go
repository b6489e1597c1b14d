package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/metrics"
)

type fakeLock struct {
	held     bool
	err      error
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
	runs int
}

func (j *funcJob) Name() string { return j.name }

func (j *funcJob) Run(ctx context.Context) error {
	j.runs++
	if j.fn == nil {
		return nil
	}
	return j.fn(ctx)
}

func newTestService(t *testing.T, lock Lock, timeout time.Duration, jobs ...Job) *Service {
	t.Helper()
	reg := NewRegistry()
	for _, job := range jobs {
		require.NoError(t, reg.Register(job))
	}
	svc, err := NewService(ServiceParams{
		Logger:     logger.Nop(),
		Registry:   reg,
		Lock:       lock,
		Metrics:    metrics.NewCronMetrics(prometheus.NewRegistry()),
		JobTimeout: timeout,
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndReportsResults(t *testing.T) {
	ok := &funcJob{name: "ok"}
	failing := &funcJob{name: "failing", fn: func(context.Context) error { return errors.New("boom") }}
	panicking := &funcJob{name: "panicking", fn: func(context.Context) error { panic("bad state") }}
	slow := &funcJob{name: "slow", fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	lock := &fakeLock{}
	svc := newTestService(t, lock, 20*time.Millisecond, ok, failing, panicking, slow)

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, map[string]string{
		"ok":        metrics.JobSucceeded,
		"failing":   metrics.JobFailed,
		"panicking": metrics.JobPanicked,
		"slow":      metrics.JobTimedOut,
	}, report.Results)
	assert.ElementsMatch(t, []string{"failing", "panicking", "slow"}, report.Failed())
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &funcJob{name: "wishlist-resync"}
	svc := newTestService(t, &fakeLock{held: true}, time.Second, job)

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, job.runs)
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	job := &funcJob{name: "wishlist-resync"}
	svc := newTestService(t, &fakeLock{err: errors.New("redis down")}, time.Second, job)

	_, err := svc.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancelAfterFirstCycle(t *testing.T) {
	job := &funcJob{name: "wishlist-resync"}
	svc := newTestService(t, &fakeLock{}, time.Second, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.LessOrEqual(t, job.runs, 1)
}

func TestNewServiceRequiresJobs(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{}, Registry: NewRegistry()})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry()})
	assert.Error(t, err)
}

type extendingLock struct {
	fakeLock
	extendErr error
	extends   int
}

func (e *extendingLock) Extend(context.Context) error {
	e.extends++
	return e.extendErr
}

func TestRunOnceExtendsLockBetweenJobs(t *testing.T) {
	first, second := &funcJob{name: "first"}, &funcJob{name: "second"}
	lock := &extendingLock{}
	svc := newTestService(t, lock, time.Second, first, second)

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, lock.extends)
	assert.Equal(t, 1, second.runs)
}

func TestRunOnceStopsWhenLockLost(t *testing.T) {
	first, second := &funcJob{name: "first"}, &funcJob{name: "second"}
	lock := &extendingLock{extendErr: ErrLockLost}
	svc := newTestService(t, lock, time.Second, first, second)

	report, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrLockLost)
	assert.Equal(t, 1, first.runs)
	assert.Zero(t, second.runs)
	assert.Contains(t, report.Results, "first")
}
