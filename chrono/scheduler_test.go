package chrono

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"oss.nandlabs.io/objpool/testing/assert"
)

func TestIntervalJobRunsRepeatedly(t *testing.T) {
	s := New(WithCheckInterval(5 * time.Millisecond))
	var count int32

	err := s.AddIntervalJob("tick", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	}, 10*time.Millisecond)
	assert.NoError(t, err)

	assert.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.True(t, atomic.LoadInt32(&count) >= 2)
}

func TestOneShotJobRunsOnce(t *testing.T) {
	s := New(WithCheckInterval(5 * time.Millisecond))
	var count int32

	err := s.AddOneShotJob("once", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	}, 10*time.Millisecond)
	assert.NoError(t, err)

	assert.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestRemoveJobPreventsExecution(t *testing.T) {
	s := New(WithCheckInterval(5 * time.Millisecond))
	var count int32

	err := s.AddOneShotJob("cancelme", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	}, 30*time.Millisecond)
	assert.NoError(t, err)

	assert.NoError(t, s.Start())
	defer s.Stop()

	assert.NoError(t, s.RemoveJob("cancelme"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestDuplicateJobIDRejected(t *testing.T) {
	s := New()
	fn := func(ctx context.Context) error { return nil }

	assert.NoError(t, s.AddIntervalJob("dup", fn, time.Second))
	err := s.AddIntervalJob("dup", fn, time.Second)
	assert.Equal(t, ErrJobAlreadyExists, err)
}

func TestStartTwiceFails(t *testing.T) {
	s := New()
	assert.NoError(t, s.Start())
	defer s.Stop()

	err := s.Start()
	assert.Equal(t, ErrSchedulerRunning, err)
}

func TestStopWithoutStartFails(t *testing.T) {
	s := New()
	err := s.Stop()
	assert.Equal(t, ErrSchedulerStopped, err)
}

func TestRetryOnFailure(t *testing.T) {
	s := New(WithCheckInterval(5 * time.Millisecond))
	var attempts int32

	err := s.AddOneShotJob("flaky", func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return context.DeadlineExceeded
		}
		return nil
	}, 5*time.Millisecond, WithMaxRetries(5))
	assert.NoError(t, err)

	assert.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGetJobReportsRunCount(t *testing.T) {
	s := New(WithCheckInterval(5 * time.Millisecond))

	err := s.AddIntervalJob("counted", func(ctx context.Context) error {
		return nil
	}, 10*time.Millisecond)
	assert.NoError(t, err)

	assert.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)

	info, err := s.GetJob("counted")
	assert.NoError(t, err)
	assert.True(t, info.RunCount >= 2)
	assert.Equal(t, "completed", info.Status.String())
}

func TestGetJobUnknownIDFails(t *testing.T) {
	s := New()
	_, err := s.GetJob("missing")
	assert.Equal(t, ErrJobNotFound, err)
}

func TestListJobsReturnsAllEntries(t *testing.T) {
	s := New()
	fn := func(ctx context.Context) error { return nil }

	assert.NoError(t, s.AddIntervalJob("a", fn, time.Second))
	assert.NoError(t, s.AddIntervalJob("b", fn, time.Second))

	infos := s.ListJobs()
	assert.Equal(t, 2, len(infos))
}

func TestPauseJobStopsExecutionUntilResumed(t *testing.T) {
	s := New(WithCheckInterval(5 * time.Millisecond))
	var count int32

	err := s.AddIntervalJob("pausable", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	}, 10*time.Millisecond)
	assert.NoError(t, err)

	assert.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(35 * time.Millisecond)
	assert.NoError(t, s.PauseJob("pausable"))

	info, err := s.GetJob("pausable")
	assert.NoError(t, err)
	assert.Equal(t, "paused", info.Status.String())

	countAtPause := atomic.LoadInt32(&count)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, countAtPause, atomic.LoadInt32(&count))

	assert.NoError(t, s.ResumeJob("pausable"))
	time.Sleep(40 * time.Millisecond)
	assert.True(t, atomic.LoadInt32(&count) > countAtPause)
}

func TestPauseJobUnknownIDFails(t *testing.T) {
	s := New()
	assert.Equal(t, ErrJobNotFound, s.PauseJob("missing"))
	assert.Equal(t, ErrJobNotFound, s.ResumeJob("missing"))
}

func TestAcquireReleaseSharesInstance(t *testing.T) {
	a := Acquire()
	b := Acquire()
	assert.True(t, a == b)
	assert.True(t, a.IsRunning())

	Release()
	assert.True(t, a.IsRunning())

	Release()
}
