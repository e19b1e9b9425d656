package chrono

import (
	"context"
	"sync"
	"time"
)

// jobEntry is the internal bookkeeping record for a scheduled job.
type jobEntry struct {
	id         string
	fn         JobFunc
	schedule   Schedule
	config     jobConfig
	next       time.Time
	running    bool
	paused     bool
	status     JobStatus
	lastRun    time.Time
	runCount   int64
	errorCount int64
	lastErr    error
}

// info snapshots the entry into a JobInfo. Caller must hold the scheduler lock.
func (e *jobEntry) info() *JobInfo {
	return &JobInfo{
		ID:         e.id,
		Status:     e.status,
		LastRun:    e.lastRun,
		NextRun:    e.next,
		RunCount:   e.runCount,
		ErrorCount: e.errorCount,
		LastError:  e.lastErr,
	}
}

// defaultScheduler is the default in-process implementation of Scheduler.
// Execution is driven by a precise timer that sleeps exactly until the next
// due job, woken early by AddJob/RemoveJob via the wake channel.
type defaultScheduler struct {
	mu            sync.Mutex
	entries       map[string]*jobEntry
	checkInterval time.Duration
	running       bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	wake          chan struct{}
}

// AddJob adds a job with the given schedule.
func (s *defaultScheduler) AddJob(id string, fn JobFunc, schedule Schedule, opts ...JobOption) error {
	if id == "" {
		return ErrEmptyJobID
	}
	if fn == nil {
		return ErrNilJobFunc
	}

	cfg := jobConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		logger.WarnF("AddJob: job %q already exists", id)
		return ErrJobAlreadyExists
	}

	s.entries[id] = &jobEntry{
		id:       id,
		fn:       fn,
		schedule: schedule,
		config:   cfg,
		next:     schedule.Next(time.Now()),
	}
	logger.DebugF("AddJob: registered job %q", id)
	s.signalWake()
	return nil
}

// AddIntervalJob adds a job that runs at a fixed interval.
func (s *defaultScheduler) AddIntervalJob(id string, fn JobFunc, interval time.Duration, opts ...JobOption) error {
	sched, err := NewIntervalSchedule(interval)
	if err != nil {
		return err
	}
	return s.AddJob(id, fn, sched, opts...)
}

// AddOneShotJob adds a job that runs once after the specified delay.
func (s *defaultScheduler) AddOneShotJob(id string, fn JobFunc, delay time.Duration, opts ...JobOption) error {
	sched, err := NewOneShotSchedule(delay)
	if err != nil {
		return err
	}
	return s.AddJob(id, fn, sched, opts...)
}

// RemoveJob removes a scheduled job by ID.
func (s *defaultScheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		return ErrJobNotFound
	}
	delete(s.entries, id)
	logger.DebugF("RemoveJob: removed job %q", id)
	s.signalWake()
	return nil
}

// PauseJob pauses a scheduled job. The job will not be executed until resumed.
func (s *defaultScheduler) PauseJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		return ErrJobNotFound
	}
	e.paused = true
	e.status = JobStatusPaused
	logger.DebugF("PauseJob: paused job %q", id)
	return nil
}

// ResumeJob resumes a paused job.
func (s *defaultScheduler) ResumeJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		return ErrJobNotFound
	}
	if !e.paused {
		return nil
	}
	e.paused = false
	e.status = JobStatusPending
	e.next = e.schedule.Next(time.Now())
	logger.DebugF("ResumeJob: resumed job %q", id)
	s.signalWake()
	return nil
}

// GetJob returns information about a scheduled job.
func (s *defaultScheduler) GetJob(id string) (*JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		return nil, ErrJobNotFound
	}
	return e.info(), nil
}

// ListJobs returns information about all scheduled jobs.
func (s *defaultScheduler) ListJobs() []*JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]*JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, e.info())
	}
	return infos
}

// Start starts the scheduler.
func (s *defaultScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	s.wg.Add(1)
	go s.run()

	logger.InfoF("scheduler started, checkInterval=%s", s.checkInterval)
	return nil
}

// Stop stops the scheduler gracefully, waiting for running jobs to complete.
func (s *defaultScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is currently running.
func (s *defaultScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// signalWake sends a non-blocking signal to the run loop to recalculate the
// next wake time. Called after any mutation that may affect scheduling.
func (s *defaultScheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextWakeDuration returns how long the run loop should sleep, bounded by
// checkInterval so a scheduler with no jobs still wakes periodically to
// notice new ones added concurrently.
func (s *defaultScheduler) nextWakeDuration(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	wake := s.checkInterval
	for _, e := range s.entries {
		if e.running || e.paused || e.next.IsZero() {
			continue
		}
		d := e.next.Sub(now)
		if d < 0 {
			d = 0
		}
		if d < wake {
			wake = d
		}
	}
	return wake
}

// run is the main scheduler loop: a precise timer that wakes exactly when
// the next local job is due, reset early whenever a mutation signals wake.
func (s *defaultScheduler) run() {
	defer s.wg.Done()

	timer := time.NewTimer(s.nextWakeDuration(time.Now()))
	defer timer.Stop()

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.nextWakeDuration(time.Now()))
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-timer.C:
			s.runDue(now)
			resetTimer()
		case <-s.wake:
			resetTimer()
		}
	}
}

// runDue marks all currently-due entries as running and dispatches them,
// releasing the lock before invoking any job function.
func (s *defaultScheduler) runDue(now time.Time) {
	s.mu.Lock()
	var due []*jobEntry
	for _, e := range s.entries {
		if !e.running && !e.paused && !e.next.IsZero() && !e.next.After(now) {
			e.running = true
			e.status = JobStatusRunning
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go s.executeJob(e)
	}
}

// executeJob runs a single job with retry and timeout support, then
// reschedules or removes it depending on what its Schedule reports next.
func (s *defaultScheduler) executeJob(entry *jobEntry) {
	defer s.wg.Done()

	var jobErr error
	maxAttempts := 1 + entry.config.maxRetries

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var jobCtx context.Context
		var jobCancel context.CancelFunc
		if entry.config.timeout > 0 {
			jobCtx, jobCancel = context.WithTimeout(s.ctx, entry.config.timeout)
		} else {
			jobCtx, jobCancel = context.WithCancel(s.ctx)
		}

		jobErr = entry.fn(jobCtx)
		jobCancel()

		if jobErr == nil {
			break
		}

		select {
		case <-s.ctx.Done():
			logger.WarnF("executeJob: job %q canceled due to scheduler shutdown", entry.id)
			return
		default:
			logger.DebugF("executeJob: job %q failed (attempt %d/%d): %v", entry.id, attempt+1, maxAttempts, jobErr)
		}
	}

	if jobErr != nil {
		logger.ErrorF("executeJob: job %q failed after %d attempt(s): %v", entry.id, maxAttempts, jobErr)
		if entry.config.onError != nil {
			entry.config.onError(entry.id, jobErr)
		}
	} else if entry.config.onSuccess != nil {
		entry.config.onSuccess(entry.id)
	}

	s.mu.Lock()
	if cur, ok := s.entries[entry.id]; ok && cur == entry {
		cur.running = false
		cur.lastRun = time.Now()
		cur.runCount++
		if jobErr != nil {
			cur.errorCount++
			cur.lastErr = jobErr
			cur.status = JobStatusFailed
		} else {
			cur.lastErr = nil
			cur.status = JobStatusCompleted
		}
		if cur.paused {
			cur.status = JobStatusPaused
		}
		cur.next = cur.schedule.Next(cur.lastRun)
		if cur.next.IsZero() {
			delete(s.entries, entry.id)
		}
	}
	s.mu.Unlock()
	s.signalWake()
}
