package chrono

import (
	"context"
	"errors"
	"time"

	"oss.nandlabs.io/objpool/l3"
)

var logger = l3.Get()

// Error sentinels for common scheduler errors.
var (
	// ErrSchedulerRunning is returned when attempting to start an already running scheduler.
	ErrSchedulerRunning = errors.New("chrono: already running")
	// ErrSchedulerStopped is returned when attempting to operate on a stopped scheduler.
	ErrSchedulerStopped = errors.New("chrono: not running")
	// ErrJobNotFound is returned when a job with the given ID does not exist.
	ErrJobNotFound = errors.New("chrono: job not found")
	// ErrJobAlreadyExists is returned when a job with the given ID already exists.
	ErrJobAlreadyExists = errors.New("chrono: job already exists")
	// ErrInvalidInterval is returned when an interval duration is invalid.
	ErrInvalidInterval = errors.New("chrono: invalid interval")
	// ErrInvalidDelay is returned when a delay duration is invalid.
	ErrInvalidDelay = errors.New("chrono: invalid delay")
	// ErrNilJobFunc is returned when a nil function is provided.
	ErrNilJobFunc = errors.New("chrono: job function cannot be nil")
	// ErrEmptyJobID is returned when an empty job ID is provided.
	ErrEmptyJobID = errors.New("chrono: job ID cannot be empty")
)

// JobFunc is the function signature for scheduled jobs.
// The context is canceled when the scheduler is stopped or when the job times out.
type JobFunc func(ctx context.Context) error

// JobStatus represents the current execution status of a job.
type JobStatus int

const (
	// JobStatusPending indicates the job is waiting to be executed.
	JobStatusPending JobStatus = iota
	// JobStatusRunning indicates the job is currently executing.
	JobStatusRunning
	// JobStatusCompleted indicates the job has completed its last execution successfully.
	JobStatusCompleted
	// JobStatusFailed indicates the job has failed its last execution.
	JobStatusFailed
	// JobStatusPaused indicates the job has been paused and will not run until resumed.
	JobStatusPaused
)

// String returns the string representation of a JobStatus.
func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "pending"
	case JobStatusRunning:
		return "running"
	case JobStatusCompleted:
		return "completed"
	case JobStatusFailed:
		return "failed"
	case JobStatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// JobInfo provides read-only information about a scheduled job.
type JobInfo struct {
	// ID is the unique identifier of the job.
	ID string
	// Status is the current execution status.
	Status JobStatus
	// LastRun is the time the job was last executed. Zero if it has never run.
	LastRun time.Time
	// NextRun is the scheduled time for the next execution. Zero if none is scheduled.
	NextRun time.Time
	// RunCount is the total number of times the job has been executed.
	RunCount int64
	// ErrorCount is the total number of failed executions.
	ErrorCount int64
	// LastError is the error from the most recent failed execution.
	LastError error
}

// Schedule defines when a job should be executed.
type Schedule interface {
	// Next returns the next activation time after the given time.
	// It returns the zero time if there are no more activations.
	Next(from time.Time) time.Time
}

// JobOption is a functional option for configuring a job.
type JobOption func(*jobConfig)

// jobConfig holds optional job configuration.
type jobConfig struct {
	maxRetries int
	timeout    time.Duration
	onSuccess  func(jobID string)
	onError    func(jobID string, err error)
}

// WithMaxRetries sets the maximum number of retries for a failed job execution.
// If a job fails, it will be retried up to n times before being marked as failed.
func WithMaxRetries(n int) JobOption {
	return func(c *jobConfig) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithTimeout sets the maximum execution time for a single job run.
// If the job does not complete within the timeout, its context is canceled.
func WithTimeout(d time.Duration) JobOption {
	return func(c *jobConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithOnSuccess sets a callback function that is invoked when the job completes successfully.
func WithOnSuccess(fn func(jobID string)) JobOption {
	return func(c *jobConfig) {
		c.onSuccess = fn
	}
}

// WithOnError sets a callback function that is invoked when the job fails.
func WithOnError(fn func(jobID string, err error)) JobOption {
	return func(c *jobConfig) {
		c.onError = fn
	}
}

// Scheduler manages the scheduling and execution of recurring and one-shot
// in-process jobs. Implementations are safe for concurrent use.
type Scheduler interface {
	// AddJob adds a job with the given schedule.
	AddJob(id string, fn JobFunc, schedule Schedule, opts ...JobOption) error
	// AddIntervalJob adds a job that runs at a fixed interval.
	AddIntervalJob(id string, fn JobFunc, interval time.Duration, opts ...JobOption) error
	// AddOneShotJob adds a job that runs once after the specified delay.
	AddOneShotJob(id string, fn JobFunc, delay time.Duration, opts ...JobOption) error
	// RemoveJob removes a scheduled job by ID. If the job is currently
	// running, that invocation completes normally and is not rescheduled.
	RemoveJob(id string) error
	// PauseJob pauses a scheduled job. The job will not be executed until resumed.
	PauseJob(id string) error
	// ResumeJob resumes a paused job.
	ResumeJob(id string) error
	// GetJob returns information about a scheduled job.
	GetJob(id string) (*JobInfo, error)
	// ListJobs returns information about all scheduled jobs.
	ListJobs() []*JobInfo
	// Start starts the scheduler. It begins executing due jobs.
	Start() error
	// Stop stops the scheduler gracefully, waiting for running jobs to complete.
	Stop() error
	// IsRunning returns true if the scheduler is currently running.
	IsRunning() bool
}

// Option is a functional option for configuring the scheduler itself.
type Option func(*defaultScheduler)

// WithCheckInterval sets the floor on how often the run loop re-evaluates
// its wake timer. The scheduler otherwise sleeps exactly until the next job
// is due, so this mostly matters for jobs added/removed while running. The
// default is 1 second.
func WithCheckInterval(d time.Duration) Option {
	return func(s *defaultScheduler) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// New creates a new Scheduler with default settings.
func New(opts ...Option) Scheduler {
	s := &defaultScheduler{
		entries:       make(map[string]*jobEntry),
		checkInterval: time.Second,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
