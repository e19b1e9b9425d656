package pool

import "time"

// AbandonedConfig controls detection of instances borrowed and never
// returned (leaked by a caller that forgot, or whose goroutine died).
type AbandonedConfig struct {
	// RemoveAbandonedOnBorrow scans for abandoned instances when a borrow
	// finds the pool close to starvation.
	RemoveAbandonedOnBorrow bool
	// RemoveAbandonedOnMaintenance scans on every evictor tick.
	RemoveAbandonedOnMaintenance bool
	// RemoveAbandonedTimeout is how long an instance may sit ALLOCATED
	// without a borrow/use before it is considered abandoned.
	RemoveAbandonedTimeout time.Duration
}

// Config holds the tunables recognized by Pool. Use NewConfig with Options
// to build one; the zero value is not valid (use NewConfig()).
type Config struct {
	// MaxTotal caps the number of live instances; negative means unlimited.
	MaxTotal int
	// MaxIdle caps the idle deque; excess returned instances are destroyed
	// instead of stored. Negative means unlimited.
	MaxIdle int
	// MinIdle is the level maintenance tries to refill the idle deque to.
	MinIdle int
	// BlockWhenExhausted, if true, makes borrow wait for an instance
	// instead of failing immediately when none is available.
	BlockWhenExhausted bool
	// MaxWait is the default borrow wait; negative waits forever.
	MaxWait time.Duration
	// LIFO selects which end of the idle deque non-waiting borrows pop:
	// front (true) or back (false). Waiter fairness is always FIFO.
	LIFO bool
	// TestOnCreate validates a freshly made instance before it is lent out.
	TestOnCreate bool
	// TestOnBorrow validates an instance popped from idle before lending it.
	TestOnBorrow bool
	// TestOnReturn validates an instance when it is returned.
	TestOnReturn bool
	// TestWhileIdle validates idle instances during eviction sweeps.
	TestWhileIdle bool
	// TimeBetweenEvictionRuns is the evictor tick interval; <= 0 disables
	// background eviction entirely.
	TimeBetweenEvictionRuns time.Duration
	// NumTestsPerEvictionRun bounds how many idle instances one evictor
	// tick inspects. Negative -k means ceil(idleSize / k).
	NumTestsPerEvictionRun int
	// MinEvictableIdleTime is the hard idle-time eviction threshold.
	MinEvictableIdleTime time.Duration
	// SoftMinEvictableIdleTime is a softer threshold that only applies
	// while idleCount exceeds MinIdle.
	SoftMinEvictableIdleTime time.Duration
	// Abandoned enables abandonment detection when non-nil.
	Abandoned *AbandonedConfig
	// OnSwallowedError receives errors the pool cannot surface to a caller.
	OnSwallowedError SwallowedErrorListener
}

// Option configures a Config.
type Option func(*Config)

// defaultConfig returns a Config holding the default value of every tunable.
func defaultConfig() *Config {
	return &Config{
		MaxTotal:                 -1,
		MaxIdle:                  8,
		MinIdle:                  0,
		BlockWhenExhausted:       true,
		MaxWait:                  -1,
		LIFO:                     true,
		TimeBetweenEvictionRuns:  -1,
		NumTestsPerEvictionRun:   3,
		MinEvictableIdleTime:     30 * time.Minute,
		SoftMinEvictableIdleTime: -1,
	}
}

// NewConfig builds a Config from its defaults plus the given Options.
func NewConfig(opts ...Option) *Config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithMaxTotal sets the cap on live instances; negative means unlimited.
func WithMaxTotal(n int) Option {
	return func(c *Config) { c.MaxTotal = n }
}

// WithMaxIdle sets the cap on the idle deque size.
func WithMaxIdle(n int) Option {
	return func(c *Config) { c.MaxIdle = n }
}

// WithMinIdle sets the level maintenance refills the idle deque to.
func WithMinIdle(n int) Option {
	return func(c *Config) { c.MinIdle = n }
}

// WithBlockWhenExhausted toggles whether borrow waits when exhausted.
func WithBlockWhenExhausted(block bool) Option {
	return func(c *Config) { c.BlockWhenExhausted = block }
}

// WithMaxWait sets the default borrow wait; negative waits forever.
func WithMaxWait(d time.Duration) Option {
	return func(c *Config) { c.MaxWait = d }
}

// WithLIFO selects LIFO (true) or FIFO (false) borrow order.
func WithLIFO(lifo bool) Option {
	return func(c *Config) { c.LIFO = lifo }
}

// WithTestOnCreate enables validation of freshly created instances.
func WithTestOnCreate(enabled bool) Option {
	return func(c *Config) { c.TestOnCreate = enabled }
}

// WithTestOnBorrow enables validation of instances popped from idle.
func WithTestOnBorrow(enabled bool) Option {
	return func(c *Config) { c.TestOnBorrow = enabled }
}

// WithTestOnReturn enables validation of instances on return.
func WithTestOnReturn(enabled bool) Option {
	return func(c *Config) { c.TestOnReturn = enabled }
}

// WithTestWhileIdle enables validation of idle instances during eviction.
func WithTestWhileIdle(enabled bool) Option {
	return func(c *Config) { c.TestWhileIdle = enabled }
}

// WithTimeBetweenEvictionRuns sets the evictor tick interval.
func WithTimeBetweenEvictionRuns(d time.Duration) Option {
	return func(c *Config) { c.TimeBetweenEvictionRuns = d }
}

// WithNumTestsPerEvictionRun bounds the size of each eviction sweep.
func WithNumTestsPerEvictionRun(n int) Option {
	return func(c *Config) { c.NumTestsPerEvictionRun = n }
}

// WithMinEvictableIdleTime sets the hard idle-time eviction threshold.
func WithMinEvictableIdleTime(d time.Duration) Option {
	return func(c *Config) { c.MinEvictableIdleTime = d }
}

// WithSoftMinEvictableIdleTime sets the soft idle-time eviction threshold.
func WithSoftMinEvictableIdleTime(d time.Duration) Option {
	return func(c *Config) { c.SoftMinEvictableIdleTime = d }
}

// WithAbandonedConfig enables abandonment detection.
func WithAbandonedConfig(ac *AbandonedConfig) Option {
	return func(c *Config) { c.Abandoned = ac }
}

// WithSwallowedErrorListener registers a callback for errors the pool
// cannot surface to a caller (destroy/passivate failures in the background).
func WithSwallowedErrorListener(l SwallowedErrorListener) Option {
	return func(c *Config) { c.OnSwallowedError = l }
}
