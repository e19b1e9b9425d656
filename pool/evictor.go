package pool

import (
	"context"
	"math"

	"oss.nandlabs.io/objpool/chrono"
	"oss.nandlabs.io/objpool/collections"
)

// armEvictor acquires the process-wide shared scheduler and registers the
// eviction tick as a recurring job. Called at construction time when
// TimeBetweenEvictionRuns > 0; a pool built without eviction never touches
// chrono at all.
func (p *Pool[T]) armEvictor() {
	sched := chrono.Acquire()
	p.evictMu.Lock()
	p.evictorArmed = true
	p.evictMu.Unlock()

	err := sched.AddIntervalJob(p.schedulerJob, func(ctx context.Context) error {
		p.evictionTick()
		return nil
	}, p.config.TimeBetweenEvictionRuns)
	if err != nil {
		logger.WarnF("pool: failed to schedule evictor: %v", err)
		chrono.Release()
		p.evictMu.Lock()
		p.evictorArmed = false
		p.evictMu.Unlock()
	}
}

// disarmEvictor unregisters the eviction job and releases the shared
// scheduler reference. It is a no-op if eviction was never armed.
func (p *Pool[T]) disarmEvictor() {
	p.evictMu.Lock()
	armed := p.evictorArmed
	p.evictorArmed = false
	p.evictMu.Unlock()

	if !armed {
		return
	}
	sched := chrono.Acquire() // transient reference just to reach RemoveJob
	_ = sched.RemoveJob(p.schedulerJob)
	chrono.Release() // balances the transient Acquire above
	chrono.Release() // balances the Acquire in armEvictor
}

// EvictorStatus reports the background evictor's scheduled job as tracked by
// chrono: last/next run time and run/error counts. Returns false if the
// evictor was never armed (TimeBetweenEvictionRuns <= 0) or has since been
// disarmed by Close.
func (p *Pool[T]) EvictorStatus() (*chrono.JobInfo, bool) {
	p.evictMu.Lock()
	armed := p.evictorArmed
	p.evictMu.Unlock()
	if !armed {
		return nil, false
	}

	sched := chrono.Acquire() // transient reference just to reach GetJob
	defer chrono.Release()
	info, err := sched.GetJob(p.schedulerJob)
	if err != nil {
		return nil, false
	}
	return info, true
}

// PauseEvictor suspends the background evictor without unregistering it or
// releasing the shared scheduler reference; ResumeEvictor reverses it. A
// no-op if the evictor was never armed.
func (p *Pool[T]) PauseEvictor() error {
	p.evictMu.Lock()
	armed := p.evictorArmed
	p.evictMu.Unlock()
	if !armed {
		return nil
	}

	sched := chrono.Acquire()
	defer chrono.Release()
	return sched.PauseJob(p.schedulerJob)
}

// ResumeEvictor reverses a prior PauseEvictor. A no-op if the evictor was
// never armed.
func (p *Pool[T]) ResumeEvictor() error {
	p.evictMu.Lock()
	armed := p.evictorArmed
	p.evictMu.Unlock()
	if !armed {
		return nil
	}

	sched := chrono.Acquire()
	defer chrono.Release()
	return sched.ResumeJob(p.schedulerJob)
}

// numEvictionTests computes how many idle candidates one tick inspects, per
// Config.NumTestsPerEvictionRun: a positive value is a literal cap (bounded
// by the current idle size); a negative -k means ceil(idleSize / k).
func (p *Pool[T]) numEvictionTests(idleSize int) int {
	cfg := p.config.NumTestsPerEvictionRun
	if cfg >= 0 {
		if cfg < idleSize {
			return cfg
		}
		return idleSize
	}
	k := -cfg
	if k == 0 {
		return idleSize
	}
	return int(math.Ceil(float64(idleSize) / float64(k)))
}

func (p *Pool[T]) nextEvictIterator() collections.Iterator[*PooledObject[T]] {
	if p.config.LIFO {
		return p.idle.DescendingIterator()
	}
	return p.idle.Iterator()
}

// evictionTick runs one pass of the maintenance sweep: test a bounded
// slice of idle candidates, apply the
// eviction policy (and TestWhileIdle validation), run the abandonment
// detector if configured, then refill towards MinIdle.
func (p *Pool[T]) evictionTick() {
	if p.closed.Load() {
		return
	}

	p.evictMu.Lock()
	defer p.evictMu.Unlock()

	idleCount := p.idle.Len()
	n := p.numEvictionTests(idleCount)
	remaining := idleCount

	if p.evictIter == nil {
		p.evictIter = p.nextEvictIterator()
	}

	attempts := 0
	maxAttempts := n*2 + idleCount + 1 // bound against starting at an all-contended slice

	for tested := 0; tested < n && attempts < maxAttempts; attempts++ {
		if !p.evictIter.HasNext() {
			p.evictIter = p.nextEvictIterator()
			if !p.evictIter.HasNext() {
				break
			}
		}
		candidate := p.evictIter.Next()

		if !candidate.StartEvictionTest() {
			// Raced with a borrow or another pass; doesn't count towards
			// this tick's budget.
			continue
		}
		tested++

		if p.evictionPolicy().Evict(p.config, candidate, remaining) {
			p.destroy(candidate)
			p.stats.destroyedByEvictor.Add(1)
			remaining--
			continue
		}

		if !p.config.TestWhileIdle {
			candidate.EndEvictionTest(p.idle)
			continue
		}

		if !candidate.BeginIdleValidation() {
			continue
		}

		v := candidate.Value()
		ok := p.factory.Activate(v) == nil && p.factory.Validate(v)
		if ok {
			if err := p.factory.Passivate(v); err != nil {
				ok = false
			}
		}
		if !ok {
			p.destroy(candidate)
			p.stats.destroyedByEvictor.Add(1)
			continue
		}
		candidate.EndIdleValidation(p.idle)
	}

	if ac := p.config.Abandoned; ac != nil && ac.RemoveAbandonedOnMaintenance {
		p.reclaimAbandoned(ac.RemoveAbandonedTimeout)
	}

	p.ensureIdle(p.config.MinIdle, true)
}
