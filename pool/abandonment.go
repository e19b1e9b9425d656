package pool

import "time"

// reclaimAbandoned scans the all-objects index for instances that have been
// ALLOCATED for at least timeout without a subsequent borrow marking them
// used again, and destroys them. It is invoked either opportunistically from
// Borrow (when the pool looks close to starvation) or from every evictor
// tick, per Config.Abandoned.
func (p *Pool[T]) reclaimAbandoned(timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	var abandoned []*PooledObject[T]
	p.all.Range(func(_, value any) bool {
		w := value.(*PooledObject[T])
		if w.State() == StateAllocated && w.IdleSince() >= timeout {
			if w.MarkAbandoned() {
				abandoned = append(abandoned, w)
			}
		}
		return true
	})

	for _, w := range abandoned {
		logger.WarnF("pool: reclaiming abandoned instance held since %s", w.CreateTime())
		p.destroy(w)
		p.stats.abandoned.Add(1)
	}
}
