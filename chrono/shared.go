package chrono

import "sync"

var (
	sharedMu   sync.Mutex
	sharedInst Scheduler
	sharedRefs int
)

// Acquire returns the process-wide default Scheduler, starting it if this is
// the first caller, and increments its reference count. Callers must pair
// every Acquire with a Release once they no longer need the scheduler.
func Acquire() Scheduler {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedInst == nil {
		sharedInst = New()
		if err := sharedInst.Start(); err != nil {
			logger.ErrorF("chrono: failed to start shared scheduler: %v", err)
		}
	}
	sharedRefs++
	return sharedInst
}

// Release decrements the shared scheduler's reference count, stopping and
// discarding it once the last caller releases it.
func Release() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedInst == nil || sharedRefs == 0 {
		return
	}
	sharedRefs--
	if sharedRefs == 0 {
		_ = sharedInst.Stop()
		sharedInst = nil
	}
}
