package pool

import (
	"sync"
	"sync/atomic"

	"oss.nandlabs.io/objpool/lifecycle"
)

// poolComponent adapts a Pool to lifecycle.Component so it can be
// registered with a lifecycle.ComponentManager alongside other services in
// a process (e.g. a data-access layer that owns several connection pools).
type poolComponent[T any] struct {
	id    string
	pool  *Pool[T]
	state atomic.Int32
	once  sync.Once
}

// AsComponent wraps p as a lifecycle.Component identified by id. Start
// pre-fills the idle deque to Config.MinIdle; Stop calls Close. State
// reports the last transition made through this component's Start/Stop
// (Stopped until Start is called); closing the pool directly does not
// change it.
func (p *Pool[T]) AsComponent(id string) lifecycle.Component {
	c := &poolComponent[T]{id: id, pool: p}
	c.state.Store(int32(lifecycle.Stopped))
	return c
}

func (c *poolComponent[T]) Id() string {
	return c.id
}

func (c *poolComponent[T]) OnChange(prevState, newState lifecycle.ComponentState) {
	logger.InfoF("pool component %q: %d -> %d", c.id, prevState, newState)
}

func (c *poolComponent[T]) Start() (err error) {
	prev := lifecycle.ComponentState(c.state.Swap(int32(lifecycle.Starting)))
	c.OnChange(prev, lifecycle.Starting)

	c.pool.ensureIdle(c.pool.config.MinIdle, true)

	c.state.Store(int32(lifecycle.Running))
	c.OnChange(lifecycle.Starting, lifecycle.Running)
	return nil
}

func (c *poolComponent[T]) Stop() (err error) {
	prev := lifecycle.ComponentState(c.state.Swap(int32(lifecycle.Stopping)))
	c.OnChange(prev, lifecycle.Stopping)

	c.once.Do(func() {
		err = c.pool.Close()
	})

	c.state.Store(int32(lifecycle.Stopped))
	c.OnChange(lifecycle.Stopping, lifecycle.Stopped)
	return err
}

func (c *poolComponent[T]) State() lifecycle.ComponentState {
	return lifecycle.ComponentState(c.state.Load())
}
