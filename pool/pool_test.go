package pool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"oss.nandlabs.io/objpool/testing/assert"
)

var errCreationFailed = errors.New("creation failed")

var nextID atomic.Int64

func uniqueIntFactory() *FuncFactory[int] {
	return &FuncFactory[int]{
		MakeFunc: func() (int, error) {
			return int(nextID.Add(1)), nil
		},
		DestroyFunc: func(int) error { return nil },
	}
}

func destroyTrackingFactory(destroyed *[]int, mu *sync.Mutex) *FuncFactory[int] {
	return &FuncFactory[int]{
		MakeFunc: func() (int, error) {
			return int(nextID.Add(1)), nil
		},
		DestroyFunc: func(v int) error {
			mu.Lock()
			*destroyed = append(*destroyed, v)
			mu.Unlock()
			return nil
		},
	}
}

func TestBorrow_FactoryMakeFailureRollsBackCreateCount(t *testing.T) {
	factory := &FuncFactory[int]{
		MakeFunc: func() (int, error) {
			return 0, errCreationFailed
		},
		DestroyFunc: func(int) error { return nil },
	}

	p, _ := NewPool[int](factory, nil)
	defer p.Close()

	_, err := p.Borrow(context.Background())
	assert.True(t, errors.Is(err, errCreationFailed))
	assert.Equal(t, 0, p.NumActive())
	assert.Equal(t, 0, p.NumIdle())
}

func TestNewPool_NilFactory(t *testing.T) {
	_, err := NewPool[int](nil, nil)
	assert.Error(t, err)
}

func TestNewPool_DefaultConfig(t *testing.T) {
	p, err := NewPool[int](uniqueIntFactory(), nil)
	assert.NoError(t, err)
	assert.NotNil(t, p)
	assert.Equal(t, 0, p.NumIdle())
	assert.Equal(t, 0, p.NumActive())
}

// S1: LIFO reuse.
func TestBorrow_LIFOReuse(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithMaxTotal(2),
		WithLIFO(true),
	))
	defer p.Close()

	b1, err := p.Borrow(context.Background())
	assert.NoError(t, err)
	b2, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	assert.NoError(t, p.Return(b1))

	b3, err := p.Borrow(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, b1, b3)

	assert.Equal(t, 0, p.NumIdle())
	assert.Equal(t, 2, p.NumActive())
	_ = b2
}

// S2: FIFO fairness under exhaustion.
func TestBorrow_FIFOFairnessUnderExhaustion(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithMaxTotal(1),
		WithBlockWhenExhausted(true),
		WithMaxWait(-1),
	))
	defer p.Close()

	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	order := make(chan string, 2)
	var bWaiting sync.WaitGroup
	bWaiting.Add(1)

	go func() {
		bWaiting.Done()
		if _, err := p.Borrow(context.Background()); err == nil {
			order <- "B"
		}
	}()
	bWaiting.Wait()
	time.Sleep(50 * time.Millisecond) // let B register as a waiter first

	go func() {
		if _, err := p.Borrow(context.Background()); err == nil {
			order <- "C"
		}
	}()
	time.Sleep(50 * time.Millisecond)

	assert.NoError(t, p.Return(v))

	first := <-order
	assert.Equal(t, "B", first)
}

// S3: hard eviction.
func TestEvictor_HardEviction(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex

	p, _ := NewPool[int](destroyTrackingFactory(&destroyed, &mu), NewConfig(
		WithMinEvictableIdleTime(100*time.Millisecond),
		WithTimeBetweenEvictionRuns(50*time.Millisecond),
		WithMinIdle(0),
	))
	defer p.Close()

	assert.NoError(t, p.AddObject())
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, 0, p.NumIdle())
	mu.Lock()
	n := len(destroyed)
	mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestEvictorStatus_TracksTicksAndPause(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex

	p, _ := NewPool[int](destroyTrackingFactory(&destroyed, &mu), NewConfig(
		WithMinEvictableIdleTime(10*time.Millisecond),
		WithTimeBetweenEvictionRuns(20*time.Millisecond),
		WithMinIdle(0),
	))
	defer p.Close()

	assert.NoError(t, p.AddObject())
	time.Sleep(150 * time.Millisecond)

	info, ok := p.EvictorStatus()
	assert.True(t, ok)
	assert.True(t, info.RunCount > 0)

	assert.NoError(t, p.PauseEvictor())
	info, ok = p.EvictorStatus()
	assert.True(t, ok)
	assert.Equal(t, "paused", info.Status.String())

	runsAtPause := info.RunCount
	time.Sleep(100 * time.Millisecond)
	info, ok = p.EvictorStatus()
	assert.True(t, ok)
	assert.Equal(t, runsAtPause, info.RunCount)

	assert.NoError(t, p.ResumeEvictor())
	time.Sleep(100 * time.Millisecond)
	info, ok = p.EvictorStatus()
	assert.True(t, ok)
	assert.True(t, info.RunCount > runsAtPause)
}

func TestEvictorStatus_UnarmedReturnsFalse(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(WithTimeBetweenEvictionRuns(0)))
	defer p.Close()

	_, ok := p.EvictorStatus()
	assert.False(t, ok)
	assert.NoError(t, p.PauseEvictor())
	assert.NoError(t, p.ResumeEvictor())
}

// S4: soft eviction respects MinIdle.
func TestEvictor_SoftEvictionRespectsMinIdle(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex

	p, _ := NewPool[int](destroyTrackingFactory(&destroyed, &mu), NewConfig(
		WithSoftMinEvictableIdleTime(50*time.Millisecond),
		WithMinEvictableIdleTime(-1),
		WithTimeBetweenEvictionRuns(30*time.Millisecond),
		WithMinIdle(2),
	))
	defer p.Close()

	for i := 0; i < 3; i++ {
		assert.NoError(t, p.AddObject())
	}
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, 2, p.NumIdle())
	mu.Lock()
	n := len(destroyed)
	mu.Unlock()
	assert.Equal(t, 1, n)
}

// S5: testOnBorrow failure.
func TestBorrow_TestOnBorrowFailureReplacesInstance(t *testing.T) {
	var calls atomic.Int32
	factory := uniqueIntFactory()
	factory.ValidateFunc = func(int) bool {
		return calls.Add(1) != 1
	}

	p, _ := NewPool[int](factory, NewConfig(WithTestOnBorrow(true)))
	defer p.Close()

	assert.NoError(t, p.AddObject())
	assert.Equal(t, 1, p.NumIdle())

	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, v)

	assert.Equal(t, int64(1), p.Stats().DestroyedByBorrowValidation)
}

// S6: abandonment detection.
func TestAbandonmentDetector_ReclaimsAndReturnIsNoOp(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithTimeBetweenEvictionRuns(30*time.Millisecond),
		WithAbandonedConfig(&AbandonedConfig{
			RemoveAbandonedOnMaintenance: true,
			RemoveAbandonedTimeout:       100 * time.Millisecond,
		}),
	))
	defer p.Close()

	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, int64(1), p.Stats().Abandoned)

	assert.NoError(t, p.Return(v))
}

func TestReturn_DoubleReturnFails(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), nil)
	defer p.Close()

	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	assert.NoError(t, p.Return(v))
	err = p.Return(v)
	assert.True(t, errors.Is(err, ErrMisuse))
}

func TestReturn_UnknownValueWithoutAbandonment(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), nil)
	defer p.Close()

	err := p.Return(999999)
	assert.True(t, errors.Is(err, ErrNotOwned))
}

func TestBorrow_ExhaustedNonBlocking(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithMaxTotal(1),
		WithBlockWhenExhausted(false),
	))
	defer p.Close()

	_, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	_, err = p.Borrow(context.Background())
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestBorrow_TimeoutWhenBlocked(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithMaxTotal(1),
		WithBlockWhenExhausted(true),
		WithMaxWait(100*time.Millisecond),
	))
	defer p.Close()

	_, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	start := time.Now()
	_, err = p.BorrowTimeout(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, elapsed >= 90*time.Millisecond)
}

func TestBorrow_ContextCancellation(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithMaxTotal(1),
		WithBlockWhenExhausted(true),
		WithMaxWait(-1),
	))
	defer p.Close()

	_, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Borrow(ctx)
	assert.Error(t, err)
}

func TestBorrow_AfterClose(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), nil)
	p.Close()

	_, err := p.Borrow(context.Background())
	assert.True(t, errors.Is(err, ErrPoolClosed))
}

func TestClose_Idempotent(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), nil)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestClose_DestroysIdleNotActive(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex

	p, _ := NewPool[int](destroyTrackingFactory(&destroyed, &mu), NewConfig(WithMaxTotal(5)))

	assert.NoError(t, p.AddObject())
	assert.NoError(t, p.AddObject())
	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	assert.NoError(t, p.Close())

	mu.Lock()
	n := len(destroyed)
	mu.Unlock()
	assert.Equal(t, 1, n) // only the idle instance; the borrowed one is untouched
	_ = v
}

func TestAddObject_PlacesPassivatedInstanceInIdle(t *testing.T) {
	var passivated atomic.Int32
	factory := uniqueIntFactory()
	factory.PassivateFunc = func(int) error {
		passivated.Add(1)
		return nil
	}

	p, _ := NewPool[int](factory, nil)
	defer p.Close()

	assert.NoError(t, p.AddObject())
	assert.Equal(t, 1, p.NumIdle())
	assert.Equal(t, int32(1), passivated.Load())
}

func TestInvalidate_DestroysAndForgetsValue(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex

	p, _ := NewPool[int](destroyTrackingFactory(&destroyed, &mu), nil)
	defer p.Close()

	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	assert.NoError(t, p.Invalidate(v))

	mu.Lock()
	n := len(destroyed)
	mu.Unlock()
	assert.Equal(t, 1, n)

	err = p.Return(v)
	assert.True(t, errors.Is(err, ErrNotOwned))
}

func TestClear_DestroysIdleOnly(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex

	p, _ := NewPool[int](destroyTrackingFactory(&destroyed, &mu), NewConfig(WithMaxTotal(5)))
	defer p.Close()

	assert.NoError(t, p.AddObject())
	assert.NoError(t, p.AddObject())
	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	p.Clear()

	assert.Equal(t, 0, p.NumIdle())
	assert.Equal(t, 1, p.NumActive())

	mu.Lock()
	n := len(destroyed)
	mu.Unlock()
	assert.Equal(t, 1, n)
	_ = v
}

func TestMaxIdle_ExcessReturnedInstancesDestroyed(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex

	p, _ := NewPool[int](destroyTrackingFactory(&destroyed, &mu), NewConfig(
		WithMaxTotal(3),
		WithMaxIdle(1),
	))
	defer p.Close()

	v1, err := p.Borrow(context.Background())
	assert.NoError(t, err)
	v2, err := p.Borrow(context.Background())
	assert.NoError(t, err)

	assert.NoError(t, p.Return(v1))
	assert.NoError(t, p.Return(v2))

	assert.Equal(t, 1, p.NumIdle())
	mu.Lock()
	n := len(destroyed)
	mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestStats_TracksActivity(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), nil)
	defer p.Close()

	v, err := p.Borrow(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, p.Return(v))

	st := p.Stats()
	assert.Equal(t, int64(1), st.Created)
	assert.Equal(t, int64(1), st.Borrowed)
	assert.Equal(t, int64(1), st.Returned)
}

func TestSetEvictionPolicy_Custom(t *testing.T) {
	var calls atomic.Int32
	policy := evictAlwaysPolicy{calls: &calls}

	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithTimeBetweenEvictionRuns(30*time.Millisecond),
	))
	defer p.Close()
	p.SetEvictionPolicy(policy)

	assert.NoError(t, p.AddObject())
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 0, p.NumIdle())
	assert.True(t, calls.Load() > 0)
}

type evictAlwaysPolicy struct {
	calls *atomic.Int32
}

func (e evictAlwaysPolicy) Evict(cfg *Config, candidate *PooledObject[int], idleCount int) bool {
	e.calls.Add(1)
	return true
}

func TestAsComponent_StartFillsMinIdle(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(WithMinIdle(2)))
	comp := p.AsComponent("int-pool")

	assert.NoError(t, comp.Start())
	assert.Equal(t, 2, p.NumIdle())

	assert.NoError(t, comp.Stop())
}

func TestConcurrentBorrowReturn(t *testing.T) {
	p, _ := NewPool[int](uniqueIntFactory(), NewConfig(
		WithMaxTotal(10),
		WithBlockWhenExhausted(true),
		WithMaxWait(-1),
	))
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.Borrow(context.Background())
			if err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
			_ = p.Return(v)
		}()
	}
	wg.Wait()

	assert.True(t, p.NumActive() == 0)
	assert.True(t, p.NumIdle() <= 10)
}

func TestLoadConfig_AppliesOverridesAndDefaults(t *testing.T) {
	doc := `
maxTotal: 5
maxIdle: 2
lifo: false
maxWait: 250ms
timeBetweenEvictionRuns: 1s
abandoned:
  removeAbandonedOnBorrow: true
  removeAbandonedTimeout: 2m
`
	cfg, err := LoadConfig(strings.NewReader(doc))
	assert.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxTotal)
	assert.Equal(t, 2, cfg.MaxIdle)
	assert.False(t, cfg.LIFO)
	assert.Equal(t, 250*time.Millisecond, cfg.MaxWait)
	assert.Equal(t, time.Second, cfg.TimeBetweenEvictionRuns)
	assert.NotNil(t, cfg.Abandoned)
	assert.True(t, cfg.Abandoned.RemoveAbandonedOnBorrow)
	assert.Equal(t, 2*time.Minute, cfg.Abandoned.RemoveAbandonedTimeout)

	// fields absent from the document keep package defaults.
	assert.Equal(t, 0, cfg.MinIdle)
	assert.Equal(t, 30*time.Minute, cfg.MinEvictableIdleTime)
}
