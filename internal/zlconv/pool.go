package zlconv

import (
	"runtime"
	"sync"
)

// WorkerPool schedules a named task at a given real-time priority. The
// core dispatches each FFT convolver's process() through this
// interface so a concrete scheduling primitive stays swappable, and so
// the engine can be tested against a synchronous stub.
type WorkerPool interface {
	// Register binds fn to a task running at priority (higher-index
	// partitions are registered at strictly lower priority by the
	// caller, since their deadline sits further away). Returns an
	// opaque task id used with Schedule.
	Register(name string, priority int, fn func()) (int, error)

	// Schedule marks a task runnable. Scheduling an already-runnable
	// task is idempotent: the primitive is expected to coalesce
	// redundant requests rather than queue them twice.
	Schedule(taskID int)

	// Close releases every registered task's resources.
	Close() error
}

// goroutinePool is the default WorkerPool: one long-lived goroutine per
// registered task, parked on a single-slot wake channel so Schedule's
// coalescing requirement falls out of a non-blocking channel send. Each
// worker goroutine is pinned to its OS thread and given a best-effort
// priority hint, mirroring the per-partition real-time thread the
// upstream scheduler binds through its native worker-pool primitive.
type goroutinePool struct {
	mu    sync.Mutex
	tasks []*poolTask
	stop  chan struct{}
	wg    sync.WaitGroup
}

type poolTask struct {
	name     string
	priority int
	fn       func()
	wake     chan struct{}
}

func newGoroutinePool() (*goroutinePool, error) {
	return &goroutinePool{stop: make(chan struct{})}, nil
}

func (p *goroutinePool) Register(name string, priority int, fn func()) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := &poolTask{name: name, priority: priority, fn: fn, wake: make(chan struct{}, 1)}
	p.tasks = append(p.tasks, t)
	id := len(p.tasks) - 1

	p.wg.Add(1)
	go p.run(t)

	return id, nil
}

func (p *goroutinePool) run(t *poolTask) {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	setThreadPriority(t.priority)

	for {
		select {
		case <-t.wake:
			t.fn()
		case <-p.stop:
			return
		}
	}
}

func (p *goroutinePool) Schedule(taskID int) {
	p.mu.Lock()
	t := p.tasks[taskID]
	p.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
		// already runnable; the primitive coalesces
	}
}

func (p *goroutinePool) Close() error {
	close(p.stop)
	p.wg.Wait()
	return nil
}

// SyncPool runs each scheduled task synchronously on the calling
// goroutine. It makes worker scheduling deterministic for tests, per
// the design's own instruction to test against a synchronous stub
// rather than pin real threads.
type SyncPool struct {
	mu    sync.Mutex
	tasks []func()
}

// NewSyncPool creates a synchronous WorkerPool stub.
func NewSyncPool() *SyncPool {
	return &SyncPool{}
}

func (p *SyncPool) Register(name string, priority int, fn func()) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, fn)
	return len(p.tasks) - 1, nil
}

func (p *SyncPool) Schedule(taskID int) {
	p.mu.Lock()
	fn := p.tasks[taskID]
	p.mu.Unlock()
	fn()
}

func (p *SyncPool) Close() error { return nil }
