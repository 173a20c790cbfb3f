package trayitem

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// shutdownGrace is how long the engine waits after the last item is closed
// before tearing down the worker. The delay absorbs trailing cleanup traffic
// from items that were just destroyed.
const shutdownGrace = 100 * time.Millisecond

type engineState int

const (
	engineCreated engineState = iota
	engineRunning
	engineStopping
	engineStopped
)

// task is an ephemeral unit of work submitted to the engine. A nil done
// channel marks a fire-and-forget task.
type task struct {
	fn   func() error
	done chan error
}

// Engine owns the single worker goroutine on which all bus-exported state of
// this package lives. Items and menus never touch their state directly:
// every operation is marshaled onto the worker via [Engine.RunSync] or
// [Engine.RunAsync], so concurrent callers observe linearized updates.
//
// One engine is constructed per process and passed to every [Item]. It keeps
// a count of live items and stops itself shortly after the last one is
// closed.
type Engine struct {
	log zerolog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	state engineState
	queue []*task

	started chan struct{}
	exited  chan struct{}

	// workerID is the goroutine id of the worker, recorded once the loop is
	// up. RunSync compares against it to execute inline instead of
	// deadlocking when called from a task already running on the worker.
	workerID uint64

	sessions  int
	stopTimer *time.Timer
}

type EngineOption func(*Engine)

// WithEngineLogger sets the logger used for task failures and worker
// lifecycle events. By default nothing is logged.
func WithEngineLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine returns a new [Engine]. The worker is not running until
// [Engine.Start] is called.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		log:     zerolog.Nop(),
		started: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start spawns the worker goroutine and blocks until it is ready to accept
// tasks. Calling Start on a running engine is a no-op. A stopped engine
// cannot be restarted.
func (e *Engine) Start() error {
	e.mu.Lock()
	switch e.state {
	case engineRunning:
		e.mu.Unlock()
		return nil
	case engineStopping, engineStopped:
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.state = engineRunning
	e.mu.Unlock()

	go e.run()
	<-e.started

	return nil
}

// Stop requests the worker to terminate after draining currently queued
// tasks, then waits for it to exit. Stop is safe to call concurrently with
// in-flight [Engine.RunSync] calls: those either complete or fail with
// [ErrEngineStopped], they never hang.
func (e *Engine) Stop() {
	e.mu.Lock()
	switch e.state {
	case engineCreated, engineStopped:
		e.state = engineStopped
		e.mu.Unlock()
		return
	case engineRunning:
		e.state = engineStopping
		e.cond.Broadcast()
	}
	e.mu.Unlock()

	<-e.exited
}

// RunSync executes fn on the worker and returns its result. When called
// from the worker itself, fn runs inline; otherwise the calling goroutine
// blocks until the worker has executed it. A panic inside fn is recovered
// at the worker boundary and reported as an error, never rethrown into the
// caller.
func (e *Engine) RunSync(fn func() error) error {
	e.mu.Lock()
	if (e.state == engineRunning || e.state == engineStopping) && e.workerID == goid() {
		e.mu.Unlock()
		return e.execute(fn)
	}

	t := &task{fn: fn, done: make(chan error, 1)}
	if err := e.enqueueLocked(t); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	select {
	case err := <-t.done:
		return err
	case <-e.exited:
		// The worker may have completed the task just before exiting.
		select {
		case err := <-t.done:
			return err
		default:
			return ErrEngineStopped
		}
	}
}

// RunAsync enqueues fn for execution on the worker and returns immediately.
// Tasks submitted from a single goroutine execute in submission order.
// Failures are logged, not reported back.
func (e *Engine) RunAsync(fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.enqueueLocked(&task{fn: func() error { fn(); return nil }})
}

func (e *Engine) enqueueLocked(t *task) error {
	switch e.state {
	case engineCreated:
		return ErrEngineNotStarted
	case engineStopping, engineStopped:
		return ErrEngineStopped
	}

	e.queue = append(e.queue, t)
	e.cond.Signal()

	return nil
}

func (e *Engine) run() {
	// All protocol state, including the private bus connections of items,
	// must only ever be touched from this goroutine. Pin it to an OS thread
	// for the lifetime of the loop.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.mu.Lock()
	e.workerID = goid()
	e.mu.Unlock()
	close(e.started)

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Any("panic", r).Msg("engine worker crashed")
		}

		// Release blocked callers whose tasks will never run. Without this
		// a worker crash would strand them forever.
		e.mu.Lock()
		e.state = engineStopped
		pending := e.queue
		e.queue = nil
		e.mu.Unlock()

		for _, t := range pending {
			if t.done != nil {
				t.done <- ErrEngineStopped
			}
		}

		close(e.exited)
	}()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && e.state == engineRunning {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			// Stop was requested and the queue is drained.
			e.mu.Unlock()
			return
		}
		t := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		err := e.execute(t.fn)
		if t.done != nil {
			t.done <- err
		} else if err != nil {
			e.log.Error().Err(err).Msg("async task failed")
		}
	}
}

// execute runs fn, converting a panic into an error at the worker boundary.
func (e *Engine) execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Any("panic", r).Msg("task panicked on engine worker")
			err = fmt.Errorf("trayitem: task panicked: %v", r)
		}
	}()

	return fn()
}

// retain records a live item.
func (e *Engine) retain() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions++
	if e.stopTimer != nil {
		e.stopTimer.Stop()
		e.stopTimer = nil
	}
}

// release records that an item was closed. Once the count reaches zero the
// worker is torn down after [shutdownGrace], unless a new item appears in
// the meantime.
func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions > 0 {
		e.sessions--
	}
	if e.sessions != 0 || e.state != engineRunning || e.stopTimer != nil {
		return
	}

	e.stopTimer = time.AfterFunc(shutdownGrace, func() {
		e.mu.Lock()
		idle := e.sessions == 0
		e.mu.Unlock()

		if idle {
			e.Stop()
		}
	})
}

// goid returns the id of the calling goroutine, parsed from the first line
// of its stack trace ("goroutine <id> [running]:").
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}

	return id
}
