// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/thejerf/suture/v4"
	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/historian/internal/logging"
)

// Task is one unit of background work.
type Task struct {
	// Name identifies the task in logs.
	Name string

	// Key serializes tasks that share it when the pool is configured to.
	Key string

	Run func(ctx context.Context) error
}

// TaskRunner accepts tasks for background execution.
type TaskRunner interface {
	Submit(task Task) error
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// MaxConcurrent caps running tasks. 0 means unlimited.
	MaxConcurrent int

	// SerializeByKey runs tasks with the same Key one at a time.
	SerializeByKey bool
}

// Pool runs submitted tasks on their own goroutines under the context of
// Serve. It implements suture.Service. Tasks submitted while the pool is
// not serving are buffered and started on the next Serve.
type Pool struct {
	sem   *semaphore.Weighted
	locks *keyedLock

	mu      sync.Mutex
	ctx     context.Context
	pending []Task
	closed  bool
	wg      sync.WaitGroup
}

// NewPool creates a pool.
func NewPool(cfg PoolConfig) *Pool {
	p := &Pool{}
	if cfg.MaxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.SerializeByKey {
		p.locks = newKeyedLock()
	}
	return p
}

// Submit implements TaskRunner.
func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return invalidArgument("task %q has no run function", task.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.ctx == nil {
		p.pending = append(p.pending, task)
		return nil
	}
	p.start(p.ctx, task)
	return nil
}

// start must be called with mu held.
func (p *Pool) start(ctx context.Context, task Task) {
	p.wg.Add(1)
	go p.run(ctx, task)
}

// Serve implements suture.Service. It returns after ctx is done and every
// running task has returned.
func (p *Pool) Serve(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return suture.ErrDoNotRestart
	}
	p.ctx = ctx
	pending := p.pending
	p.pending = nil
	for _, task := range pending {
		p.start(ctx, task)
	}
	p.mu.Unlock()

	logging.Info().Int("buffered", len(pending)).Msg("Import worker pool started")

	<-ctx.Done()

	p.mu.Lock()
	p.ctx = nil
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info().Msg("Import worker pool stopped")
	return ctx.Err()
}

// Close rejects further submissions and discards buffered tasks. Running
// tasks are not interrupted.
func (p *Pool) Close() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	dropped := len(p.pending)
	p.pending = nil
	return dropped
}

// Pending returns the number of buffered tasks.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Pool) String() string {
	return "import-worker-pool"
}

func (p *Pool) run(ctx context.Context, task Task) {
	defer p.wg.Done()

	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)

	if p.locks != nil && task.Key != "" {
		unlock, err := p.locks.Lock(ctx, task.Key)
		if err != nil {
			log.Warn().Err(err).Str("task", task.Name).Msg("Task abandoned while waiting for key")
			p.runDetached(ctx, task, err)
			return
		}
		defer unlock()
	}

	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Str("task", task.Name).Msg("Task abandoned while waiting for a worker slot")
			p.runDetached(ctx, task, err)
			return
		}
		defer p.sem.Release(1)
	}

	if err := safeRun(ctx, task); err != nil {
		log.Error().Err(err).Str("task", task.Name).Msg("Background task failed")
	}
}

// runDetached hands a task that never got to start an already cancelled
// context so it can record its own failure.
func (p *Pool) runDetached(ctx context.Context, task Task, cause error) {
	cancelled, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	cancel(cause)
	if err := safeRun(cancelled, task); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("task", task.Name).Msg("Abandoned task returned")
	}
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Str("task", task.Name).Str("stack", string(debug.Stack())).
				Msg("Background task panicked")
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	return task.Run(ctx)
}
