package scheduler

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/bdwalton/mbrot/board"
)

// DefaultMaxConcurrentBoards bounds how many boards a Pool will drive at
// once (§4.4 "Concurrency"; DOMAIN STACK).
const DefaultMaxConcurrentBoards = 4

// Pool runs several schedulers concurrently, capping how many boards
// advance at the same instant with a weighted semaphore. This matters when
// a caller is paging several viewports (e.g. a minimap and a detail view)
// against one process's CPU and GPU budget.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool constructs a Pool allowing at most maxConcurrent boards to run
// IterateBatch simultaneously (0 selects DefaultMaxConcurrentBoards).
func NewPool(maxConcurrent int64) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBoards
	}
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Drive runs s to completion under the pool's concurrency cap, forwarding
// every published Change to fn. It blocks until s finishes, ctx is
// cancelled, or the semaphore acquire fails.
func (p *Pool) Drive(ctx context.Context, s *Scheduler, fn func(board.Change)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	for ch := range s.Run(ctx) {
		fn(ch)
	}
	return ctx.Err()
}
