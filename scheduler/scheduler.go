// Package scheduler drives a board in fixed iteration batches, aggregates
// finished-pixel records into a monotonic change stream, and reports
// completion and cancellation (spec §4.4). One Scheduler owns one board per
// view, mirroring the teacher's Bus owning one CPU/PPU pair per machine and
// driving them from a single context-cancellable Run loop.
package scheduler

import (
	"context"
	"time"

	"github.com/bdwalton/mbrot/board"
)

// DefaultFlushThresholdBytes is the default cumulative index-byte count
// that forces a flush of the pending change queue (§4.4).
const DefaultFlushThresholdBytes = 4096

// DefaultFlushInterval is the default wall-clock flush cadence (§4.4).
const DefaultFlushInterval = 50 * time.Millisecond

// bytesPerEscaped and bytesPerConverged estimate the outgoing wire size of
// one record of each kind (§4.4 "total byte size of indices").
const (
	bytesPerEscaped   = 8  // one uint64 pixel index
	bytesPerConverged = 32 // index + z_re + z_im (QD-narrowed) + period
)

// Progress is a readable snapshot of the counters exposed to callers
// (§6 "Outbound: progress").
type Progress struct {
	Iter      uint64
	Active    int
	Escaped   int
	Converged int
	Chaotic   int
}

// Scheduler batches a single board's iteration and republishes its finished
// pixels as a monotonic stream of Change records.
type Scheduler struct {
	b               board.Board
	batchSize       uint64
	flushThreshold  int
	flushInterval   time.Duration
	progress        Progress
	pending         board.Change
	pendingBytes    int
	lastFlush       time.Time
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithBatchSize overrides the default batch granularity (§6 "batch_size").
func WithBatchSize(n uint64) Option {
	return func(s *Scheduler) { s.batchSize = n }
}

// WithFlushThreshold overrides the default flush byte threshold.
func WithFlushThreshold(n int) Option {
	return func(s *Scheduler) { s.flushThreshold = n }
}

// WithFlushInterval overrides the default flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.flushInterval = d }
}

// New constructs a Scheduler over b.
func New(b board.Board, opts ...Option) *Scheduler {
	s := &Scheduler{
		b:              b,
		batchSize:      board.DefaultBatchSize,
		flushThreshold: DefaultFlushThresholdBytes,
		flushInterval:  DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Progress returns a snapshot of the current counters.
func (s *Scheduler) Progress() Progress {
	s.progress.Active = s.b.RemainingActive()
	s.progress.Chaotic = s.b.ChaoticSpikeCount()
	return s.progress
}

// Cancel requests prompt termination of the driving loop (§4.4
// "Cancellation"); partial results already emitted are not retracted.
func (s *Scheduler) Cancel() { s.b.Cancel() }

// merge folds ch into the pending accumulator, tagging it with the larger
// of the two iter values so the monotonic-stream invariant holds even
// across aggregated batches (§3 invariants, §8 property 2).
func (s *Scheduler) merge(ch board.Change) {
	if ch.Empty() && ch.Iter <= s.pending.Iter {
		return
	}
	s.pending.Escaped = append(s.pending.Escaped, ch.Escaped...)
	s.pending.Converged = append(s.pending.Converged, ch.Converged...)
	if ch.Iter > s.pending.Iter {
		s.pending.Iter = ch.Iter
	}
	s.pendingBytes += len(ch.Escaped)*bytesPerEscaped + len(ch.Converged)*bytesPerConverged
}

// shouldFlush reports whether the pending queue has grown large enough, or
// enough wall-clock time has passed, to publish it (§4.4 step 4).
func (s *Scheduler) shouldFlush(now time.Time) bool {
	if s.pending.Empty() {
		return false
	}
	return s.pendingBytes >= s.flushThreshold || now.Sub(s.lastFlush) >= s.flushInterval
}

func (s *Scheduler) takePending(now time.Time) board.Change {
	out := s.pending
	s.pending = board.Change{}
	s.pendingBytes = 0
	s.lastFlush = now
	return out
}

// Run drives the board to completion (or cancellation), publishing change
// batches to out. It mirrors the teacher's Bus.Run(ctx): a tight
// context-cancellable loop, ticking the underlying state machine once per
// pass and exiting promptly when ctx is done.
func (s *Scheduler) Run(ctx context.Context) <-chan board.Change {
	out := make(chan board.Change)
	s.lastFlush = time.Now()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if s.b.RemainingActive() == 0 {
				if !s.pending.Empty() {
					select {
					case out <- s.takePending(time.Now()):
					case <-ctx.Done():
						return
					}
				}
				return
			}

			ch := s.b.IterateBatch(s.batchSize)
			s.progress.Iter = ch.Iter
			s.progress.Escaped += len(ch.Escaped)
			s.progress.Converged += len(ch.Converged)
			s.merge(ch)

			now := time.Now()
			if s.shouldFlush(now) {
				select {
				case out <- s.takePending(now):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Step advances the scheduler synchronously by batches batches (or until
// completion), returning the aggregated change over that span
// (§6 "Inbound: runtime control", "step(batches)").
func (s *Scheduler) Step(batches int) board.Change {
	agg := board.Change{}
	for i := 0; i < batches && s.b.RemainingActive() > 0; i++ {
		ch := s.b.IterateBatch(s.batchSize)
		s.progress.Iter = ch.Iter
		s.progress.Escaped += len(ch.Escaped)
		s.progress.Converged += len(ch.Converged)
		agg.Escaped = append(agg.Escaped, ch.Escaped...)
		agg.Converged = append(agg.Converged, ch.Converged...)
		if ch.Iter > agg.Iter {
			agg.Iter = ch.Iter
		}
	}
	return agg
}
