package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bdwalton/mbrot/board"
	"github.com/bdwalton/mbrot/qd"
)

func tinySpec() board.ViewportSpec {
	return board.ViewportSpec{
		Width: 8, Height: 8,
		CRe: qd.NewQD(-0.5), CIm: qd.NewQD(0),
		Size: qd.NewQD(3), Exponent: 2, MaxIter: 200,
	}
}

// TestRunEmitsMonotonicNonDuplicateChanges exercises §8 property 2: Iter
// tags never decrease across published batches, and no pixel index appears
// in more than one Change.
func TestRunEmitsMonotonicNonDuplicateChanges(t *testing.T) {
	b := board.NewDirectF64Board(tinySpec())
	s := New(b, WithBatchSize(5), WithFlushThreshold(1), WithFlushInterval(time.Nanosecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	seen := map[int]bool{}
	lastIter := uint64(0)
	total := 0
	for ch := range s.Run(ctx) {
		if ch.Iter < lastIter {
			t.Fatalf("iter went backwards: %d after %d", ch.Iter, lastIter)
		}
		lastIter = ch.Iter
		for _, idx := range ch.Escaped {
			if seen[idx] {
				t.Fatalf("pixel %d reported finished twice", idx)
			}
			seen[idx] = true
			total++
		}
		for _, cp := range ch.Converged {
			if seen[cp.Index] {
				t.Fatalf("pixel %d reported finished twice", cp.Index)
			}
			seen[cp.Index] = true
			total++
		}
	}

	n := tinySpec().N()
	if total != n {
		t.Errorf("scheduler reported %d finished pixels, want %d", total, n)
	}
	if s.Progress().Active != 0 {
		t.Errorf("expected 0 active pixels at completion, got %d", s.Progress().Active)
	}
}

// TestCancelStopsRunPromptly exercises §4.4 cancellation: once the context
// is cancelled, Run must close its channel without hanging.
func TestCancelStopsRunPromptly(t *testing.T) {
	spec := board.ViewportSpec{
		Width: 200, Height: 200,
		CRe: qd.NewQD(-0.5), CIm: qd.NewQD(0),
		Size: qd.NewQD(3), Exponent: 2, MaxIter: 1_000_000,
	}
	b := board.NewDirectF64Board(spec)
	s := New(b, WithBatchSize(1))

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Run(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestStepAdvancesWithoutChannel(t *testing.T) {
	b := board.NewDirectF64Board(tinySpec())
	s := New(b, WithBatchSize(10))

	n := tinySpec().N()
	total := 0
	for s.Progress().Active > 0 {
		ch := s.Step(1)
		total += len(ch.Escaped) + len(ch.Converged)
	}
	if total != n {
		t.Errorf("Step loop accounted for %d pixels, want %d", total, n)
	}
}
