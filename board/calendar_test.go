package board

import "testing"

func TestFigurePeriodEarlyCheckpoints(t *testing.T) {
	for _, i := range []uint64{1, 2, 3, 5, 8, 13, 21, 34} {
		if got := figurePeriod(i); got != 1 {
			t.Errorf("figurePeriod(%d) = %d, want 1", i, got)
		}
	}
}

func TestFigurePeriodNeverZero(t *testing.T) {
	for i := uint64(0); i < 5000; i++ {
		if figurePeriod(i) == 0 {
			t.Fatalf("figurePeriod(%d) returned 0", i)
		}
	}
}

func TestIsCheckpointIterationMatchesFigurePeriod(t *testing.T) {
	for i := uint64(0); i < 2000; i++ {
		want := figurePeriod(i) == 1
		if got := isCheckpointIteration(i); got != want {
			t.Errorf("isCheckpointIteration(%d) = %v, want %v", i, got, want)
		}
	}
}
