package board

import (
	"testing"

	"github.com/bdwalton/mbrot/qd"
)

func singlePixelSpec(cRe, cIm float64, maxIter uint) ViewportSpec {
	return ViewportSpec{
		Width: 1, Height: 1,
		CRe: qd.NewQD(cRe), CIm: qd.NewQD(cIm),
		Size:     qd.NewQD(1),
		Exponent: 2,
		MaxIter:  maxIter,
	}
}

func runToCompletion(t *testing.T, b Board, maxBatches int) {
	t.Helper()
	for i := 0; i < maxBatches && b.RemainingActive() > 0; i++ {
		b.IterateBatch(DefaultBatchSize)
	}
}

func TestDirectF64CZeroConverges(t *testing.T) {
	b := NewDirectF64Board(singlePixelSpec(0, 0, 500))
	runToCompletion(t, b, 10)
	if b.RemainingActive() != 0 {
		t.Fatalf("pixel c=0 never finished")
	}
	if b.pixels[0].nn >= 0 {
		t.Errorf("c=0 should converge (nn<0), got nn=%d", b.pixels[0].nn)
	}
}

func TestDirectF64CTwoEscapesAtIterTwo(t *testing.T) {
	b := NewDirectF64Board(singlePixelSpec(2, 0, 500))
	b.IterateBatch(10)
	if b.pixels[0].nn != 2 {
		t.Errorf("c=2 should escape at iter 2, got nn=%d", b.pixels[0].nn)
	}
}

func TestDirectF64EscapesWithin20(t *testing.T) {
	b := NewDirectF64Board(singlePixelSpec(0.5, 0.5, 500))
	b.IterateBatch(20)
	if b.pixels[0].nn <= 0 {
		t.Errorf("c=0.5+0.5i should have escaped within 20 iterations, nn=%d", b.pixels[0].nn)
	}
}

func TestDirectF64ChaoticSpikeCountedConvergentAtCap(t *testing.T) {
	// -1.5 lies on the chaotic spike (-2, -1.401155).
	b := NewDirectF64Board(singlePixelSpec(-1.5, 0, MaxChaoticIterations+10))
	if b.ChaoticSpikeCount() != 1 {
		t.Fatalf("expected chaotic spike pixel to be flagged at construction")
	}
	for b.RemainingActive() > 0 {
		b.IterateBatch(10000)
	}
	if b.pixels[0].nn >= 0 {
		t.Errorf("chaotic-spike pixel should finish as convergent, got nn=%d", b.pixels[0].nn)
	}
}

func TestDirectF64TotalAccounting(t *testing.T) {
	spec := ViewportSpec{
		Width: 8, Height: 8,
		CRe: qd.NewQD(-0.5), CIm: qd.NewQD(0),
		Size: qd.NewQD(3), Exponent: 2, MaxIter: 200,
	}
	b := NewDirectF64Board(spec)
	n := spec.N()
	for b.RemainingActive() > 0 {
		b.IterateBatch(20)
	}
	if b.escaped+b.converged != n {
		t.Errorf("accounting mismatch: escaped=%d converged=%d n=%d", b.escaped, b.converged, n)
	}
}
