package board

import (
	"testing"

	"github.com/bdwalton/mbrot/qd"
)

func singlePixelDDSpec(cRe, cIm float64, maxIter uint) ViewportSpec {
	return ViewportSpec{
		Width: 1, Height: 1,
		CRe: qd.NewQD(cRe), CIm: qd.NewQD(cIm),
		Size:     qd.NewQD(1),
		Exponent: 2,
		MaxIter:  maxIter,
	}
}

func TestDirectDDCZeroConverges(t *testing.T) {
	b := NewDirectDDBoard(singlePixelDDSpec(0, 0, 500))
	runToCompletion(t, b, 10)
	if b.pixels[0].nn >= 0 {
		t.Errorf("c=0 should converge (nn<0), got nn=%d", b.pixels[0].nn)
	}
}

func TestDirectDDCTwoEscapesAtIterTwo(t *testing.T) {
	b := NewDirectDDBoard(singlePixelDDSpec(2, 0, 500))
	b.IterateBatch(10)
	if b.pixels[0].nn != 2 {
		t.Errorf("c=2 should escape at iter 2, got nn=%d", b.pixels[0].nn)
	}
}

func TestDirectDDChaoticSpikeCountedConvergentAtCap(t *testing.T) {
	b := NewDirectDDBoard(singlePixelDDSpec(-1.5, 0, MaxChaoticIterations+10))
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

func TestDirectDDTotalAccounting(t *testing.T) {
	spec := shallowSpec(8, 8)
	b := NewDirectDDBoard(spec)
	n := spec.N()
	for b.RemainingActive() > 0 {
		b.IterateBatch(20)
	}
	if b.escaped+b.converged != n {
		t.Errorf("accounting mismatch: escaped=%d converged=%d n=%d", b.escaped, b.converged, n)
	}
}

// TestDirectDDAgreesWithDirectF64AtShallowZoom exercises §8 property 5's
// sibling comparison: at shallow zoom, wider precision shouldn't change the
// escape/convergence verdict for nearly every pixel.
func TestDirectDDAgreesWithDirectF64AtShallowZoom(t *testing.T) {
	spec := shallowSpec(16, 16)

	f64 := NewDirectF64Board(spec)
	for f64.RemainingActive() > 0 {
		f64.IterateBatch(20)
	}

	dd := NewDirectDDBoard(spec)
	for dd.RemainingActive() > 0 {
		dd.IterateBatch(20)
	}

	n := spec.N()
	agree := 0
	for i := 0; i < n; i++ {
		diff := f64.pixels[i].nn - dd.pixels[i].nn
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 {
			agree++
		}
	}
	if float64(agree)/float64(n) < 0.99 {
		t.Errorf("direct-dd/direct-f64 agreement %d/%d below 99%%", agree, n)
	}
}
