package board

import (
	"testing"

	"github.com/bdwalton/mbrot/qd"
)

func shallowSpec(w, h uint) ViewportSpec {
	return ViewportSpec{
		Width: w, Height: h,
		CRe: qd.NewQD(-0.5), CIm: qd.NewQD(0),
		Size: qd.NewQD(3), Exponent: 2, MaxIter: 200,
	}
}

// TestPerturbationAgreesWithDirectAtShallowZoom exercises §8 property 5:
// at shallow zoom, where both direct and perturbation boards are valid,
// per-pixel nn should agree within a small tolerance for nearly every
// pixel.
func TestPerturbationAgreesWithDirectAtShallowZoom(t *testing.T) {
	spec := shallowSpec(16, 16)

	direct := NewDirectF64Board(spec)
	for direct.RemainingActive() > 0 {
		direct.IterateBatch(20)
	}

	pert := NewPerturbationDDBoard(spec)
	for pert.RemainingActive() > 0 {
		pert.IterateBatch(20)
	}

	n := spec.N()
	agree := 0
	for i := 0; i < n; i++ {
		dn := direct.pixels[i].nn
		pn := pert.pixels[i].nn
		diff := dn - pn
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 {
			agree++
		}
	}
	if float64(agree)/float64(n) < 0.99 {
		t.Errorf("perturbation/direct agreement %d/%d below 99%%", agree, n)
	}
}

func TestPerturbationTotalAccounting(t *testing.T) {
	spec := shallowSpec(10, 10)
	b := NewPerturbationDDBoard(spec)
	n := spec.N()
	for b.RemainingActive() > 0 {
		b.IterateBatch(25)
	}
	if b.escaped+b.converged != n {
		t.Errorf("accounting mismatch: escaped=%d converged=%d n=%d", b.escaped, b.converged, n)
	}
}
