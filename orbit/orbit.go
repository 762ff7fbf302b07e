// Package orbit implements the reference-orbit manager shared by
// perturbation-based boards (spec §4.2): a single QD-precision center-pixel
// orbit, extended lazily, with power-of-two checkpoints for near-periodicity
// detection.
package orbit

import (
	"fmt"

	"github.com/bdwalton/mbrot/qd"
)

// DefaultEscapeRadius is the default reference_escape_radius (§6); the
// reference orbit is considered escaped once |Z|^2 exceeds its square.
const DefaultEscapeRadius = 1e5

// DefaultNearPeriodicEpsilon is epsilon_ref (§4.2), the tight Chebyshev
// distance below which two reference points are treated as a near-periodic
// revisit.
const DefaultNearPeriodicEpsilon = 1e-15

// Manager owns the append-only reference orbit Z0=0, Z1, Z2, ... for one
// view. It is written only by the methods below and read by boards through
// OrbitAt; boards never mutate it (§5 "Shared state").
type Manager struct {
	n           uint
	cRef        qd.ComplexQD
	points      []qd.ComplexQD
	escaped     bool
	escapedAt   int // -1 until escaped
	escapeRadSq qd.QD
	checkpoints map[int]qd.ComplexQD

	// scratch/scratchQD back step's per-point kernel with allocation-free
	// temporaries (§4.1, §9): the orbit is extended one point at a time but
	// boards may drive it for millions of points over a render's lifetime.
	scratch   qd.ComplexQDScratch
	scratchQD qd.QDScratch
}

// New creates a manager for the Multibrot map z -> z^n + cRef, seeded with
// Z0 = 0. escapeRadius defaults to DefaultEscapeRadius when <= 0.
func New(n uint, cRef qd.ComplexQD, escapeRadius float64) *Manager {
	if escapeRadius <= 0 {
		escapeRadius = DefaultEscapeRadius
	}
	m := &Manager{
		n:           n,
		cRef:        cRef,
		points:      make([]qd.ComplexQD, 1, 1024),
		escapedAt:   -1,
		escapeRadSq: qd.NewQD(escapeRadius * escapeRadius),
		checkpoints: make(map[int]qd.ComplexQD),
		scratch:     make(qd.ComplexQDScratch, 1),
		scratchQD:   make(qd.QDScratch, 3),
	}
	m.points[0] = qd.ComplexQD{} // Z0 = 0
	m.saveCheckpointIf(0)
	return m
}

// Len returns the number of points currently materialized (index 0..Len-1).
func (m *Manager) Len() int { return len(m.points) }

// Escaped reports whether the reference orbit has crossed the escape
// radius at some index.
func (m *Manager) Escaped() bool { return m.escaped }

// EscapedAt returns the index at which the reference escaped, or -1 if it
// has not.
func (m *Manager) EscapedAt() int { return m.escapedAt }

// ExtendUntil ensures the orbit has at least k+1 points (index 0..k), or
// stops early once escape is detected (§4.2).
func (m *Manager) ExtendUntil(k int) {
	for len(m.points)-1 < k && !m.escaped {
		m.step()
	}
}

// step computes Z_{i+1} = Z_i^n + cRef and appends it. The n=2 case, by far
// the most common exponent driven through this loop, runs through the
// manager's scratch buffer so it allocates nothing (§4.1, §9); n>2 falls
// back to the general PowCQ path.
func (m *Manager) step() {
	i := len(m.points) - 1
	zi := m.points[i]
	var next qd.ComplexQD
	if m.n == 2 {
		qd.SquareCQInto(m.scratch, 0, zi)
		next = qd.AddCQ(m.scratch[0], m.cRef)
	} else {
		zn := qd.PowCQ(zi, m.n)
		next = qd.AddCQ(zn, m.cRef)
	}
	m.points = append(m.points, next)

	idx := i + 1
	qd.SquareQDInto(m.scratchQD, 0, next.Re)
	qd.SquareQDInto(m.scratchQD, 1, next.Im)
	qd.AddQDInto(m.scratchQD, 2, m.scratchQD[0], m.scratchQD[1])
	if qd.CompareQD(m.scratchQD[2], m.escapeRadSq) > 0 {
		m.escaped = true
		m.escapedAt = idx
	}
	m.saveCheckpointIf(idx)
}

// OrbitAt returns Z_k, extending the orbit as needed. It returns
// ErrReferenceOrbitExhausted if k lies beyond an already-escaped orbit.
func (m *Manager) OrbitAt(k int) (qd.ComplexQD, error) {
	if k < 0 {
		return qd.ComplexQD{}, fmt.Errorf("orbit: negative index %d", k)
	}
	if k >= len(m.points) {
		if m.escaped {
			return qd.ComplexQD{}, ErrReferenceOrbitExhausted
		}
		m.ExtendUntil(k)
		if k >= len(m.points) {
			return qd.ComplexQD{}, ErrReferenceOrbitExhausted
		}
	}
	return m.points[k], nil
}

// isPowerOfTwo reports whether k is 0 or an exact power of two; index 0 is
// always checkpointed so rebased pixels (refIter=0) have somewhere to
// compare against.
func isPowerOfTwo(k int) bool {
	return k >= 0 && (k&(k-1)) == 0
}

// saveCheckpointIf stores Z_k in the checkpoint map when k is a power of
// two (§4.2).
func (m *Manager) saveCheckpointIf(k int) {
	if isPowerOfTwo(k) {
		m.checkpoints[k] = m.points[k]
	}
}

// FindNearPeriodic returns every checkpoint index k' < currentRefIter for
// which |Z_current - Z_k'| < epsRef under the Chebyshev norm, computed in QD
// (§4.2). If epsRef <= 0, DefaultNearPeriodicEpsilon is used.
func (m *Manager) FindNearPeriodic(currentRefIter int, epsRef float64) ([]int, error) {
	if epsRef <= 0 {
		epsRef = DefaultNearPeriodicEpsilon
	}
	current, err := m.OrbitAt(currentRefIter)
	if err != nil {
		return nil, err
	}
	eps := qd.NewQD(epsRef)

	var hits []int
	for k, z := range m.checkpoints {
		if k >= currentRefIter {
			continue
		}
		d := qd.ChebyshevCQ(qd.SubCQ(current, z))
		if qd.CompareQD(d, eps) < 0 {
			hits = append(hits, k)
		}
	}
	return hits, nil
}
