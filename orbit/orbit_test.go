package orbit

import (
	"testing"

	"github.com/bdwalton/mbrot/qd"
)

func TestOrbitAtZeroStaysZero(t *testing.T) {
	m := New(2, qd.ComplexQD{}, 0)
	z, err := m.OrbitAt(10)
	if err != nil {
		t.Fatalf("OrbitAt(10): %v", err)
	}
	if z.Re.Float64() != 0 || z.Im.Float64() != 0 {
		t.Errorf("c=0 orbit should stay at 0, got (%v,%v)", z.Re.Float64(), z.Im.Float64())
	}
}

func TestOrbitEscapesForCTwo(t *testing.T) {
	m := New(2, qd.ComplexQD{Re: qd.NewQD(2)}, 1e5)
	m.ExtendUntil(5)
	if !m.Escaped() {
		t.Fatalf("expected c=2 orbit to escape")
	}
	if m.EscapedAt() > 5 || m.EscapedAt() < 1 {
		t.Errorf("unexpected escape index %d", m.EscapedAt())
	}
}

func TestPeriodTwoBulbCheckpointsRevisit(t *testing.T) {
	m := New(2, qd.ComplexQD{Re: qd.NewQD(-1)}, 1e5)
	m.ExtendUntil(8)
	hits, err := m.FindNearPeriodic(8, 1e-12)
	if err != nil {
		t.Fatalf("FindNearPeriodic: %v", err)
	}
	if len(hits) == 0 {
		t.Errorf("expected at least one near-periodic checkpoint for the period-2 bulb center")
	}
}

func TestOrbitAtExhaustedAfterEscape(t *testing.T) {
	m := New(2, qd.ComplexQD{Re: qd.NewQD(2)}, 1e5)
	m.ExtendUntil(5)
	if !m.Escaped() {
		t.Fatalf("expected escape")
	}
	if _, err := m.OrbitAt(m.EscapedAt() + 50); err == nil {
		t.Errorf("expected ErrReferenceOrbitExhausted for index far past escape")
	}
}
