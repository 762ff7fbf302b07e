package board

import (
	"github.com/bdwalton/mbrot/orbit"
	"github.com/bdwalton/mbrot/qd"
)

// pixelPertQD mirrors pixelPertDD but keeps dc/delta/checkpoint at full QD
// precision, for the deepest CPU zoom range (§4.5 selector table:
// 10^20 <= z <= 10^60, no GPU).
type pixelPertQD struct {
	dc      qd.ComplexQD
	delta   qd.ComplexQD
	refIter int
	b       qd.ComplexQD
	nn      int64
	pp      uint64
}

// PerturbationQDBoard is the QD-precision perturbation board (§4.3.b at QD
// precision, §2 component 3).
type PerturbationQDBoard struct {
	spec      ViewportSpec
	mgr       *orbit.Manager
	eps1      float64
	eps2      float64
	pixels    []pixelPertQD
	active    []int32
	iter      uint64
	cancelled bool
	escaped   int
	converged int
	chaotic   int

	// scratch/scratchQD back the per-iteration kernel with allocation-free
	// temporaries (§4.1, §9), mirroring PerturbationDDBoard at QD precision.
	scratch   qd.ComplexQDScratch
	scratchQD qd.QDScratch
}

// NewPerturbationQDBoard constructs the board, seeding the shared reference
// orbit at the viewport center.
func NewPerturbationQDBoard(spec ViewportSpec) *PerturbationQDBoard {
	cRef := qd.ComplexQD{Re: spec.CRe, Im: spec.CIm}
	mgr := orbit.New(spec.Exponent, cRef, spec.ReferenceEscapeR)

	n := spec.N()
	b := &PerturbationQDBoard{
		spec:   spec,
		mgr:    mgr,
		eps1:   periodicityEps(spec.PeriodicityEps1, spec.PixelSpacing(), 1),
		eps2:   periodicityEps(spec.PeriodicityEps2, spec.PixelSpacing(), 8),
		pixels:    make([]pixelPertQD, n),
		active:    make([]int32, n),
		scratch:   make(qd.ComplexQDScratch, 4),
		scratchQD: make(qd.QDScratch, 3),
	}

	idx := 0
	scratch := make(qd.QDScratch, 4)
	for row := 0; row < int(spec.Height); row++ {
		for col := 0; col < int(spec.Width); col++ {
			c := spec.PixelCenterInto(scratch, row, col)
			dc := qd.SubCQ(c, cRef)
			b.pixels[idx] = pixelPertQD{dc: dc}
			cRe := dc.Re.Float64() + spec.CRe.Float64()
			cIm := dc.Im.Float64() + spec.CIm.Float64()
			if onChaoticSpike(spec.Exponent, cRe, cIm) {
				b.chaotic++
			}
			b.active[idx] = int32(idx)
			idx++
		}
	}
	return b
}

func (b *PerturbationQDBoard) Cancel()               { b.cancelled = true }
func (b *PerturbationQDBoard) RemainingActive() int   { return len(b.active) }
func (b *PerturbationQDBoard) ChaoticSpikeCount() int { return b.chaotic }

func (b *PerturbationQDBoard) CurrentZ(index int) (re, im float64) {
	p := &b.pixels[index]
	z, err := b.mgr.OrbitAt(p.refIter)
	if err != nil {
		return p.delta.Re.Float64(), p.delta.Im.Float64()
	}
	total := qd.AddCQ(z, p.delta)
	return total.Re.Float64(), total.Im.Float64()
}

func (b *PerturbationQDBoard) CurrentC(index int) (re, im float64) {
	p := &b.pixels[index]
	return p.dc.Re.Float64() + b.spec.CRe.Float64(), p.dc.Im.Float64() + b.spec.CIm.Float64()
}

func (b *PerturbationQDBoard) CurrentPeriod(index int) uint64 { return b.pixels[index].pp }

// deltaNextQD is the QD-precision counterpart of deltaNextDD, run through
// the board's scratch buffer so the n=2 fast path allocates nothing.
func deltaNextQD(scratch qd.ComplexQDScratch, z, delta, dc qd.ComplexQD, n uint) qd.ComplexQD {
	if n == 2 {
		qd.MulCQInto(scratch, 0, z, delta)
		twoZDelta := qd.DoubleCQ(scratch[0])
		qd.SquareCQInto(scratch, 1, delta)
		qd.AddCQInto(scratch, 2, twoZDelta, scratch[1])
		qd.AddCQInto(scratch, 3, scratch[2], dc)
		return scratch[3]
	}
	zPlusDelta := qd.AddCQ(z, delta)
	diff := qd.SubCQ(qd.PowCQ(zPlusDelta, n), qd.PowCQ(z, n))
	return qd.AddCQ(diff, dc)
}

// IterateBatch mirrors PerturbationDDBoard.IterateBatch at QD precision.
func (b *PerturbationQDBoard) IterateBatch(k uint64) Change {
	ch := Change{}
	if b.cancelled || len(b.active) == 0 {
		return ch
	}

	n := b.spec.Exponent
	maxIter := uint64(b.spec.MaxIter)
	if maxIter == 0 {
		maxIter = DefaultMaxIter
	}
	qd.MulQDInto(b.scratchQD, 0, qd.NewQD(2), qd.NewQD(2))
	fourQD := b.scratchQD[0]

	write := 0
	for _, rawIdx := range b.active {
		if b.cancelled {
			break
		}
		idx := int(rawIdx)
		p := &b.pixels[idx]
		finished := false

		for step := uint64(0); step < k; step++ {
			curIter := b.iter + step + 1

			z, err := b.mgr.OrbitAt(p.refIter)
			if err != nil {
				p.nn = int64(curIter)
				ch.Escaped = append(ch.Escaped, idx)
				b.escaped++
				finished = true
				break
			}
			deltaNew := deltaNextQD(b.scratch, z, p.delta, p.dc, n)

			znext, err := b.mgr.OrbitAt(p.refIter + 1)
			var total qd.ComplexQD
			if err != nil {
				total = qd.AddCQ(z, deltaNew)
				p.delta = total
				p.refIter = 0
			} else {
				total = qd.AddCQ(znext, deltaNew)
				if qd.CompareQD(qd.ChebyshevCQ(total), qd.DoubleQD(qd.ChebyshevCQ(deltaNew))) < 0 {
					p.delta = total
					p.refIter = 0
				} else {
					p.delta = deltaNew
					p.refIter++
				}
			}

			qd.SquareQDInto(b.scratchQD, 0, total.Re)
			qd.SquareQDInto(b.scratchQD, 1, total.Im)
			qd.AddQDInto(b.scratchQD, 2, b.scratchQD[0], b.scratchQD[1])
			if qd.CompareQD(b.scratchQD[2], fourQD) > 0 {
				p.nn = int64(curIter)
				ch.Escaped = append(ch.Escaped, idx)
				b.escaped++
				finished = true
				break
			}

			zRe, zIm := total.Re.Float64(), total.Im.Float64()
			bRe, bIm := p.b.Re.Float64(), p.b.Im.Float64()
			d := delta(zRe, zIm, bRe, bIm)
			if d <= b.eps1 {
				p.nn = -int64(curIter)
				ch.Converged = append(ch.Converged, ConvergedPixel{Index: idx, ZRe: total.Re, ZIm: total.Im, Period: p.pp})
				b.converged++
				finished = true
				break
			}
			if d <= b.eps2 && p.pp == 0 {
				p.pp = curIter
			}

			if isCheckpointIteration(curIter) {
				p.b = total
				p.pp = 0
			}

			cRe := p.dc.Re.Float64() + b.spec.CRe.Float64()
			cIm := p.dc.Im.Float64() + b.spec.CIm.Float64()
			isChaotic := onChaoticSpike(n, cRe, cIm)
			if curIter >= maxIter || (isChaotic && curIter >= MaxChaoticIterations) {
				p.nn = -int64(curIter)
				ch.Converged = append(ch.Converged, ConvergedPixel{Index: idx, ZRe: total.Re, ZIm: total.Im, Period: p.pp})
				b.converged++
				finished = true
				break
			}
		}

		if !finished {
			b.active[write] = rawIdx
			write++
		}
	}
	b.active = b.active[:write]
	b.iter += k
	ch.Iter = b.iter
	return ch
}
