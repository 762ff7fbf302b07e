package board

import (
	"github.com/bdwalton/mbrot/orbit"
	"github.com/bdwalton/mbrot/qd"
)

// pixelPertDD is the per-pixel state of a perturbation board tracking its
// orbit relative to the shared reference orbit (§3, §4.3.b): dc = c-cRef,
// the running delta, the reference index it currently follows, and the
// convergence checkpoint.
type pixelPertDD struct {
	dc             qd.ComplexDD
	delta          qd.ComplexDD
	refIter        int
	b              qd.ComplexDD
	hasCheckpoint  bool
	checkpointIter uint64
	nn             int64
	pp             uint64
}

// PerturbationDDBoard implements the Zhuoran-style perturbation algorithm
// at DD precision, suitable for medium-to-deep zoom on CPU (§4.3.b).
type PerturbationDDBoard struct {
	spec      ViewportSpec
	mgr       *orbit.Manager
	eps1      float64
	eps2      float64
	pixels    []pixelPertDD
	active    []int32
	iter      uint64
	cancelled bool
	escaped   int
	converged int
	chaotic   int

	// scratch/scratchDD back the per-iteration kernel with allocation-free
	// temporaries (§4.1, §9): scratch holds the n=2 delta-update terms,
	// scratchDD holds the escape-norm terms.
	scratch   qd.ComplexDDScratch
	scratchDD qd.DDScratch
}

// NewPerturbationDDBoard constructs the board, seeding the reference orbit
// at the viewport's center (§4.2).
func NewPerturbationDDBoard(spec ViewportSpec) *PerturbationDDBoard {
	cRef := qd.ComplexQD{Re: spec.CRe, Im: spec.CIm}
	mgr := orbit.New(spec.Exponent, cRef, spec.ReferenceEscapeR)

	n := spec.N()
	b := &PerturbationDDBoard{
		spec:   spec,
		mgr:    mgr,
		eps1:   periodicityEps(spec.PeriodicityEps1, spec.PixelSpacing(), 1),
		eps2:   periodicityEps(spec.PeriodicityEps2, spec.PixelSpacing(), 8),
		pixels:    make([]pixelPertDD, n),
		active:    make([]int32, n),
		scratch:   make(qd.ComplexDDScratch, 4),
		scratchDD: make(qd.DDScratch, 3),
	}

	idx := 0
	scratch := make(qd.QDScratch, 4)
	for row := 0; row < int(spec.Height); row++ {
		for col := 0; col < int(spec.Width); col++ {
			c := spec.PixelCenterInto(scratch, row, col)
			dc := qd.SubCQ(c, cRef).ToComplexDD()
			b.pixels[idx] = pixelPertDD{dc: dc}
			cRe, cIm := dc.Re.Float64()+spec.CRe.Float64(), dc.Im.Float64()+spec.CIm.Float64()
			if onChaoticSpike(spec.Exponent, cRe, cIm) {
				b.chaotic++
			}
			b.active[idx] = int32(idx)
			idx++
		}
	}
	return b
}

func (b *PerturbationDDBoard) Cancel()               { b.cancelled = true }
func (b *PerturbationDDBoard) RemainingActive() int   { return len(b.active) }
func (b *PerturbationDDBoard) ChaoticSpikeCount() int { return b.chaotic }

func (b *PerturbationDDBoard) CurrentZ(index int) (re, im float64) {
	p := &b.pixels[index]
	z, err := b.mgr.OrbitAt(p.refIter)
	if err != nil {
		return p.delta.Float64()
	}
	total := qd.AddC(z.ToComplexDD(), p.delta)
	return total.Float64()
}

func (b *PerturbationDDBoard) CurrentC(index int) (re, im float64) {
	p := &b.pixels[index]
	return p.dc.Re.Float64() + b.spec.CRe.Float64(), p.dc.Im.Float64() + b.spec.CIm.Float64()
}

func (b *PerturbationDDBoard) CurrentPeriod(index int) uint64 { return b.pixels[index].pp }

// deltaNextDD computes δ_{k+1} for exponent n: the n=2 case uses the
// spec's explicit cancellation-avoiding form, run through the board's
// scratch buffer so the per-pixel-per-iteration kernel allocates nothing
// (§4.1, §9); n>2 computes the exact algebraic difference (Z+δ)^n - Z^n +
// dc, trading the binomial term-by-term cancellation guard for a simpler,
// still-correct kernel.
func deltaNextDD(scratch qd.ComplexDDScratch, z, delta, dc qd.ComplexDD, n uint) qd.ComplexDD {
	if n == 2 {
		qd.MulCInto(scratch, 0, z, delta)
		twoZDelta := qd.DoubleC(scratch[0])
		qd.SquareCInto(scratch, 1, delta)
		qd.AddCInto(scratch, 2, twoZDelta, scratch[1])
		qd.AddCInto(scratch, 3, scratch[2], dc)
		return scratch[3]
	}
	zPlusDelta := qd.AddC(z, delta)
	diff := qd.SubC(qd.PowC(zPlusDelta, n), qd.PowC(z, n))
	return qd.AddC(diff, dc)
}

// IterateBatch advances every active pixel by up to k iterations against
// the shared reference orbit (§4.3.b, §4.4).
func (b *PerturbationDDBoard) IterateBatch(k uint64) Change {
	ch := Change{}
	if b.cancelled || len(b.active) == 0 {
		return ch
	}

	n := b.spec.Exponent
	maxIter := uint64(b.spec.MaxIter)
	if maxIter == 0 {
		maxIter = DefaultMaxIter
	}
	qd.MulDDInto(b.scratchDD, 0, qd.NewDD(2), qd.NewDD(2))
	fourDD := b.scratchDD[0]

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

			zq, err := b.mgr.OrbitAt(p.refIter)
			if err != nil {
				// Reference exhausted mid-pixel: the pixel is beyond
				// hope of further perturbation tracking (§7).
				p.nn = int64(curIter)
				ch.Escaped = append(ch.Escaped, idx)
				b.escaped++
				finished = true
				break
			}
			z := zq.ToComplexDD()
			deltaNew := deltaNextDD(b.scratch, z, p.delta, p.dc, n)

			znextq, err := b.mgr.OrbitAt(p.refIter + 1)
			var total qd.ComplexDD
			if err != nil {
				// §7: rebase to iteration 0 using the current total z;
				// only a second failure is a true escape.
				total = qd.AddC(z, deltaNew)
				p.delta = total
				p.refIter = 0
			} else {
				znext := znextq.ToComplexDD()
				total = qd.AddC(znext, deltaNew)

				if qd.Compare(qd.ChebyshevC(total), qd.Double(qd.ChebyshevC(deltaNew))) < 0 {
					p.delta = total
					p.refIter = 0
				} else {
					p.delta = deltaNew
					p.refIter++
				}
			}

			qd.SquareDDInto(b.scratchDD, 0, total.Re)
			qd.SquareDDInto(b.scratchDD, 1, total.Im)
			qd.AddDDInto(b.scratchDD, 2, b.scratchDD[0], b.scratchDD[1])
			if qd.Compare(b.scratchDD[2], fourDD) > 0 {
				p.nn = int64(curIter)
				ch.Escaped = append(ch.Escaped, idx)
				b.escaped++
				finished = true
				break
			}

			zRe, zIm := total.Float64()
			bRe, bIm := p.b.Float64()
			d := delta(zRe, zIm, bRe, bIm)
			if d <= b.eps1 {
				p.nn = -int64(curIter)
				ch.Converged = append(ch.Converged, ConvergedPixel{
					Index: idx, ZRe: qd.FromDD(total.Re), ZIm: qd.FromDD(total.Im), Period: p.pp,
				})
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
				ch.Converged = append(ch.Converged, ConvergedPixel{
					Index: idx, ZRe: qd.FromDD(total.Re), ZIm: qd.FromDD(total.Im), Period: p.pp,
				})
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
