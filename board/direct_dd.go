package board

import "github.com/bdwalton/mbrot/qd"

// pixelDD is the per-pixel state of the direct-DD-CPU board: identical in
// structure to pixelF64 (§4.3.a "Direct-DD and direct-QD variants identical
// in structure with wider arithmetic") but carrying DD-precision c/z/b.
type pixelDD struct {
	c, z, b qd.ComplexDD
	nn      int64
	pp      uint64
}

// DirectDDBoard is the direct board used once float64 precision can no
// longer resolve adjacent pixel centers, but the zoom is still shallow
// enough that perturbation isn't warranted (§2 component 3).
type DirectDDBoard struct {
	spec      ViewportSpec
	eps1      float64
	eps2      float64
	pixels    []pixelDD
	active    []int32
	iter      uint64
	cancelled bool
	escaped   int
	converged int
	chaotic   int
}

// NewDirectDDBoard constructs the board from the viewport spec.
func NewDirectDDBoard(spec ViewportSpec) *DirectDDBoard {
	n := spec.N()
	b := &DirectDDBoard{
		spec:   spec,
		eps1:   periodicityEps(spec.PeriodicityEps1, spec.PixelSpacing(), 1),
		eps2:   periodicityEps(spec.PeriodicityEps2, spec.PixelSpacing(), 8),
		pixels: make([]pixelDD, n),
		active: make([]int32, n),
	}
	idx := 0
	scratch := make(qd.QDScratch, 4)
	for row := 0; row < int(spec.Height); row++ {
		for col := 0; col < int(spec.Width); col++ {
			cq := spec.PixelCenterInto(scratch, row, col)
			c := cq.ToComplexDD()
			cRe, cIm := c.Float64()
			b.pixels[idx] = pixelDD{c: c}
			if onChaoticSpike(spec.Exponent, cRe, cIm) {
				b.chaotic++
			}
			b.active[idx] = int32(idx)
			idx++
		}
	}
	return b
}

func (b *DirectDDBoard) Cancel()                   { b.cancelled = true }
func (b *DirectDDBoard) RemainingActive() int      { return len(b.active) }
func (b *DirectDDBoard) ChaoticSpikeCount() int     { return b.chaotic }
func (b *DirectDDBoard) CurrentZ(i int) (re, im float64) { return b.pixels[i].z.Float64() }
func (b *DirectDDBoard) CurrentC(i int) (re, im float64) { return b.pixels[i].c.Float64() }
func (b *DirectDDBoard) CurrentPeriod(i int) uint64 { return b.pixels[i].pp }

// IterateBatch mirrors DirectF64Board.IterateBatch at DD precision.
func (b *DirectDDBoard) IterateBatch(k uint64) Change {
	ch := Change{}
	if b.cancelled || len(b.active) == 0 {
		return ch
	}

	n := b.spec.Exponent
	maxIter := uint64(b.spec.MaxIter)
	if maxIter == 0 {
		maxIter = DefaultMaxIter
	}

	write := 0
	for _, rawIdx := range b.active {
		if b.cancelled {
			break
		}
		idx := int(rawIdx)
		p := &b.pixels[idx]
		finished := false

		for step := uint64(0); step < k; step++ {
			zn := qd.PowC(p.z, n)
			p.z = qd.AddC(zn, p.c)

			curIter := b.iter + step + 1
			absSq := qd.NormSqC(p.z).Float64()

			if absSq > 4 {
				p.nn = int64(curIter)
				ch.Escaped = append(ch.Escaped, idx)
				b.escaped++
				finished = true
				break
			}

			zRe, zIm := p.z.Float64()
			bRe, bIm := p.b.Float64()
			d := delta(zRe, zIm, bRe, bIm)
			if d <= b.eps1 {
				p.nn = -int64(curIter)
				ch.Converged = append(ch.Converged, ConvergedPixel{
					Index: idx, ZRe: qd.FromDD(p.z.Re), ZIm: qd.FromDD(p.z.Im), Period: p.pp,
				})
				b.converged++
				finished = true
				break
			}
			if d <= b.eps2 && p.pp == 0 {
				p.pp = curIter
			}

			if isCheckpointIteration(curIter) {
				p.b = p.z
				p.pp = 0
			}

			isChaotic := onChaoticSpike(n, p.c.Re.Float64(), p.c.Im.Float64())
			if curIter >= maxIter || (isChaotic && curIter >= MaxChaoticIterations) {
				p.nn = -int64(curIter)
				ch.Converged = append(ch.Converged, ConvergedPixel{
					Index: idx, ZRe: qd.FromDD(p.z.Re), ZIm: qd.FromDD(p.z.Im), Period: p.pp,
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
