package board

import "github.com/bdwalton/mbrot/qd"

// pixelF64 is the per-pixel state of the shallow direct-f64 board (§3,
// §4.3.a): just (c, z, b, p, nn), laid out for locality.
type pixelF64 struct {
	cRe, cIm float64
	zRe, zIm float64
	bRe, bIm float64
	nn       int64
	pp       uint64
}

// DirectF64Board is a shallow, non-perturbation board in plain float64, for
// zoom levels that need no extended precision at all. boardselect does not
// construct it (its direct kinds build DirectDDBoard); it is used directly,
// e.g. by the scheduler tests. It generalizes to any exponent n>=2 by
// repeated complex multiplication of z^n.
type DirectF64Board struct {
	spec      ViewportSpec
	eps1      float64
	eps2      float64
	pixels    []pixelF64
	active    []int32
	iter      uint64
	cancelled bool
	escaped   int
	converged int
	chaotic   int
}

// NewDirectF64Board constructs the board and derives c for every pixel from
// the viewport (§3 "Lifecycle").
func NewDirectF64Board(spec ViewportSpec) *DirectF64Board {
	n := spec.N()
	b := &DirectF64Board{
		spec:   spec,
		eps1:   periodicityEps(spec.PeriodicityEps1, spec.PixelSpacing(), 1),
		eps2:   periodicityEps(spec.PeriodicityEps2, spec.PixelSpacing(), 8),
		pixels: make([]pixelF64, n),
		active: make([]int32, n),
	}
	idx := 0
	scratch := make(qd.QDScratch, 4)
	for row := 0; row < int(spec.Height); row++ {
		for col := 0; col < int(spec.Width); col++ {
			c := spec.PixelCenterInto(scratch, row, col)
			cRe, cIm := c.Re.Float64(), c.Im.Float64()
			b.pixels[idx] = pixelF64{cRe: cRe, cIm: cIm}
			if onChaoticSpike(spec.Exponent, cRe, cIm) {
				b.chaotic++
			}
			b.active[idx] = int32(idx)
			idx++
		}
	}
	return b
}

// periodicityEps derives a usable periodicity epsilon from the viewport
// spacing when the caller didn't supply one (§3 "periodicity-epsilon pair
// ... derived from pixel spacing").
func periodicityEps(configured, spacing float64, factor float64) float64 {
	if configured > 0 {
		return configured
	}
	return spacing * factor
}

func (b *DirectF64Board) Cancel() { b.cancelled = true }

func (b *DirectF64Board) RemainingActive() int { return len(b.active) }

func (b *DirectF64Board) ChaoticSpikeCount() int { return b.chaotic }

func (b *DirectF64Board) CurrentZ(index int) (re, im float64) {
	p := &b.pixels[index]
	return p.zRe, p.zIm
}

func (b *DirectF64Board) CurrentC(index int) (re, im float64) {
	p := &b.pixels[index]
	return p.cRe, p.cIm
}

func (b *DirectF64Board) CurrentPeriod(index int) uint64 {
	return b.pixels[index].pp
}

// powF64 raises (re,im) to the n-th complex power by repeated
// multiplication (§4.3.a "For exponent n>2, expand z^n via repeated
// complex multiplication").
func powF64(re, im float64, n uint) (rRe, rIm float64) {
	rRe, rIm = re, im
	for i := uint(1); i < n; i++ {
		rRe, rIm = rRe*re-rIm*im, rRe*im+rIm*re
	}
	return
}

// IterateBatch advances every active pixel by up to k iterations (§4.4).
func (b *DirectF64Board) IterateBatch(k uint64) Change {
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
			b.iterOf(idx, n)

			zAbs2 := p.zRe*p.zRe + p.zIm*p.zIm
			curIter := b.iter + step + 1

			if zAbs2 > 4 {
				p.nn = int64(curIter)
				ch.Escaped = append(ch.Escaped, idx)
				b.escaped++
				finished = true
				break
			}

			d := delta(p.zRe, p.zIm, p.bRe, p.bIm)
			if d <= b.eps1 {
				p.nn = -int64(curIter)
				ch.Converged = append(ch.Converged, ConvergedPixel{
					Index: idx, ZRe: qd.NewQD(p.zRe), ZIm: qd.NewQD(p.zIm), Period: p.pp,
				})
				b.converged++
				finished = true
				break
			}
			if d <= b.eps2 && p.pp == 0 {
				p.pp = curIter
			}

			if isCheckpointIteration(curIter) {
				p.bRe, p.bIm = p.zRe, p.zIm
				p.pp = 0
			}

			isChaotic := onChaoticSpike(n, p.cRe, p.cIm)
			if curIter >= maxIter || (isChaotic && curIter >= MaxChaoticIterations) {
				p.nn = -int64(curIter)
				ch.Converged = append(ch.Converged, ConvergedPixel{
					Index: idx, ZRe: qd.NewQD(p.zRe), ZIm: qd.NewQD(p.zIm), Period: p.pp,
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

// iterOf performs one z <- z^n + c step for pixel idx.
func (b *DirectF64Board) iterOf(idx int, n uint) {
	p := &b.pixels[idx]
	rRe, rIm := powF64(p.zRe, p.zIm, n)
	p.zRe = rRe + p.cRe
	p.zIm = rIm + p.cIm
}
