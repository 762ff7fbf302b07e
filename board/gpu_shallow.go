package board

import "github.com/bdwalton/mbrot/qd"

// pixelShallowGPU is the per-pixel state of the shallow GPU board: plain
// (c, z) in float32, the narrowest representation the contract allows
// (§4.3.d).
type pixelShallowGPU struct {
	cRe, cIm float32
	zRe, zIm float32
	nn       int64
}

// GPUShallowBoard runs DirectF64Board's z^n+c escape test at float32
// precision, driven through a GPU-resident readback buffer instead of a
// plain Go slice of finished flags (§4.3.d). It has no periodicity check:
// a pixel that does not escape finishes as convergent only at the
// iteration cap (or the chaotic-spike cap).
type GPUShallowBoard struct {
	spec      ViewportSpec
	pixels    []pixelShallowGPU
	active    []int32
	readback  *readbackBuffer
	iter      uint64
	cancelled bool
	escaped   int
	converged int
	chaotic   int
}

// NewGPUShallowBoard constructs the board, returning ErrBufferTooLarge if
// the viewport's pixel count would exceed limit bytes of GPU state
// (0 = default 256MB, §5).
func NewGPUShallowBoard(spec ViewportSpec, deviceBufferLimit uint64) (*GPUShallowBoard, error) {
	n := spec.N()
	if err := checkBufferLimit(n, deviceBufferLimit); err != nil {
		return nil, err
	}

	b := &GPUShallowBoard{
		spec:     spec,
		pixels:   make([]pixelShallowGPU, n),
		active:   make([]int32, n),
		readback: newReadbackBuffer(int(spec.Width), int(spec.Height)),
	}
	idx := 0
	scratch := make(qd.QDScratch, 4)
	for row := 0; row < int(spec.Height); row++ {
		for col := 0; col < int(spec.Width); col++ {
			c := spec.PixelCenterInto(scratch, row, col)
			cRe, cIm := float32(c.Re.Float64()), float32(c.Im.Float64())
			b.pixels[idx] = pixelShallowGPU{cRe: cRe, cIm: cIm}
			if onChaoticSpike(spec.Exponent, float64(cRe), float64(cIm)) {
				b.chaotic++
			}
			b.active[idx] = int32(idx)
			idx++
		}
	}
	return b, nil
}

func (b *GPUShallowBoard) Cancel()               { b.cancelled = true }
func (b *GPUShallowBoard) RemainingActive() int   { return len(b.active) }
func (b *GPUShallowBoard) ChaoticSpikeCount() int { return b.chaotic }

func (b *GPUShallowBoard) CurrentZ(index int) (re, im float64) {
	p := &b.pixels[index]
	return float64(p.zRe), float64(p.zIm)
}

func (b *GPUShallowBoard) CurrentC(index int) (re, im float64) {
	p := &b.pixels[index]
	return float64(p.cRe), float64(p.cIm)
}

func (b *GPUShallowBoard) CurrentPeriod(int) uint64 { return 0 } // no periodicity tracking in shallow GPU kernel

func powF32(re, im float32, n uint) (rRe, rIm float32) {
	rRe, rIm = re, im
	for i := uint(1); i < n; i++ {
		rRe, rIm = rRe*re-rIm*im, rRe*im+rIm*re
	}
	return
}

// IterateBatch runs the per-pixel kernel for up to k iterations, marking
// finished pixels in the GPU-resident readback buffer and draining it once
// at the end of the batch (§4.3.d, §5).
func (b *GPUShallowBoard) IterateBatch(k uint64) Change {
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
			rRe, rIm := powF32(p.zRe, p.zIm, n)
			p.zRe, p.zIm = rRe+p.cRe, rIm+p.cIm
			curIter := b.iter + step + 1

			absSq := p.zRe*p.zRe + p.zIm*p.zIm
			isChaotic := onChaoticSpike(n, float64(p.cRe), float64(p.cIm))

			if absSq > 4 {
				p.nn = int64(curIter)
				finished = true
				break
			}
			if curIter >= maxIter || (isChaotic && curIter >= MaxChaoticIterations) {
				p.nn = -int64(curIter)
				finished = true
				break
			}
		}

		if finished {
			b.readback.markFinished(idx)
		} else {
			b.active[write] = rawIdx
			write++
		}
	}
	b.active = b.active[:write]
	b.iter += k
	ch.Iter = b.iter

	for _, idx := range b.readback.drainFinished() {
		p := &b.pixels[idx]
		if p.nn > 0 {
			ch.Escaped = append(ch.Escaped, idx)
			b.escaped++
		} else {
			ch.Converged = append(ch.Converged, ConvergedPixel{
				Index: idx, ZRe: qd.NewQD(float64(p.zRe)), ZIm: qd.NewQD(float64(p.zIm)),
			})
			b.converged++
		}
	}
	return ch
}
