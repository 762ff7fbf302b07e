package board

import (
	"math"
	"math/cmplx"

	"github.com/bdwalton/mbrot/orbit"
	"github.com/bdwalton/mbrot/qd"
)

// rebaseFloor is the minimum |z|_infinity below which the adaptive board
// will not rebase, to avoid trapping a pixel in subnormal float32 values
// (§4.3.c "Rebase with safety floor"). Empirically tuned; see §9 Open
// Question 1 for the unresolved principled derivation.
const rebaseFloor = 1e-13

// deepScaleSkipWindow is how far past initialScale the convergence
// checkpoint comparison is skipped (§4.3.c "Convergence at deep scales").
const deepScaleSkipWindow = 10

// pixelAdaptive is the per-pixel state of the adaptive GPU board: delta and
// dc stored as complex64 plus a signed scale exponent so that
// delta_actual = delta_stored * 2^scale always stays representable in f32
// (§3, §4.3.c).
type pixelAdaptive struct {
	dcStored     complex64
	deltaStored  complex64
	scale        int32
	initialScale int32
	refIter      int

	bStored       complex64
	bScale        int32
	hasCheckpoint bool

	nn int64
	pp uint64
}

// GPUAdaptiveBoard implements the adaptive per-pixel-scaling perturbation
// board used at extreme zoom (§4.3.c).
type GPUAdaptiveBoard struct {
	spec      ViewportSpec
	mgr       *orbit.Manager
	eps1      float64
	eps2      float64
	pixels    []pixelAdaptive
	active    []int32
	readback  *readbackBuffer
	iter      uint64
	cancelled bool
	escaped   int
	converged int
	chaotic   int
}

// NewGPUAdaptiveBoard constructs the board, deriving each pixel's
// initialScale from the viewport's pixel spacing (§3, §4.3.c).
func NewGPUAdaptiveBoard(spec ViewportSpec, deviceBufferLimit uint64) (*GPUAdaptiveBoard, error) {
	n := spec.N()
	if err := checkBufferLimit(n, deviceBufferLimit); err != nil {
		return nil, err
	}

	cRef := qd.ComplexQD{Re: spec.CRe, Im: spec.CIm}
	mgr := orbit.New(spec.Exponent, cRef, spec.ReferenceEscapeR)

	spacing := spec.PixelSpacing()
	initialScale := int32(math.Floor(math.Log2(spacing)))

	b := &GPUAdaptiveBoard{
		spec:     spec,
		mgr:      mgr,
		eps1:     periodicityEps(spec.PeriodicityEps1, spacing, 1),
		eps2:     periodicityEps(spec.PeriodicityEps2, spacing, 8),
		pixels:   make([]pixelAdaptive, n),
		active:   make([]int32, n),
		readback: newReadbackBuffer(int(spec.Width), int(spec.Height)),
	}

	idx := 0
	scratch := make(qd.QDScratch, 4)
	for row := 0; row < int(spec.Height); row++ {
		for col := 0; col < int(spec.Width); col++ {
			c := spec.PixelCenterInto(scratch, row, col)
			dc := qd.SubCQ(c, cRef)
			dcStored := complex(float32(dc.Re.Float64()), float32(dc.Im.Float64()))

			b.pixels[idx] = pixelAdaptive{
				dcStored:     dcStored,
				deltaStored:  1, // |delta_stored| ~= 1 initially (§3)
				scale:        initialScale,
				initialScale: initialScale,
			}
			cRe := dc.Re.Float64() + spec.CRe.Float64()
			cIm := dc.Im.Float64() + spec.CIm.Float64()
			if onChaoticSpike(spec.Exponent, cRe, cIm) {
				b.chaotic++
			}
			b.active[idx] = int32(idx)
			idx++
		}
	}
	return b, nil
}

func (b *GPUAdaptiveBoard) Cancel()               { b.cancelled = true }
func (b *GPUAdaptiveBoard) RemainingActive() int   { return len(b.active) }
func (b *GPUAdaptiveBoard) ChaoticSpikeCount() int { return b.chaotic }

func (b *GPUAdaptiveBoard) CurrentZ(index int) (re, im float64) {
	p := &b.pixels[index]
	z, err := b.mgr.OrbitAt(p.refIter)
	actual := ldexpC(p.deltaStored, p.scale)
	if err != nil {
		return float64(real(actual)), float64(imag(actual))
	}
	total := complex(z.Re.Float64(), z.Im.Float64()) + complex128(actual)
	return real(total), imag(total)
}

func (b *GPUAdaptiveBoard) CurrentC(index int) (re, im float64) {
	p := &b.pixels[index]
	return float64(real(p.dcStored)) + b.spec.CRe.Float64(), float64(imag(p.dcStored)) + b.spec.CIm.Float64()
}

func (b *GPUAdaptiveBoard) CurrentPeriod(index int) uint64 { return b.pixels[index].pp }

// ldexpC scales a complex64 by 2^k, matching the spec's ldexp(delta_stored,
// scale) notation.
func ldexpC(c complex64, k int32) complex64 {
	return complex(float32(math.Ldexp(float64(real(c)), int(k))), float32(math.Ldexp(float64(imag(c)), int(k))))
}

// renormalizeAdaptive converts an O(1)-magnitude total z value (a fresh δ
// against Z0=0, per the rebase contract in GLOSSARY/§7) into a proper
// (mantissa, exponent) pair in [0.5,2) rather than pairing it with a stale
// exponent: newScale is floor(log2(|total|_inf)), clamped so it never drops
// below initialScale (§3, §8 property 4).
func renormalizeAdaptive(total complex64, initialScale int32) (mantissa complex64, newScale int32) {
	mag := float64(chebyshevC64(total))
	if mag == 0 {
		return total, initialScale
	}
	newScale = int32(math.Floor(math.Log2(mag)))
	if newScale < initialScale {
		newScale = initialScale
	}
	return ldexpC(total, -newScale), newScale
}

// chebyshevC64 is the max-component norm used by the rescale/rebase tests.
func chebyshevC64(c complex64) float32 {
	re, im := real(c), imag(c)
	if re < 0 {
		re = -re
	}
	if im < 0 {
		im = -im
	}
	if re > im {
		return re
	}
	return im
}

// binom returns C(n,k) for the small n the engine handles (n<=~8).
func binom(n, k uint) float64 {
	if k > n {
		return 0
	}
	result := 1.0
	for i := uint(0); i < k; i++ {
		result = result * float64(n-i) / float64(i+1)
	}
	return result
}

// deltaNextAdaptive computes delta_new (unrescaled) for exponent n via the
// scaled binomial expansion of (Z+delta)^n - Z^n, each k-term carrying the
// 2^((k-1)*scale) factor the scaled representation requires (§4.3.c, §9).
// n=2 matches the spec's explicit linear+quad form exactly; n>2 sums every
// term directly rather than the Horner-reduction §9 suggests, trading that
// micro-optimization for a simpler, still-faithful kernel.
func deltaNextAdaptive(z complex128, deltaStored complex64, scale int32, n uint) complex64 {
	delta := complex128(deltaStored)
	acc := complex128(0)
	deltaPow := complex128(1)
	for k := uint(1); k <= n; k++ {
		deltaPow *= delta
		zPow := cmplx.Pow(z, complex(float64(n-k), 0))
		factor := math.Pow(2, float64(k-1)*float64(scale))
		term := complex(binom(n, k), 0) * zPow * deltaPow * complex(factor, 0)
		acc += term
	}
	return complex64(acc)
}

// IterateBatch advances every active pixel with the adaptive per-pixel
// scaling kernel of §4.3.c, rescaling delta_stored back into [0.5,2) after
// every step (§3 invariant, §8 property 4).
func (b *GPUAdaptiveBoard) IterateBatch(k uint64) Change {
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
			curIter := b.iter + step + 1

			zq, err := b.mgr.OrbitAt(p.refIter)
			if err != nil {
				p.nn = int64(curIter)
				finished = true
				break
			}
			z := complex(zq.Re.Float64(), zq.Im.Float64())

			dcTerm := ldexpC(p.dcStored, p.initialScale-p.scale)
			deltaNew := deltaNextAdaptive(z, p.deltaStored, p.scale, n) + dcTerm
			scale := p.scale

			if chebyshevC64(deltaNew) > 2 {
				deltaNew = deltaNew / 2
				scale++
			} else if chebyshevC64(deltaNew) < 0.5 && scale > p.initialScale {
				deltaNew = deltaNew * 2
				scale--
			}

			znextq, err := b.mgr.OrbitAt(p.refIter + 1)
			var total complex64
			if err != nil {
				// §7: rebase to iteration 0 using the current total z as
				// the new δ against Z0=0; renormalize it into a proper
				// (mantissa, exponent) pair rather than pairing it with
				// whatever exponent the orbit-exhaustion left behind.
				actual := ldexpC(deltaNew, scale)
				total = complex64(z) + actual
				p.deltaStored, p.scale = renormalizeAdaptive(total, p.initialScale)
				p.refIter = 0
				deltaNew, scale = p.deltaStored, p.scale
			} else {
				znext := complex(znextq.Re.Float64(), znextq.Im.Float64())
				actual := ldexpC(deltaNew, scale)
				total = complex64(znext) + actual

				rebaseCandidate := chebyshevC64(total) < 2*chebyshevC64(actual)
				if rebaseCandidate && float64(chebyshevC64(total)) > rebaseFloor {
					p.deltaStored, p.scale = renormalizeAdaptive(total, p.initialScale)
					p.refIter = 0
					deltaNew, scale = p.deltaStored, p.scale
				} else {
					p.deltaStored, p.scale = deltaNew, scale
					p.refIter++
				}
			}

			absSq := real(total)*real(total) + imag(total)*imag(total)
			if absSq > 4 {
				p.nn = int64(curIter)
				finished = true
				break
			}

			if scale <= p.initialScale+deepScaleSkipWindow {
				commonScale := scale
				if p.bScale < commonScale {
					commonScale = p.bScale
				}
				curD := ldexpC(p.deltaStored, p.scale-commonScale)
				bD := ldexpC(p.bStored, p.bScale-commonScale)
				d := delta(float64(real(curD)), float64(imag(curD)), float64(real(bD)), float64(imag(bD)))
				if p.hasCheckpoint && d <= b.eps1 {
					p.nn = -int64(curIter)
					finished = true
					break
				}
				if p.hasCheckpoint && d <= b.eps2 && p.pp == 0 {
					p.pp = curIter
				}
			}

			if isCheckpointIteration(curIter) {
				p.bStored, p.bScale, p.hasCheckpoint = p.deltaStored, p.scale, true
				p.pp = 0
			}

			cRe := float64(real(p.dcStored)) + b.spec.CRe.Float64()
			cIm := float64(imag(p.dcStored)) + b.spec.CIm.Float64()
			isChaotic := onChaoticSpike(n, cRe, cIm)
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
		zRe, zIm := b.CurrentZ(idx)
		if p.nn > 0 {
			ch.Escaped = append(ch.Escaped, idx)
			b.escaped++
		} else {
			ch.Converged = append(ch.Converged, ConvergedPixel{
				Index: idx, ZRe: qd.NewQD(zRe), ZIm: qd.NewQD(zIm), Period: p.pp,
			})
			b.converged++
		}
	}
	return ch
}
