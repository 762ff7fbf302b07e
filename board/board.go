// Package board implements the family of interchangeable escape-time
// boards (spec §4.3): each owns its own per-pixel state layout and
// iteration kernel but exposes the same contract so the scheduler can drive
// any of them identically.
package board

import (
	"github.com/bdwalton/mbrot/qd"
)

// MaxChaoticIterations bounds how long a pixel on the chaotic spike (the
// real-axis segment where orbits are chaotic but bounded, GLOSSARY) is
// allowed to run before being declared convergent by cap (§3 invariants).
const MaxChaoticIterations = 100_000

// DefaultMaxIter is the default iteration ceiling (§6, force_board table).
const DefaultMaxIter = 100_000

// DefaultBatchSize is the scheduler's default batch granularity (§6).
const DefaultBatchSize = 100

// ViewportSpec describes a board's fixed construction-time viewport (§3,
// §6 "Inbound: board construction"). It is immutable for the board's
// lifetime.
type ViewportSpec struct {
	Width, Height     uint
	CRe, CIm          qd.QD
	Size              qd.QD
	Exponent          uint
	MaxIter           uint
	PeriodicityEps1   float64
	PeriodicityEps2   float64
	ReferenceEscapeR  float64 // reference_escape_radius (§6); 0 = default
}

// N returns the total pixel count.
func (v ViewportSpec) N() int { return int(v.Width) * int(v.Height) }

// PixelCenter returns the complex c value for pixel (row, col) in QD
// precision, derived from (row, column, center, size) per §3 "Lifecycle".
func (v ViewportSpec) PixelCenter(row, col int) qd.ComplexQD {
	scratch := make(qd.QDScratch, 4)
	return v.PixelCenterInto(scratch, row, col)
}

// PixelCenterInto is the allocation-free form of PixelCenter (§4.1, §9):
// board constructors loop over every pixel in the viewport, so they pass one
// reused scratch buffer for the whole loop instead of letting PixelCenter
// allocate its own scratch on every call.
func (v ViewportSpec) PixelCenterInto(scratch qd.QDScratch, row, col int) qd.ComplexQD {
	w, h := float64(v.Width), float64(v.Height)
	// Map col/row in [0,W)x[0,H) to [-0.5,0.5]x[-0.5,0.5] (aspect corrected
	// to height, matching the teacher's Layout() returning a fixed
	// resolution that the consumer scales rather than the engine).
	fx := (float64(col)+0.5)/w - 0.5
	fy := (float64(row)+0.5)/h - 0.5
	aspect := w / h

	qd.MulQDInto(scratch, 0, v.Size, qd.NewQD(fx*aspect))
	qd.MulQDInto(scratch, 1, v.Size, qd.NewQD(fy))
	qd.AddQDInto(scratch, 2, v.CRe, scratch[0])
	qd.AddQDInto(scratch, 3, v.CIm, scratch[1])
	return qd.ComplexQD{Re: scratch[2], Im: scratch[3]}
}

// PixelSpacing returns the real-plane distance between adjacent pixels,
// used to derive initialScale for the adaptive board (§4.3.c) and sane
// periodicity epsilons when the caller didn't supply any.
func (v ViewportSpec) PixelSpacing() float64 {
	// PixelCenterInto spans Size over Height rows and Size*Width/Height over
	// Width columns, so both axes share the spacing Size/Height.
	return v.Size.Float64() / float64(v.Height)
}

func maxUint(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}

// ConvergedPixel describes one newly-convergent pixel in a Change record
// (§6 "Outbound: change stream").
type ConvergedPixel struct {
	Index        int
	ZRe, ZIm     qd.QD
	Period       uint64
}

// Change is the result of one IterateBatch call: the pixels that crossed
// from active to finished during that batch (§4.3, §4.4).
type Change struct {
	Iter      uint64
	Escaped   []int
	Converged []ConvergedPixel
}

// Empty reports whether the change carries no finished pixels.
func (c Change) Empty() bool { return len(c.Escaped) == 0 && len(c.Converged) == 0 }

// Board is the uniform contract every numerical strategy implements (§4.3).
type Board interface {
	// IterateBatch performs up to k scheduler-level iterations and
	// returns the pixels that finished during this batch.
	IterateBatch(k uint64) Change

	RemainingActive() int
	ChaoticSpikeCount() int

	CurrentZ(index int) (re, im float64)
	CurrentC(index int) (re, im float64)
	CurrentPeriod(index int) uint64

	// Cancel requests that subsequent IterateBatch calls return promptly
	// without starting further kernel work (§4.4 "Cancellation").
	Cancel()
}

// onChaoticSpike reports whether c lies on the real-axis segment where n=2
// Mandelbrot orbits are chaotic but bounded (GLOSSARY, §4.3.a). Such pixels
// are declared convergent only by reaching MaxChaoticIterations.
func onChaoticSpike(n uint, cRe, cIm float64) bool {
	return n == 2 && cIm == 0 && cRe > -2 && cRe < -1.401155
}

// delta returns the L1 distance |Re(z)-Re(b)| + |Im(z)-Im(b)| used by the
// convergence test (§4.3.a).
func delta(zRe, zIm, bRe, bIm float64) float64 {
	d := zRe - bRe
	if d < 0 {
		d = -d
	}
	e := zIm - bIm
	if e < 0 {
		e = -e
	}
	return d + e
}
