package board

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// bytesPerGPUPixel is the conservative per-pixel byte estimate used for the
// §5 device-buffer-limit check (c, z/delta, scale and bookkeeping packed
// into a handful of float32/int32 lanes).
const bytesPerGPUPixel = 16

// defaultDeviceBufferLimit is the 256MB default from §5/§4.5.
const defaultDeviceBufferLimit = 256 * 1024 * 1024

// checkBufferLimit returns ErrBufferTooLarge if N pixels at
// bytesPerGPUPixel each would exceed limit (0 meaning the default).
func checkBufferLimit(n int, limit uint64) error {
	if limit == 0 {
		limit = defaultDeviceBufferLimit
	}
	if uint64(n)*bytesPerGPUPixel > limit {
		return ErrBufferTooLarge
	}
	return nil
}

// readbackBuffer mirrors the finished-pixel list on the GPU side: one
// ebiten.Image pixel per board pixel, set opaque white when that pixel
// finishes this batch and black otherwise, then unmapped via ReadPixels
// each tick (§4.3.d, §5 "results-readback buffer").
//
// This is the direct generalization of the teacher's Bus.Draw, which reads
// px.At(x,y) off the PPU's pixel buffer; here the board itself owns the
// image and decodes it instead of handing it to a renderer.
type readbackBuffer struct {
	img           *ebiten.Image
	width, height int
	pix           []byte // scratch for ReadPixels, reused across batches
}

func newReadbackBuffer(width, height int) *readbackBuffer {
	return &readbackBuffer{
		img:    ebiten.NewImage(width, height),
		width:  width,
		height: height,
		pix:    make([]byte, width*height*4),
	}
}

func (r *readbackBuffer) markFinished(index int) {
	x, y := index%r.width, index/r.width
	r.img.Set(x, y, color.White)
}

func (r *readbackBuffer) clear(index int) {
	x, y := index%r.width, index/r.width
	r.img.Set(x, y, color.Black)
}

// drainFinished reads the buffer back and returns the indices currently
// marked finished, clearing them so the same pixel never surfaces twice
// (§4.4 "No duplicate pixel index ever surfaces").
func (r *readbackBuffer) drainFinished() []int {
	r.img.ReadPixels(r.pix)
	var finished []int
	for i := 0; i < r.width*r.height; i++ {
		if r.pix[i*4] != 0 {
			finished = append(finished, i)
			r.clear(i)
		}
	}
	return finished
}
