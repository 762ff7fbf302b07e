// Package boardselect chooses which board implementation is appropriate
// for a given zoom depth and hardware capability set (spec §4.5), and
// constructs it. It mirrors the teacher's mappers package: a small
// registry-style lookup keyed on a discrete enum rather than a free-form
// string, returning a typed error when nothing matches.
package boardselect

import (
	"errors"
	"fmt"

	"github.com/bdwalton/mbrot/board"
)

// cpuFallback names the CPU board each GPU kind downgrades to when its
// device buffer would exceed the configured limit (§5 "GPU resources",
// §6 "disable_gpu" — the same mapping Resolve uses for an explicit
// disable_gpu request, reused here for an implicit one).
func cpuFallback(k Kind) (Kind, bool) {
	switch k {
	case GPUShallow:
		return DirectF32, true
	case GPUPertF32:
		return PertDD, true
	case GPUAdaptive:
		return PertQD, true
	default:
		return k, false
	}
}

// ErrBoardUnsupported is returned when no board satisfies the
// (zoom, exponent, capabilities) triple (§4.5, §7).
var ErrBoardUnsupported = errors.New("boardselect: no board available for this zoom/capability combination")

// Kind names one of the engine's board strategies, matching the
// force_board enum (§6 "Inbound: runtime control").
type Kind int

const (
	Auto Kind = iota
	DirectF32
	DirectDD
	DirectQD
	PertDD
	PertQD
	GPUShallow
	GPUPertF32
	GPUAdaptive
)

func (k Kind) String() string {
	switch k {
	case Auto:
		return "auto"
	case DirectF32:
		return "direct_f32"
	case DirectDD:
		return "direct_dd"
	case DirectQD:
		return "direct_qd"
	case PertDD:
		return "pert_dd"
	case PertQD:
		return "pert_qd"
	case GPUShallow:
		return "gpu_shallow"
	case GPUPertF32:
		return "gpu_pert_f32"
	case GPUAdaptive:
		return "gpu_adaptive"
	default:
		return fmt.Sprintf("boardselect.Kind(%d)", int(k))
	}
}

// Capabilities describes what the current process can offer a board
// (§4.5, §5 "GPU resources").
type Capabilities struct {
	GPU               bool
	DeviceBufferLimit uint64 // 0 selects the board's own default (256MB)
}

// zoom boundaries from the §4.5 selection table.
const (
	zoomShallowMax  = 1e7
	zoomDeepMax     = 1e15
	zoomExtremeMax  = 1e20
	zoomAdaptiveMax = 1e60
)

// Select applies the ordered §4.5 table to pick a Kind for the given zoom
// factor (base_size / current_size) and capabilities. It never returns
// Auto; callers that want automatic selection pass Auto in and receive a
// concrete Kind back.
func Select(zoom float64, caps Capabilities) (Kind, error) {
	switch {
	case zoom < zoomShallowMax:
		if caps.GPU {
			return GPUShallow, nil
		}
		return DirectF32, nil
	case zoom < zoomDeepMax:
		if caps.GPU {
			return GPUPertF32, nil
		}
		return PertDD, nil
	case zoom < zoomExtremeMax:
		return GPUPertF32, nil
	case zoom <= zoomAdaptiveMax:
		if caps.GPU {
			return GPUAdaptive, nil
		}
		return PertQD, nil
	default:
		return Kind(-1), ErrBoardUnsupported
	}
}

// Resolve turns a (possibly forced) Kind, a zoom factor, and capabilities
// into the Kind that should actually be constructed: Auto defers to
// Select, disable_gpu downgrades any GPU choice to its CPU counterpart,
// and anything else passes through as an explicit override (§6
// "force_board", "disable_gpu").
func Resolve(requested Kind, zoom float64, caps Capabilities, disableGPU bool) (Kind, error) {
	if disableGPU {
		caps.GPU = false
	}

	k := requested
	if k == Auto {
		var err error
		k, err = Select(zoom, caps)
		if err != nil {
			return k, err
		}
	}

	if disableGPU {
		switch k {
		case GPUShallow:
			k = DirectF32
		case GPUPertF32:
			k = PertDD
		case GPUAdaptive:
			k = PertQD
		}
	}
	return k, nil
}

// Construct builds the concrete board for kind. DirectF32, DirectDD and
// DirectQD all build a board.DirectDDBoard: at the shallow zoom where a
// direct board is ever selected, DD precision already has ample headroom —
// see DESIGN.md for the full rationale. board.DirectF64Board is not built
// here. PertDD/PertQD and GPUShallow/GPUAdaptive
// map onto their dedicated implementations directly; GPUPertF32 is served
// by the adaptive board, which generalizes a fixed-precision f32
// perturbation kernel with per-pixel rescaling.
func Construct(kind Kind, spec board.ViewportSpec, caps Capabilities) (board.Board, error) {
	switch kind {
	case DirectF32, DirectDD:
		return board.NewDirectDDBoard(spec), nil
	case DirectQD:
		return board.NewDirectDDBoard(spec), nil
	case PertDD:
		return board.NewPerturbationDDBoard(spec), nil
	case PertQD:
		return board.NewPerturbationQDBoard(spec), nil
	case GPUShallow:
		return board.NewGPUShallowBoard(spec, caps.DeviceBufferLimit)
	case GPUPertF32, GPUAdaptive:
		return board.NewGPUAdaptiveBoard(spec, caps.DeviceBufferLimit)
	default:
		return nil, fmt.Errorf("boardselect: %w: kind %v", ErrBoardUnsupported, kind)
	}
}

// SelectAndConstruct is the convenience entry point combining Resolve and
// Construct for a single call site (§6 force_board/disable_gpu handling). If
// the resolved kind is a GPU board and its buffer would exceed the device
// limit, it automatically downgrades to that kind's CPU counterpart rather
// than failing the whole render (§5 "GPU resources"); a kind with no CPU
// counterpart, or a non-buffer-size error, is returned unchanged.
func SelectAndConstruct(requested Kind, zoom float64, spec board.ViewportSpec, caps Capabilities, disableGPU bool) (board.Board, Kind, error) {
	k, err := Resolve(requested, zoom, caps, disableGPU)
	if err != nil {
		return nil, k, err
	}
	b, err := Construct(k, spec, caps)
	if err != nil && errors.Is(err, board.ErrBufferTooLarge) {
		if fallback, ok := cpuFallback(k); ok {
			k = fallback
			b, err = Construct(k, spec, caps)
		}
	}
	return b, k, err
}
