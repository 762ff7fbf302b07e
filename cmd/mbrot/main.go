// Command mbrot drives the escape-time/periodicity engine over a single
// viewport and reports progress to the console. It deliberately does not
// render or export an image: rasterizing the change stream into pixels is
// left to a front-end consuming this engine (§4, Non-goals).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/bdwalton/mbrot/board"
	"github.com/bdwalton/mbrot/boardselect"
	"github.com/bdwalton/mbrot/qd"
	"github.com/bdwalton/mbrot/scheduler"
)

var (
	width    = flag.Uint("width", 640, "Viewport width in pixels.")
	height   = flag.Uint("height", 480, "Viewport height in pixels.")
	centerRe = flag.String("center_re", "-0.5", "Real part of the viewport center, as a decimal string.")
	centerIm = flag.String("center_im", "0", "Imaginary part of the viewport center, as a decimal string.")
	size     = flag.String("size", "3", "Viewport size (height of the view in the complex plane; the width is scaled by width/height), as a decimal string.")
	exponent = flag.Uint("exponent", 2, "Multibrot exponent n in z^n+c.")

	forceBoard = flag.String("force_board", "auto", "Board strategy: auto|direct_f32|direct_dd|direct_qd|pert_dd|pert_qd|gpu_shallow|gpu_pert_f32|gpu_adaptive.")
	disableGPU = flag.Bool("disable_gpu", false, "Treat the capability probe as if no GPU were available.")
	maxIter    = flag.Uint("max_iter", board.DefaultMaxIter, "Hard cap on iterations per pixel.")
	batchSize  = flag.Uint64("batch_size", board.DefaultBatchSize, "Scheduler batch granularity.")
	refEscapeR = flag.Float64("reference_escape_radius", 0, "Reference orbit escape radius; 0 selects the engine default.")

	deviceBufferLimit = flag.Uint64("device_buffer_limit", 0, "GPU device buffer limit in bytes; 0 selects the engine default (256MB).")

	progressEvery = flag.Duration("progress_interval", time.Second, "How often to log progress counters.")
)

func parseForceBoard(s string) boardselect.Kind {
	switch s {
	case "direct_f32":
		return boardselect.DirectF32
	case "direct_dd":
		return boardselect.DirectDD
	case "direct_qd":
		return boardselect.DirectQD
	case "pert_dd":
		return boardselect.PertDD
	case "pert_qd":
		return boardselect.PertQD
	case "gpu_shallow":
		return boardselect.GPUShallow
	case "gpu_pert_f32":
		return boardselect.GPUPertF32
	case "gpu_adaptive":
		return boardselect.GPUAdaptive
	default:
		return boardselect.Auto
	}
}

func main() {
	flag.Parse()

	cRe, err := qd.ParseQD(*centerRe)
	if err != nil {
		log.Fatalf("Invalid center_re: %v", err)
	}
	cIm, err := qd.ParseQD(*centerIm)
	if err != nil {
		log.Fatalf("Invalid center_im: %v", err)
	}
	sz, err := qd.ParseQD(*size)
	if err != nil {
		log.Fatalf("Invalid size: %v", err)
	}

	spec := board.ViewportSpec{
		Width: *width, Height: *height,
		CRe: cRe, CIm: cIm, Size: sz,
		Exponent:         *exponent,
		MaxIter:          *maxIter,
		ReferenceEscapeR: *refEscapeR,
	}

	zoom := 3.0 / sz.Float64() // base_size of 3 matches the default viewport above
	caps := boardselect.Capabilities{GPU: !*disableGPU, DeviceBufferLimit: *deviceBufferLimit}

	b, kind, err := boardselect.SelectAndConstruct(parseForceBoard(*forceBoard), zoom, spec, caps, *disableGPU)
	if err != nil {
		log.Fatalf("Couldn't select a board: %v", err)
	}
	log.Printf("Running %d x %d viewport with board %v", *width, *height, kind)

	s := scheduler.New(b, scheduler.WithBatchSize(*batchSize))

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		log.Printf("Interrupted, cancelling...")
		cancel()
	}()

	ticker := time.NewTicker(*progressEvery)
	defer ticker.Stop()

	ch := s.Run(ctx)
	for {
		select {
		case change, ok := <-ch:
			if !ok {
				p := s.Progress()
				log.Printf("Done: iter=%d escaped=%d converged=%d chaotic=%d", p.Iter, p.Escaped, p.Converged, p.Chaotic)
				cancel()
				os.Exit(0)
			}
			_ = change
		case <-ticker.C:
			p := s.Progress()
			log.Printf("iter=%d active=%d escaped=%d converged=%d chaotic=%d", p.Iter, p.Active, p.Escaped, p.Converged, p.Chaotic)
		}
	}
}
