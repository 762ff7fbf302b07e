package board

import "errors"

// ErrBufferTooLarge is returned at construction when a GPU board's
// per-pixel state would exceed the device buffer limit (§5, §7).
var ErrBufferTooLarge = errors.New("board: requested GPU buffer exceeds device limit")

// ErrBackendFault names a lost GPU device or a failed shader submission
// (§7). No board in this package returns it: the GPU boards run their
// kernels in Go and use an ebiten image only as a readback buffer, which
// has no fault path.
var ErrBackendFault = errors.New("board: GPU backend fault")
