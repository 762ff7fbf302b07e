package qd

import "errors"

// ErrParseQD is returned when a decimal string cannot be parsed into a DD
// or QD value.
var ErrParseQD = errors.New("qd: malformed numeric literal")
