package orbit

import "errors"

// ErrReferenceOrbitExhausted is returned by OrbitAt when a caller asks for
// an index beyond the orbit's current length and the orbit has already
// escaped, so extending further is pointless (§4.2, §7).
var ErrReferenceOrbitExhausted = errors.New("orbit: reference orbit exhausted (escaped before requested index)")
