// SPDX-License-Identifier: MIT
package frontend

import "errors"

// Errors returned by New and the Process family. Callers match them with
// errors.Is; the returned values usually wrap them with more detail.
var (
	ErrInvalidConfig = errors.New("frontend: invalid configuration")
	ErrNilFrontend   = errors.New("frontend: nil frontend")
	ErrNilChunk      = errors.New("frontend: nil audio chunk")
	ErrChunkSize     = errors.New("frontend: chunk length does not match step size")
	ErrOutputBuffer  = errors.New("frontend: output buffer too small")
	ErrClosed        = errors.New("frontend: use of closed frontend")
)
