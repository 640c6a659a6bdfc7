// Package process terminates browser process trees.
//
// Chrome forks renderer, GPU and utility helpers. Killing only the main
// process can leave them running after a session is released, so sessions
// that own their browser kill the whole group.
package process

import "errors"

// ErrInvalidPID is returned for pids that would address the caller's own
// process group.
var ErrInvalidPID = errors.New("process: pid must be positive")
