// Package instance enforces that at most one daemon runs per session.
package instance

import "errors"

// ErrAlreadyRunning means another daemon instance holds the mutex.
var ErrAlreadyRunning = errors.New("another instance is already running")
