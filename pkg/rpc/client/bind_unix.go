//go:build unix

package client

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isBindError reports whether err means the chosen local port cannot be
// used, so that another port may succeed.
func isBindError(err error) bool {
	return errors.Is(err, unix.EADDRINUSE) ||
		errors.Is(err, unix.EADDRNOTAVAIL) ||
		errors.Is(err, unix.EACCES) ||
		errors.Is(err, unix.EPERM)
}
