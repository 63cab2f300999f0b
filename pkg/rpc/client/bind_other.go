//go:build !unix

package client

import (
	"errors"
	"os"
)

// isBindError reports whether err came from binding the local port.
func isBindError(err error) bool {
	var se *os.SyscallError
	return errors.As(err, &se) && se.Syscall == "bind"
}
