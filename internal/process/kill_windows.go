//go:build windows

package process

import (
	"errors"
	"os/exec"
	"strconv"
)

// KillProcessGroup kills pid and its children with taskkill (/T tree kill).
// taskkill exits non-zero when the tree is already gone; that is not an error.
func KillProcessGroup(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
