//go:build unix

package supervisor

import (
	stderrors "errors"
	"fmt"
	"syscall"
)

// terminate sends SIGTERM to the process group led by pid, so a shell
// wrapper takes its children down with it. A pid that leads no group is
// signalled on its own.
func terminate(pid int) error {
	if pid <= 1 {
		return fmt.Errorf("refusing to signal pid %d", pid)
	}

	err := syscall.Kill(-pid, syscall.SIGTERM)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, syscall.ESRCH) && !stderrors.Is(err, syscall.EPERM) {
		return err
	}

	err = syscall.Kill(pid, syscall.SIGTERM)
	if stderrors.Is(err, syscall.ESRCH) {
		return ErrProcessGone
	}
	return err
}
