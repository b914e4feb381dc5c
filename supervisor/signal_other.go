//go:build !unix

package supervisor

import (
	"fmt"
	"os"
)

func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProcessGone, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("%w: %w", ErrProcessGone, err)
	}
	return nil
}
