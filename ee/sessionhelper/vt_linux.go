//go:build linux

package sessionhelper

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// allocateVT asks the kernel's VT subsystem for the next unused virtual
// terminal number, the mechanism wayland sessions use to get a VT of
// their own instead of sharing the caller's.
func allocateVT() (int, error) {
	tty0, err := os.OpenFile("/dev/tty0", os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("opening /dev/tty0: %w", err)
	}
	defer tty0.Close()

	n, err := unix.IoctlGetInt(int(tty0.Fd()), unix.VT_OPENQRY)
	if err != nil {
		return 0, fmt.Errorf("VT_OPENQRY: %w", err)
	}

	return n, nil
}
