//go:build !linux

package sessionhelper

import "errors"

// allocateVT has no portable equivalent outside Linux's VT subsystem; the
// BSDs manage virtual terminals differently and aren't a target for
// wayland-session VT allocation in this core.
func allocateVT() (int, error) {
	return 0, errors.New("sessionhelper: VT allocation is not supported on this platform")
}
