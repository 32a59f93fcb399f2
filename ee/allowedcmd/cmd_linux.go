//go:build linux

package allowedcmd

// Xorg is the X11 display server binary. The supervisor assembles its
// argv; this only fixes the executable's known install locations.
var Xorg = newAllowedCommand("/usr/bin/Xorg", "/usr/lib/xorg/Xorg", "/usr/lib/xorg-server/Xorg")

// Xauth materializes and edits Xauthority files.
var Xauth = newAllowedCommand("/usr/bin/xauth")

// XsetRoot sets the root-window cursor once a display is up.
var XsetRoot = newAllowedCommand("/usr/bin/xsetroot")

// Loginctl enumerates console (graphical) sessions per seat.
var Loginctl = newAllowedCommand("/usr/bin/loginctl")

// Sh runs the configured display-setup/display-stop shell commands.
var Sh = newAllowedCommand("/bin/sh")
