package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/kolide/displayd/ee/config"
	"github.com/peterbourgon/ff/v3"
)

// options bundles the config.Snapshot the Supervisor/Orchestrator
// consume together with the handful of settings (binary paths, debug
// logging) that belong to the daemon itself rather than to the display.
type options struct {
	snapshot config.Snapshot

	HelperPath    string
	GreeterPath   string
	SessionPath   string
	AutologinUser string
	LogPath       string
	Debug         bool
}

// parseOptions parses displayd's command line and environment. Flags
// without a DISPLAYD_ prefix are also readable as DISPLAYD_<FLAG_NAME>
// environment variables.
func parseOptions(args []string) (*options, error) {
	flagset := flag.NewFlagSet("displayd", flag.ContinueOnError)

	var (
		flSeat              = flagset.String("seat", "seat0", "seat name")
		flIsPrimarySeat     = flagset.Bool("is_primary_seat", true, "whether this seat owns the controlling terminal")
		flTerminalID        = flagset.String("terminal_id", "2", "virtual terminal number for the primary seat")
		flServerPath        = flagset.String("server_path", "/usr/bin/X", "X server executable")
		flServerArgs        = flagset.String("server_args", "", "space-delimited extra X server arguments")
		flNested            = flagset.Bool("nested", false, "run a nested (Xephyr-style) X server")
		flSeatConfDir       = flagset.String("seat_conf_dir", "/etc/displayd/seats", "per-seat nested config directory")
		flCursorTheme       = flagset.String("cursor_theme", "default", "XCURSOR_THEME for the display and setup hooks")
		flStopCommand       = flagset.String("display_stop_command", "", "command run once the display server exits")
		flStopTimeout       = flagset.Duration("display_stop_timeout", 5*time.Second, "timeout for display_stop_command")
		flSetupCommand      = flagset.String("display_setup_command", "", "command run once the display reaches running")
		flSetupTimeout      = flagset.Duration("display_setup_timeout", 30*time.Second, "timeout for display_setup_command")
		flCursorSetupTimeout = flagset.Duration("cursor_setup_timeout", time.Second, "timeout for the xsetroot cursor-setup call")
		flStopGracePeriod   = flagset.Duration("stop_grace_period", 5*time.Second, "grace period before force-killing the display server")
		flRuntimeDir        = flagset.String("runtime_dir", "/run/displayd", "directory for authority files and rendezvous sockets")
		flServiceUser       = flagset.String("service_user", "displayd", "unprivileged user that owns authority files")
		flDefaultPath       = flagset.String("default_path", "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin", "PATH given to the display-stop command")

		flHelperPath    = flagset.String("helper_path", "/usr/libexec/displayd/session-helper", "setuid session-helper executable")
		flGreeterPath   = flagset.String("greeter_path", "/usr/libexec/displayd/greeter", "greeter session executable")
		flSessionPath   = flagset.String("session_path", "/usr/bin/env", "wrapper that execs the user's chosen session")
		flAutologinUser = flagset.String("autologin_user", "", "if set, skip the greeter and launch this user's session directly")
		flLogPath       = flagset.String("log_path", "", "if set, write rotated JSON logs here instead of stderr")
		flDebug         = flagset.Bool("debug", false, "enable debug logging")
	)

	if err := ff.Parse(flagset, args, ff.WithEnvVarPrefix("DISPLAYD")); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	return &options{
		snapshot: config.Snapshot{
			Seat:                 *flSeat,
			IsPrimarySeat:        *flIsPrimarySeat,
			TerminalID:           *flTerminalID,
			ServerPath:           *flServerPath,
			ServerArgs:           *flServerArgs,
			Nested:               *flNested,
			SeatConfDir:          *flSeatConfDir,
			CursorTheme:          *flCursorTheme,
			DisplayStopCommand:   *flStopCommand,
			DisplayStopTimeout:   *flStopTimeout,
			DisplaySetupCommand:  *flSetupCommand,
			DisplaySetupTimeout:  *flSetupTimeout,
			CursorSetupTimeout:   *flCursorSetupTimeout,
			StopGracePeriod:      *flStopGracePeriod,
			RuntimeDir:           *flRuntimeDir,
			ServiceUser:          *flServiceUser,
			DefaultPath:          *flDefaultPath,
		},
		HelperPath:    *flHelperPath,
		GreeterPath:   *flGreeterPath,
		SessionPath:   *flSessionPath,
		AutologinUser: *flAutologinUser,
		LogPath:       *flLogPath,
		Debug:         *flDebug,
	}, nil
}
