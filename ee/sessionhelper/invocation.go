// Package sessionhelper implements the privileged side of session launch:
// a setuid binary that authenticates a user against a pluggable Backend
// and, on success, spawns their session, exchanging progress with the
// unprivileged Orchestrator over a sessionipc.Channel.
package sessionhelper

import (
	"errors"
	"flag"
	"fmt"

	"github.com/peterbourgon/ff/v3"
)

// Exit codes surfaced to the Orchestrator. Any other nonzero code is a
// session-propagated exit status, not one of these.
const (
	ExitSuccess    = 0
	ExitAuthError  = 1
	ExitSessionErr = 2
	ExitOtherError = 3
)

// HelperInvocation is the parameter bundle the Orchestrator hands the
// Helper on its command line. It's immutable from the Helper's
// perspective once parsed.
type HelperInvocation struct {
	SocketPath string
	ID         int64
	User       string
	StartPath  string
	Autologin  bool
	Greeter    bool
}

var errMissingRequired = errors.New("sessionhelper: this program is not meant to be run manually")

// ParseInvocation parses the Helper's command line. A missing --socket or
// a non-positive --id is a hard failure -- callers should exit with
// ExitOtherError rather than ever invoke the Driver.
func ParseInvocation(args []string) (HelperInvocation, error) {
	flagset := flag.NewFlagSet("session-helper", flag.ContinueOnError)

	flSocket := flagset.String("socket", "", "rendezvous socket path")
	flID := flagset.Int64("id", 0, "session correlation id")
	flUser := flagset.String("user", "", "user name to authenticate as")
	flStart := flagset.String("start", "", "session executable to launch on success")
	flAutologin := flagset.Bool("autologin", false, "treat this invocation as an autologin")
	flGreeter := flagset.Bool("greeter", false, "this session is the greeter, not a user session")

	if err := ff.Parse(flagset, args); err != nil {
		return HelperInvocation{}, fmt.Errorf("%w: %v", errMissingRequired, err)
	}

	if *flSocket == "" || *flID <= 0 {
		return HelperInvocation{}, errMissingRequired
	}

	return HelperInvocation{
		SocketPath: *flSocket,
		ID:         *flID,
		User:       *flUser,
		StartPath:  *flStart,
		Autologin:  *flAutologin,
		Greeter:    *flGreeter,
	}, nil
}
