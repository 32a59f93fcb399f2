package sessionhelper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/kolide/displayd/ee/accounting"
	"github.com/kolide/displayd/ee/observability"
	"github.com/kolide/displayd/ee/sessionipc"
)

// Driver runs the Helper's side of the privileged session-launch
// lifecycle described in the component design: connect, authenticate via
// Backend, exchange AUTHENTICATED, optionally spawn and wait on the
// session, and always pair a successful login with a logout record.
type Driver struct {
	invocation HelperInvocation
	backend    Backend
	logger     *slog.Logger

	dial func(path string) (net.Conn, error)
}

// NewDriver constructs a Driver. A nil logger defaults to slog.Default().
func NewDriver(invocation HelperInvocation, backend Backend, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		invocation: invocation,
		backend:    backend,
		logger:     logger,
		dial: func(path string) (net.Conn, error) {
			return net.Dial("unix", path)
		},
	}
}

// Run executes the full lifecycle and returns the process exit code the
// caller's main() should propagate.
func (d *Driver) Run(ctx context.Context) int {
	conn, err := d.dial(d.invocation.SocketPath)
	if err != nil {
		d.logger.Error("connecting to rendezvous socket", "err", err)
		return ExitOtherError
	}
	defer conn.Close()

	channel := sessionipc.NewChannel(conn)
	defer channel.Close()

	if err := channel.Send(sessionipc.HelloFrame(d.invocation.ID)); err != nil {
		d.logger.Error("sending HELLO", "err", err)
		return ExitOtherError
	}

	prompter := &channelPrompter{channel: channel}

	if err := d.backend.Start(ctx, d.invocation.User, prompter); err != nil {
		return d.failAuth(ctx, channel, err)
	}

	user, err := d.backend.Authenticate(ctx, prompter)
	if err != nil {
		return d.failAuth(ctx, channel, err)
	}

	ctx, span := observability.StartSpan(ctx, "user", user)
	defer span.End()

	if err := channel.Send(sessionipc.AuthenticatedQuery(user)); err != nil {
		d.logger.Error("sending AUTHENTICATED", "err", err)
		return ExitOtherError
	}

	reply, err := channel.Expect(sessionipc.OpcodeAuthenticated)
	if err != nil {
		d.logger.Error("receiving AUTHENTICATED reply", "err", err)
		return ExitOtherError
	}

	if d.invocation.StartPath == "" {
		return ExitSuccess
	}

	return d.launchSession(ctx, channel, user, reply.Env, reply.Cookie)
}

func (d *Driver) failAuth(ctx context.Context, channel *sessionipc.Channel, cause error) int {
	if err := channel.Send(sessionipc.AuthenticatedQuery("")); err != nil {
		d.logger.Error("sending failure AUTHENTICATED", "err", err)
	}

	if err := accounting.Login("", "", d.invocation.User, 0, false); err != nil {
		d.logger.Error("writing failed login accounting", "err", err)
	}

	d.logger.Warn("authentication failed", "err", cause)
	return ExitAuthError
}

func (d *Driver) launchSession(ctx context.Context, channel *sessionipc.Channel, user string, env map[string]string, cookie string) int {
	merged := make(map[string]string, len(env)+2)
	for k, v := range env {
		merged[k] = v
	}
	if cookie != "" {
		merged["XAUTHCOOKIE"] = cookie
	}

	vt := ""
	if merged["XDG_SESSION_TYPE"] == "wayland" {
		n, err := allocateVT()
		if err != nil {
			d.logger.Warn("allocating virtual terminal for wayland session", "err", err)
		} else {
			vt = strconv.Itoa(n)
			merged["XDG_VTNR"] = vt
		}
	}

	isGreeter := merged["XDG_SESSION_CLASS"] == "greeter" || d.invocation.Greeter

	if err := d.backend.OpenSession(ctx, merged); err != nil {
		d.sendSessionStatus(channel, false)
		d.logger.Error("backend session open failed", "err", err)
		return ExitSessionErr
	}
	d.sendSessionStatus(channel, true)

	display := merged["DISPLAY"]
	var pid int

	cmd, err := d.spawnSession(user, merged)
	if err != nil {
		d.logger.Error("spawning session process", "err", err)
		_ = d.backend.CloseSession(ctx)
		return ExitSessionErr
	}

	if !isGreeter {
		pid = cmd.Process.Pid
		if err := accounting.Login(vt, display, user, pid, true); err != nil {
			d.logger.Error("writing login accounting", "err", err)
		}
	}

	waitErr := cmd.Wait()

	_ = d.backend.CloseSession(ctx)

	if !isGreeter {
		if err := accounting.Logout(vt, display, pid); err != nil {
			d.logger.Error("writing logout accounting", "err", err)
		}
	}

	return exitCodeOf(waitErr)
}

// sendSessionStatus sends SESSION_STATUS and waits for the Orchestrator's
// ack, logging rather than failing the launch on a protocol mismatch -- the
// session has already been opened (or definitively failed to) by this
// point, and the ack carries no information the caller needs to proceed.
func (d *Driver) sendSessionStatus(channel *sessionipc.Channel, success bool) {
	if err := channel.Send(sessionipc.SessionStatusQuery(success)); err != nil {
		d.logger.Error("sending SESSION_STATUS", "err", err)
		return
	}
	if _, err := channel.Expect(sessionipc.OpcodeSessionStatus); err != nil {
		d.logger.Error("receiving SESSION_STATUS ack", "err", err)
	}
}

func (d *Driver) spawnSession(username string, env map[string]string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(context.Background(), d.invocation.StartPath) //nolint:forbidigo

	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if username != "" {
		if err := setCredential(cmd, username); err != nil {
			return nil, err
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting session process: %w", err)
	}
	return cmd, nil
}

func setCredential(cmd *exec.Cmd, username string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("looking up session user %s: %w", username, err)
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return fmt.Errorf("parsing uid %s: %w", u.Uid, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return fmt.Errorf("parsing gid %s: %w", u.Gid, err)
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid: uint32(uid),
			Gid: uint32(gid),
		},
	}
	return nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return ExitSessionErr
}
