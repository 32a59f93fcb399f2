package orchestrator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kolide/displayd/ee/observability"
	"github.com/kolide/displayd/ee/sessionhelper"
	"github.com/kolide/displayd/ee/sessionipc"
	"github.com/kolide/displayd/pkg/backoff"
)

// Greeter is the UI collaborator the Orchestrator mediates the Helper's
// authentication conversation through. Its internals (the actual
// graphical greeter) are out of scope for this core.
type Greeter interface {
	// Prompt forwards a REQUEST's prompts to the user and returns their
	// answers.
	Prompt(prompts []sessionipc.Prompt) ([]sessionipc.Prompt, error)
	// Notify surfaces an INFO frame.
	Notify(message string, kind int32)
	// NotifyError surfaces an ERROR frame.
	NotifyError(message string, kind int32)
}

// Result is what Launch reports back to its caller once the Helper exits.
type Result struct {
	ExitCode int
	User     string
}

// Orchestrator drives one Helper invocation at a time per display.
type Orchestrator struct {
	helperPath string
	runtimeDir string

	mu       sync.Mutex
	inFlight bool
}

// New constructs an Orchestrator. helperPath is the session-helper
// executable; runtimeDir is where rendezvous sockets are created.
func New(helperPath, runtimeDir string) *Orchestrator {
	return &Orchestrator{helperPath: helperPath, runtimeDir: runtimeDir}
}

// Launch spawns the Helper for desc, mediates its authentication
// conversation through greeter, and blocks until the Helper exits.
// env is the session environment to hand back on AUTHENTICATED (e.g.
// DISPLAY, XAUTHORITY); cookie is the display's auth cookie, or empty for
// a pure auth check with no session launch.
func (o *Orchestrator) Launch(ctx context.Context, desc SessionDescriptor, greeter Greeter, env map[string]string, cookie string, autologin bool) (Result, error) {
	if !o.tryAcquire() {
		return Result{}, ErrHelperInFlight
	}
	defer o.release()

	ctx, span := observability.StartSpan(ctx, "user", desc.User, "type", string(desc.Type))
	defer span.End()

	socketPath := filepath.Join(o.runtimeDir, uuid.NewString()+".sock")
	correlationID, err := newCorrelationID()
	if err != nil {
		return Result{}, fmt.Errorf("generating correlation id: %w", err)
	}

	listener, err := listen(socketPath)
	if err != nil {
		return Result{}, fmt.Errorf("listening on rendezvous socket: %w", err)
	}
	defer removeSocket(socketPath)
	defer listener.Close()

	cmd, err := o.spawnHelper(ctx, desc, socketPath, correlationID, autologin)
	if err != nil {
		return Result{}, fmt.Errorf("spawning helper: %w", err)
	}

	conn, err := acceptOne(listener)
	if err != nil {
		observability.SetError(span, err)
		_ = cmd.Process.Kill()
		return Result{}, fmt.Errorf("accepting helper connection: %w", err)
	}
	defer conn.Close()

	channel := sessionipc.NewChannel(conn)
	defer channel.Close()

	authenticatedUser, err := o.converse(channel, correlationID, greeter, env, cookie)
	if err != nil {
		observability.SetError(span, err)
	}

	waitErr := cmd.Wait()
	exitCode := exitCodeOf(waitErr)

	return Result{ExitCode: exitCode, User: authenticatedUser}, nil
}

func (o *Orchestrator) tryAcquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return false
	}
	o.inFlight = true
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.inFlight = false
	o.mu.Unlock()
}

func (o *Orchestrator) spawnHelper(ctx context.Context, desc SessionDescriptor, socketPath string, id int64, autologin bool) (*exec.Cmd, error) {
	args := []string{"--socket", socketPath, "--id", fmt.Sprintf("%d", id)}
	if desc.User != "" {
		args = append(args, "--user", desc.User)
	}
	if desc.ExecPath != "" {
		args = append(args, "--start", desc.ExecPath)
	}
	if autologin {
		args = append(args, "--autologin")
	}
	if desc.Type == SessionGreeter {
		args = append(args, "--greeter")
	}

	cmd := exec.CommandContext(ctx, o.helperPath, args...) //nolint:forbidigo
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// converse drives the message exchange described in the Session
// Orchestrator's responsibilities: forward REQUEST prompts to the
// greeter, surface INFO/ERROR, and reply to AUTHENTICATED/SESSION_STATUS.
func (o *Orchestrator) converse(channel *sessionipc.Channel, wantID int64, greeter Greeter, env map[string]string, cookie string) (string, error) {
	hello, err := channel.Expect(sessionipc.OpcodeHello)
	if err != nil {
		return "", fmt.Errorf("expecting HELLO: %w", err)
	}
	if hello.ID != wantID {
		return "", ErrCorrelationMismatch
	}

	var authenticatedUser string

	for {
		frame, err := channel.Receive()
		if err != nil {
			return authenticatedUser, fmt.Errorf("receiving frame: %w", err)
		}

		switch frame.Opcode {
		case sessionipc.OpcodeRequest:
			answers, err := greeter.Prompt(frame.Prompts)
			if err != nil {
				return authenticatedUser, fmt.Errorf("greeter prompt: %w", err)
			}
			if err := channel.Send(sessionipc.RequestFrame(answers)); err != nil {
				return authenticatedUser, fmt.Errorf("sending REQUEST reply: %w", err)
			}
		case sessionipc.OpcodeInfo:
			greeter.Notify(frame.Message, frame.Kind)
		case sessionipc.OpcodeError:
			greeter.NotifyError(frame.Message, frame.Kind)
		case sessionipc.OpcodeAuthenticated:
			if frame.User == "" {
				// Helper reported failure; it won't send anything more.
				return "", nil
			}
			authenticatedUser = frame.User
			if err := channel.Send(sessionipc.AuthenticatedReply(frame.User, env, cookie)); err != nil {
				return authenticatedUser, fmt.Errorf("sending AUTHENTICATED reply: %w", err)
			}
			if cookie == "" {
				// Pure auth check: the helper exits right after this.
				return authenticatedUser, nil
			}
		case sessionipc.OpcodeSessionStatus:
			if err := channel.Send(sessionipc.SessionStatusAck()); err != nil {
				return authenticatedUser, fmt.Errorf("acking SESSION_STATUS: %w", err)
			}
			return authenticatedUser, nil
		default:
			return authenticatedUser, sessionipc.ErrProtocolViolation
		}
	}
}

func newCorrelationID() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return 0, err
	}
	return n.Int64() + 1, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return sessionhelper.ExitSuccess
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return sessionhelper.ExitOtherError
}

func acceptOne(l net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("timed out waiting for helper to connect")
	}
}

func removeSocket(path string) {
	if err := os.RemoveAll(path); err == nil {
		return
	}

	ticker := backoff.NewMultiplicativeTicker(200*time.Millisecond, time.Second)
	defer ticker.Stop()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-ticker.C:
			if err := os.RemoveAll(path); err == nil {
				return
			}
		case <-deadline:
			return
		}
	}
}

func listen(socketPath string) (net.Listener, error) {
	return net.Listen("unix", socketPath)
}
