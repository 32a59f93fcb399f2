// Package display implements the Cookie/Authority Manager and the
// Display-Server Supervisor: the two leaf components that launch,
// authorize, and tear down an X11 display server for one seat.
package display

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kolide/displayd/ee/allowedcmd"
	"github.com/kolide/displayd/ee/config"
	"github.com/kolide/displayd/ee/observability"
	"github.com/shirou/gopsutil/v4/process"
)

// newRuntimeID returns a fresh unique identifier suitable for naming a
// per-display authority file.
func newRuntimeID() string {
	return uuid.NewString()
}

var seatIndexRegexp = regexp.MustCompile(`^seat(\d+)$`)

// xorgCmd builds the X server command from the configured server path. It
// is a package variable so tests can substitute a fake X server binary.
// Unlike the rest of this package's process spawns, the server binary
// itself is not drawn from allowedcmd's fixed path table: ServerPath is
// operator-configured (config.Snapshot.ServerPath), so the known-paths
// allowlist that protects hardcoded helper invocations doesn't apply here.
var xorgCmd = func(ctx context.Context, path string, arg ...string) (*allowedcmd.TracedCmd, error) {
	cmd := exec.CommandContext(ctx, path, arg...) //nolint:forbidigo
	return &allowedcmd.TracedCmd{Ctx: ctx, Cmd: cmd}, nil
}

// Supervisor drives one X11 display server instance for a seat through
// its full lifecycle: materialize authority, spawn, learn the display
// number, run setup hooks, and tear down.
type Supervisor struct {
	cfg     config.Snapshot
	logger  *slog.Logger
	onEvent func(Event)

	mu             sync.Mutex
	state          State
	displayName    string
	authFile       AuthorityFile
	cookie         AuthCookie
	cmd            *exec.Cmd
	exited         chan struct{}
	reachedRunning bool

	stopOnce sync.Once
}

// NewSupervisor constructs a Supervisor in StateIdle. onEvent is called
// exactly once for each of EventStarted and EventStopped, in that order,
// for a single start/stop cycle; it may be nil.
func NewSupervisor(cfg config.Snapshot, logger *slog.Logger, onEvent func(Event)) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	return &Supervisor{
		cfg:     cfg,
		logger:  logger.With("component", "display_supervisor", "seat", cfg.Seat),
		onEvent: onEvent,
		state:   StateIdle,
	}
}

// State returns the supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DisplayName returns the ":N" display name once Start has succeeded.
func (s *Supervisor) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// AuthorityPath returns the authority file's path.
func (s *Supervisor) AuthorityPath() AuthorityFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authFile
}

// Cookie returns the display's MIT-MAGIC-COOKIE-1 value once Start has
// succeeded, for handing to a session Helper over AUTHENTICATED.
func (s *Supervisor) Cookie() AuthCookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookie
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start runs the full start protocol described in the component design:
// materialize a placeholder authority file, spawn the X server, learn
// its real display number (or compute it, in nested mode), re-materialize
// the authority file under that name, chown it, and transition to
// Running. Re-entering Start while not Idle is a no-op error.
func (s *Supervisor) Start(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "seat", s.cfg.Seat)
	defer span.End()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.state = StateStarting
	s.mu.Unlock()

	authFile := AuthorityFile(fmt.Sprintf("%s/%s.Xauthority", strings.TrimRight(s.cfg.RuntimeDir, "/"), newRuntimeID()))
	displayName := ":0"

	cookie, err := GenerateCookie()
	if err != nil {
		s.setState(StateStopped)
		observability.SetError(span, err)
		return fmt.Errorf("%w: %v", ErrAuthWriteFailed, err)
	}
	if err := Materialize(ctx, authFile, displayName, cookie); err != nil {
		s.setState(StateStopped)
		observability.SetError(span, err)
		return err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		s.setState(StateStopped)
		observability.SetError(span, err)
		return fmt.Errorf("%w: creating displayfd pipe: %v", ErrServerSpawnFailed, err)
	}

	nested := s.cfg.Nested
	var childDisplayFD int
	argv := s.buildArgv(&childDisplayFD, &displayName, authFile)

	cmd, err := xorgCmd(ctx, s.cfg.ServerPath, argv...)
	if err != nil {
		pr.Close()
		pw.Close()
		s.setState(StateStopped)
		observability.SetError(span, err)
		return fmt.Errorf("%w: %v", ErrServerSpawnFailed, err)
	}

	cmd.Env = append(os.Environ(), "XCURSOR_THEME="+s.cfg.CursorTheme)
	if !nested {
		cmd.ExtraFiles = []*os.File{pw}
	}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		s.setState(StateStopped)
		observability.SetError(span, err)
		return fmt.Errorf("%w: %v", ErrServerSpawnFailed, err)
	}

	// parent no longer needs the write end; closing it lets reads past
	// the child's exit unblock instead of hanging forever.
	pw.Close()

	s.mu.Lock()
	s.cmd = cmd
	s.authFile = authFile
	s.exited = make(chan struct{})
	s.mu.Unlock()

	go s.waitForExit()

	if !nested {
		reported, err := readDisplayNumber(pr)
		pr.Close()
		if err != nil {
			s.killServerBestEffort()
			s.setState(StateStopped)
			observability.SetError(span, err)
			return err
		}
		displayName = reported
	} else {
		pr.Close()
	}

	if displayName != ":0" {
		if err := Materialize(ctx, authFile, displayName, cookie); err != nil {
			s.killServerBestEffort()
			s.setState(StateStopped)
			observability.SetError(span, err)
			return err
		}
	}

	if err := Chown(authFile, s.cfg.ServiceUser); err != nil {
		s.logger.Warn("could not chown authority file to service user", "err", err)
	}

	s.mu.Lock()
	s.displayName = displayName
	s.cookie = cookie
	s.state = StateRunning
	s.reachedRunning = true
	s.mu.Unlock()

	s.onEvent(EventStarted)
	return nil
}

// buildArgv assembles the X server argv per the start protocol: split
// configured args, "-background none", "-seat <seat>", then the
// nested/non-nested branch, then "-auth <file>" last. childDisplayFD is
// set to the displayfd value used in the non-nested branch; displayName
// is set to the explicit display computed in the nested branch.
func (s *Supervisor) buildArgv(childDisplayFD *int, displayName *string, authFile AuthorityFile) []string {
	argv := splitServerArgs(s.cfg.ServerArgs)
	argv = append(argv, "-background", "none", "-seat", s.cfg.Seat)

	if s.cfg.Nested {
		idx := seatIndex(s.cfg.Seat)
		*displayName = fmt.Sprintf(":%d", idx+1)
		argv = append(argv, *displayName,
			"-config", fmt.Sprintf("%s/%s.conf", strings.TrimRight(s.cfg.SeatConfDir, "/"), s.cfg.Seat),
			"-layout", "Nested")
		if s.cfg.IsPrimarySeat {
			argv = append(argv, "-keeptty")
		} else {
			argv = append(argv, "-sharevts")
		}
	} else {
		// the write end of the pipe becomes fd 3 in the child: it is
		// the sole entry in cmd.ExtraFiles.
		*childDisplayFD = 3
		argv = append(argv, "-noreset", "-displayfd", strconv.Itoa(*childDisplayFD))
		if s.cfg.IsPrimarySeat {
			argv = append(argv, "vt"+s.cfg.TerminalID)
		}
	}

	argv = append(argv, "-auth", string(authFile))
	return argv
}

func splitServerArgs(raw string) []string {
	fields := strings.Split(raw, " ")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func seatIndex(seat string) int {
	m := seatIndexRegexp.FindStringSubmatch(seat)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// readDisplayNumber reads one line from the displayfd read end. Fewer
// than two bytes (i.e. the pipe closed with nothing or only a newline)
// is ErrDisplayNumberMissing.
func readDisplayNumber(r *os.File) (string, error) {
	reader := bufio.NewReader(r)
	line, _ := reader.ReadString('\n')
	if len(line) < 2 {
		return "", ErrDisplayNumberMissing
	}

	trimmed := strings.TrimRight(line, "\r\n")
	if len(trimmed) < 1 {
		return "", ErrDisplayNumberMissing
	}

	return ":" + trimmed, nil
}

func (s *Supervisor) killServerBestEffort() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	if !processIsServer(cmd.Process.Pid, cmd.Path) {
		s.logger.Warn("skipping kill: pid no longer belongs to the spawned server", "pid", cmd.Process.Pid)
		return
	}
	_ = cmd.Process.Kill()
}

// processIsServer reports whether pid is still running the command it
// was spawned with, guarding against the classic PID-reuse race where
// the original process has already exited and the kernel handed the pid
// to something unrelated before we got around to signaling it. It
// compares the command line rather than the resolved executable so that a
// server launched through a wrapper script (as in tests) is still
// recognized -- /proc/pid/exe would otherwise resolve to the script's
// interpreter, not the path we spawned. A script started through its #!
// line runs as "<interpreter> [<interpreter arg>] <script path> ...", so
// the spawned path is matched against the first three argv entries. When
// the process can't be inspected at all, it
// errs toward allowing the kill: a stale pid we fail to positively
// identify is a worse outcome than a kill() on a pid already gone.
func processIsServer(pid int, wantExe string) bool {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return true
	}
	argv, err := proc.CmdlineSlice()
	if err != nil || len(argv) == 0 {
		return true
	}
	for i := 0; i < len(argv) && i < 3; i++ {
		if argv[i] == wantExe {
			return true
		}
	}
	return false
}

// Stop requests a polite termination of the X server, waiting up to
// StopGracePeriod before force-killing. The actual Stopped transition,
// stop-hook execution, and authority-file removal are driven by the
// process-exit observer so that an unexpected server crash tears down
// cleanly too.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotIdle
	}
	s.state = StateStopping
	cmd := s.cmd
	exited := s.exited
	s.mu.Unlock()

	grace := s.cfg.StopGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-exited:
		return nil
	case <-time.After(grace):
	}

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}

	<-exited
	return nil
}

// waitForExit is the process-exit observer: it blocks until the X
// server process exits, then runs the stop hook, removes the authority
// file, transitions to Stopped, and emits EventStopped exactly once.
func (s *Supervisor) waitForExit() {
	s.mu.Lock()
	cmd := s.cmd
	authFile := s.authFile
	exited := s.exited
	s.mu.Unlock()

	_ = cmd.Wait()
	close(exited)

	s.mu.Lock()
	reachedRunning := s.reachedRunning
	displayName := s.displayName
	s.mu.Unlock()

	if !reachedRunning {
		// Start() never reached Running -- it owns reporting the
		// failure and its own Stopped transition. Per the design's
		// open question on this path, we do not run the stop hook or
		// remove the authority file here; that's left to the caller.
		return
	}

	s.stopOnce.Do(func() {
		ctx := context.Background()
		s.runStopHook(ctx, displayName)

		if err := Remove(authFile); err != nil {
			s.logger.Error("removing authority file", "err", err)
		}

		s.setState(StateStopped)
		s.onEvent(EventStopped)
	})
}

func (s *Supervisor) runStopHook(ctx context.Context, displayName string) {
	if s.cfg.DisplayStopCommand == "" {
		return
	}

	timeout := s.cfg.DisplayStopTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, err := allowedcmd.Sh.Cmd(runCtx, "-c", s.cfg.DisplayStopCommand)
	if err != nil {
		s.logger.Error("locating shell for display-stop hook", "err", err)
		return
	}

	cmd.Env = []string{
		"DISPLAY=" + displayName,
		"HOME=/",
		"PATH=" + s.cfg.DefaultPath,
		"SHELL=/bin/sh",
	}

	if err := runWithTimeout(cmd, timeout); err != nil {
		s.logger.Warn("display-stop hook failed or timed out", "err", err)
	}
}

// runWithTimeout runs cmd to completion, killing it if it outlives
// timeout, and surfaces ErrHookTimeout in that case.
func runWithTimeout(cmd *allowedcmd.TracedCmd, timeout time.Duration) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-done
		return ErrHookTimeout
	}
}

// Execute blocks until the display server has stopped, satisfying the
// Execute()/Interrupt(error) actor shape used to compose a rungroup.RunGroup.
func (s *Supervisor) Execute() error {
	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()

	if exited == nil {
		return nil
	}
	<-exited
	return nil
}

// Interrupt stops the display server. The error argument is accepted to
// satisfy the actor interface; it is not otherwise consulted.
func (s *Supervisor) Interrupt(_ error) {
	if s.State() != StateRunning {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.Stop(ctx)
}
