package display

import (
	"context"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kolide/displayd/ee/allowedcmd"
	"github.com/kolide/displayd/ee/config"
	"github.com/stretchr/testify/require"
)

// fakeXorgBinary writes a tiny shell script standing in for Xorg: it
// optionally emits a display number on fd 3 (mimicking -displayfd), then
// sleeps until killed. This lets tests drive the supervisor's start
// protocol without a real X server.
func fakeXorgBinary(t *testing.T, displayNumber string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-xorg.sh")

	script := "#!/bin/sh\n"
	if displayNumber != "" {
		script += "echo " + displayNumber + " >&3\n"
	}
	script += "trap 'exit 0' TERM\nwhile true; do sleep 0.05; done\n"

	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func useFakeXorg(t *testing.T, binPath string) {
	t.Helper()
	orig := xorgCmd
	xorgCmd = func(ctx context.Context, path string, arg ...string) (*allowedcmd.TracedCmd, error) {
		cmd := exec.CommandContext(ctx, binPath, arg...) //nolint:forbidigo
		return &allowedcmd.TracedCmd{Ctx: ctx, Cmd: cmd}, nil
	}
	t.Cleanup(func() { xorgCmd = orig })
}

func testConfig(t *testing.T) config.Snapshot {
	t.Helper()

	current, err := user.Current()
	require.NoError(t, err)

	return config.Snapshot{
		Seat:                "seat0",
		IsPrimarySeat:       true,
		TerminalID:          "2",
		ServerPath:          "/usr/bin/X",
		ServerArgs:          "",
		RuntimeDir:          t.TempDir(),
		ServiceUser:         current.Username,
		DefaultPath:         "/usr/bin:/bin",
		StopGracePeriod:     200 * time.Millisecond,
		DisplaySetupTimeout: time.Second,
		CursorSetupTimeout:  time.Second,
		DisplayStopTimeout:  time.Second,
		CursorTheme:         "default",
	}
}

func TestSupervisor_HappyPath_NonNestedPrimarySeat(t *testing.T) {
	t.Parallel()

	binPath := fakeXorgBinary(t, "7")
	useFakeXorg(t, binPath)

	events := make(chan Event, 2)
	sup := NewSupervisor(testConfig(t), nil, func(e Event) { events <- e })

	require.NoError(t, sup.Start(context.Background()))
	require.Equal(t, StateRunning, sup.State())
	require.Equal(t, ":7", sup.DisplayName())
	require.FileExists(t, string(sup.AuthorityPath()))

	select {
	case e := <-events:
		require.Equal(t, EventStarted, e)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EventStarted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Stop(ctx))

	select {
	case e := <-events:
		require.Equal(t, EventStopped, e)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for EventStopped")
	}

	require.Equal(t, StateStopped, sup.State())
	require.NoFileExists(t, string(sup.AuthorityPath()))
}

func TestSupervisor_Nested_SeatOne(t *testing.T) {
	t.Parallel()

	binPath := fakeXorgBinary(t, "")
	useFakeXorg(t, binPath)

	cfg := testConfig(t)
	cfg.Seat = "seat1"
	cfg.IsPrimarySeat = false
	cfg.Nested = true
	cfg.SeatConfDir = "/etc/displayd/seats"

	var gotArgv []string
	orig := xorgCmd
	xorgCmd = func(ctx context.Context, path string, arg ...string) (*allowedcmd.TracedCmd, error) {
		gotArgv = arg
		return orig(ctx, path, arg...)
	}
	t.Cleanup(func() { xorgCmd = orig })

	sup := NewSupervisor(cfg, nil, nil)
	require.NoError(t, sup.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Stop(ctx)
	}()

	require.Equal(t, ":2", sup.DisplayName())
	joined := strings.Join(gotArgv, " ")
	require.Contains(t, joined, "-config /etc/displayd/seats/seat1.conf")
	require.Contains(t, joined, "-layout Nested")
	require.Contains(t, joined, "-sharevts")
	require.Contains(t, joined, "-auth "+string(sup.AuthorityPath()))
}

func TestSupervisor_DisplayNumberMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-xorg-exits.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
	useFakeXorg(t, path)

	events := make(chan Event, 2)
	sup := NewSupervisor(testConfig(t), nil, func(e Event) { events <- e })

	err := sup.Start(context.Background())
	require.ErrorIs(t, err, ErrDisplayNumberMissing)
	require.Equal(t, StateStopped, sup.State())

	select {
	case e := <-events:
		t.Fatalf("unexpected event %s emitted on failed start", e)
	case <-time.After(100 * time.Millisecond):
	}

	require.FileExists(t, string(sup.AuthorityPath()))
}

func TestSupervisor_Start_UsesConfiguredServerPath(t *testing.T) {
	t.Parallel()

	binPath := fakeXorgBinary(t, "9")

	var gotPath string
	orig := xorgCmd
	xorgCmd = func(ctx context.Context, path string, arg ...string) (*allowedcmd.TracedCmd, error) {
		gotPath = path
		cmd := exec.CommandContext(ctx, binPath, arg...) //nolint:forbidigo
		return &allowedcmd.TracedCmd{Ctx: ctx, Cmd: cmd}, nil
	}
	t.Cleanup(func() { xorgCmd = orig })

	cfg := testConfig(t)
	cfg.ServerPath = "/opt/custom/Xorg"

	sup := NewSupervisor(cfg, nil, nil)
	require.NoError(t, sup.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Stop(ctx)
	}()

	require.Equal(t, "/opt/custom/Xorg", gotPath)
}

func TestSupervisor_Reentry(t *testing.T) {
	t.Parallel()

	binPath := fakeXorgBinary(t, "3")
	useFakeXorg(t, binPath)

	sup := NewSupervisor(testConfig(t), nil, nil)
	require.NoError(t, sup.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Stop(ctx)
	}()

	err := sup.Start(context.Background())
	require.ErrorIs(t, err, ErrNotIdle)
}
