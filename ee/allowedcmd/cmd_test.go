package allowedcmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCmd_NotFound(t *testing.T) {
	t.Parallel()

	ac := newAllowedCommand(filepath.Join("definitely", "not", "a", "real", "path"))
	_, err := ac.Cmd(context.Background(), "arg")
	require.ErrorIs(t, err, ErrCommandNotFound)
}

func TestCmd_ResolvesKnownPath(t *testing.T) {
	t.Parallel()

	ac := newAllowedCommand("/bin/sh", "/usr/bin/sh")
	cmd, err := ac.Cmd(context.Background(), "-c", "true")
	require.NoError(t, err)
	require.Contains(t, cmd.Path, "sh")
}

func TestIsNixOS(t *testing.T) {
	t.Parallel()

	// just make sure it doesn't panic and is idempotent
	first := IsNixOS()
	require.Equal(t, first, IsNixOS())
}
