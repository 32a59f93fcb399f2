package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"

	"github.com/kolide/displayd/ee/allowedcmd"
	"github.com/kolide/displayd/ee/observability"
)

// AuthorityFile is a path to an X authority file materialized by this
// package. Its contents are managed entirely through the xauth helper
// tool -- we never write the binary format ourselves, since it is
// versioned by the X ecosystem and delegating preserves forward
// compatibility.
type AuthorityFile string

// EnsureExists creates file if it does not already exist. An empty
// authority file disables X access control entirely, which must never
// be the steady state, so callers always follow this with Materialize.
func EnsureExists(file AuthorityFile) error {
	f, err := os.OpenFile(string(file), os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("ensuring authority file exists: %w", err)
	}
	return f.Close()
}

// Materialize rewrites file so that display is the only live record,
// mapped to cookie, by driving the xauth tool's line-oriented command
// input. It fails with ErrAuthWriteFailed if xauth cannot be spawned or
// exits non-zero.
func Materialize(ctx context.Context, file AuthorityFile, display string, cookie AuthCookie) error {
	ctx, span := observability.StartSpan(ctx, "display", display)
	defer span.End()

	if err := EnsureExists(file); err != nil {
		observability.SetError(span, err)
		return fmt.Errorf("%w: %v", ErrAuthWriteFailed, err)
	}

	cmd, err := allowedcmd.Xauth.Cmd(ctx, "-f", string(file), "-q")
	if err != nil {
		observability.SetError(span, err)
		return fmt.Errorf("%w: locating xauth: %v", ErrAuthWriteFailed, err)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		observability.SetError(span, err)
		return fmt.Errorf("%w: opening xauth stdin: %v", ErrAuthWriteFailed, err)
	}

	if err := cmd.Start(); err != nil {
		observability.SetError(span, err)
		return fmt.Errorf("%w: starting xauth: %v", ErrAuthWriteFailed, err)
	}

	script := fmt.Sprintf("remove %s\nadd %s . %s\nexit\n", display, display, cookie)
	if _, err := io.WriteString(stdin, script); err != nil {
		stdin.Close()
		_ = cmd.Wait()
		observability.SetError(span, err)
		return fmt.Errorf("%w: writing xauth script: %v", ErrAuthWriteFailed, err)
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		observability.SetError(span, err)
		return fmt.Errorf("%w: xauth exited with error: %v", ErrAuthWriteFailed, err)
	}

	return nil
}

// Chown changes ownership of file to serviceUser's uid/gid. A missing
// user is logged by the caller as a warning, not treated as fatal --
// the file remains usable by root-started components.
func Chown(file AuthorityFile, serviceUser string) error {
	u, err := user.Lookup(serviceUser)
	if err != nil {
		return fmt.Errorf("looking up service user %q: %w", serviceUser, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parsing uid %q: %w", u.Uid, err)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parsing gid %q: %w", u.Gid, err)
	}

	if err := os.Chown(string(file), uid, gid); err != nil {
		return fmt.Errorf("chowning authority file %q: %w", file, err)
	}

	return nil
}

// Remove deletes file, treating a missing file as success.
func Remove(file AuthorityFile) error {
	if err := os.Remove(string(file)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing authority file %q: %w", file, err)
	}
	return nil
}
