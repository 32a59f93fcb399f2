// Package accounting writes login/logout records into the system's login
// databases (utmp/wtmp/btmp on Linux). On platforms that don't keep these
// databases in the classic format -- the BSDs chief among them -- the
// writers are no-ops, matching how the rest of this core treats
// unsupported platforms as silently degraded rather than fatal.
package accounting

import "time"

// Kind is the accounting record type, mirroring utmp's ut_type field for
// the two states this core ever writes.
type Kind int

const (
	// KindUserProcess marks a live login.
	KindUserProcess Kind = 7 // USER_PROCESS per <utmp.h>
	// KindDeadProcess marks a completed session.
	KindDeadProcess Kind = 8 // DEAD_PROCESS per <utmp.h>
)

// LoginRecord is one accounting entry. TTYLine and Host are truncated to
// the underlying database's fixed field widths by the writer; callers
// don't need to pre-truncate.
type LoginRecord struct {
	Kind      Kind
	PID       int
	TTYLine   string // "tty" + VT number, empty if no VT was allocated
	Host      string // display name, e.g. ":7"
	User      string // empty on logout
	Timestamp time.Time
}
