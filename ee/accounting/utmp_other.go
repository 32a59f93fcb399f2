//go:build !linux

package accounting

// On non-Linux platforms (principally the BSDs) this core skips utmp,
// wtmp and btmp entirely -- both writers are no-ops -- rather than reproduce each OS's own utmpx variant; login state
// tracking there is left to the platform's own login(1)/logind stack.
func writeLogin(r LoginRecord, success bool) error {
	return nil
}

func writeLogout(r LoginRecord) error {
	return nil
}
