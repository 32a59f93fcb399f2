//go:build linux

package accounting

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Record field widths, per <utmp.h>'s UT_LINESIZE/UT_NAMESIZE/UT_HOSTSIZE.
const (
	lineSize = 32
	idSize   = 4
	userSize = 32
	hostSize = 256

	// recordSize is sizeof(struct utmp) on 64-bit Linux: a 2-byte
	// ut_type, 2 bytes of alignment padding, a 4-byte pid, the four
	// fixed string fields above, a 4-byte exit-status pair, a 4-byte
	// session id, an 8-byte {sec,usec} timeval, a 16-byte address
	// field, and 20 reserved bytes.
	recordSize = 2 + 2 + 4 + lineSize + idSize + userSize + hostSize + 4 + 4 + 4 + 4 + 16 + 20

	utmpPath = "/var/run/utmp"
	wtmpPath = "/var/log/wtmp"
	btmpPath = "/var/log/btmp"
)

// encode packs r into the fixed-width on-disk layout. String fields are
// truncated to one byte less than their field width, so every field keeps
// a terminating NUL and nothing is written past the field boundary.
func encode(r LoginRecord) []byte {
	buf := make([]byte, recordSize)
	off := 0

	binary.LittleEndian.PutUint16(buf[off:], uint16(r.Kind))
	off += 2 + 2 // ut_type + padding

	binary.LittleEndian.PutUint32(buf[off:], uint32(r.PID))
	off += 4

	off += putTruncated(buf[off:], r.TTYLine, lineSize)
	off += idSize // ut_id is left zeroed; we don't track session IDs
	off += putTruncated(buf[off:], r.User, userSize)
	off += putTruncated(buf[off:], r.Host, hostSize)

	off += 4 // ut_exit, left zeroed
	off += 4 // ut_session, left zeroed

	sec := r.Timestamp.Unix()
	usec := int64(r.Timestamp.Nanosecond() / 1000)
	binary.LittleEndian.PutUint32(buf[off:], uint32(sec))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(usec))
	off += 4

	// ut_addr_v6 and the reserved tail are left zeroed.
	return buf
}

// putTruncated writes s into dst[:width], truncating it to width-1 bytes
// so the field always ends in at least one NUL, and returns width -- the
// caller always advances by the field's fixed size regardless of string
// length.
func putTruncated(dst []byte, s string, width int) int {
	n := copy(dst[:width-1], s)
	for i := n; i < width; i++ {
		dst[i] = 0
	}
	return width
}

func appendRecord(path string, r LoginRecord) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0664)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(encode(r)); err != nil {
		return fmt.Errorf("appending record to %s: %w", path, err)
	}
	return nil
}

func writeLogin(r LoginRecord, success bool) error {
	if err := appendRecord(utmpPath, r); err != nil {
		return err
	}

	if success {
		return appendRecord(wtmpPath, r)
	}
	return appendRecord(btmpPath, r)
}

func writeLogout(r LoginRecord) error {
	if err := appendRecord(utmpPath, r); err != nil {
		return err
	}
	return appendRecord(wtmpPath, r)
}
