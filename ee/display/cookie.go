package display

import (
	"crypto/rand"
	"fmt"
)

const cookieNibbles = 32

var hexDigits = [16]byte{
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', 'a', 'b', 'c', 'd', 'e', 'f',
}

// AuthCookie is a 32-character lowercase hexadecimal MIT-MAGIC-COOKIE-1
// value. It is immutable once generated.
type AuthCookie string

// GenerateCookie produces a fresh AuthCookie from a cryptographically
// seeded uniform source over [0,16) per nibble. The destination buffer is
// sized to exactly cookieNibbles bytes and written strictly in-bounds --
// unlike the historical C implementation this is modeled on, there is no
// path that writes past the end of the buffer.
func GenerateCookie() (AuthCookie, error) {
	var raw [cookieNibbles / 2]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("reading random bytes for auth cookie: %w", err)
	}

	var buf [cookieNibbles]byte
	for i, b := range raw {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0x0f]
	}

	return AuthCookie(buf[:]), nil
}
