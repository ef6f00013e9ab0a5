// internal/room/joincode.go
package room

import (
	"crypto/rand"
)

// JoinCodeLength is the fixed length of a room join code.
const JoinCodeLength = 6

const joinCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewJoinCode samples a 6-char upper-alphanumeric code. Uniqueness among live
// rooms is not guaranteed here: two creators can sample the same candidate
// concurrently. The storage layer's uniqueness constraint plus the registry's
// bounded retry resolve that race.
func NewJoinCode() string {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble anyway
		panic("joincode: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = joinCodeCharset[int(b)%len(joinCodeCharset)]
	}
	return string(buf)
}
