package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. The 80-bit entropy part comes from crypto/rand,
// so IDs handed back to clients (challenge IDs in a verified reference) are not guessable.
// ULIDs sort by creation time and are safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
