package utils // package utils provides hashing and random token helpers

import (
	"crypto/rand"  // secure random number generation
	"encoding/hex" // hex encoding of random bytes
)

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.  Session identifiers are built from
// it.  If the random number generator fails, an error is returned.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
