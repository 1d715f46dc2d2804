package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// GenerateRandomString returns n random bytes encoded as hex.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("security: invalid random length")
	}
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", errRead
	}
	return hex.EncodeToString(buf), nil
}
