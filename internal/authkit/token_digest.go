package authkit

import (
	"crypto/sha256"
	"encoding/base64"
)

// tokenDigest is the store-side identity of a raw token string.
func tokenDigest(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
