package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// UserIDPrefix tags derived identifiers so they never collide with raw
// usernames in the key space.
const UserIDPrefix = "user_"

// DeriveUserID maps a username to the stable identifier keying both the
// user record and that user's dataset: lowercase, every character outside
// [a-z0-9] replaced by '_', prefixed with UserIDPrefix.
//
// The mapping is lossy: "a.b" and "a_b" derive the same ID. This is an
// accepted ambiguity, not corrected here.
func DeriveUserID(username string) string {
	lower := strings.ToLower(username)
	var b strings.Builder
	b.Grow(len(UserIDPrefix) + len(lower))
	b.WriteString(UserIDPrefix)
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// HashPassword returns the hex SHA-256 digest of the password.
//
// Unsalted, single round: not a credential-grade hash. Kept as-is for
// stored-credential compatibility; upgrading would invalidate every
// existing record.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
