package redis

const (
	// KeyPrefixUser is the prefix for user record keys
	KeyPrefixUser = "shelf:user:"
	// KeyPrefixDataset is the prefix for per-user dataset keys
	KeyPrefixDataset = "shelf:dataset:"
	// KeyPrefixLastChange is the prefix for per-user last-local-change keys
	KeyPrefixLastChange = "shelf:lastchange:"
	// KeyPrefixSession is the prefix for session marker keys
	KeyPrefixSession = "shelf:session:"
)

// UserKey returns the key holding a user record.
func UserKey(userID string) string {
	return KeyPrefixUser + userID
}

// DatasetKey returns the key holding a user's whole-tree JSON blob.
func DatasetKey(userID string) string {
	return KeyPrefixDataset + userID
}

// LastChangeKey returns the key holding a user's last-local-change
// timestamp (unix milliseconds).
func LastChangeKey(userID string) string {
	return KeyPrefixLastChange + userID
}

// SessionKey returns the key holding a session token's user pointer.
func SessionKey(token string) string {
	return KeyPrefixSession + token
}
