package session

const (
	// keyPrefix is the prefix for individual session keys.
	keyPrefix = "perch:session:"
	// keyActive is the set of tokens with a live session.
	keyActive = "perch:sessions:active"
)

// sessionKey returns the Redis key for a session token.
func sessionKey(token string) string {
	return keyPrefix + token
}
