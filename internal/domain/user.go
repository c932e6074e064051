package domain

// UserInfo is the identity of the token holder as resolved from the
// upstream platform. Identity lookups are always live, never cached.
type UserInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Verified  bool   `json:"verified"`
}
