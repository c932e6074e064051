// Package session holds the authenticated users' OAuth tokens behind an
// opaque cookie token. Redis is the backing store so sessions survive
// restarts and the scheduled refresher can enumerate active users.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is one signed-in user: identity summary plus the bearer
// tokens needed to talk to the upstream platform on their behalf.
type Session struct {
	Token        string    `json:"token"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	Verified     bool      `json:"verified"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Manager is the session capability handed to HTTP handlers and the
// scheduler. *Store implements it; tests substitute an in-memory fake.
type Manager interface {
	Create(ctx context.Context, sess *Session) (string, error)
	Get(ctx context.Context, token string) (*Session, error)
	Update(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, token string) error
	Active(ctx context.Context) ([]*Session, error)
}

// Store is the Redis-backed session manager.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore builds a Store. ttl bounds how long a session lives without
// re-authentication.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Create persists a new session and returns its opaque token.
func (s *Store) Create(ctx context.Context, sess *Session) (string, error) {
	sess.Token = uuid.New().String()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sess.Token), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	if err := s.client.SAdd(ctx, keyActive, sess.Token).Err(); err != nil {
		return "", fmt.Errorf("failed to register session: %w", err)
	}
	return sess.Token, nil
}

// Get retrieves a session by token. Returns (nil, nil) when the token is
// unknown or expired.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Update rewrites an existing session in place, keeping its token and
// refreshing the TTL. Used after a token refresh rotates the pair.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess.Token == "" {
		return errors.New("session has no token")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.Token), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete removes a session. Unknown tokens are a no-op.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.client.SRem(ctx, keyActive, token).Err(); err != nil {
		return fmt.Errorf("failed to unregister session: %w", err)
	}
	return nil
}

// Active lists all live sessions. Tokens whose key has expired are
// removed from the active set as they are discovered.
func (s *Store) Active(ctx context.Context) ([]*Session, error) {
	tokens, err := s.client.SMembers(ctx, keyActive).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(tokens))
	for _, token := range tokens {
		sess, err := s.Get(ctx, token)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			// Expired key, drop it from the set.
			_ = s.client.SRem(ctx, keyActive, token).Err()
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}
