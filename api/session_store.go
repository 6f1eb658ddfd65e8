package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/dbconn"
	"github.com/unimak/dftrack/internal/slogging"
)

// Flash categories
const (
	FlashSuccess = "success"
	FlashError   = "danger"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the server-side state behind the session cookie
type Session struct {
	ID       string  `json:"-"`
	UserID   uint    `json:"user_id,omitempty"`
	Username string  `json:"username,omitempty"`
	Role     string  `json:"role,omitempty"`
	Language string  `json:"language,omitempty"`
	Flashes  []Flash `json:"flashes,omitempty"`
}

// LoggedIn reports whether the session belongs to a user
func (s *Session) LoggedIn() bool {
	return s != nil && s.UserID != 0
}

// IsAdmin reports whether the session user is an administrator
func (s *Session) IsAdmin() bool {
	return s.LoggedIn() && s.Role == models.RoleAdmin
}

// AddFlash queues a message for the next page
func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
}

// PopFlashes returns and clears the queued messages
func (s *Session) PopFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// SessionStore persists sessions by id
type SessionStore interface {
	// Create stores an empty session under a fresh id
	Create(ctx context.Context) (*Session, error)
	// Get returns the session, or nil when it does not exist or expired
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Destroy(ctx context.Context, id string) error
}

// RedisSessionStore keeps sessions as JSON under session:<id> with a sliding TTL
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Create stores an empty session under a fresh id
func (s *RedisSessionStore) Create(ctx context.Context) (*Session, error) {
	session := &Session{ID: uuid.NewString()}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get loads a session and extends its lifetime
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	data, err := s.client.GetEx(ctx, dbconn.SessionKey(id), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		slogging.Get().Warn("discarding unreadable session %s: %v", id, err)
		return nil, nil
	}
	session.ID = id
	return &session, nil
}

// Save writes the session and resets its TTL
func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return fmt.Errorf("session has no id")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, dbconn.SessionKey(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Destroy deletes the session
func (s *RedisSessionStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, dbconn.SessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
