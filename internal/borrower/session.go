package borrower

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bankverify/bankverify/internal/aggregator"
)

// ErrSessionNotFound indicates no wizard state is stored for the request.
var ErrSessionNotFound = errors.New("borrower session not found")

// Session is the wizard progress of one borrower, resumable across page loads.
type Session struct {
	VerificationID    string               `json:"verification_id"`
	CurrentStep       Step                 `json:"current_step"`
	ConsentGiven      bool                 `json:"consent_given"`
	ConsentCategories []string             `json:"consent_categories,omitempty"`
	Provider          aggregator.Provider  `json:"provider,omitempty"`
	ConnectedAccounts []aggregator.Account `json:"connected_accounts,omitempty"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// SessionStore persists wizard sessions keyed by verification id.
type SessionStore interface {
	Get(ctx context.Context, verificationID string) (Session, error)
	Save(ctx context.Context, session Session) error
	Delete(ctx context.Context, verificationID string) error
}

const sessionKeyPrefix = "borrower:session:"

// RedisSessionStore keeps sessions as JSON values with a sliding TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore returns a store whose entries expire ttl after the last save.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) key(id string) string {
	return sessionKeyPrefix + id
}

// Get loads the session for verificationID.
func (s *RedisSessionStore) Get(ctx context.Context, verificationID string) (Session, error) {
	raw, err := s.client.Get(ctx, s.key(verificationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// Save writes the session and refreshes its TTL.
func (s *RedisSessionStore) Save(ctx context.Context, session Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.VerificationID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete drops the session.
func (s *RedisSessionStore) Delete(ctx context.Context, verificationID string) error {
	if err := s.client.Del(ctx, s.key(verificationID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemorySessionStore returns an in-process store without expiry.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{sessions: make(map[string]Session)}
}

func (s *memorySessionStore) Get(_ context.Context, verificationID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[verificationID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	session.ConsentCategories = append([]string(nil), session.ConsentCategories...)
	session.ConnectedAccounts = append([]aggregator.Account(nil), session.ConnectedAccounts...)
	return session, nil
}

func (s *memorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.VerificationID] = session
	return nil
}

func (s *memorySessionStore) Delete(_ context.Context, verificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, verificationID)
	return nil
}
