package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownSession indicates no context exists for a conversation id.
var ErrUnknownSession = errors.New("conversation: unknown session")

const defaultSessionTTL = 24 * time.Hour

// SessionStore maps conversation ids to their contexts between turns.
type SessionStore interface {
	Save(ctx context.Context, conversationID string, cctx *Context) error
	Load(ctx context.Context, conversationID string) (*Context, error)
}

// RedisSessionStore persists conversation contexts, including the
// interruption stack, so sessions survive a process restart.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisSessionStore creates a redis-backed session store. A zero ttl
// falls back to 24 hours.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("clinic.internal.conversation.sessions"),
	}
}

func (s *RedisSessionStore) Save(ctx context.Context, conversationID string, cctx *Context) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()

	data, err := json.Marshal(cctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, conversationID string) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSession, conversationID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var cctx Context
	if err := json.Unmarshal(data, &cctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &cctx, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// MemorySessionStore keeps contexts in process memory. Used in tests and
// when no redis address is configured.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]byte)}
}

func (s *MemorySessionStore) Save(_ context.Context, conversationID string, cctx *Context) error {
	data, err := json.Marshal(cctx)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conversationID] = data
	return nil
}

func (s *MemorySessionStore) Load(_ context.Context, conversationID string) (*Context, error) {
	s.mu.RLock()
	data, ok := s.sessions[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, conversationID)
	}
	var cctx Context
	if err := json.Unmarshal(data, &cctx); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return &cctx, nil
}

var (
	_ SessionStore = (*RedisSessionStore)(nil)
	_ SessionStore = (*MemorySessionStore)(nil)
)
