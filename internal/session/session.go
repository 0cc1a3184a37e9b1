// Package session stores flash messages: UI messages kept between two
// requests of the same browser session.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"kerno/internal/state"
)

// DefaultTTL is how long unread flash messages are kept.
const DefaultTTL = 24 * time.Hour

// Store keeps the flash messages of each session.
type Store interface {
	// Push appends msg. Unless allowDuplicate, an equal message already
	// queued is not added again.
	Push(ctx context.Context, sessionID string, msg state.UIMessage, allowDuplicate bool) error
	// Pop returns the queued messages in order and forgets them.
	Pop(ctx context.Context, sessionID string) ([]state.UIMessage, error)
}

// RedisStore keeps flash messages in Redis lists that expire after TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "kerno:flash:", ttl: ttl}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) Push(ctx context.Context, sessionID string, msg state.UIMessage, allowDuplicate bool) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode flash message: %w", err)
	}
	key := s.key(sessionID)
	if !allowDuplicate {
		queued, err := s.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("read flash messages: %w", err)
		}
		if slices.Contains(queued, string(body)) {
			return nil
		}
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, body)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store flash message: %w", err)
	}
	return nil
}

func (s *RedisStore) Pop(ctx context.Context, sessionID string) ([]state.UIMessage, error) {
	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	lrange := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pop flash messages: %w", err)
	}
	out := make([]state.UIMessage, 0, len(lrange.Val()))
	for _, raw := range lrange.Val() {
		var msg state.UIMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode flash message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// MemoryStore keeps flash messages in the process, for a single instance.
// Sessions unread for TTL are dropped the next time a message is pushed.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	msgs map[string]*memoryFlashes
}

type memoryFlashes struct {
	msgs    []state.UIMessage
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, msgs: map[string]*memoryFlashes{}}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Push(_ context.Context, sessionID string, msg state.UIMessage, allowDuplicate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, f := range s.msgs {
		if !now.Before(f.expires) {
			delete(s.msgs, id)
		}
	}
	f, ok := s.msgs[sessionID]
	if !ok {
		f = &memoryFlashes{}
		s.msgs[sessionID] = f
	}
	f.expires = now.Add(s.ttl)
	if !allowDuplicate && slices.Contains(f.msgs, msg) {
		return nil
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, sessionID string) ([]state.UIMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.msgs[sessionID]
	delete(s.msgs, sessionID)
	if !ok || !s.now().Before(f.expires) {
		return []state.UIMessage{}, nil
	}
	return f.msgs, nil
}

// Len is the number of sessions holding messages.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
