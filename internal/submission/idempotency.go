package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/reportal/model"
)

// IdempotencyStore remembers the submission created for an Idempotency-Key
// so a retried POST replays it instead of storing a duplicate.
type IdempotencyStore interface {
	// Check returns the stored submission for key. A key reused with a
	// different input hash yields a CONFLICT error.
	Check(ctx context.Context, key string, inputHash string) (sub *model.Submission, found bool, err error)

	// Store records sub under key until ttl elapses.
	Store(ctx context.Context, key string, inputHash string, sub model.Submission, ttl time.Duration) error
}

type idempotencyEntry struct {
	InputHash  string           `json:"input_hash"`
	Submission model.Submission `json:"submission"`
}

// IdempotencyKey scopes a client key to one user and one form.
func IdempotencyKey(userID, categoryID, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", userID, categoryID, key)
}

// InputHash fingerprints submitted values. encoding/json sorts map keys, so
// equal maps hash equally.
func InputHash(values map[string]any) (string, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("hash submission values: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(raw), 16), nil
}

func reusedKey(key string) error {
	return model.NewConflictError(fmt.Sprintf("idempotency key %q already used with different values", key))
}

// MemoryIdempotencyStore keeps keys in process memory.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	now     func() time.Time
}

type memEntry struct {
	data      idempotencyEntry
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates an empty store. now may be nil.
func NewMemoryIdempotencyStore(now func() time.Time) *MemoryIdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdempotencyStore{
		entries: make(map[string]*memEntry),
		now:     now,
	}
}

func (s *MemoryIdempotencyStore) Check(_ context.Context, key string, inputHash string) (*model.Submission, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	if entry.data.InputHash != inputHash {
		return nil, true, reusedKey(key)
	}

	sub := entry.data.Submission
	return &sub, true, nil
}

func (s *MemoryIdempotencyStore) Store(_ context.Context, key string, inputHash string, sub model.Submission, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memEntry{
		data:      idempotencyEntry{InputHash: inputHash, Submission: sub},
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Len counts entries, expired ones included.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RedisIdempotencyStore shares keys across server instances.
type RedisIdempotencyStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisIdempotencyStore creates a store over client. Keys are written
// under prefix.
func NewRedisIdempotencyStore(client redis.Cmdable, prefix string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) redisKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisIdempotencyStore) Check(ctx context.Context, key string, inputHash string) (*model.Submission, bool, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var entry idempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal idempotency entry %q: %w", key, err)
	}
	if entry.InputHash != inputHash {
		return nil, true, reusedKey(key)
	}
	return &entry.Submission, true, nil
}

func (s *RedisIdempotencyStore) Store(ctx context.Context, key string, inputHash string, sub model.Submission, ttl time.Duration) error {
	data, err := json.Marshal(idempotencyEntry{InputHash: inputHash, Submission: sub})
	if err != nil {
		return fmt.Errorf("marshal idempotency entry: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}
