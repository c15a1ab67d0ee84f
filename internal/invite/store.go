package invite

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps invites in a map; for dev/testing.
type MemoryStore struct {
	mu      sync.RWMutex
	invites map[string]Invite
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invites: make(map[string]Invite)}
}

func (s *MemoryStore) Save(_ context.Context, inv Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[inv.Code]; ok {
		return ErrCodeTaken
	}
	s.invites[inv.Code] = inv
	return nil
}

func (s *MemoryStore) Get(_ context.Context, code string) (Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invites[code]
	if !ok {
		return Invite{}, ErrNotFound
	}
	return inv, nil
}

// RedisStore keeps each invite under its own key. Keys outlive the expiry
// by retention so a late redeem reports ErrExpired instead of ErrNotFound.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore builds a store using SETNX semantics.
func NewRedisStore(client *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "attendance:invites:"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, retention: retention}
}

func (s *RedisStore) Save(ctx context.Context, inv Invite) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return errors.Wrap(err, "encode invite")
	}
	ttl := time.Until(inv.Expiry) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}
	ok, err := s.client.SetNX(ctx, s.prefix+inv.Code, payload, ttl).Result()
	if err != nil {
		return errors.Wrapf(err, "save invite %s", inv.Code)
	}
	if !ok {
		return ErrCodeTaken
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (Invite, error) {
	raw, err := s.client.Get(ctx, s.prefix+code).Bytes()
	if err == redis.Nil {
		return Invite{}, ErrNotFound
	}
	if err != nil {
		return Invite{}, errors.Wrapf(err, "load invite %s", code)
	}
	var inv Invite
	if err := json.Unmarshal(raw, &inv); err != nil {
		return Invite{}, errors.Wrapf(err, "decode invite %s", code)
	}
	return inv, nil
}
