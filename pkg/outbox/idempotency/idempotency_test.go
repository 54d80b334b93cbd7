package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "tb:idempotency:" + scope + ":" + id
}

func TestClaimLifecycle(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour, WithLease(30*time.Second))
	require.NoError(t, err)

	ctx := context.Background()
	eventID := uuid.New()
	key := "tb:idempotency:evt:analytics:" + eventID.String()

	state, err := manager.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, state)
	assert.Equal(t, 30*time.Second, store.ttls[key])

	state, err = manager.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, InFlight, state)

	require.NoError(t, manager.Complete(ctx, "analytics", eventID))
	assert.Equal(t, 24*time.Hour, store.ttls[key])

	state, err = manager.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	// Other consumers keep their own marks.
	state, err = manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, state)
}

func TestReleaseAllowsRetry(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = manager.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, "analytics", eventID))

	state, err := manager.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, state)
}

func TestClaimPropagatesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.Claim(context.Background(), "analytics", uuid.New())
	require.Error(t, err)
}

func TestManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newMemoryStore(), 0)
	require.Error(t, err)

	manager, err := NewManager(newMemoryStore(), time.Minute, WithLease(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, manager.lease)

	_, err = manager.Claim(context.Background(), "", uuid.New())
	require.Error(t, err)
	_, err = manager.Claim(context.Background(), "analytics", uuid.Nil)
	require.Error(t, err)
}
