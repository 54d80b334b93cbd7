// Package idempotency guards event consumers against duplicate Pub/Sub
// deliveries. A consumer claims an event id with a short lease, and only a
// completed claim is remembered for the full window.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"

	// DefaultLease bounds how long a crashed consumer can block redelivery.
	DefaultLease = 2 * time.Minute
)

// State is the outcome of a claim.
type State int

const (
	// Acquired means the caller owns the event and must Complete or Release it.
	Acquired State = iota
	// InFlight means another consumer holds the lease. Retry later.
	InFlight
	// Done means the event was already handled inside the window.
	Done
)

func (s State) String() string {
	switch s {
	case Acquired:
		return "acquired"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store is the subset of the redis client the guard needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager tracks per-consumer event state under
// `tb:idempotency:evt:<consumer>:<event_id>`.
type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

type Option func(*Manager)

// WithLease overrides DefaultLease.
func WithLease(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lease = d
		}
	}
}

// NewManager remembers completed events for ttl.
func NewManager(store Store, ttl time.Duration, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	m := &Manager{store: store, ttl: ttl, lease: DefaultLease}
	for _, opt := range opts {
		opt(m)
	}
	if m.lease > m.ttl {
		m.lease = m.ttl
	}
	return m, nil
}

// Claim tries to take the processing lease for eventID.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (State, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return InFlight, err
	}

	// Two attempts: the lease may expire between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := m.store.SetNX(ctx, key, markerProcessing, m.lease)
		if err != nil {
			return InFlight, fmt.Errorf("claim %s: %w", key, err)
		}
		if ok {
			return Acquired, nil
		}

		marker, err := m.store.Get(ctx, key)
		switch {
		case errors.Is(err, goredis.Nil):
			continue
		case err != nil:
			return InFlight, fmt.Errorf("read %s: %w", key, err)
		case marker == markerDone:
			return Done, nil
		default:
			return InFlight, nil
		}
	}
	return InFlight, nil
}

// Complete records eventID as handled for the full window.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

// Release drops the lease so a redelivery can retry immediately.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
