package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob struct {
	name string
}

func (s *namedJob) Name() string              { return s.name }
func (s *namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	cleanup := &namedJob{name: "notification-cleanup"}
	backfill := &namedJob{name: "settlement-backfill"}
	registry, err := NewRegistry(cleanup, nil)
	require.NoError(t, err)
	require.NoError(t, registry.Register(nil))
	require.NoError(t, registry.Register(backfill))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, cleanup, jobs[0])
	assert.Same(t, backfill, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "registry exposed its backing slice")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&namedJob{name: "outbox-retention"}, &namedJob{name: "outbox-retention"})
	require.Error(t, err)

	_, err = NewRegistry(&namedJob{name: " "})
	require.Error(t, err)
}

func TestRegistryOnly(t *testing.T) {
	registry, err := NewRegistry(
		&namedJob{name: "settlement-backfill"},
		&namedJob{name: "notification-cleanup"},
		&namedJob{name: "outbox-retention"},
	)
	require.NoError(t, err)

	subset, err := registry.Only("outbox-retention", "settlement-backfill")
	require.NoError(t, err)
	assert.Equal(t, []string{"settlement-backfill", "outbox-retention"}, subset.Names())

	same, err := registry.Only()
	require.NoError(t, err)
	assert.Same(t, registry, same)

	_, err = registry.Only("nope")
	assert.ErrorContains(t, err, "unknown cron job")
}
