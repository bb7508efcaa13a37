package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func newTestCache(clock *time.Time) (*ReadCache, *MemoryBackend) {
	backend := NewMemoryBackend()
	backend.now = func() time.Time { return *clock }
	return New(backend, time.Minute, 5*time.Minute), backend
}

func TestGetOrComputeCachesUntilTTL(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(&clock)
	ctx := context.Background()
	locID := uuid.New()

	computes := 0
	compute := func(context.Context) (payload, error) {
		computes++
		return payload{Value: "fresh"}, nil
	}

	got, err := GetOrComputeCurrent(ctx, c, locID, compute)
	require.NoError(t, err)
	require.Equal(t, "fresh", got.Value)
	require.Equal(t, 1, computes)

	// Within TTL the cached copy is served.
	got, err = GetOrComputeCurrent(ctx, c, locID, compute)
	require.NoError(t, err)
	require.Equal(t, "fresh", got.Value)
	require.Equal(t, 1, computes)

	// Past TTL the entry has expired and is recomputed.
	clock = clock.Add(time.Minute + time.Second)
	_, err = GetOrComputeCurrent(ctx, c, locID, compute)
	require.NoError(t, err)
	require.Equal(t, 2, computes)
}

func TestInvalidateCurrentForcesRecompute(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(&clock)
	ctx := context.Background()
	locID := uuid.New()

	computes := 0
	compute := func(context.Context) (payload, error) {
		computes++
		return payload{Value: "v"}, nil
	}

	_, err := GetOrComputeCurrent(ctx, c, locID, compute)
	require.NoError(t, err)

	c.InvalidateCurrent(ctx, locID)

	_, err = GetOrComputeCurrent(ctx, c, locID, compute)
	require.NoError(t, err)
	require.Equal(t, 2, computes)
}

func TestInvalidateCurrentLeavesHourlyAlone(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(&clock)
	ctx := context.Background()
	locID := uuid.New()

	computes := 0
	compute := func(context.Context) (payload, error) {
		computes++
		return payload{Value: "h"}, nil
	}

	_, err := GetOrComputeHourly(ctx, c, locID, 24, compute)
	require.NoError(t, err)

	c.InvalidateCurrent(ctx, locID)

	_, err = GetOrComputeHourly(ctx, c, locID, 24, compute)
	require.NoError(t, err)
	require.Equal(t, 1, computes, "hourly entries only expire, never invalidate")
}

func TestHourlyKeyVariesByHours(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(&clock)
	ctx := context.Background()
	locID := uuid.New()

	computes := 0
	compute := func(context.Context) (payload, error) {
		computes++
		return payload{}, nil
	}

	_, _ = GetOrComputeHourly(ctx, c, locID, 24, compute)
	_, _ = GetOrComputeHourly(ctx, c, locID, 48, compute)
	_, _ = GetOrComputeHourly(ctx, c, locID, 24, compute)
	require.Equal(t, 2, computes, "distinct hour counts are distinct entries")
}

func TestComputeErrorIsNotCached(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, _ := newTestCache(&clock)
	ctx := context.Background()
	locID := uuid.New()

	boom := errors.New("boom")
	computes := 0
	_, err := GetOrComputeCurrent(ctx, c, locID, func(context.Context) (payload, error) {
		computes++
		return payload{}, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := GetOrComputeCurrent(ctx, c, locID, func(context.Context) (payload, error) {
		computes++
		return payload{Value: "ok"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", got.Value)
	require.Equal(t, 2, computes)
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}
func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}
func (failingBackend) Delete(context.Context, string) error {
	return errors.New("backend down")
}

func TestBackendFailureDegradesToCompute(t *testing.T) {
	c := New(failingBackend{}, time.Minute, time.Minute)
	ctx := context.Background()

	got, err := GetOrComputeCurrent(ctx, c, uuid.New(), func(context.Context) (payload, error) {
		return payload{Value: "computed"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "computed", got.Value)

	// Invalidation against a dead backend must not panic or error out.
	c.InvalidateCurrent(ctx, uuid.New())
}

func TestCorruptEntryIsDroppedAndRecomputed(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c, backend := newTestCache(&clock)
	ctx := context.Background()
	locID := uuid.New()

	require.NoError(t, backend.Set(ctx, CurrentKey(locID), []byte("{not json"), time.Minute))

	got, err := GetOrComputeCurrent(ctx, c, locID, func(context.Context) (payload, error) {
		return payload{Value: "clean"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "clean", got.Value)
}
