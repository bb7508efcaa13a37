package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-alert-service/internal/store/sqlite"
)

// newTestLocker builds a Locker with a distinct identity and a controllable
// clock, simulating one service instance against the shared table.
func newTestLocker(s *sqlite.Store, identity string, clock *fakeClock) *Locker {
	return &Locker{sqlDB: s.DB(), lockedBy: identity, now: clock.Now}
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time          { return c.current }
func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func openTestDB(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "locks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSecondInstanceSkipsWhileHeld(t *testing.T) {
	s := openTestDB(t)
	clock := &fakeClock{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestLocker(s, "node-a", clock)
	b := newTestLocker(s, "node-b", clock)
	ctx := context.Background()

	var bRanInside bool
	ran, err := a.TryRun(ctx, "job", 0, time.Minute, func(ctx context.Context) {
		inner, err := b.TryRun(ctx, "job", 0, time.Minute, func(context.Context) {})
		require.NoError(t, err)
		bRanInside = inner
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.False(t, bRanInside, "second instance must observe the lease and skip")
}

func TestExpiredLeaseIsTakenOver(t *testing.T) {
	s := openTestDB(t)
	clock := &fakeClock{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestLocker(s, "node-a", clock)
	b := newTestLocker(s, "node-b", clock)
	ctx := context.Background()

	// node-a acquires and "crashes": the deferred release still runs in
	// TryRun, so simulate the crash by acquiring directly.
	_, ok, err := a.acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ran, err := b.TryRun(ctx, "job", 0, time.Minute, func(context.Context) {})
	require.NoError(t, err)
	require.False(t, ran, "live lease must not be stolen")

	// Past the maxHold ceiling the lease is up for grabs.
	clock.Advance(time.Minute + time.Second)
	ran, err = b.TryRun(ctx, "job", 0, time.Minute, func(context.Context) {})
	require.NoError(t, err)
	require.True(t, ran, "expired lease must be taken over")
}

func TestMinHoldBlocksImmediateReacquire(t *testing.T) {
	s := openTestDB(t)
	clock := &fakeClock{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestLocker(s, "node-a", clock)
	b := newTestLocker(s, "node-b", clock)
	ctx := context.Background()

	ran, err := a.TryRun(ctx, "job", 10*time.Second, time.Minute, func(context.Context) {})
	require.NoError(t, err)
	require.True(t, ran)

	// Released, but the lease persists until acquiredAt+minHold.
	ran, err = b.TryRun(ctx, "job", 10*time.Second, time.Minute, func(context.Context) {})
	require.NoError(t, err)
	require.False(t, ran, "minimum hold must dampen immediate reacquisition")

	clock.Advance(11 * time.Second)
	ran, err = b.TryRun(ctx, "job", 10*time.Second, time.Minute, func(context.Context) {})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestReleaseAfterRunFreesLockOnceMinHoldPassed(t *testing.T) {
	s := openTestDB(t)
	clock := &fakeClock{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestLocker(s, "node-a", clock)
	ctx := context.Background()

	// A run that outlives its minimum hold releases with lock_until = now,
	// so the very next tick can acquire.
	ran, err := a.TryRun(ctx, "job", time.Second, time.Minute, func(context.Context) {
		clock.Advance(5 * time.Second)
	})
	require.NoError(t, err)
	require.True(t, ran)

	clock.Advance(time.Millisecond)
	ran, err = a.TryRun(ctx, "job", time.Second, time.Minute, func(context.Context) {})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestDistinctLockNamesAreIndependent(t *testing.T) {
	s := openTestDB(t)
	clock := &fakeClock{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	a := newTestLocker(s, "node-a", clock)
	b := newTestLocker(s, "node-b", clock)
	ctx := context.Background()

	ran, err := a.TryRun(ctx, "ingest", 0, time.Minute, func(ctx context.Context) {
		inner, err := b.TryRun(ctx, "dispatch", 0, time.Minute, func(context.Context) {})
		require.NoError(t, err)
		require.True(t, inner, "a different lock name must not conflict")
	})
	require.NoError(t, err)
	require.True(t, ran)
}
