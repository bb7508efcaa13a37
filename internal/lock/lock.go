// Package lock implements a lease-style lock over a shared database table.
// It keeps at most one service instance running a named job at a time, stays
// correct across crashes via the lock_until ceiling, and dampens
// thundering-herd reacquisition via a minimum hold.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Locker acquires named cluster-wide leases from the shared locks table.
type Locker struct {
	sqlDB    *sql.DB
	lockedBy string
	now      func() time.Time
}

// New creates a Locker over the shared database handle.
func New(sqlDB *sql.DB) *Locker {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Locker{
		sqlDB:    sqlDB,
		lockedBy: fmt.Sprintf("%s-%d", host, os.Getpid()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TryRun attempts to acquire the named lock and, if acquired, runs fn. When
// another instance holds the lock, TryRun returns ran=false without error:
// that is expected steady-state under multi-instance deployment.
//
// While held, the lease expires at acquisition+maxHold, so a crashed holder
// cannot block the cluster past that ceiling. On release the lease is kept
// until at least acquisition+minHold.
func (l *Locker) TryRun(ctx context.Context, name string, minHold, maxHold time.Duration, fn func(ctx context.Context)) (bool, error) {
	acquiredAt, ok, err := l.acquire(ctx, name, maxHold)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Debug().Str("lock", name).Msg("lock held elsewhere; skipping run")
		return false, nil
	}

	defer func() {
		if err := l.release(name, acquiredAt, minHold); err != nil {
			log.Error().Err(err).Str("lock", name).Msg("failed to release lock")
		}
	}()

	fn(ctx)
	return true, nil
}

func (l *Locker) acquire(ctx context.Context, name string, maxHold time.Duration) (time.Time, bool, error) {
	now := l.now()
	until := now.Add(maxHold)

	// Insert wins for a never-before-seen lock name; otherwise take over
	// only an expired lease.
	res, err := l.sqlDB.ExecContext(ctx,
		`INSERT INTO locks (name, locked_by, locked_at, lock_until) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE
		 SET locked_by = excluded.locked_by, locked_at = excluded.locked_at, lock_until = excluded.lock_until
		 WHERE locks.lock_until <= ?`,
		name, l.lockedBy, now.UnixMilli(), until.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return now, affected == 1, nil
}

// release shortens the lease to max(now, acquiredAt+minHold). Deliberately
// not bound to the caller's context: the lease must be released even when
// the job context was cancelled.
func (l *Locker) release(name string, acquiredAt time.Time, minHold time.Duration) error {
	until := acquiredAt.Add(minHold)
	if now := l.now(); now.After(until) {
		until = now
	}

	_, err := l.sqlDB.Exec(
		`UPDATE locks SET lock_until = ? WHERE name = ? AND locked_by = ?`,
		until.UnixMilli(), name, l.lockedBy,
	)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
