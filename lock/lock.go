// Package lock provides the run-in-progress marker that keeps two sync runs
// for the same source from overlapping.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is held for the duration of one run.
// A Lock value guards one key and is not meant to be shared across goroutines.
type Lock interface {
	// Acquire tries to take the lock without blocking. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if we still own it
	Release(ctx context.Context) error
}

// Factory builds a Lock for a key
type Factory func(key string) Lock

// NewFactory picks the best available backend: Redis when a client is given,
// PostgreSQL advisory locks when a PostgreSQL pool is given, otherwise an
// in-process lock (single binary, SQLite store).
func NewFactory(redisClient *redis.Client, pg *sql.DB, ttl time.Duration) Factory {
	switch {
	case redisClient != nil:
		return func(key string) Lock { return NewRedisLock(redisClient, key, ttl) }
	case pg != nil:
		return func(key string) Lock { return NewPGAdvisoryLock(pg, key) }
	default:
		return func(key string) Lock { return NewLocalLock(key) }
	}
}

// RunKey is the lock key of a source's sync run
func RunKey(sourceID string) string {
	return "sync:" + sourceID
}

// =============================================================================
// PostgreSQL Advisory Lock
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lock pins one connection from
// the pool until Release. If that connection drops the lock goes with it.

// PGAdvisoryLock implements Lock using PostgreSQL advisory locks
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a lock ID derived from key
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to take the advisory lock (non-blocking)
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection for lock %d: %w", l.lockID, err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to acquire lock %d: %w", l.lockID, err)
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and hands the connection back to the pool
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	cerr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return cerr
}

// =============================================================================
// In-process lock
// =============================================================================

var (
	localMu   sync.Mutex
	localHeld = map[string]bool{}
)

// LocalLock only guards runs inside this process
type LocalLock struct {
	key   string
	owned bool
}

// NewLocalLock creates an in-process lock for key
func NewLocalLock(key string) *LocalLock {
	return &LocalLock{key: key}
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	localMu.Lock()
	defer localMu.Unlock()
	if localHeld[l.key] {
		return false, nil
	}
	localHeld[l.key] = true
	l.owned = true
	return true, nil
}

func (l *LocalLock) Release(context.Context) error {
	localMu.Lock()
	defer localMu.Unlock()
	if l.owned {
		delete(localHeld, l.key)
		l.owned = false
	}
	return nil
}
