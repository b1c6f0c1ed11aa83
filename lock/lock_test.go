package lock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	first := NewRedisLock(client, RunKey("nvrc"), time.Minute)
	second := NewRedisLock(client, RunKey("nvrc"), time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("lock:sync:nvrc"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// a non-owner release leaves the lock in place
	require.NoError(t, second.Release(ctx))
	require.True(t, mr.Exists("lock:sync:nvrc"))

	require.NoError(t, first.Extend(ctx, 2*time.Minute))
	require.NoError(t, first.Release(ctx))
	require.False(t, mr.Exists("lock:sync:nvrc"))
	require.Error(t, first.Extend(ctx, time.Minute))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	ok, err := NewRedisLock(client, "k", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = NewRedisLock(client, "k", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	l := NewPGAdvisoryLock(db, RunKey("nvrc"))

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Release(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLockBusy(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, RunKey("nvrc"))
	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, l.Release(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	newLock := NewFactory(nil, nil, time.Minute)

	a, b := newLock(RunKey("local-test")), newLock(RunKey("local-test"))
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = b.Acquire(ctx)
	require.False(t, ok)

	require.NoError(t, b.Release(ctx))
	ok, _ = b.Acquire(ctx)
	require.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, _ = b.Acquire(ctx)
	require.True(t, ok)
	require.NoError(t, b.Release(ctx))
}
