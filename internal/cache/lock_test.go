package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reluxrent/api/internal/utils"
)

func newTestLocker(t *testing.T) (*PropertyLocker, redismock.ClientMock) {
	t.Helper()
	rdb, mockRedis := redismock.NewClientMock()
	l := NewPropertyLocker(rdb, 10*time.Second)
	l.retryDelay = time.Millisecond
	l.attempts = 2
	l.newToken = func() string { return "token-1" }
	return l, mockRedis
}

func TestPropertyLocker_AcquireAndRelease(t *testing.T) {
	l, mockRedis := newTestLocker(t)
	propertyID := utils.SixID{1, 1, 1, 1, 1, 1}
	key := LockKey(propertyID)

	mockRedis.ExpectSetNX(key, "token-1", 10*time.Second).SetVal(true)
	mockRedis.ExpectEvalSha(releaseScript.Hash(), []string{key}, "token-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), propertyID)
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mockRedis.ExpectationsWereMet())
}

func TestPropertyLocker_Busy(t *testing.T) {
	l, mockRedis := newTestLocker(t)
	propertyID := utils.SixID{2, 2, 2, 2, 2, 2}
	key := LockKey(propertyID)

	mockRedis.ExpectSetNX(key, "token-1", 10*time.Second).SetVal(false)
	mockRedis.ExpectSetNX(key, "token-1", 10*time.Second).SetVal(false)

	_, err := l.Lock(context.Background(), propertyID)
	assert.ErrorIs(t, err, ErrLockBusy)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}

func TestPropertyLocker_RetryThenAcquire(t *testing.T) {
	l, mockRedis := newTestLocker(t)
	propertyID := utils.SixID{3, 3, 3, 3, 3, 3}
	key := LockKey(propertyID)

	mockRedis.ExpectSetNX(key, "token-1", 10*time.Second).SetVal(false)
	mockRedis.ExpectSetNX(key, "token-1", 10*time.Second).SetVal(true)

	unlock, err := l.Lock(context.Background(), propertyID)
	require.NoError(t, err)
	assert.NotNil(t, unlock)
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}

func TestPropertyLocker_RedisError(t *testing.T) {
	l, mockRedis := newTestLocker(t)
	propertyID := utils.SixID{4, 4, 4, 4, 4, 4}

	mockRedis.ExpectSetNX(LockKey(propertyID), "token-1", 10*time.Second).SetErr(errors.New("connection refused"))

	_, err := l.Lock(context.Background(), propertyID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockBusy)
}
