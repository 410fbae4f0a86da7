package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Codename-11/GlassTrax-Bridge/internal/testutil"
)

func testConn(fake *testutil.FakeDB) *Conn {
	return NewConn(ConnConfig{
		DSN:      "LIVE",
		ReadOnly: true,
		Open:     fake.Open,
	})
}

func TestConnAcquireLazily(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeDB{}
	c := testConn(fake)
	defer c.Close() //nolint:errcheck

	assert.Equal(t, 0, fake.Opens())

	db1, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Opens())

	// Repeated acquires reuse the live handle.
	db2, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, db1, db2)
	assert.Equal(t, 1, fake.Opens())
}

func TestConnAcquireForceNew(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeDB{}
	c := testConn(fake)
	defer c.Close() //nolint:errcheck

	db1, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)

	db2, err := c.Acquire(context.Background(), true)
	require.NoError(t, err)

	assert.NotSame(t, db1, db2)
	assert.Equal(t, 2, fake.Opens())
}

func TestConnRecyclesByAge(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeDB{}
	c := testConn(fake)
	defer c.Close() //nolint:errcheck

	db1, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)

	// Simulate a connection older than the maximum age.
	c.createdAt = time.Now().Add(-MaxConnectionAge - time.Second)

	db2, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)

	assert.NotSame(t, db1, db2)
	assert.Equal(t, 2, fake.Opens())
}

func TestConnRecyclesByErrorStreak(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeDB{}
	c := testConn(fake)
	defer c.Close() //nolint:errcheck

	db1, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)

	c.consecutiveErrors = MaxConsecutiveErrors

	db2, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)

	assert.NotSame(t, db1, db2)
	// Opening the replacement resets the streak.
	assert.Equal(t, 0, c.ConsecutiveErrors())
}

func TestConnRecordFailureDropsHandle(t *testing.T) {
	t.Parallel()
	fake := &testutil.FakeDB{}
	c := testConn(fake)
	defer c.Close() //nolint:errcheck

	_, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)

	c.RecordFailure()
	assert.Nil(t, c.db)
	assert.Equal(t, 1, c.ConsecutiveErrors())

	// Next acquire reopens and resets the streak.
	_, err = c.Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Opens())
	assert.Equal(t, 0, c.ConsecutiveErrors())
}

func TestConnRecordSuccessResetsStreak(t *testing.T) {
	t.Parallel()
	c := testConn(&testutil.FakeDB{})
	c.consecutiveErrors = 2

	c.RecordSuccess()
	assert.Equal(t, 0, c.ConsecutiveErrors())
}

func TestConnCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	c := testConn(&testutil.FakeDB{})

	require.NoError(t, c.Close())

	_, err := c.Acquire(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
