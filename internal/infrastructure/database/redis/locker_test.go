package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
)

func TestEnrichmentLocker_TryLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, _ := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	factory := NewLockFactory(client, logging.NewNopLogger())
	locker := NewEnrichmentLocker(factory, time.Minute, nil)

	ctx := context.Background()
	release, acquired, err := locker.TryLock(ctx, "ivosidenib")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotNil(t, release)

	// A second holder cannot take the same substance.
	rel2, acquired2, err := locker.TryLock(ctx, "ivosidenib")
	require.NoError(t, err)
	assert.False(t, acquired2)
	assert.Nil(t, rel2)

	// A different substance is independent.
	rel3, acquired3, err := locker.TryLock(ctx, "imatinib")
	require.NoError(t, err)
	assert.True(t, acquired3)
	rel3()

	release()

	// Released substance can be re-acquired.
	rel4, acquired4, err := locker.TryLock(ctx, "ivosidenib")
	require.NoError(t, err)
	assert.True(t, acquired4)
	rel4()
}
