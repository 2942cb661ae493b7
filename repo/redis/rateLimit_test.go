package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commentRedis "github.com/Xushengqwer/comment_service/repo/redis"
)

func TestSlidingWindowLimiter_AllowsUnderLimit(t *testing.T) {
	t.Parallel()
	_, client := newTestRedis(t)
	limiter := commentRedis.NewSlidingWindowLimiter(client, newTestLogger(t), 3, time.Minute)
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		result, err := limiter.Allow(ctx, "comment:create", "u1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 3-i-1, result.Remaining)
	}

	result, err := limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
	assert.True(t, result.ResetAt.After(time.Now()))
}

func TestSlidingWindowLimiter_SubjectsAreIsolated(t *testing.T) {
	t.Parallel()
	_, client := newTestRedis(t)
	limiter := commentRedis.NewSlidingWindowLimiter(client, newTestLogger(t), 1, time.Minute)
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// 其他用户与其他动作都不受 u1 的配额影响
	result, err = limiter.Allow(ctx, "comment:create", "u2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "other:action", "u1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestSlidingWindowLimiter_WindowSlides(t *testing.T) {
	t.Parallel()
	_, client := newTestRedis(t)
	window := 100 * time.Millisecond
	limiter := commentRedis.NewSlidingWindowLimiter(client, newTestLogger(t), 1, window)
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// 等待首次请求滑出窗口后配额恢复
	time.Sleep(window + 50*time.Millisecond)

	result, err = limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestSlidingWindowLimiter_RejectionDoesNotConsumeQuota(t *testing.T) {
	t.Parallel()
	_, client := newTestRedis(t)
	window := 150 * time.Millisecond
	limiter := commentRedis.NewSlidingWindowLimiter(client, newTestLogger(t), 1, window)
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// 被拒绝的请求不计入窗口，不会无限顺延恢复时间
	for i := 0; i < 3; i++ {
		result, err = limiter.Allow(ctx, "comment:create", "u1")
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	}

	time.Sleep(window + 50*time.Millisecond)

	result, err = limiter.Allow(ctx, "comment:create", "u1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
