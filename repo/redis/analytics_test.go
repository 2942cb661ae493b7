package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commentRedis "github.com/Xushengqwer/comment_service/repo/redis"
)

func setupAnalyticsTest(t *testing.T) commentRedis.AnalyticsRepository {
	t.Helper()
	_, client := newTestRedis(t)
	return commentRedis.NewAnalyticsRepository(client, newTestLogger(t))
}

func TestAnalytics_TrackCommentCreated(t *testing.T) {
	t.Parallel()
	analytics := setupAnalyticsTest(t)
	ctx := context.Background()

	require.NoError(t, analytics.TrackCommentCreated(ctx, "post-1", "u1", "alice"))
	require.NoError(t, analytics.TrackCommentCreated(ctx, "post-1", "u1", "alice"))
	require.NoError(t, analytics.TrackCommentCreated(ctx, "post-2", "u2", "bob"))

	stats, err := analytics.GetCommentStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalComments)
	assert.Equal(t, int64(3), stats.CommentsToday)
	assert.Equal(t, int64(3), stats.CommentsThisWeek)
	assert.Equal(t, int64(3), stats.CommentsThisMonth)

	require.NotEmpty(t, stats.TopCommenters)
	assert.Equal(t, "alice", stats.TopCommenters[0].Username)
	assert.Equal(t, int64(2), stats.TopCommenters[0].CommentCount)

	require.NotEmpty(t, stats.PopularPosts)
	assert.Equal(t, "post-1", stats.PopularPosts[0].PostID)
	assert.Equal(t, int64(2), stats.PopularPosts[0].CommentCount)

	postCount, err := analytics.GetPostCommentCount(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), postCount)

	userCount, err := analytics.GetUserCommentCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), userCount)

	userToday, err := analytics.GetUserCommentCountToday(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), userToday)
}

func TestAnalytics_TrackCommentDeleted(t *testing.T) {
	t.Parallel()
	analytics := setupAnalyticsTest(t)
	ctx := context.Background()

	require.NoError(t, analytics.TrackCommentCreated(ctx, "post-1", "u1", "alice"))
	require.NoError(t, analytics.TrackCommentCreated(ctx, "post-1", "u1", "alice"))
	require.NoError(t, analytics.TrackCommentDeleted(ctx, "post-1", "u1", "alice"))

	stats, err := analytics.GetCommentStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalComments)
	assert.Equal(t, int64(1), stats.CommentsToday)

	postCount, err := analytics.GetPostCommentCount(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), postCount)

	userCount, err := analytics.GetUserCommentCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), userCount)

	require.NotEmpty(t, stats.TopCommenters)
	assert.Equal(t, int64(1), stats.TopCommenters[0].CommentCount)
}

func TestAnalytics_EmptyStatsAreZero(t *testing.T) {
	t.Parallel()
	analytics := setupAnalyticsTest(t)
	ctx := context.Background()

	stats, err := analytics.GetCommentStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalComments)
	assert.Zero(t, stats.CommentsToday)
	assert.Empty(t, stats.TopCommenters)
	assert.Empty(t, stats.PopularPosts)

	count, err := analytics.GetPostCommentCount(ctx, "nope")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAnalytics_PageViews(t *testing.T) {
	t.Parallel()
	analytics := setupAnalyticsTest(t)
	ctx := context.Background()

	require.NoError(t, analytics.TrackPageView(ctx, "post-1", "visitor-1"))
	require.NoError(t, analytics.TrackPageView(ctx, "post-1", "visitor-1"))
	require.NoError(t, analytics.TrackPageView(ctx, "post-1", "visitor-2"))

	stats, err := analytics.GetPageViewStats(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalViews)
	// 同一访客当日只计一次
	assert.Equal(t, int64(2), stats.UniqueVisitorsToday)
}
