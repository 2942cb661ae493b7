package vo

// TopCommenterVO 是评论者排行榜的单个条目。
type TopCommenterVO struct {
	Username     string `json:"username"`
	CommentCount int64  `json:"commentCount"`
}

// PopularPostVO 是帖子热度排行榜的单个条目。
type PopularPostVO struct {
	PostID       string `json:"postId"`
	CommentCount int64  `json:"commentCount"`
}

// CommentStatsVO 是全局评论统计的聚合视图。
type CommentStatsVO struct {
	TotalComments     int64            `json:"totalComments"`
	CommentsToday     int64            `json:"commentsToday"`
	CommentsThisWeek  int64            `json:"commentsThisWeek"`
	CommentsThisMonth int64            `json:"commentsThisMonth"`
	TopCommenters     []TopCommenterVO `json:"topCommenters"`
	PopularPosts      []PopularPostVO  `json:"popularPosts"`
}

// PageViewStatsVO 是单个帖子的浏览统计视图。
type PageViewStatsVO struct {
	TotalViews          int64 `json:"totalViews"`
	UniqueVisitorsToday int64 `json:"uniqueVisitorsToday"`
}
