package vo

// --- 用于成功响应且包含具体 Data 的包装器 ---

// CommentResponseWrapper 对应 response.APIResponse[vo.CommentVO]
type CommentResponseWrapper struct {
	Code    int       `json:"code" example:"0"`
	Message string    `json:"message,omitempty" example:"success"`
	Data    CommentVO `json:"data"`
}

// CommentListResponseWrapper 对应 response.APIResponse[[]*vo.CommentVO]
type CommentListResponseWrapper struct {
	Code    int          `json:"code" example:"0"`
	Message string       `json:"message,omitempty" example:"success"`
	Data    []*CommentVO `json:"data"`
}

// CommentsPageResponseWrapper 对应 response.APIResponse[vo.CommentsPageVO]
type CommentsPageResponseWrapper struct {
	Code    int            `json:"code" example:"0"`
	Message string         `json:"message,omitempty" example:"success"`
	Data    CommentsPageVO `json:"data"`
}

// CommentStatsResponseWrapper 对应 response.APIResponse[vo.CommentStatsVO]
type CommentStatsResponseWrapper struct {
	Code    int            `json:"code" example:"0"`
	Message string         `json:"message,omitempty" example:"success"`
	Data    CommentStatsVO `json:"data"`
}

// TopCommentersResponseWrapper 对应 response.APIResponse[[]vo.TopCommenterVO]
type TopCommentersResponseWrapper struct {
	Code    int              `json:"code" example:"0"`
	Message string           `json:"message,omitempty" example:"success"`
	Data    []TopCommenterVO `json:"data"`
}

// PopularPostsResponseWrapper 对应 response.APIResponse[[]vo.PopularPostVO]
type PopularPostsResponseWrapper struct {
	Code    int             `json:"code" example:"0"`
	Message string          `json:"message,omitempty" example:"success"`
	Data    []PopularPostVO `json:"data"`
}

// PageViewStatsResponseWrapper 对应 response.APIResponse[vo.PageViewStatsVO]
type PageViewStatsResponseWrapper struct {
	Code    int             `json:"code" example:"0"`
	Message string          `json:"message,omitempty" example:"success"`
	Data    PageViewStatsVO `json:"data"`
}

// --- 用于错误响应 或 简单成功响应（只有 Code 和 Message） ---

// BaseResponseWrapper 代表一个只包含 Code 和 Message 的响应。
// 适用于错误情况（RespondError 返回时 Data 为 nil 且 omitempty）
// 以及 DELETE 等只需确认结果的成功操作。
type BaseResponseWrapper struct {
	Code    int    `json:"code" example:"0"`
	Message string `json:"message" example:"success"`
}
