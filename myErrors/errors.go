package myErrors

import "errors"

// ErrCacheMiss 表示在缓存层未找到对应的键值
var ErrCacheMiss = errors.New("cache: key not found (miss)")

// ErrParentMismatch 表示回复指定的父评论不属于同一个帖子。
// 在持久化之前拦截，防止跨帖子的树结构污染。
var ErrParentMismatch = errors.New("comment: parent belongs to a different post")

// ErrUnauthorized 表示操作者不是资源作者，无权执行该操作。
var ErrUnauthorized = errors.New("comment: operation not permitted for this user")

// ErrContentTooLong 表示评论内容超出长度上限。
var ErrContentTooLong = errors.New("comment: content exceeds max length")

// ErrEmptyContent 表示评论内容为空（或仅空白字符）。
var ErrEmptyContent = errors.New("comment: content is empty")
