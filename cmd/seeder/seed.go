package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/Xushengqwer/go-common/core"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/models/dto"
	"github.com/Xushengqwer/comment_service/models/vo"
	"github.com/Xushengqwer/comment_service/service"
)

// Seed 为 numPosts 个虚构帖子各生成 commentsPerPost 条评论。
// 每个帖子的首条评论一定是根评论；其余评论随机回复此前已创建的任意一条，
// 约一半落在根评论之外，自然形成多级嵌套的评论树。
func Seed(ctx context.Context, commentSvc service.CommentService, logger *core.ZapLogger, numPosts, commentsPerPost int) {
	logger.Info("开始填充测试数据 (通过服务层)...",
		zap.Int("posts", numPosts),
		zap.Int("commentsPerPost", commentsPerPost))

	var wg sync.WaitGroup
	concurrencyLimit := 5
	semaphore := make(chan struct{}, concurrencyLimit)

	for p := 0; p < numPosts; p++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(postIndex int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			postID := fmt.Sprintf("seed-post-%03d", postIndex+1)
			seedPostComments(ctx, commentSvc, logger, postID, commentsPerPost)
		}(p)
	}

	wg.Wait()
	logger.Info("测试数据填充完毕 (通过服务层)。")
}

// seedPostComments 串行填充单个帖子的评论树。
// 同一帖子内串行执行，保证回复引用的父评论一定已创建成功。
func seedPostComments(ctx context.Context, commentSvc service.CommentService, logger *core.ZapLogger, postID string, count int) {
	created := make([]*vo.CommentVO, 0, count)

	for i := 0; i < count; i++ {
		userID := uuid.New().String()
		username := gofakeit.Username()
		email := gofakeit.Email()

		// 首条必为根评论，其后一半概率回复已有评论
		if len(created) == 0 || gofakeit.Bool() {
			req := &dto.CreateCommentRequest{
				PostID:   postID,
				Content:  gofakeit.Paragraph(1, 3, 15, " "),
				UserID:   userID,
				Username: username,
				Email:    email,
				Homepage: gofakeit.URL(),
			}
			resp, err := commentSvc.CreateComment(ctx, req)
			if err != nil {
				logger.Error("创建根评论失败",
					zap.String("post_id", postID),
					zap.Error(err))
				continue
			}
			created = append(created, resp)
		} else {
			parent := created[gofakeit.Number(0, len(created)-1)]
			req := &dto.CreateReplyRequest{
				PostID:   postID,
				ParentID: parent.ID,
				Content:  gofakeit.Paragraph(1, 2, 12, " "),
				UserID:   userID,
				Username: username,
				Email:    email,
			}
			resp, err := commentSvc.CreateReply(ctx, req)
			if err != nil {
				logger.Error("创建回复失败",
					zap.String("post_id", postID),
					zap.Uint64("parent_id", parent.ID),
					zap.Error(err))
				continue
			}
			created = append(created, resp)
		}
	}

	logger.Info("帖子评论填充完成",
		zap.String("post_id", postID),
		zap.Int("created", len(created)))
}
