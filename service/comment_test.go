package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Xushengqwer/go-common/commonerrors"
	commonConfig "github.com/Xushengqwer/go-common/config"
	"github.com/Xushengqwer/go-common/core"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xushengqwer/comment_service/constant"
	"github.com/Xushengqwer/comment_service/models/dto"
	"github.com/Xushengqwer/comment_service/models/entities"
	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/myErrors"
	commentRedis "github.com/Xushengqwer/comment_service/repo/redis"
	"github.com/Xushengqwer/comment_service/service"
)

// fakeCommentRepo 是 CommentRepository 的内存实现，按 ID 升序分配主键。
type fakeCommentRepo struct {
	mu       sync.Mutex
	nextID   uint64
	comments map[uint64]*entities.Comment

	listCalls int // GetCommentsByPostID 的调用次数，用于观测缓存命中
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{
		nextID:   1,
		comments: make(map[uint64]*entities.Comment),
	}
}

func (f *fakeCommentRepo) CreateComment(_ context.Context, comment *entities.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment.ID = f.nextID
	f.nextID++
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	stored := *comment
	f.comments[comment.ID] = &stored
	return nil
}

func (f *fakeCommentRepo) GetCommentByID(_ context.Context, id uint64) (*entities.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[id]
	if !ok {
		return nil, commonerrors.ErrRepoNotFound
	}
	copied := *comment
	return &copied, nil
}

// sortedDesc 模拟仓库层 created_at DESC, id DESC 的读取顺序。
func sortedDesc(comments []*entities.Comment) []*entities.Comment {
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].ID > comments[j].ID
	})
	return comments
}

func (f *fakeCommentRepo) GetCommentsByPostID(_ context.Context, postID string) ([]*entities.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	result := make([]*entities.Comment, 0)
	for _, c := range f.comments {
		if c.PostID == postID {
			copied := *c
			result = append(result, &copied)
		}
	}
	return sortedDesc(result), nil
}

func (f *fakeCommentRepo) GetRootCommentsPaginated(_ context.Context, postID string, offset, limit int) ([]*entities.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roots := make([]*entities.Comment, 0)
	for _, c := range f.comments {
		if c.PostID == postID && c.ParentID == nil {
			copied := *c
			roots = append(roots, &copied)
		}
	}
	roots = sortedDesc(roots)
	if offset >= len(roots) {
		return nil, nil
	}
	end := offset + limit
	if end > len(roots) {
		end = len(roots)
	}
	return roots[offset:end], nil
}

func (f *fakeCommentRepo) CountRootComments(_ context.Context, postID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, c := range f.comments {
		if c.PostID == postID && c.ParentID == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeCommentRepo) GetCommentsByParentID(_ context.Context, parentID uint64) ([]*entities.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*entities.Comment, 0)
	for _, c := range f.comments {
		if c.ParentID != nil && *c.ParentID == parentID {
			copied := *c
			result = append(result, &copied)
		}
	}
	return sortedDesc(result), nil
}

func (f *fakeCommentRepo) UpdateAttachment(_ context.Context, commentID uint64, attachment *entities.CommentAttachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[commentID]
	if !ok {
		return commonerrors.ErrRepoNotFound
	}
	comment.Attachment = *attachment
	return nil
}

func (f *fakeCommentRepo) DeleteCommentTree(_ context.Context, rootID uint64) ([]*entities.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[rootID]; !ok {
		return nil, commonerrors.ErrRepoNotFound
	}
	deleted := make([]*entities.Comment, 0)
	queue := []uint64{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		comment, ok := f.comments[id]
		if !ok {
			continue
		}
		copied := *comment
		deleted = append(deleted, &copied)
		delete(f.comments, id)
		for childID, c := range f.comments {
			if c.ParentID != nil && *c.ParentID == id {
				queue = append(queue, childID)
			}
		}
	}
	return deleted, nil
}

// fakePublisher 记录所有发布的事件，供断言使用。
type fakePublisher struct {
	mu         sync.Mutex
	created    []*events.CommentCreatedEvent
	deleted    []*events.CommentDeletedEvent
	broadcasts []*events.BroadcastEnvelope
}

func (p *fakePublisher) SendCommentCreatedEvent(_ context.Context, event *events.CommentCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return nil
}

func (p *fakePublisher) SendCommentDeletedEvent(_ context.Context, event *events.CommentDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, event)
	return nil
}

func (p *fakePublisher) PublishBroadcast(_ context.Context, _ string, envelope *events.BroadcastEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, envelope)
	return nil
}

func (p *fakePublisher) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

func (p *fakePublisher) deletedBroadcastCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, e := range p.broadcasts {
		if e.Type == events.TypeDeletedComment {
			count++
		}
	}
	return count
}

// fakeBroadcaster 记录同步推送给本实例订阅者的事件。
type fakeBroadcaster struct {
	mu          sync.Mutex
	newComments []events.BroadcastCommentData
	deleted     []events.BroadcastCommentData
}

func (b *fakeBroadcaster) BroadcastNewComment(data events.BroadcastCommentData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newComments = append(b.newComments, data)
}

func (b *fakeBroadcaster) BroadcastDeletedComment(data events.BroadcastCommentData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, data)
}

type serviceDeps struct {
	repo        *fakeCommentRepo
	publisher   *fakePublisher
	broadcaster *fakeBroadcaster
	analytics   commentRedis.AnalyticsRepository
	svc         service.CommentService
}

func setupServiceTest(t *testing.T) *serviceDeps {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	logger, err := core.NewZapLogger(commonConfig.ZapConfig{})
	require.NoError(t, err)

	repo := newFakeCommentRepo()
	publisher := &fakePublisher{}
	broadcaster := &fakeBroadcaster{}
	cache := commentRedis.NewCommentCache(client, logger)
	analytics := commentRedis.NewAnalyticsRepository(client, logger)

	return &serviceDeps{
		repo:        repo,
		publisher:   publisher,
		broadcaster: broadcaster,
		analytics:   analytics,
		svc:         service.NewCommentService(repo, cache, analytics, publisher, broadcaster, logger),
	}
}

func createRequest(postID string) *dto.CreateCommentRequest {
	return &dto.CreateCommentRequest{
		PostID:   postID,
		Content:  "第一条评论",
		UserID:   "u1",
		Username: "alice",
		Email:    "alice@example.com",
	}
}

func TestCreateComment_Success(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	got, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)
	assert.NotZero(t, got.ID)
	assert.Equal(t, "post-1", got.PostID)
	assert.Nil(t, got.ParentID)
	assert.Equal(t, "alice", got.Author.Username)

	// 统计同步累加
	count, err := deps.analytics.GetPostCommentCount(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// 创建事件异步发出
	require.Eventually(t, func() bool {
		return deps.publisher.createdCount() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, got.ID, deps.publisher.created[0].CommentID)
	assert.Nil(t, deps.publisher.created[0].Attachment)
}

func TestCreateComment_ContentValidation(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	req := createRequest("post-1")
	req.Content = "   \n\t "
	_, err := deps.svc.CreateComment(ctx, req)
	assert.ErrorIs(t, err, myErrors.ErrEmptyContent)

	req = createRequest("post-1")
	req.Content = strings.Repeat("字", constant.CommentContentMaxLen+1)
	_, err = deps.svc.CreateComment(ctx, req)
	assert.ErrorIs(t, err, myErrors.ErrContentTooLong)
}

func TestCreateComment_WithAttachment(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	req := createRequest("post-1")
	req.Attachment = &dto.CommentAttachmentDTO{
		Data:         "aGVsbG8=",
		Filename:     "1.png",
		MimeType:     "image/png",
		OriginalName: "截图.png",
		Size:         5,
	}
	got, err := deps.svc.CreateComment(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, got.Attachment)
	assert.False(t, got.Attachment.Processed)

	// 附件随创建事件一起发出，由异步 worker 派生处理任务
	require.Eventually(t, func() bool {
		return deps.publisher.createdCount() == 1
	}, time.Second, 10*time.Millisecond)
	require.NotNil(t, deps.publisher.created[0].Attachment)
	assert.Equal(t, "1.png", deps.publisher.created[0].Attachment.Filename)
}

func TestCreateReply(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	parent, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)

	reply, err := deps.svc.CreateReply(ctx, &dto.CreateReplyRequest{
		PostID:   "post-1",
		ParentID: parent.ID,
		Content:  "一条回复",
		UserID:   "u2",
		Username: "bob",
		Email:    "bob@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)
}

func TestCreateReply_ParentNotFound(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)

	_, err := deps.svc.CreateReply(context.Background(), &dto.CreateReplyRequest{
		PostID:   "post-1",
		ParentID: 999,
		Content:  "一条回复",
		UserID:   "u2",
		Username: "bob",
		Email:    "bob@example.com",
	})
	assert.ErrorIs(t, err, commonerrors.ErrRepoNotFound)
}

func TestCreateReply_ParentMismatch(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	parent, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)

	_, err = deps.svc.CreateReply(ctx, &dto.CreateReplyRequest{
		PostID:   "post-2", // 父评论属于 post-1
		ParentID: parent.ID,
		Content:  "一条回复",
		UserID:   "u2",
		Username: "bob",
		Email:    "bob@example.com",
	})
	assert.ErrorIs(t, err, myErrors.ErrParentMismatch)
}

func TestGetComments_CacheFlow(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	_, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)
	_, err = deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)

	// 首次读取回源数据库并回填缓存
	first, err := deps.svc.GetComments(ctx, "post-1")
	require.NoError(t, err)
	require.Len(t, first, 2)
	callsAfterFirst := deps.repo.listCalls

	// 再次读取命中缓存，不再访问数据库
	second, err := deps.svc.GetComments(ctx, "post-1")
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, callsAfterFirst, deps.repo.listCalls)

	// 排序为 created_at DESC（同时刻按 id DESC），后写的排在前面
	assert.Greater(t, second[0].ID, second[1].ID)

	// 写入使缓存失效，随后的读取重新回源
	_, err = deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)
	third, err := deps.svc.GetComments(ctx, "post-1")
	require.NoError(t, err)
	require.Len(t, third, 3)
	assert.Greater(t, deps.repo.listCalls, callsAfterFirst)
}

func TestGetCommentsPaginated(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	// 30 条根评论 + 1 条回复（回复不参与分页）
	var firstRoot uint64
	for i := 0; i < 30; i++ {
		created, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
		require.NoError(t, err)
		if i == 0 {
			firstRoot = created.ID
		}
	}
	_, err := deps.svc.CreateReply(ctx, &dto.CreateReplyRequest{
		PostID:   "post-1",
		ParentID: firstRoot,
		Content:  "一条回复",
		UserID:   "u2",
		Username: "bob",
		Email:    "bob@example.com",
	})
	require.NoError(t, err)

	page1, err := deps.svc.GetCommentsPaginated(ctx, &dto.PaginatedCommentsRequest{
		PostID: "post-1",
		Page:   1,
		Limit:  25,
	})
	require.NoError(t, err)
	assert.Len(t, page1.Comments, 25)
	assert.Equal(t, int64(30), page1.TotalCount)
	assert.Equal(t, 2, page1.TotalPages)
	// 扁平列表附带全部评论（含回复），供客户端重建评论树
	assert.Len(t, page1.AllComments, 31)

	page2, err := deps.svc.GetCommentsPaginated(ctx, &dto.PaginatedCommentsRequest{
		PostID: "post-1",
		Page:   2,
		Limit:  25,
	})
	require.NoError(t, err)
	assert.Len(t, page2.Comments, 5)
	assert.Equal(t, 2, page2.Page)
}

func TestGetCommentsPaginated_Defaults(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)

	page, err := deps.svc.GetCommentsPaginated(context.Background(), &dto.PaginatedCommentsRequest{
		PostID: "post-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, constant.DefaultPageLimit, page.Limit)
	assert.Zero(t, page.TotalCount)
	assert.Empty(t, page.Comments)
}

func TestDeleteComment_Authorization(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	created, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)

	err = deps.svc.DeleteComment(ctx, created.ID, "someone-else")
	assert.ErrorIs(t, err, myErrors.ErrUnauthorized)

	err = deps.svc.DeleteComment(ctx, 999, "u1")
	assert.ErrorIs(t, err, commonerrors.ErrRepoNotFound)
}

func TestDeleteComment_Cascade(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	root, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)
	reply, err := deps.svc.CreateReply(ctx, &dto.CreateReplyRequest{
		PostID:   "post-1",
		ParentID: root.ID,
		Content:  "一级回复",
		UserID:   "u2",
		Username: "bob",
		Email:    "bob@example.com",
	})
	require.NoError(t, err)
	_, err = deps.svc.CreateReply(ctx, &dto.CreateReplyRequest{
		PostID:   "post-1",
		ParentID: reply.ID,
		Content:  "二级回复",
		UserID:   "u3",
		Username: "carol",
		Email:    "carol@example.com",
	})
	require.NoError(t, err)

	// 仅根评论作者可以删除整棵子树
	require.NoError(t, deps.svc.DeleteComment(ctx, root.ID, "u1"))

	comments, err := deps.svc.GetComments(ctx, "post-1")
	require.NoError(t, err)
	assert.Empty(t, comments)

	// 统计按每条被删评论各自的作者回退
	for _, userID := range []string{"u1", "u2", "u3"} {
		count, countErr := deps.analytics.GetUserCommentCount(ctx, userID)
		require.NoError(t, countErr)
		assert.Zero(t, count, "user %s", userID)
	}

	// 每条被删评论各广播一次删除事件
	require.Eventually(t, func() bool {
		return deps.publisher.deletedBroadcastCount() == 3
	}, time.Second, 10*time.Millisecond)
	deps.publisher.mu.Lock()
	defer deps.publisher.mu.Unlock()
	require.Len(t, deps.publisher.deleted, 1)
	assert.Equal(t, root.ID, deps.publisher.deleted[0].CommentID)
}

// 本实例的实时推送不走 Kafka 链路：写操作返回时事件必须已经送达推送器，
// 即使消息队列不可用，已连接的订阅者也不丢事件。
func TestRealtimeBroadcastIsSynchronous(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	root, err := deps.svc.CreateComment(ctx, createRequest("post-1"))
	require.NoError(t, err)

	// 不等待：CreateComment 返回时推送必须已完成
	deps.broadcaster.mu.Lock()
	require.Len(t, deps.broadcaster.newComments, 1)
	assert.Equal(t, root.ID, deps.broadcaster.newComments[0].ID)
	assert.Equal(t, "post-1", deps.broadcaster.newComments[0].PostID)
	require.NotNil(t, deps.broadcaster.newComments[0].Author)
	assert.Equal(t, "alice", deps.broadcaster.newComments[0].Author.Username)
	deps.broadcaster.mu.Unlock()

	reply, err := deps.svc.CreateReply(ctx, &dto.CreateReplyRequest{
		PostID:   "post-1",
		ParentID: root.ID,
		Content:  "同步推送的回复",
		UserID:   "u2",
		Username: "bob",
		Email:    "bob@example.com",
	})
	require.NoError(t, err)

	deps.broadcaster.mu.Lock()
	require.Len(t, deps.broadcaster.newComments, 2)
	assert.Equal(t, reply.ID, deps.broadcaster.newComments[1].ID)
	deps.broadcaster.mu.Unlock()

	// 级联删除：根评论与回复各推送一条删除事件，同样在返回前完成
	require.NoError(t, deps.svc.DeleteComment(ctx, root.ID, "u1"))

	deps.broadcaster.mu.Lock()
	require.Len(t, deps.broadcaster.deleted, 2)
	ids := map[uint64]bool{}
	for _, data := range deps.broadcaster.deleted {
		ids[data.ID] = true
		assert.Equal(t, "post-1", data.PostID)
	}
	deps.broadcaster.mu.Unlock()
	assert.True(t, ids[root.ID])
	assert.True(t, ids[reply.ID])
}

// TestCommentLifecycle 走一遍"发帖-回复-删除"的完整生命周期：
// 根评论可见 -> 回复挂在根评论下 -> 删除根评论后回复随级联一并消失。
func TestCommentLifecycle(t *testing.T) {
	t.Parallel()
	deps := setupServiceTest(t)
	ctx := context.Background()

	root, err := deps.svc.CreateComment(ctx, &dto.CreateCommentRequest{
		PostID:   "P1",
		Content:  "hello",
		UserID:   "u1",
		Username: "alice",
		Email:    "a@x.com",
	})
	require.NoError(t, err)

	comments, err := deps.svc.GetComments(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "hello", comments[0].Content)

	_, err = deps.svc.CreateReply(ctx, &dto.CreateReplyRequest{
		PostID:   "P1",
		ParentID: root.ID,
		Content:  "hi back",
		UserID:   "u2",
		Username: "bob",
		Email:    "b@x.com",
	})
	require.NoError(t, err)

	comments, err = deps.svc.GetComments(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	var replies int
	for _, c := range comments {
		if c.ParentID != nil {
			replies++
			assert.Equal(t, root.ID, *c.ParentID)
		}
	}
	assert.Equal(t, 1, replies)

	require.NoError(t, deps.svc.DeleteComment(ctx, root.ID, "u1"))

	comments, err = deps.svc.GetComments(ctx, "P1")
	require.NoError(t, err)
	assert.Empty(t, comments)
}
