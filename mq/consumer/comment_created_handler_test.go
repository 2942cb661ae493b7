package consumer_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/Xushengqwer/go-common/commonerrors"
	commonConfig "github.com/Xushengqwer/go-common/config"
	"github.com/Xushengqwer/go-common/core"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xushengqwer/comment_service/models/entities"
	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/mq/consumer"
)

func newTestLogger(t *testing.T) *core.ZapLogger {
	t.Helper()
	logger, err := core.NewZapLogger(commonConfig.ZapConfig{})
	require.NoError(t, err)
	return logger
}

// fakePublisher 记录 worker 派生的所有下游消息。
type fakePublisher struct {
	mu         sync.Mutex
	fileEvents []*events.FileProcessingEvent
	mailEvents []*events.EmailNotificationEvent
	broadcasts []*events.BroadcastEnvelope
}

func (p *fakePublisher) SendFileProcessingEvent(_ context.Context, event *events.FileProcessingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileEvents = append(p.fileEvents, event)
	return nil
}

func (p *fakePublisher) SendEmailNotificationEvent(_ context.Context, event *events.EmailNotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mailEvents = append(p.mailEvents, event)
	return nil
}

func (p *fakePublisher) PublishBroadcast(_ context.Context, _ string, envelope *events.BroadcastEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, envelope)
	return nil
}

// fakeCommentRepo 是消费者测试用的最小内存仓库。
type fakeCommentRepo struct {
	mu       sync.Mutex
	comments map[uint64]*entities.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: make(map[uint64]*entities.Comment)}
}

func (f *fakeCommentRepo) put(comment *entities.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[comment.ID] = comment
}

func (f *fakeCommentRepo) CreateComment(_ context.Context, comment *entities.Comment) error {
	f.put(comment)
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

func (f *fakeCommentRepo) GetCommentsByPostID(_ context.Context, _ string) ([]*entities.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) GetRootCommentsPaginated(_ context.Context, _ string, _, _ int) ([]*entities.Comment, error) {
	return nil, nil
}

func (f *fakeCommentRepo) CountRootComments(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (f *fakeCommentRepo) GetCommentsByParentID(_ context.Context, _ uint64) ([]*entities.Comment, error) {
	return nil, nil
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
	comment, ok := f.comments[rootID]
	if !ok {
		return nil, commonerrors.ErrRepoNotFound
	}
	delete(f.comments, rootID)
	return []*entities.Comment{comment}, nil
}

func marshalMessage(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Topic: "test-topic", Value: payload}
}

func TestCommentCreatedHandler_RootCommentOnlyBroadcasts(t *testing.T) {
	t.Parallel()
	publisher := &fakePublisher{}
	handler := consumer.NewCommentCreatedHandler(newTestLogger(t), publisher)

	event := &events.CommentCreatedEvent{
		CommentID: 1,
		PostID:    "post-1",
		Content:   "根评论",
		Author:    events.AuthorData{UserID: "u1", Username: "alice", Email: "alice@example.com"},
	}
	require.NoError(t, handler.Handle(context.Background(), marshalMessage(t, event)))

	// 无附件、非回复：只派生实时广播
	assert.Empty(t, publisher.fileEvents)
	assert.Empty(t, publisher.mailEvents)
	require.Len(t, publisher.broadcasts, 1)
	assert.Equal(t, events.TypeNewComment, publisher.broadcasts[0].Type)
	assert.Equal(t, uint64(1), publisher.broadcasts[0].Data.ID)
	assert.Equal(t, "post-1", publisher.broadcasts[0].Data.PostID)
}

func TestCommentCreatedHandler_ReplyWithAttachmentDerivesAll(t *testing.T) {
	t.Parallel()
	publisher := &fakePublisher{}
	handler := consumer.NewCommentCreatedHandler(newTestLogger(t), publisher)

	parentID := uint64(7)
	event := &events.CommentCreatedEvent{
		CommentID: 8,
		PostID:    "post-1",
		ParentID:  &parentID,
		Content:   "带附件的回复",
		Author:    events.AuthorData{UserID: "u2", Username: "bob", Email: "bob@example.com"},
		Attachment: &events.AttachmentData{
			Data:     "aGVsbG8=",
			Filename: "8.txt",
			MimeType: "text/plain",
			Size:     5,
		},
	}
	require.NoError(t, handler.Handle(context.Background(), marshalMessage(t, event)))

	require.Len(t, publisher.fileEvents, 1)
	assert.Equal(t, uint64(8), publisher.fileEvents[0].CommentID)
	assert.Equal(t, "8.txt", publisher.fileEvents[0].Attachment.Filename)

	require.Len(t, publisher.mailEvents, 1)
	assert.Equal(t, "reply_notification", publisher.mailEvents[0].Type)
	assert.Equal(t, parentID, publisher.mailEvents[0].ParentID)

	require.Len(t, publisher.broadcasts, 1)
	assert.Equal(t, events.TypeNewComment, publisher.broadcasts[0].Type)
}

func TestCommentCreatedHandler_DropsInvalidMessages(t *testing.T) {
	t.Parallel()
	publisher := &fakePublisher{}
	handler := consumer.NewCommentCreatedHandler(newTestLogger(t), publisher)
	ctx := context.Background()

	// 无法解析的消息不触发重试
	err := handler.Handle(ctx, kafka.Message{Topic: "test-topic", Value: []byte("not-json")})
	require.NoError(t, err)

	// 缺少必备字段的事件同样丢弃
	err = handler.Handle(ctx, marshalMessage(t, &events.CommentCreatedEvent{PostID: "post-1"}))
	require.NoError(t, err)

	assert.Empty(t, publisher.broadcasts)
}
