package consumer_test

import (
	"context"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/mq/consumer"
)

// fakeHub 记录分发到各广播方法的事件数据。
type fakeHub struct {
	mu      sync.Mutex
	created []events.BroadcastCommentData
	updated []events.BroadcastCommentData
	deleted []events.BroadcastCommentData
}

func (h *fakeHub) BroadcastNewComment(data events.BroadcastCommentData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, data)
}

func (h *fakeHub) BroadcastUpdatedComment(data events.BroadcastCommentData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updated = append(h.updated, data)
}

func (h *fakeHub) BroadcastDeletedComment(data events.BroadcastCommentData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, data)
}

func (h *fakeHub) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.created) + len(h.updated) + len(h.deleted)
}

// broadcastMessage 按生产端的约定构造扇出消息：路由键写入 Key 与 Header。
func broadcastMessage(t *testing.T, routingKey string, envelope *events.BroadcastEnvelope) kafka.Message {
	t.Helper()
	msg := marshalMessage(t, envelope)
	msg.Key = []byte(routingKey)
	msg.Headers = []kafka.Header{{Key: "routing_key", Value: []byte(routingKey)}}
	return msg
}

func TestBroadcastHandler_DispatchesByEnvelopeType(t *testing.T) {
	t.Parallel()
	hub := &fakeHub{}
	handler := consumer.NewBroadcastHandler(newTestLogger(t), hub)
	ctx := context.Background()

	cases := []struct {
		routingKey string
		eventType  string
	}{
		{"comment.created", events.TypeNewComment},
		{"comment.updated", events.TypeUpdatedComment},
		{"comment.deleted", events.TypeDeletedComment},
	}
	for i, tc := range cases {
		envelope := &events.BroadcastEnvelope{
			Type: tc.eventType,
			Data: events.BroadcastCommentData{ID: uint64(i + 1), PostID: "post-1"},
		}
		require.NoError(t, handler.Handle(ctx, broadcastMessage(t, tc.routingKey, envelope)))
	}

	require.Len(t, hub.created, 1)
	assert.Equal(t, uint64(1), hub.created[0].ID)
	require.Len(t, hub.updated, 1)
	assert.Equal(t, uint64(2), hub.updated[0].ID)
	require.Len(t, hub.deleted, 1)
	assert.Equal(t, uint64(3), hub.deleted[0].ID)
}

// 路由键未绑定的消息在信封解析之前就被丢弃。
func TestBroadcastHandler_FiltersUnboundRoutingKeys(t *testing.T) {
	t.Parallel()
	hub := &fakeHub{}
	handler := consumer.NewBroadcastHandler(newTestLogger(t), hub)
	ctx := context.Background()

	envelope := &events.BroadcastEnvelope{
		Type: events.TypeNewComment,
		Data: events.BroadcastCommentData{ID: 1, PostID: "post-1"},
	}
	require.NoError(t, handler.Handle(ctx, broadcastMessage(t, "post.liked", envelope)))
	assert.Zero(t, hub.total())

	// 路由键缺失的历史消息仍按信封分发
	require.NoError(t, handler.Handle(ctx, marshalMessage(t, envelope)))
	assert.Equal(t, 1, hub.total())
}

func TestBroadcastHandler_DropsInvalidEnvelopes(t *testing.T) {
	t.Parallel()
	hub := &fakeHub{}
	handler := consumer.NewBroadcastHandler(newTestLogger(t), hub)
	ctx := context.Background()

	// 无法解析的载荷
	msg := kafka.Message{Topic: "test-topic", Value: []byte("not-json")}
	require.NoError(t, handler.Handle(ctx, msg))

	// 判别值非法
	envelope := &events.BroadcastEnvelope{
		Type: "COMMENT_PINNED",
		Data: events.BroadcastCommentData{ID: 1, PostID: "post-1"},
	}
	require.NoError(t, handler.Handle(ctx, broadcastMessage(t, "comment.created", envelope)))

	assert.Zero(t, hub.total())
}
