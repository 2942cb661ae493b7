package realtime

import (
	"encoding/json"
	"testing"

	commonConfig "github.com/Xushengqwer/go-common/config"
	"github.com/Xushengqwer/go-common/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xushengqwer/comment_service/models/events"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	logger, err := core.NewZapLogger(commonConfig.ZapConfig{})
	require.NoError(t, err)
	return NewHub(logger)
}

// newTestClient 构造一个不绑定底层连接的客户端，广播路径只写发送缓冲。
func newTestClient(hub *Hub) *Client {
	return newClient(hub, nil)
}

// receive 非阻塞地取出客户端收到的下一条消息。
func receive(t *testing.T, client *Client) *ServerMessage {
	t.Helper()
	select {
	case payload := <-client.send:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return &msg
	default:
		return nil
	}
}

func TestHub_JoinAndLeave(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)
	client := newTestClient(hub)

	hub.join(client, "post-1")
	assert.Equal(t, 1, hub.RoomSize("post-1"))

	// 重复加入幂等
	hub.join(client, "post-1")
	assert.Equal(t, 1, hub.RoomSize("post-1"))

	hub.leave(client, "post-1")
	assert.Zero(t, hub.RoomSize("post-1"))

	// 空房间被回收
	hub.mu.RLock()
	_, exists := hub.rooms["post-1"]
	hub.mu.RUnlock()
	assert.False(t, exists)
}

func TestHub_BroadcastRouting(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)
	inRoom := newTestClient(hub)
	otherRoom := newTestClient(hub)

	hub.join(inRoom, "post-1")
	hub.join(otherRoom, "post-2")

	hub.BroadcastNewComment(events.BroadcastCommentData{ID: 1, PostID: "post-1", Content: "新评论"})

	msg := receive(t, inRoom)
	require.NotNil(t, msg)
	assert.Equal(t, MsgTypeNewComment, msg.Type)

	// 其他帖子的房间收不到
	assert.Nil(t, receive(t, otherRoom))
}

func TestHub_BroadcastFanOutWithinRoom(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)
	first := newTestClient(hub)
	second := newTestClient(hub)

	hub.join(first, "post-1")
	hub.join(second, "post-1")

	hub.BroadcastDeletedComment(events.BroadcastCommentData{ID: 3, PostID: "post-1"})

	for _, client := range []*Client{first, second} {
		msg := receive(t, client)
		require.NotNil(t, msg)
		assert.Equal(t, MsgTypeDeletedComment, msg.Type)
	}
}

func TestHub_DetachRemovesFromAllRooms(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)
	client := newTestClient(hub)

	hub.join(client, "post-1")
	hub.join(client, "post-2")

	hub.detach(client)
	assert.Zero(t, hub.RoomSize("post-1"))
	assert.Zero(t, hub.RoomSize("post-2"))
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)
	slow := newTestClient(hub)
	hub.join(slow, "post-1")

	// 填满发送缓冲，模拟消费不过来的慢客户端
	for i := 0; i < sendBufferSize; i++ {
		slow.send <- []byte("{}")
	}

	hub.BroadcastNewComment(events.BroadcastCommentData{ID: 1, PostID: "post-1"})

	// 慢客户端应被同时移出房间，而不是留下一个已关闭的通道
	assert.Zero(t, hub.RoomSize("post-1"))

	// 缓冲被排空后通道应已关闭
	for i := 0; i < sendBufferSize; i++ {
		<-slow.send
	}
	_, ok := <-slow.send
	assert.False(t, ok)
}

// 慢客户端被断开后，后续广播与服务端下行消息都不得触碰已关闭的通道。
func TestHub_BroadcastAfterSlowClientDisconnect(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)
	slow := newTestClient(hub)
	healthy := newTestClient(hub)
	hub.join(slow, "post-1")
	hub.join(healthy, "post-1")

	for i := 0; i < sendBufferSize; i++ {
		slow.send <- []byte("{}")
	}
	hub.BroadcastNewComment(events.BroadcastCommentData{ID: 1, PostID: "post-1"})

	// 第二次广播只达健康客户端，不会向已关闭的通道发送
	hub.BroadcastDeletedComment(events.BroadcastCommentData{ID: 2, PostID: "post-1"})
	assert.Equal(t, 1, hub.RoomSize("post-1"))

	msg := receive(t, healthy)
	require.NotNil(t, msg)
	assert.Equal(t, MsgTypeNewComment, msg.Type)
	msg = receive(t, healthy)
	require.NotNil(t, msg)
	assert.Equal(t, MsgTypeDeletedComment, msg.Type)

	// 已断开的客户端：下行 ack 与再次加入房间都必须安全地成为空操作
	slow.sendMessage(ServerMessage{Type: MsgTypeJoinedPost, Data: map[string]string{"postId": "post-1"}})
	hub.join(slow, "post-1")
	assert.Equal(t, 1, hub.RoomSize("post-1"))
}
