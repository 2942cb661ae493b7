package realtime_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	commonConfig "github.com/Xushengqwer/go-common/config"
	"github.com/Xushengqwer/go-common/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xushengqwer/comment_service/models/events"
	"github.com/Xushengqwer/comment_service/realtime"
)

// setupWSTest 启动一个只挂载 WebSocket 路由的测试服务器，并建立一条客户端连接。
func setupWSTest(t *testing.T) (*realtime.Hub, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := core.NewZapLogger(commonConfig.ZapConfig{})
	require.NoError(t, err)

	hub := realtime.NewHub(logger)
	handler := realtime.NewWSHandler(hub, logger)

	router := gin.New()
	handler.RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/comments"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return hub, conn
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func joinPost(t *testing.T, conn *websocket.Conn, postID string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "join_post",
		"data": map[string]string{"postId": postID},
	}))
	ack := readEnvelope(t, conn)
	assert.Equal(t, realtime.MsgTypeJoinedPost, ack.Type)
}

func TestWSHandler_JoinReceiveLeave(t *testing.T) {
	hub, conn := setupWSTest(t)

	joinPost(t, conn, "post-1")
	require.Eventually(t, func() bool {
		return hub.RoomSize("post-1") == 1
	}, time.Second, 10*time.Millisecond)

	// 房间内能收到新评论推送
	hub.BroadcastNewComment(events.BroadcastCommentData{
		ID:      1,
		PostID:  "post-1",
		Content: "实时推送的评论",
		Author:  &events.AuthorData{UserID: "u1", Username: "alice"},
	})
	msg := readEnvelope(t, conn)
	assert.Equal(t, realtime.MsgTypeNewComment, msg.Type)

	var data events.BroadcastCommentData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, uint64(1), data.ID)
	assert.Equal(t, "post-1", data.PostID)

	// 离开房间后不再收到推送
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "leave_post",
		"data": map[string]string{"postId": "post-1"},
	}))
	ack := readEnvelope(t, conn)
	assert.Equal(t, realtime.MsgTypeLeftPost, ack.Type)
	require.Eventually(t, func() bool {
		return hub.RoomSize("post-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWSHandler_DisconnectCleansUpRooms(t *testing.T) {
	hub, conn := setupWSTest(t)

	joinPost(t, conn, "post-1")
	require.Eventually(t, func() bool {
		return hub.RoomSize("post-1") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.RoomSize("post-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWSHandler_IgnoresMalformedMessages(t *testing.T) {
	hub, conn := setupWSTest(t)

	// 无法解析的消息与未知类型都被忽略，连接保持可用
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not-json")))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "unknown_type",
		"data": map[string]string{"postId": "post-1"},
	}))

	joinPost(t, conn, "post-1")
	require.Eventually(t, func() bool {
		return hub.RoomSize("post-1") == 1
	}, time.Second, 10*time.Millisecond)
}
