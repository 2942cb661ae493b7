// Package realtime 实现按帖子分房间的 WebSocket 实时推送器。
//
// 连接生命周期: 客户端建立连接后通过 join_post / leave_post 消息进出房间，
// 评论的增删事件以 {type, data} 信封推送给对应房间内的所有连接。
// 推送是尽力而为的：慢客户端的发送缓冲一旦写满，连接即被断开，
// 绝不让单个慢连接拖垮整个房间的广播。
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"

	"github.com/Xushengqwer/comment_service/models/events"
)

// 推送给客户端的消息类型。
const (
	MsgTypeNewComment     = "new_comment"
	MsgTypeUpdatedComment = "updated_comment"
	MsgTypeDeletedComment = "deleted_comment"
	MsgTypeJoinedPost     = "joined_post"
	MsgTypeLeftPost       = "left_post"
)

// 客户端发来的消息类型。
const (
	msgTypeJoinPost  = "join_post"
	msgTypeLeavePost = "leave_post"
)

// ServerMessage 是推送给客户端的统一信封。
type ServerMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub 维护 帖子ID -> 客户端集合 的房间映射，并向房间内广播评论事件。
// 所有方法并发安全。
type Hub struct {
	logger *core.ZapLogger

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub 是 Hub 的构造函数。
func NewHub(logger *core.ZapLogger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*Client]struct{}),
	}
}

// join 将客户端加入指定帖子的房间。重复加入是幂等的，已断开的客户端不可再加入。
func (h *Hub) join(client *Client, postID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	room, ok := h.rooms[postID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[postID] = room
	}
	room[client] = struct{}{}
	client.joined[postID] = struct{}{}

	h.logger.Debug("客户端加入房间",
		zap.String("postID", postID),
		zap.Int("roomSize", len(room)))
}

// leave 将客户端移出指定帖子的房间，空房间随即回收。
func (h *Hub) leave(client *Client, postID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.joined, postID)
	room, ok := h.rooms[postID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, postID)
	}
}

// detach 断开客户端：移出其加入的全部房间并关闭发送缓冲。幂等。
// closed 标记与 close(send) 都发生在写锁临界区内，而所有向 send 的
// 写入都在读锁下先检查 closed，因此不存在向已关闭通道发送的窗口。
func (h *Hub) detach(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return
	}
	client.closed = true

	for postID := range client.joined {
		if room, ok := h.rooms[postID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, postID)
			}
		}
	}
	client.joined = make(map[string]struct{})
	client.close()
}

// RoomSize 返回指定帖子房间内的连接数。
func (h *Hub) RoomSize(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[postID])
}

// broadcast 将消息推送给指定帖子房间内的所有客户端。
// 发送缓冲已满的客户端会被立即断开，避免阻塞广播。
func (h *Hub) broadcast(postID string, msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("序列化广播消息失败",
			zap.String("postID", postID),
			zap.String("type", msg.Type),
			zap.Error(err))
		return
	}

	h.mu.RLock()
	room := h.rooms[postID]
	stale := make([]*Client, 0)
	for client := range room {
		if client.closed {
			continue
		}
		select {
		case client.send <- payload:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("客户端发送缓冲已满，断开连接", zap.String("postID", postID))
		h.detach(client)
	}
}

// BroadcastNewComment 向评论所属帖子的房间推送新评论事件。
func (h *Hub) BroadcastNewComment(data events.BroadcastCommentData) {
	h.broadcast(data.PostID, ServerMessage{Type: MsgTypeNewComment, Data: data})
}

// BroadcastUpdatedComment 向评论所属帖子的房间推送评论更新事件。
func (h *Hub) BroadcastUpdatedComment(data events.BroadcastCommentData) {
	h.broadcast(data.PostID, ServerMessage{Type: MsgTypeUpdatedComment, Data: data})
}

// BroadcastDeletedComment 向评论所属帖子的房间推送评论删除事件。
// 级联删除时每条被删除的评论各推送一条。
func (h *Hub) BroadcastDeletedComment(data events.BroadcastCommentData) {
	h.broadcast(data.PostID, ServerMessage{Type: MsgTypeDeletedComment, Data: data})
}
