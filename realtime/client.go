package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait 是向客户端写入一条消息的最长等待时间。
	writeWait = 10 * time.Second

	// pongWait 是等待客户端 pong 响应的最长时间，超时视为连接死亡。
	pongWait = 60 * time.Second

	// pingPeriod 是向客户端发送 ping 的间隔，必须小于 pongWait。
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize 限制客户端上行消息大小，join/leave 消息都很小。
	maxMessageSize = 1024

	// sendBufferSize 是每个连接的下行发送缓冲长度。
	sendBufferSize = 64
)

// clientMessage 是客户端上行消息的统一结构。
type clientMessage struct {
	Type string `json:"type"`
	Data struct {
		PostID string `json:"postId"`
	} `json:"data"`
}

// Client 是 Hub 与单个 WebSocket 连接之间的桥。
// 读写各占一个 goroutine：readPump 处理 join/leave 指令，
// writePump 串行消费 send 缓冲并维持心跳。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// joined 记录该连接加入的房间，仅由 Hub 在持锁状态下读写。
	joined map[string]struct{}

	// closed 标记客户端已被 Hub 断开。写入仅发生在 Hub 的写锁临界区内
	// （见 Hub.detach），读取在 Hub 的读锁下进行，作为向 send 写入前的守卫。
	closed bool

	closeOnce sync.Once
}

// newClient 绑定连接与 Hub，由 WebSocket 升级处理器调用。
func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		joined: make(map[string]struct{}),
	}
}

// close 幂等地关闭发送缓冲，触发 writePump 退出并关闭底层连接。
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// sendMessage 将一条服务端消息放入发送缓冲，缓冲满则断开连接。
// 在 Hub 的读锁下检查 closed 后再写入，与 Hub.detach 的关闭动作互斥。
func (c *Client) sendMessage(msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("序列化下行消息失败", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	full := false
	c.hub.mu.RLock()
	if !c.closed {
		select {
		case c.send <- payload:
		default:
			full = true
		}
	}
	c.hub.mu.RUnlock()

	if full {
		c.hub.detach(c)
	}
}

// readPump 循环读取客户端上行消息并分发 join/leave 指令。
// 连接断开时通过 detach 移出全部房间并关闭发送缓冲。
func (c *Client) readPump() {
	defer c.hub.detach(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("WebSocket 连接异常关闭", zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.logger.Warn("无法解析客户端消息，忽略", zap.Error(err))
			continue
		}
		if msg.Data.PostID == "" {
			continue
		}

		switch msg.Type {
		case msgTypeJoinPost:
			c.hub.join(c, msg.Data.PostID)
			c.sendMessage(ServerMessage{
				Type: MsgTypeJoinedPost,
				Data: map[string]string{"postId": msg.Data.PostID},
			})
		case msgTypeLeavePost:
			c.hub.leave(c, msg.Data.PostID)
			c.sendMessage(ServerMessage{
				Type: MsgTypeLeftPost,
				Data: map[string]string{"postId": msg.Data.PostID},
			})
		default:
			c.hub.logger.Debug("未知的客户端消息类型", zap.String("type", msg.Type))
		}
	}
}

// writePump 串行写出发送缓冲中的消息并定期发送 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
