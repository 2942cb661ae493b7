package realtime

import (
	"net/http"

	"github.com/Xushengqwer/go-common/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler 负责将 HTTP 请求升级为 WebSocket 连接并托管给 Hub。
type WSHandler struct {
	hub      *Hub
	logger   *core.ZapLogger
	upgrader websocket.Upgrader
}

// NewWSHandler 是 WSHandler 的构造函数。
func NewWSHandler(hub *Hub, logger *core.ZapLogger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 浏览器端来源校验由网关层负责，这里放行所有来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve 处理 GET /ws/comments 的连接升级。
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn)
	h.logger.Info("WebSocket 客户端已连接", zap.String("remoteAddr", conn.RemoteAddr().String()))

	go client.writePump()
	go client.readPump()
}

// RegisterRoutes 注册实时推送路由。
func (h *WSHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/comments", h.Serve)
}
