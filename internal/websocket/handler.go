package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// UserResolver 从握手请求中识别用户, 返回空字符串表示未认证
type UserResolver func(c *gin.Context) (string, error)

// NewUpgrader 按允许的来源创建 Upgrader, 包含 "*" 时允许任意来源
func NewUpgrader(allowedOrigins []string) gorillaWS.Upgrader {
	allowAll := false
	set := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}
	return gorillaWS.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || set[origin]
		},
	}
}

// WebSocketHandler 角标事件 WebSocket 处理器
func WebSocketHandler(hub *Hub, upgrader gorillaWS.Upgrader, resolve UserResolver, log logrus.FieldLogger) gin.HandlerFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(c *gin.Context) {
		userID, err := resolve(c)
		if err != nil || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("failed to upgrade websocket connection")
			return
		}

		client := NewClient(uuid.New().String(), userID, hub, conn, log)
		hub.Register <- client

		go client.ReadPump()
		go client.WritePump()
	}
}
