package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Kirifer/ITS-certificate-generator/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler WebSocket 连接处理器
// 认证启用时连接身份取自令牌声明,否则取 email 查询参数
func Handler(hub *Hub, validator *auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.Query("email"))

		if validator != nil {
			tokenString := c.Query("token")
			if tokenString == "" {
				header := c.GetHeader("Authorization")
				tokenString = strings.TrimPrefix(header, "Bearer ")
			}
			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{
					"code":    http.StatusUnauthorized,
					"message": "invalid or expired token",
				})
				return
			}
			email = claims.Email
		}

		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "email is required",
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithError(err).Warn("WebSocket 升级失败")
			return
		}

		client := NewClient(uuid.New().String(), email, hub, conn)
		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
