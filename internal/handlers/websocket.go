package handlers

import (
	"net/http"

	"civic-tracker/internal/websocket"
	"civic-tracker/pkg/auth"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WebSocketHandler struct {
	jwtManager *auth.JWTManager
	hub        *websocket.Hub
	upgrader   gorilla.Upgrader
}

// NewWebSocketHandler accepts upgrades from allowedOrigins, or from any
// origin when the list contains "*".
func NewWebSocketHandler(jwtManager *auth.JWTManager, hub *websocket.Hub, allowedOrigins []string) *WebSocketHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	return &WebSocketHandler{
		jwtManager: jwtManager,
		hub:        hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// HandleNotifications upgrades to a push-only socket carrying the caller's
// notifications. Browsers cannot set headers on upgrades, so the JWT comes
// in the token query parameter.
func (h *WebSocketHandler) HandleNotifications(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Token is required",
		})
		return
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid token",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe(claims.UserID)
	websocket.NewClient(h.hub, conn, sub).Run()
}
