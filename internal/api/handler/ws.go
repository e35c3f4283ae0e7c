package handler

import (
	"net/http"
	"strings"

	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/roomhub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection into a one-way room event stream.
// The join-issued token names the membership and room the stream is for.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
		return
	}

	memberID, roomID, err := h.validateStreamToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := &roomhub.WebSocketClient{
		Hub:      h.Hub,
		MemberID: memberID,
		RoomID:   roomID,
		Conn:     conn,
		Send:     make(chan models.RoomEvent, 256),
	}

	h.Hub.RegisterCh <- client
	client.Run()
}
