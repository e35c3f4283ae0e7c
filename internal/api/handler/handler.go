package handler

import (
	"errors"
	"net/http"
	"time"

	"anonrooms/backend/internal/membership"
	"anonrooms/backend/internal/messages"
	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/moderation"
	"anonrooms/backend/internal/reports"
	"anonrooms/backend/internal/roomhub"
	"anonrooms/backend/internal/rooms"

	"github.com/gin-gonic/gin"
)

// Handler wires the HTTP surface to the services.
type Handler struct {
	Rooms      *rooms.Registry
	Members    *membership.Service
	Messages   *messages.Service
	Moderation *moderation.Service
	Reports    *reports.Service
	Hub        *roomhub.Hub

	jwtSecret []byte
}

func NewHandler(registry *rooms.Registry, members *membership.Service, msgs *messages.Service, mod *moderation.Service, reps *reports.Service, hub *roomhub.Hub, jwtSecret []byte) *Handler {
	return &Handler{
		Rooms:      registry,
		Members:    members,
		Messages:   msgs,
		Moderation: mod,
		Reports:    reps,
		Hub:        hub,
		jwtSecret:  jwtSecret,
	}
}

// Register mounts all routes.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms", h.ListRooms)
		api.POST("/rooms/:id/join", h.JoinRoom)
		api.POST("/rooms/:id/leave", h.LeaveRoom)
		api.POST("/rooms/:id/messages", h.SendMessage)
		api.GET("/rooms/:id/messages", h.ListMessages)
		api.GET("/rooms/:id/members", h.ListMembers)
		api.POST("/rooms/:id/moderate", h.ModerateMember)
		api.POST("/rooms/:id/nickname", h.SetNickname)
		api.POST("/rooms/:id/heartbeat", h.Heartbeat)
		api.POST("/rooms/:id/reports", h.ReportMessage)
	}
	r.GET("/ws", h.ServeWebSocket)
}

// userID pulls the already-resolved caller identity. Authentication itself
// happens upstream; an empty header is rejected.
func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return "", false
	}
	return id, true
}

// fail maps a domain error onto an HTTP response.
func fail(c *gin.Context, err error) {
	var muted *models.MutedError
	if errors.As(err, &muted) {
		body := gin.H{"error": "muted"}
		if rem := muted.Remaining(time.Now()); rem != nil {
			body["remaining_seconds"] = int(rem.Seconds())
		} else {
			body["remaining_seconds"] = nil
		}
		c.JSON(http.StatusForbidden, body)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidRoomSpec),
		errors.Is(err, models.ErrInvalidReply),
		errors.Is(err, models.ErrInvalidMessage),
		errors.Is(err, models.ErrInvalidNickname),
		errors.Is(err, models.ErrInvalidReason):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrRoomNotFound),
		errors.Is(err, models.ErrMemberNotFound),
		errors.Is(err, models.ErrMessageNotFound),
		errors.Is(err, models.ErrReportNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrRoomFull),
		errors.Is(err, models.ErrAlreadyReported):
		status = http.StatusConflict
	case errors.Is(err, models.ErrRoomExpired):
		status = http.StatusGone
	case errors.Is(err, models.ErrPermanentlyBanned),
		errors.Is(err, models.ErrNotAMember),
		errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
