package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"anonrooms/backend/internal/analysis"
	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/rooms"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	Name               string   `json:"name" binding:"required"`
	Description        string   `json:"description"`
	Category           string   `json:"category" binding:"required"`
	ResetIntervalHours int      `json:"reset_interval_hours" binding:"required"`
	MaxParticipants    *int     `json:"max_participants"`
	DurationHours      int      `json:"duration_hours" binding:"required"`
	Tags               []string `json:"tags"`
}

// CreateRoom creates a user-created room. Official rooms are provisioned
// through the admin CLI, not this surface.
func (h *Handler) CreateRoom(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duration := time.Duration(req.DurationHours) * time.Hour
	room, err := h.Rooms.CreateRoom(rooms.CreateSpec{
		Name:               req.Name,
		Description:        req.Description,
		Category:           req.Category,
		RoomType:           models.RoomTypeUser,
		ResetIntervalHours: req.ResetIntervalHours,
		MaxParticipants:    req.MaxParticipants,
		Duration:           &duration,
		Tags:               req.Tags,
		CreatedByUserID:    uid,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) ListRooms(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, next, err := h.Rooms.ListRooms(limit, c.Query("cursor"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": list, "next_cursor": next})
}

// JoinRoom joins the caller into the room and mints the stream token for
// the returned membership.
func (h *Handler) JoinRoom(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	res, err := h.Rooms.JoinRoom(c.Param("id"), uid)
	if err != nil {
		fail(c, err)
		return
	}

	token, err := h.mintStreamToken(res.MemberID, res.AnonymousID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"membership_id": res.MemberID,
		"anonymous_id":  res.AnonymousID,
		"nickname":      res.Nickname,
		"role":          res.Role,
		"token":         token,
	})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if err := h.Rooms.LeaveRoom(c.Param("id"), uid); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	Format  string `json:"format"`
	ReplyTo *uint  `json:"reply_to"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	roomID := c.Param("id")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.Members.Member(roomID, uid)
	if err != nil {
		fail(c, models.ErrNotAMember)
		return
	}

	msg, err := h.Messages.Send(roomID, member.ID, req.Content, req.Format, req.ReplyTo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         msg.ID,
		"content":    msg.Content,
		"format":     msg.Format,
		"reply_to":   msg.ReplyToID,
		"created_at": msg.CreatedAt,
	})
}

func (h *Handler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	views, next, err := h.Messages.List(c.Param("id"), limit, c.Query("cursor"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views, "next_cursor": next})
}

// ListMembers returns the active roster. With ?all=true an admin of the room
// gets the full record set, inactive and kicked included.
func (h *Handler) ListMembers(c *gin.Context) {
	roomID := c.Param("id")

	if c.Query("all") == "true" {
		uid, ok := userID(c)
		if !ok {
			return
		}
		caller, err := h.Members.Member(roomID, uid)
		if err != nil || !caller.IsActive || caller.Role != models.RoleAdmin {
			fail(c, models.ErrUnauthorized)
			return
		}
		members, err := h.Members.ListMembersAdmin(roomID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": members})
		return
	}

	views, err := h.Members.ListMembers(roomID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": views})
}

type moderateRequest struct {
	Action          string `json:"action" binding:"required"`
	TargetMemberID  string `json:"target_membership_id" binding:"required"`
	DurationMinutes *int   `json:"duration_minutes"`
}

// ModerateMember executes mute, unmute, or kick on behalf of the caller's
// own membership in the room.
func (h *Handler) ModerateMember(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	roomID := c.Param("id")

	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	by, err := h.Members.Member(roomID, uid)
	if err != nil {
		fail(c, models.ErrUnauthorized)
		return
	}

	switch req.Action {
	case "mute":
		var duration *time.Duration
		if req.DurationMinutes != nil {
			d := time.Duration(*req.DurationMinutes) * time.Minute
			duration = &d
		}
		err = h.Moderation.Mute(roomID, req.TargetMemberID, by.ID, duration)
	case "unmute":
		err = h.Moderation.Unmute(roomID, req.TargetMemberID, by.ID)
	case "kick":
		err = h.Moderation.Kick(roomID, req.TargetMemberID, by.ID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

func (h *Handler) SetNickname(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req nicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Members.SetNickname(c.Param("id"), uid, req.Nickname); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) Heartbeat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	member, err := h.Members.Member(c.Param("id"), uid)
	if err != nil {
		fail(c, models.ErrNotAMember)
		return
	}
	if err := h.Members.Heartbeat(member.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type reportRequest struct {
	MessageID uint   `json:"message_id" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

func (h *Handler) ReportMessage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	roomID := c.Param("id")

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.Members.Member(roomID, uid)
	if err != nil {
		fail(c, models.ErrNotAMember)
		return
	}

	report, err := h.Reports.Report(roomID, member.ID, req.MessageID, req.Reason)
	if err != nil {
		if errors.Is(err, models.ErrInvalidReason) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "valid_reasons": analysis.KnownReasons()})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"report_id": report.ID, "status": report.Status})
}
