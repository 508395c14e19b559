package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dkeye/Voice/internal/app/orch"
	"github.com/dkeye/Voice/internal/config"
	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// HistorySource pages the persisted call audit.
type HistorySource interface {
	History(ctx context.Context, id domain.UserID, limit, offset int) ([]domain.CallHistoryRecord, int, error)
}

type handlers struct {
	orch     *orch.Orchestrator
	resolver core.IdentityResolver
	history  HistorySource
	cfg      *config.Config
	ice      webrtc.Configuration
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyInCall), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTargetUnreachable), errors.Is(err, domain.ErrSelfCall),
		errors.Is(err, domain.ErrBadPayload), errors.Is(err, domain.ErrInvalidSignal):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTransportGone):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "code": domain.ErrorCode(err), "error": msg})
}

func (h *handlers) createSession(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", domain.ErrBadPayload, err))
		return
	}
	who, err := h.resolver.Resolve(c.Request.Context(), req.Token)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(tokenKey, req.Token)
	if err := s.Save(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "identity": who})
}

func (h *handlers) dropSession(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	_ = s.Save()
	c.Status(http.StatusNoContent)
}

func (h *handlers) rtcConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice.ICEServers})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) initiateCall(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiverId" binding:"required,max=128"`
		CallType   string `json:"callType" binding:"omitempty,oneof=video audio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", domain.ErrBadPayload, err))
		return
	}
	kind, err := domain.ParseCallKind(req.CallType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	call, err := h.orch.RequestCall(c.Request.Context(), identityOf(c), domain.UserID(req.ReceiverID), kind)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "call": call})
}

func (h *handlers) respondToCall(c *gin.Context) {
	var req struct {
		Response string `json:"response" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", domain.ErrBadPayload, err))
		return
	}
	decision, err := domain.ParseDecision(req.Response)
	if err != nil {
		abortWithError(c, err)
		return
	}
	call, err := h.orch.Respond(c.Request.Context(), domain.CallID(c.Param("id")), identityOf(c), decision)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call})
}

func (h *handlers) endCall(c *gin.Context) {
	var req struct {
		RoomID string `json:"roomId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", domain.ErrBadPayload, err))
		return
	}
	call, err := h.orch.EndCall(c.Request.Context(), domain.RoomID(req.RoomID), identityOf(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call": call, "duration": int64(call.Duration() / time.Second)})
}

func (h *handlers) activeCall(c *gin.Context) {
	call, ok := h.orch.Calls.Active(identityOf(c).ID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": true, "activeCall": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "activeCall": call})
}

// historyItem is one audit row from the point of view of the requesting identity.
type historyItem struct {
	domain.CallHistoryRecord
	Direction string        `json:"direction"`
	Peer      domain.UserID `json:"peerId"`
	Duration  int64         `json:"duration"`
}

func (h *handlers) callHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	me := identityOf(c).ID
	rows, total, err := h.history.History(c.Request.Context(), me, limit, (page-1)*limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := lo.Map(rows, func(r domain.CallHistoryRecord, _ int) historyItem {
		peer := r.Receiver
		if r.Receiver == me {
			peer = r.Caller
		}
		return historyItem{
			CallHistoryRecord: r,
			Direction:         r.Direction(me),
			Peer:              peer,
			Duration:          int64(r.Duration / time.Second),
		}
	})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"calls":   items,
		"pagination": gin.H{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": (total + limit - 1) / limit,
		},
	})
}

func (h *handlers) canCall(c *gin.Context) {
	me := identityOf(c).ID
	target := domain.UserID(c.Param("id"))
	if target == me {
		c.JSON(http.StatusOK, gin.H{"success": true, "canCall": false, "reason": domain.ErrorCode(domain.ErrSelfCall)})
		return
	}
	ok := h.orch.Calls.CanCall(me, target)
	resp := gin.H{"success": true, "canCall": ok, "isOnline": h.orch.Registry.IsOnline(target)}
	if !ok {
		resp["reason"] = domain.ErrorCode(domain.ErrAlreadyInCall)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) forceCleanup(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	// an empty body means "my own calls"
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, fmt.Errorf("%w: %v", domain.ErrBadPayload, err))
		return
	}
	n, err := h.orch.ForceCleanup(c.Request.Context(), identityOf(c), domain.UserID(req.UserID))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleaned": n})
}

type onlineUser struct {
	UserID       domain.UserID       `json:"userId"`
	Name         string              `json:"name"`
	Role         domain.IdentityKind `json:"role"`
	TransportID  domain.TransportID  `json:"socketId"`
	ConnectedAt  time.Time           `json:"connectedAt"`
	LastLiveness time.Time           `json:"lastSeen"`
}

func (h *handlers) onlineUsers(c *gin.Context) {
	users := lo.Map(h.orch.Registry.Online(), func(s core.TransportSession, _ int) onlineUser {
		return onlineUser{
			UserID:       s.Identity.ID,
			Name:         s.Identity.DisplayName,
			Role:         s.Identity.Kind,
			TransportID:  s.TransportID,
			ConnectedAt:  s.ConnectedAt,
			LastLiveness: s.LastLiveness,
		}
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(users), "users": users})
}

func (h *handlers) presenceStatus(c *gin.Context) {
	st, err := h.orch.Status(c.Request.Context(), domain.UserID(c.Param("id")), h.cfg.Presence.Grace)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": st})
}
