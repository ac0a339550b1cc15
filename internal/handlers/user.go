package handlers

import (
	"net/http"

	"holewatch/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	svc *services.Services
}

func NewUserHandler(svc *services.Services) *UserHandler {
	return &UserHandler{svc: svc}
}

// Reputation 用户积分、等级和最近流水
func (h *UserHandler) Reputation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	summary, err := h.svc.Ledger.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *UserHandler) Leaderboard(c *gin.Context) {
	entries, err := h.svc.Ledger.Leaderboard(c.Request.Context(), queryLimit(c, 20, 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// PointLogs 我的积分记录
func (h *UserHandler) PointLogs(c *gin.Context) {
	user := currentUser(c)
	logs, err := h.svc.Ledger.PointsLog(c.Request.Context(), user.ID, queryLimit(c, 50, 200))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": logs})
}

// Me 当前用户
func (h *UserHandler) Me(c *gin.Context) {
	user := currentUser(c)
	tier, err := h.svc.Ledger.TierOf(c.Request.Context(), nil, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "tier": tier, "weight": services.WeightFor(tier)})
}
