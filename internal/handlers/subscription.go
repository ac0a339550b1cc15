package handlers

import (
	"net/http"

	"holewatch/internal/services"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	svc *services.Services
}

func NewSubscriptionHandler(svc *services.Services) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// Toggle 切换关注状态 - 关注/取消关注
func (h *SubscriptionHandler) Toggle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	subscribed, err := h.svc.Subscriptions.Toggle(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": subscribed})
}
