package handlers

import (
	"net/http"

	"holewatch/internal/services"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	svc *services.Services
}

func NewCommentHandler(svc *services.Services) *CommentHandler {
	return &CommentHandler{svc: svc}
}

func (h *CommentHandler) List(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comments, err := h.svc.Comments.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type commentRequest struct {
	Content string `json:"content"`
}

// Create 发表评论
func (h *CommentHandler) Create(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}

	comment, err := h.svc.Comments.Add(c.Request.Context(), id, currentUser(c).ID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}
