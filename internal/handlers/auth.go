package handlers

import (
	"net/http"

	"holewatch/internal/middleware"
	"holewatch/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// AuthHandler 登录由外部认证系统完成，这里只有开发用的登录和退出
type AuthHandler struct {
	users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

type devLoginRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// DevLogin 直接以某个用户登录，只在 debug 模式下注册
func (h *AuthHandler) DevLogin(c *gin.Context) {
	var req devLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id is required")
		return
	}
	user, err := h.users.Get(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
