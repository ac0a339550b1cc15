package middleware

import (
	"net/http"

	"holewatch/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"
const UnreadCountKey = "unread_count"

// SessionUserKey 外部认证系统写入会话的用户 ID
const SessionUserKey = "user_id"

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}

// LoadUser retrieves user from session and sets to context
func LoadUser(users *services.UserService, inbox *services.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := sessionUserID(session.Get(SessionUserKey))
		if ok {
			user, err := users.Get(c.Request.Context(), userID)
			if err == nil {
				c.Set(CheckUserKey, user)

				// 未读通知数
				if count, err := inbox.UnreadCount(c.Request.Context(), user.ID); err == nil {
					c.Set(UnreadCountKey, count)
				}
			}
		}
		c.Next()
	}
}

// sessionUserID 会话里的 ID 可能以不同的整数类型写入
func sessionUserID(v any) (uint, bool) {
	switch id := v.(type) {
	case uint:
		return id, id > 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	case uint64:
		return uint(id), id > 0
	case float64:
		return uint(id), id > 0
	}
	return 0, false
}
