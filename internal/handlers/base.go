package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"holewatch/internal/middleware"
	"holewatch/internal/models"
	"holewatch/internal/services"
	"holewatch/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusFor 服务层错误到 HTTP 状态码的唯一映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrDuplicateVote),
		errors.Is(err, services.ErrValidationClosed),
		errors.Is(err, services.ErrConfirmationClosed),
		errors.Is(err, services.ErrNotReopenable),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, services.ErrDailyQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrInvalidTargetState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTransientFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidLocation),
		errors.Is(err, services.ErrEmptyComment):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError 写错误响应，内部错误不把细节返回给客户端
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// currentUser 当前登录用户，未登录为 nil
func currentUser(c *gin.Context) *models.User {
	u, exists := c.Get(middleware.CheckUserKey)
	if !exists {
		return nil
	}
	return u.(*models.User)
}

// paramID 解析路径中的 ID，失败时已写入 400
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		badRequest(c, "invalid "+name)
	}
	return id, ok
}

// queryFloat 解析必填的浮点查询参数
func queryFloat(c *gin.Context, name string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// queryLimit 解析 limit，超出范围时取默认值或上限
func queryLimit(c *gin.Context, def, maxLimit int) int {
	limit := utils.StringToInt(c.Query("limit"))
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}
