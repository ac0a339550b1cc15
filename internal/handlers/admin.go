package handlers

import (
	"net/http"

	"holewatch/internal/models"
	"holewatch/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	svc    *services.Services
	logger *zap.Logger
}

func NewAdminHandler(svc *services.Services, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger.Named("admin")}
}

// checkAdmin 当前用户是管理员时返回该用户，否则写入 403
func (h *AdminHandler) checkAdmin(c *gin.Context) *models.User {
	user := currentUser(c)
	if user == nil || !user.IsAdmin() {
		respondError(c, services.ErrForbidden)
		return nil
	}
	return user
}

// CloseReport 关闭活跃或重新打开的报告
func (h *AdminHandler) CloseReport(c *gin.Context) {
	admin := h.checkAdmin(c)
	if admin == nil {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	report, err := h.svc.Reports.Close(c.Request.Context(), id, admin)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("Report closed by admin",
		zap.Uint("report_id", report.ID),
		zap.Uint("admin_id", admin.ID))
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// RebuildReputation 由积分流水重算所有快照
func (h *AdminHandler) RebuildReputation(c *gin.Context) {
	if h.checkAdmin(c) == nil {
		return
	}
	n, err := h.svc.Ledger.RebuildAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": n})
}
