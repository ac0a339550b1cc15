package handlers

import (
	"net/http"
	"strconv"

	"holewatch/internal/models"
	"holewatch/internal/services"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	svc *services.Services
}

func NewReportHandler(svc *services.Services) *ReportHandler {
	return &ReportHandler{svc: svc}
}

type createReportRequest struct {
	Latitude    *float64 `json:"latitude" binding:"required"`
	Longitude   *float64 `json:"longitude" binding:"required"`
	Description string   `json:"description"`
}

// Create 提交报告，附近有已结束周期的报告时重新打开它
func (h *ReportHandler) Create(c *gin.Context) {
	user := currentUser(c)

	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "latitude and longitude are required")
		return
	}

	report, reopened, err := h.svc.Reports.Submit(c.Request.Context(), user.ID, *req.Latitude, *req.Longitude, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if reopened {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"report": report, "reopened": reopened})
}

// Nearby 附近仍在跟踪的报告
func (h *ReportHandler) Nearby(c *gin.Context) {
	lat, ok := queryFloat(c, "lat")
	if !ok {
		return
	}
	lon, ok := queryFloat(c, "lon")
	if !ok {
		return
	}
	radius, _ := strconv.ParseFloat(c.Query("radius"), 64)

	reports, err := h.svc.Geo.OpenNearby(c.Request.Context(), lat, lon, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Detail 报告详情，同时浏览数 +1
func (h *ReportHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.svc.Reports.IncrementViews(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	report, err := h.svc.Reports.GetReport(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"report": report}
	if user := currentUser(c); user != nil {
		subscribed, err := h.svc.Subscriptions.IsSubscribed(ctx, user.ID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["subscribed"] = subscribed
	}
	c.JSON(http.StatusOK, resp)
}

type validationRequest struct {
	Outcome *bool `json:"outcome" binding:"required"`
}

// Validate 待验证阶段投票：true 表示缺陷存在
func (h *ReportHandler) Validate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req validationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "outcome is required")
		return
	}

	result, err := h.svc.Reports.CastValidationVote(c.Request.Context(), id, currentUser(c).ID, *req.Outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type confirmationRequest struct {
	TargetState string `json:"target_state" binding:"required"`
}

// Confirm 活跃/重新打开阶段的确认票，目标为 active 或 repaired
func (h *ReportHandler) Confirm(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req confirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "target_state is required")
		return
	}

	result, err := h.svc.Reports.CastConfirmationVote(c.Request.Context(), id, currentUser(c).ID, models.ReportState(req.TargetState))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Votes 某个周期的验证票和确认票，默认当前周期
func (h *ReportHandler) Votes(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var cycle *int
	if raw := c.Query("cycle"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid cycle")
			return
		}
		cycle = &n
	}

	ctx := c.Request.Context()
	votes, err := h.svc.Reports.ListVotes(ctx, id, cycle)
	if err != nil {
		respondError(c, err)
		return
	}
	confirmations, err := h.svc.Reports.ListConfirmations(ctx, id, cycle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes, "confirmations": confirmations})
}

func (h *ReportHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	entries, err := h.svc.Reports.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
