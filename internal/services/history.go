package services

import (
	"context"
	"fmt"

	"holewatch/internal/models"

	"gorm.io/gorm"
)

// 历史动作
const (
	ActionCreated  = "created"
	ActionVerified = "verified"
	ActionRejected = "rejected"
	ActionReopened = "reopened"
	ActionClosed   = "closed"
)

// HistoryRecorder 报告审计日志，只追加
type HistoryRecorder struct {
	db  *gorm.DB
	now Clock
}

func NewHistoryRecorder(conn *gorm.DB, now Clock) *HistoryRecorder {
	return &HistoryRecorder{db: conn, now: now}
}

// Record 在调用方事务内追加一条记录，actor 为空表示系统动作
func (h *HistoryRecorder) Record(ctx context.Context, tx *gorm.DB, reportID uint, actor *uint, cycle int, action string) error {
	entry := models.HistoryEntry{
		ReportID:  reportID,
		UserID:    actor,
		Cycle:     cycle,
		Action:    action,
		CreatedAt: h.now(),
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record history %q for report %d: %w", action, reportID, err)
	}
	return nil
}

// List 按时间正序返回报告的全部历史
func (h *HistoryRecorder) List(ctx context.Context, reportID uint) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := h.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
