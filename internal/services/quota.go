package services

import (
	"context"

	"holewatch/internal/models"

	"gorm.io/gorm"
)

// QuotaGuard 每个用户每天可提交（新建或重新打开）的报告数量
type QuotaGuard struct {
	db    *gorm.DB
	limit int
	now   Clock
}

func NewQuotaGuard(conn *gorm.DB, limit int, now Clock) *QuotaGuard {
	return &QuotaGuard{db: conn, limit: limit, now: now}
}

// Used 今日已提交次数，以历史记录中的 created / reopened 为准
func (q *QuotaGuard) Used(ctx context.Context, userID uint) (int64, error) {
	startOfDay, endOfDay := todayRange(q.now())
	var count int64
	err := q.db.WithContext(ctx).Model(&models.HistoryEntry{}).
		Where("user_id = ? AND action IN ? AND created_at >= ? AND created_at < ?",
			userID, []string{ActionCreated, ActionReopened}, startOfDay, endOfDay).
		Count(&count).Error
	return count, err
}

// Check 超出配额返回 ErrDailyQuotaExceeded，limit <= 0 表示不限制
func (q *QuotaGuard) Check(ctx context.Context, userID uint) error {
	if q.limit <= 0 {
		return nil
	}
	used, err := q.Used(ctx, userID)
	if err != nil {
		return err
	}
	if used >= int64(q.limit) {
		return ErrDailyQuotaExceeded
	}
	return nil
}
