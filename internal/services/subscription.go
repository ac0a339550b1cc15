package services

import (
	"context"
	"errors"

	"holewatch/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionService 关注报告，状态变化时收到通知
type SubscriptionService struct {
	db  *gorm.DB
	now Clock
}

func NewSubscriptionService(conn *gorm.DB, now Clock) *SubscriptionService {
	return &SubscriptionService{db: conn, now: now}
}

// Subscribe 在调用方事务内关注，已关注时不做任何事
func (s *SubscriptionService) Subscribe(ctx context.Context, tx *gorm.DB, userID, reportID uint) error {
	sub := models.Subscription{UserID: userID, ReportID: reportID, CreatedAt: s.now()}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sub).Error
}

// Toggle 切换关注状态，返回切换后是否处于关注中
func (s *SubscriptionService) Toggle(ctx context.Context, userID, reportID uint) (bool, error) {
	subscribed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 检查报告是否存在
		var count int64
		if err := tx.Model(&models.Report{}).Where("id = ?", reportID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrReportNotFound
		}

		// 已关注则取消，否则关注
		var existing models.Subscription
		err := tx.Where("user_id = ? AND report_id = ?", userID, reportID).Take(&existing).Error
		switch {
		case err == nil:
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			subscribed = true
			return s.Subscribe(ctx, tx, userID, reportID)
		default:
			return err
		}
	})
	return subscribed, err
}

// IsSubscribed 检查用户是否关注了某报告
func (s *SubscriptionService) IsSubscribed(ctx context.Context, userID, reportID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND report_id = ?", userID, reportID).
		Count(&count).Error
	return count > 0, err
}
