package services

import (
	"context"

	"holewatch/internal/models"

	"gorm.io/gorm"
)

const inboxPageSize = 50

// Inbox 站内通知的读取和管理
type Inbox struct {
	db *gorm.DB
}

func NewInbox(conn *gorm.DB) *Inbox {
	return &Inbox{db: conn}
}

// List 最近的通知，新的在前
func (i *Inbox) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := i.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(inboxPageSize).
		Find(&notifications).Error
	return notifications, err
}

func (i *Inbox) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := i.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead 只能标记自己的通知
func (i *Inbox) MarkRead(ctx context.Context, userID, id uint) error {
	result := i.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID uint) error {
	return i.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

func (i *Inbox) Delete(ctx context.Context, userID, id uint) error {
	result := i.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
