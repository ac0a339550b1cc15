package models

import (
	"time"
)

// Subscription 关注模型 - 用户关注报告，状态变化时收到通知
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_user_report" json:"user_id"`
	ReportID  uint      `gorm:"not null;index;uniqueIndex:idx_user_report" json:"report_id"`
	Report    Report    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
