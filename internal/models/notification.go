package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeReopened   NotificationType = "reopened"
	NotificationTypeTransition NotificationType = "transition" // 共识状态变更
	NotificationTypeComment    NotificationType = "comment"
	NotificationTypeSystem     NotificationType = "system"
)

// Notification 站内通知
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"` // Receiver
	ActorID   *uint            `gorm:"index" json:"actor_id"`         // Sender
	ReportID  *uint            `gorm:"index" json:"report_id"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title     string           `gorm:"size:200;not null" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
