package models

import (
	"time"
)

// HistoryEntry 报告审计日志，只追加
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReportID  uint      `gorm:"not null;index" json:"report_id"`
	UserID    *uint     `gorm:"index" json:"user_id"` // 触发者，系统动作时为空
	Cycle     int       `gorm:"not null;default:0" json:"cycle"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	CreatedAt time.Time `json:"created_at"`
}
