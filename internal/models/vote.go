package models

import (
	"time"
)

// Vote 验证投票：确认报告的缺陷是否真实存在
// 唯一索引保证每个用户在每个报告的每个周期内只能投一票
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReportID  uint      `gorm:"not null;uniqueIndex:idx_vote_report_user_cycle,priority:1" json:"report_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_vote_report_user_cycle,priority:2;index" json:"user_id"`
	Cycle     int       `gorm:"not null;uniqueIndex:idx_vote_report_user_cycle,priority:3" json:"cycle"`
	Outcome   bool      `gorm:"not null" json:"outcome"` // true = 存在, false = 不存在
	Weight    float64   `gorm:"not null" json:"weight"`  // 投票时冻结的权重
	CreatedAt time.Time `json:"created_at"`
}

// Confirmation 确认投票：活跃后的"还在吗 / 修好了吗"轮询，按目标状态分桶计数
type Confirmation struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ReportID    uint        `gorm:"not null;uniqueIndex:idx_confirmation_report_user_cycle,priority:1" json:"report_id"`
	UserID      uint        `gorm:"not null;uniqueIndex:idx_confirmation_report_user_cycle,priority:2;index" json:"user_id"`
	Cycle       int         `gorm:"not null;uniqueIndex:idx_confirmation_report_user_cycle,priority:3" json:"cycle"`
	TargetState ReportState `gorm:"type:varchar(30);not null" json:"target_state"`
	CreatedAt   time.Time   `json:"created_at"`
}
