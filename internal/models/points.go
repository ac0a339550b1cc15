package models

import (
	"time"
)

// PointsTransaction 积分流水，只追加，不修改不删除
type PointsTransaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Amount    int       `gorm:"not null" json:"amount"`                // 正数为增加，负数为扣除
	Category  string    `gorm:"size:40;not null;index" json:"category"` // 积分类别
	Reason    string    `gorm:"size:255" json:"reason"`                // 动作描述
	ReportID  *uint     `gorm:"index" json:"report_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Tier 信誉等级
type Tier string

const (
	TierBase    Tier = "base"
	TierTrusted Tier = "trusted"
	TierExpert  Tier = "expert"
)

// ReputationSnapshot 用户信誉快照，每个用户一行，由积分流水推导
type ReputationSnapshot struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Total     int       `gorm:"not null;default:0;index" json:"total"`
	Tier      Tier      `gorm:"type:varchar(20);not null;default:'base'" json:"tier"`
	UpdatedAt time.Time `json:"updated_at"`
}
