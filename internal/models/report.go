package models

import (
	"time"
)

// ReportState 报告生命周期状态
type ReportState string

const (
	StatePendingValidation ReportState = "pending_validation"
	StateActive            ReportState = "active"
	StateRejected          ReportState = "rejected"
	StateReopened          ReportState = "reopened"
	StateRepaired          ReportState = "repaired"
	StateClosed            ReportState = "closed"
)

// IsCycleTerminal 当前周期内的终态，只能通过开启新周期（重新打开）离开
func (s ReportState) IsCycleTerminal() bool {
	switch s {
	case StateRejected, StateRepaired, StateClosed:
		return true
	}
	return false
}

// IsOpen 仍在跟踪中的状态（待验证 / 活跃 / 重新打开）
func (s ReportState) IsOpen() bool {
	switch s {
	case StatePendingValidation, StateActive, StateReopened:
		return true
	}
	return false
}

var allStates = []ReportState{
	StatePendingValidation, StateActive, StateReopened,
	StateRejected, StateRepaired, StateClosed,
}

// OpenStates 附近列表展示的状态
func OpenStates() []ReportState {
	return filterStates(ReportState.IsOpen)
}

// CycleTerminalStates 提交新报告时可被重新打开的状态
func CycleTerminalStates() []ReportState {
	return filterStates(ReportState.IsCycleTerminal)
}

func filterStates(keep func(ReportState) bool) []ReportState {
	var states []ReportState
	for _, s := range allStates {
		if keep(s) {
			states = append(states, s)
		}
	}
	return states
}

type Report struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uint        `gorm:"not null;index" json:"user_id"` // 作者
	User          User        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Latitude      float64     `gorm:"not null;index:idx_report_location" json:"latitude"`
	Longitude     float64     `gorm:"not null;index:idx_report_location" json:"longitude"`
	Description   string      `gorm:"type:text" json:"description"`
	State         ReportState `gorm:"type:varchar(30);not null;default:'pending_validation';index" json:"state"`
	Cycle         int         `gorm:"not null;default:0" json:"cycle"`           // 投票周期，重新打开时 +1
	PositiveTally float64     `gorm:"not null;default:0" json:"positive_tally"` // 当前周期加权赞成票
	NegativeTally float64     `gorm:"not null;default:0" json:"negative_tally"` // 当前周期加权反对票
	Views         int         `gorm:"default:0" json:"views"`
	Version       int         `gorm:"not null;default:0" json:"-"` // 乐观锁版本号
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	Distance float64 `gorm:"-" json:"distance_m,omitempty"`
}
