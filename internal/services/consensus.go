package services

import (
	"fmt"

	"holewatch/internal/config"
	"holewatch/internal/models"
)

// Thresholds 共识阈值
type Thresholds struct {
	Positive     float64 // 加权赞成票
	Negative     float64 // 加权反对票
	Confirmation int     // 单个确认桶的票数
}

func ThresholdsFromConfig(c config.Consensus) Thresholds {
	return Thresholds{
		Positive:     c.PositiveThreshold,
		Negative:     c.NegativeThreshold,
		Confirmation: c.ConfirmationThreshold,
	}
}

// ValidationTally 当前周期的验证票
type ValidationTally struct {
	Positive       float64
	Negative       float64
	PositiveVoters []uint
	NegativeVoters []uint
}

// ConfirmationTally 当前周期按目标状态分桶的确认票
type ConfirmationTally struct {
	Voters map[models.ReportState][]uint
}

// Count 桶内票数，确认票不加权
func (t ConfirmationTally) Count(state models.ReportState) int {
	return len(t.Voters[state])
}

// Transition 一次状态变更及其附带的积分
type Transition struct {
	From   models.ReportState `json:"from"`
	To     models.ReportState `json:"to"`
	Action string             `json:"action"`
	Awards []Award            `json:"awards"`
}

// confirmationOrder 多个桶同时达到阈值时的检查顺序
var confirmationOrder = []models.ReportState{models.StateRepaired, models.StateActive}

// EvaluateValidation 待验证状态下的共识判定，赞成优先。未达到阈值返回 nil。
func EvaluateValidation(report *models.Report, tally ValidationTally, th Thresholds) *Transition {
	if report.State != models.StatePendingValidation {
		return nil
	}
	reportID := report.ID

	switch {
	case tally.Positive >= th.Positive:
		t := &Transition{
			From:   report.State,
			To:     models.StateActive,
			Action: ActionVerified,
		}
		t.Awards = append(t.Awards, Award{
			UserID:   report.UserID,
			Amount:   PointsVerified,
			Category: CategoryVerified,
			Reason:   fmt.Sprintf("Report #%d verified by the community", reportID),
			ReportID: &reportID,
		})
		for _, voter := range tally.PositiveVoters {
			if voter == report.UserID {
				continue
			}
			t.Awards = append(t.Awards, Award{
				UserID:   voter,
				Amount:   PointsConfirmation,
				Category: CategoryConfirmation,
				Reason:   fmt.Sprintf("Confirmed report #%d", reportID),
				ReportID: &reportID,
			})
		}
		return t

	case tally.Negative >= th.Negative:
		t := &Transition{
			From:   report.State,
			To:     models.StateRejected,
			Action: ActionRejected,
		}
		t.Awards = append(t.Awards, Award{
			UserID:   report.UserID,
			Amount:   PointsFalseReport,
			Category: CategoryFalseReport,
			Reason:   fmt.Sprintf("Report #%d rejected as false", reportID),
			ReportID: &reportID,
		})
		for _, voter := range tally.NegativeVoters {
			if voter == report.UserID {
				continue
			}
			t.Awards = append(t.Awards, Award{
				UserID:   voter,
				Amount:   PointsVerification,
				Category: CategoryVerification,
				Reason:   fmt.Sprintf("Flagged false report #%d", reportID),
				ReportID: &reportID,
			})
		}
		return t
	}
	return nil
}

// EvaluateConfirmation 活跃或重新打开状态下的确认判定。未达到阈值返回 nil。
func EvaluateConfirmation(report *models.Report, tally ConfirmationTally, th Thresholds) *Transition {
	if report.State != models.StateActive && report.State != models.StateReopened {
		return nil
	}
	reportID := report.ID

	for _, target := range confirmationOrder {
		if target == report.State || tally.Count(target) < th.Confirmation {
			continue
		}
		t := &Transition{
			From:   report.State,
			To:     target,
			Action: string(target),
		}
		for _, voter := range tally.Voters[target] {
			t.Awards = append(t.Awards, Award{
				UserID:   voter,
				Amount:   PointsConfirmationSuccess,
				Category: CategoryConfirmationSuccess,
				Reason:   fmt.Sprintf("Confirmed report #%d as %s", reportID, target),
				ReportID: &reportID,
			})
		}
		return t
	}
	return nil
}
