package services

import (
	"context"
	"fmt"

	"holewatch/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CycleManager 处理已结束周期的报告被再次提交时的重新打开
type CycleManager struct {
	runner   *txRunner
	ledger   *Ledger
	history  *HistoryRecorder
	subs     *SubscriptionService
	notifier ParticipantNotifier
	metrics  *Metrics
	logger   *zap.Logger
	now      Clock
}

// ReopenNearby 开启新周期：周期 +1，票数清零，状态改为 reopened，
// 触发者 +5 并自动关注。旧周期的投票保留。
func (m *CycleManager) ReopenNearby(ctx context.Context, reportID, triggeringUser uint) (*models.Report, error) {
	var (
		report *models.Report
		from   models.ReportState
	)
	err := m.runner.run(ctx, "reopen report", func(tx *gorm.DB) error {
		r, err := lockReport(tx, reportID)
		if err != nil {
			return err
		}
		if !r.State.IsCycleTerminal() {
			return ErrNotReopenable
		}

		from = r.State
		r.Cycle++
		r.PositiveTally = 0
		r.NegativeTally = 0
		r.State = models.StateReopened
		if err := saveReport(tx, r, m.now()); err != nil {
			return err
		}

		if err := m.ledger.RecordPoints(ctx, tx, Award{
			UserID:   triggeringUser,
			Amount:   PointsReopening,
			Category: CategoryReopening,
			Reason:   fmt.Sprintf("Reopened report #%d", r.ID),
			ReportID: &r.ID,
		}); err != nil {
			return err
		}
		if err := m.history.Record(ctx, tx, r.ID, &triggeringUser, r.Cycle, ActionReopened); err != nil {
			return err
		}
		if err := m.subs.Subscribe(ctx, tx, triggeringUser, r.ID); err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.metrics.Transitions.WithLabelValues(string(from), string(models.StateReopened)).Inc()
	m.logger.Info("Report reopened",
		zap.Uint("report_id", report.ID),
		zap.Int("cycle", report.Cycle),
		zap.String("from", string(from)),
		zap.Uint("user_id", triggeringUser))

	m.notifier.NotifyParticipants(ctx, ParticipantNotice{
		ReportID:      report.ID,
		ExcludeUserID: triggeringUser,
		ActorID:       &triggeringUser,
		Type:          models.NotificationTypeReopened,
		Title:         fmt.Sprintf("Report #%d was reopened", report.ID),
		Body:          "Someone reported this defect again. Please check whether it is still there.",
	})
	return report, nil
}
