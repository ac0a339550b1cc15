package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"holewatch/internal/config"
	"holewatch/internal/models"
	"holewatch/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteResult 一次投票的结果，Transition 为空表示状态未变
type VoteResult struct {
	Report     *models.Report `json:"report"`
	Weight     float64        `json:"weight"`
	Transition *Transition    `json:"transition,omitempty"`
}

// ReportService 报告生命周期：提交、验证投票、确认投票、浏览、关闭
type ReportService struct {
	db         *gorm.DB
	cfg        config.Reports
	thresholds Thresholds
	runner     *txRunner
	ledger     *Ledger
	history    *HistoryRecorder
	cycles     *CycleManager
	proximity  ProximityQuery
	quota      *QuotaGuard
	subs       *SubscriptionService
	notifier   ParticipantNotifier
	metrics    *Metrics
	logger     *zap.Logger
	now        Clock

	// 报告新建或状态变化后调用，用于清理列表缓存
	onChange func()
}

// lockReport 在事务内锁定报告行（SQLite 下为空操作，写事务本身串行）
func lockReport(tx *gorm.DB, reportID uint) (*models.Report, error) {
	var report models.Report
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&report, reportID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock report %d: %w", reportID, err)
	}
	return &report, nil
}

// saveReport 按版本号更新状态和票数，版本不符说明被并发修改
func saveReport(tx *gorm.DB, report *models.Report, now time.Time) error {
	result := tx.Model(&models.Report{}).
		Where("id = ? AND version = ?", report.ID, report.Version).
		Updates(map[string]any{
			"state":          report.State,
			"cycle":          report.Cycle,
			"positive_tally": report.PositiveTally,
			"negative_tally": report.NegativeTally,
			"version":        report.Version + 1,
			"updated_at":     now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update report %d: %w", report.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	report.Version++
	report.UpdatedAt = now
	return nil
}

// Submit 提交一处缺陷。附近已有结束周期的报告时重新打开它，不新建。
func (s *ReportService) Submit(ctx context.Context, authorID uint, lat, lon float64, description string) (*models.Report, bool, error) {
	if !utils.ValidCoordinates(lat, lon) {
		return nil, false, ErrInvalidLocation
	}
	if err := s.quota.Check(ctx, authorID); err != nil {
		return nil, false, err
	}

	nearby, err := s.proximity.Nearby(ctx, lat, lon, s.cfg.ReopenRadiusMeters, models.CycleTerminalStates()...)
	if err != nil {
		return nil, false, err
	}
	if len(nearby) > 0 {
		report, err := s.cycles.ReopenNearby(ctx, nearby[0], authorID)
		switch {
		case err == nil:
			s.onChange()
			return report, true, nil
		case errors.Is(err, ErrNotReopenable):
			// 被别人抢先重新打开了，按新报告处理
			s.logger.Debug("Nearby report no longer reopenable", zap.Uint("report_id", nearby[0]))
		default:
			return nil, false, err
		}
	}

	report := &models.Report{
		UserID:      authorID,
		Latitude:    lat,
		Longitude:   lon,
		Description: utils.Truncate(utils.SanitizeText(description), s.cfg.DescriptionMaxChars),
		State:       models.StatePendingValidation,
	}
	err = s.runner.run(ctx, "submit report", func(tx *gorm.DB) error {
		now := s.now()
		report.ID = 0
		report.CreatedAt = now
		report.UpdatedAt = now
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		if err := s.ledger.RecordPoints(ctx, tx, Award{
			UserID:   authorID,
			Amount:   PointsReportCreated,
			Category: CategoryReportCreated,
			Reason:   fmt.Sprintf("Filed report #%d", report.ID),
			ReportID: &report.ID,
		}); err != nil {
			return err
		}
		if err := s.history.Record(ctx, tx, report.ID, &authorID, report.Cycle, ActionCreated); err != nil {
			return err
		}
		return s.subs.Subscribe(ctx, tx, authorID, report.ID)
	})
	if err != nil {
		return nil, false, err
	}

	s.onChange()
	s.logger.Info("Report submitted",
		zap.Uint("report_id", report.ID),
		zap.Uint("user_id", authorID))
	return report, false, nil
}

// CastValidationVote 待验证阶段的赞成/反对票，权重取投票时的等级
func (s *ReportService) CastValidationVote(ctx context.Context, reportID, voterID uint, outcome bool) (*VoteResult, error) {
	var result *VoteResult
	err := s.runner.run(ctx, "cast validation vote", func(tx *gorm.DB) error {
		report, err := lockReport(tx, reportID)
		if err != nil {
			return err
		}
		if report.State != models.StatePendingValidation {
			return ErrValidationClosed
		}
		if err := s.ensureFirstVote(tx, &models.Vote{}, report, voterID); err != nil {
			return err
		}

		tier, err := s.ledger.TierOf(ctx, tx, voterID)
		if err != nil {
			return err
		}
		vote := models.Vote{
			ReportID:  report.ID,
			UserID:    voterID,
			Cycle:     report.Cycle,
			Outcome:   outcome,
			Weight:    WeightFor(tier),
			CreatedAt: s.now(),
		}
		if err := tx.Create(&vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateVote
			}
			return fmt.Errorf("failed to record vote: %w", err)
		}

		if outcome {
			report.PositiveTally += vote.Weight
		} else {
			report.NegativeTally += vote.Weight
		}
		tally, err := validationTally(tx, report)
		if err != nil {
			return err
		}
		transition := EvaluateValidation(report, tally, s.thresholds)
		if transition != nil {
			report.State = transition.To
		}
		if err := saveReport(tx, report, s.now()); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, report, transition); err != nil {
			return err
		}

		result = &VoteResult{Report: report, Weight: vote.Weight, Transition: transition}
		return nil
	})
	if err != nil {
		return nil, err
	}

	choice := "negative"
	if outcome {
		choice = "positive"
	}
	s.metrics.VotesCast.WithLabelValues("validation", choice).Inc()
	s.announce(ctx, result.Report, result.Transition)
	return result, nil
}

// CastConfirmationVote 活跃/重新打开阶段的确认票，按目标状态分桶计数，不加权
func (s *ReportService) CastConfirmationVote(ctx context.Context, reportID, voterID uint, target models.ReportState) (*VoteResult, error) {
	if target != models.StateActive && target != models.StateRepaired {
		return nil, ErrInvalidTargetState
	}

	var result *VoteResult
	err := s.runner.run(ctx, "cast confirmation vote", func(tx *gorm.DB) error {
		report, err := lockReport(tx, reportID)
		if err != nil {
			return err
		}
		if report.State != models.StateActive && report.State != models.StateReopened {
			return ErrConfirmationClosed
		}
		if target == report.State {
			return ErrInvalidTargetState
		}
		if err := s.ensureFirstVote(tx, &models.Confirmation{}, report, voterID); err != nil {
			return err
		}

		confirmation := models.Confirmation{
			ReportID:    report.ID,
			UserID:      voterID,
			Cycle:       report.Cycle,
			TargetState: target,
			CreatedAt:   s.now(),
		}
		if err := tx.Create(&confirmation).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateVote
			}
			return fmt.Errorf("failed to record confirmation: %w", err)
		}

		tally, err := confirmationTally(tx, report)
		if err != nil {
			return err
		}
		transition := EvaluateConfirmation(report, tally, s.thresholds)
		if transition != nil {
			report.State = transition.To
		}
		// 没有状态变化也要更新版本号，让并发的确认票互相可见
		if err := saveReport(tx, report, s.now()); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, report, transition); err != nil {
			return err
		}

		result = &VoteResult{Report: report, Weight: 1, Transition: transition}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.VotesCast.WithLabelValues("confirmation", string(target)).Inc()
	s.announce(ctx, result.Report, result.Transition)
	return result, nil
}

// Close 管理员关闭仍在跟踪的报告
func (s *ReportService) Close(ctx context.Context, reportID uint, actor *models.User) (*models.Report, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var closed *models.Report
	var from models.ReportState
	err := s.runner.run(ctx, "close report", func(tx *gorm.DB) error {
		report, err := lockReport(tx, reportID)
		if err != nil {
			return err
		}
		if report.State != models.StateActive && report.State != models.StateReopened {
			return ErrInvalidTransition
		}
		from = report.State
		report.State = models.StateClosed
		if err := saveReport(tx, report, s.now()); err != nil {
			return err
		}
		if err := s.history.Record(ctx, tx, report.ID, &actor.ID, report.Cycle, ActionClosed); err != nil {
			return err
		}
		closed = report
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, closed, &Transition{From: from, To: models.StateClosed, Action: ActionClosed})
	return closed, nil
}

// IncrementViews 浏览数 +1，不影响状态和版本号
func (s *ReportService) IncrementViews(ctx context.Context, reportID uint) error {
	result := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ?", reportID).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

// GetReport 报告详情，带作者
func (s *ReportService) GetReport(ctx context.Context, reportID uint) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).Preload("User").First(&report, reportID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListVotes 某个周期的验证票，cycle 为空时取当前周期。旧周期的票保留可查。
func (s *ReportService) ListVotes(ctx context.Context, reportID uint, cycle *int) ([]models.Vote, error) {
	c, err := s.resolveCycle(ctx, reportID, cycle)
	if err != nil {
		return nil, err
	}
	var votes []models.Vote
	err = s.db.WithContext(ctx).
		Where("report_id = ? AND cycle = ?", reportID, c).
		Order("id ASC").
		Find(&votes).Error
	return votes, err
}

// ListConfirmations 某个周期的确认票，cycle 为空时取当前周期
func (s *ReportService) ListConfirmations(ctx context.Context, reportID uint, cycle *int) ([]models.Confirmation, error) {
	c, err := s.resolveCycle(ctx, reportID, cycle)
	if err != nil {
		return nil, err
	}
	var confirmations []models.Confirmation
	err = s.db.WithContext(ctx).
		Where("report_id = ? AND cycle = ?", reportID, c).
		Order("id ASC").
		Find(&confirmations).Error
	return confirmations, err
}

// History 报告的审计日志
func (s *ReportService) History(ctx context.Context, reportID uint) ([]models.HistoryEntry, error) {
	if _, err := s.resolveCycle(ctx, reportID, nil); err != nil {
		return nil, err
	}
	return s.history.List(ctx, reportID)
}

func (s *ReportService) resolveCycle(ctx context.Context, reportID uint, cycle *int) (int, error) {
	var report models.Report
	err := s.db.WithContext(ctx).Select("id", "cycle").Take(&report, reportID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrReportNotFound
	}
	if err != nil {
		return 0, err
	}
	if cycle != nil {
		return *cycle, nil
	}
	return report.Cycle, nil
}

// ensureFirstVote 同一周期内每人只能投一次，唯一索引兜底
func (s *ReportService) ensureFirstVote(tx *gorm.DB, model any, report *models.Report, voterID uint) error {
	var count int64
	if err := tx.Model(model).
		Where("report_id = ? AND user_id = ? AND cycle = ?", report.ID, voterID, report.Cycle).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateVote
	}
	return nil
}

// apply 在投票事务内发放积分并写历史
func (s *ReportService) apply(ctx context.Context, tx *gorm.DB, report *models.Report, t *Transition) error {
	if t == nil {
		return nil
	}
	for _, award := range t.Awards {
		if err := s.ledger.RecordPoints(ctx, tx, award); err != nil {
			return err
		}
	}
	return s.history.Record(ctx, tx, report.ID, nil, report.Cycle, t.Action)
}

var transitionBodies = map[models.ReportState]string{
	models.StateActive:   "The community confirmed this defect.",
	models.StateRejected: "The community flagged this report as false.",
	models.StateRepaired: "Community members confirmed the defect was repaired.",
	models.StateClosed:   "An administrator closed this report.",
}

// announce 提交后的指标、缓存和通知，不影响投票结果
func (s *ReportService) announce(ctx context.Context, report *models.Report, t *Transition) {
	if t == nil {
		return
	}
	s.metrics.Transitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	s.onChange()
	s.logger.Info("Report state changed",
		zap.Uint("report_id", report.ID),
		zap.Int("cycle", report.Cycle),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)))

	s.notifier.NotifyParticipants(ctx, ParticipantNotice{
		ReportID:      report.ID,
		Type:          models.NotificationTypeTransition,
		Title:         fmt.Sprintf("Report #%d is now %s", report.ID, t.To),
		Body:          transitionBodies[t.To],
		FollowersOnly: true,
	})
}

func validationTally(tx *gorm.DB, report *models.Report) (ValidationTally, error) {
	var votes []models.Vote
	if err := tx.Where("report_id = ? AND cycle = ?", report.ID, report.Cycle).
		Order("id ASC").
		Find(&votes).Error; err != nil {
		return ValidationTally{}, err
	}
	tally := ValidationTally{Positive: report.PositiveTally, Negative: report.NegativeTally}
	for _, v := range votes {
		if v.Outcome {
			tally.PositiveVoters = append(tally.PositiveVoters, v.UserID)
		} else {
			tally.NegativeVoters = append(tally.NegativeVoters, v.UserID)
		}
	}
	return tally, nil
}

func confirmationTally(tx *gorm.DB, report *models.Report) (ConfirmationTally, error) {
	var confirmations []models.Confirmation
	if err := tx.Where("report_id = ? AND cycle = ?", report.ID, report.Cycle).
		Order("id ASC").
		Find(&confirmations).Error; err != nil {
		return ConfirmationTally{}, err
	}
	tally := ConfirmationTally{Voters: make(map[models.ReportState][]uint)}
	for _, c := range confirmations {
		tally.Voters[c.TargetState] = append(tally.Voters[c.TargetState], c.UserID)
	}
	return tally, nil
}
