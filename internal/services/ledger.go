package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"holewatch/internal/models"
	"holewatch/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 积分类别
const (
	CategoryReportCreated       = "report_created"
	CategoryVerified            = "verified"
	CategoryConfirmation        = "confirmation"
	CategoryFalseReport         = "false_report"
	CategoryVerification        = "verification"
	CategoryConfirmationSuccess = "confirmation_success"
	CategoryReopening           = "reopening"
	CategoryComment             = "comment"
)

// 积分值
const (
	PointsReportCreated       = 10
	PointsVerified            = 10
	PointsConfirmation        = 5
	PointsFalseReport         = -15
	PointsVerification        = 3
	PointsConfirmationSuccess = 5
	PointsReopening           = 5
	PointsComment             = 1
)

// 等级门槛
const (
	TrustedThreshold = 100
	ExpertThreshold  = 200
)

// DailyCommentLimit 每天前几条评论有积分
const DailyCommentLimit = 3

const (
	leaderboardTTL  = time.Minute
	recentLogLength = 20
)

// Award 一笔待记账的积分
type Award struct {
	UserID   uint   `json:"user_id"`
	Amount   int    `json:"amount"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
	ReportID *uint  `json:"report_id,omitempty"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank     int         `json:"rank"`
	UserID   uint        `json:"user_id"`
	Username string      `json:"username"`
	Total    int         `json:"total"`
	Tier     models.Tier `json:"tier"`
}

// ReputationSummary 用户信誉概览
type ReputationSummary struct {
	UserID       uint                       `json:"user_id"`
	Username     string                     `json:"username"`
	Total        int                        `json:"total"`
	Tier         models.Tier                `json:"tier"`
	Weight       float64                    `json:"weight"`
	NextTier     models.Tier                `json:"next_tier,omitempty"`
	PointsToNext int                        `json:"points_to_next,omitempty"`
	Recent       []models.PointsTransaction `json:"recent"`
}

// Ledger 积分账本：流水只追加，快照随流水在同一事务内更新
type Ledger struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *Metrics
	now     Clock
	board   *utils.TTLCache[int, []LeaderboardEntry]
}

func NewLedger(conn *gorm.DB, logger *zap.Logger, metrics *Metrics, now Clock) *Ledger {
	board, _ := utils.NewTTLCache[int, []LeaderboardEntry](16)
	return &Ledger{
		db:      conn,
		logger:  logger.Named("ledger"),
		metrics: metrics,
		now:     now,
		board:   board.WithClock(now),
	}
}

// TierForTotal 由累计积分推导等级，负分一律为 base
func TierForTotal(total int) models.Tier {
	switch {
	case total >= ExpertThreshold:
		return models.TierExpert
	case total >= TrustedThreshold:
		return models.TierTrusted
	default:
		return models.TierBase
	}
}

// RecordPoints 追加一条积分流水并更新快照。
// tx 不为空时在调用方事务内执行，否则自己开事务。
func (l *Ledger) RecordPoints(ctx context.Context, tx *gorm.DB, award Award) error {
	if tx != nil {
		// 排行榜缓存由调用方在提交后清理
		return l.record(tx.WithContext(ctx), award)
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.record(tx, award)
	})
	if err == nil {
		l.InvalidateLeaderboard()
	}
	return err
}

// InvalidateLeaderboard 积分变化提交后清空排行榜缓存
func (l *Ledger) InvalidateLeaderboard() {
	l.board.Purge()
}

func (l *Ledger) record(tx *gorm.DB, award Award) error {
	now := l.now()

	// 1. 创建积分流水
	entry := models.PointsTransaction{
		UserID:    award.UserID,
		Amount:    award.Amount,
		Category:  award.Category,
		Reason:    award.Reason,
		ReportID:  award.ReportID,
		CreatedAt: now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append points transaction: %w", err)
	}

	// 2. 更新快照余额
	snapshot := models.ReputationSnapshot{
		UserID:    award.UserID,
		Total:     award.Amount,
		Tier:      TierForTotal(award.Amount),
		UpdatedAt: now,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total":      gorm.Expr("reputation_snapshots.total + ?", award.Amount),
			"updated_at": now,
		}),
	}).Create(&snapshot).Error; err != nil {
		return fmt.Errorf("failed to update reputation snapshot: %w", err)
	}

	// 3. 按新余额重写等级
	var total int
	if err := tx.Model(&models.ReputationSnapshot{}).
		Where("user_id = ?", award.UserID).
		Select("total").
		Scan(&total).Error; err != nil {
		return fmt.Errorf("failed to read reputation snapshot: %w", err)
	}
	if err := tx.Model(&models.ReputationSnapshot{}).
		Where("user_id = ?", award.UserID).
		UpdateColumn("tier", TierForTotal(total)).Error; err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}

	l.metrics.PointsAwarded.WithLabelValues(award.Category).Inc()
	return nil
}

// TierOf 读取用户当前等级，没有快照时为 base
func (l *Ledger) TierOf(ctx context.Context, tx *gorm.DB, userID uint) (models.Tier, error) {
	conn := l.db
	if tx != nil {
		conn = tx
	}
	var snapshot models.ReputationSnapshot
	err := conn.WithContext(ctx).Where("user_id = ?", userID).Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TierBase, nil
	}
	if err != nil {
		return models.TierBase, fmt.Errorf("failed to load reputation of user %d: %w", userID, err)
	}
	return TierForTotal(snapshot.Total), nil
}

// Summary 用户积分、等级、距下一等级的差距和最近流水
func (l *Ledger) Summary(ctx context.Context, userID uint) (*ReputationSummary, error) {
	var user models.User
	if err := l.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var snapshot models.ReputationSnapshot
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).Take(&snapshot).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tier := TierForTotal(snapshot.Total)
	summary := &ReputationSummary{
		UserID:   user.ID,
		Username: user.Username,
		Total:    snapshot.Total,
		Tier:     tier,
		Weight:   WeightFor(tier),
	}
	switch tier {
	case models.TierBase:
		summary.NextTier = models.TierTrusted
		summary.PointsToNext = TrustedThreshold - snapshot.Total
	case models.TierTrusted:
		summary.NextTier = models.TierExpert
		summary.PointsToNext = ExpertThreshold - snapshot.Total
	}

	recent, err := l.PointsLog(ctx, userID, recentLogLength)
	if err != nil {
		return nil, err
	}
	summary.Recent = recent
	return summary, nil
}

// PointsLog 用户最近的积分流水，新的在前
func (l *Ledger) PointsLog(ctx context.Context, userID uint, limit int) ([]models.PointsTransaction, error) {
	var logs []models.PointsTransaction
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Leaderboard 按累计积分降序，缓存一分钟
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if cached, ok := l.board.Get(limit); ok {
		return cached, nil
	}

	var rows []struct {
		UserID   uint
		Username string
		Total    int
	}
	err := l.db.WithContext(ctx).
		Table("reputation_snapshots").
		Select("reputation_snapshots.user_id, users.username, reputation_snapshots.total").
		Joins("JOIN users ON users.id = reputation_snapshots.user_id").
		Order("reputation_snapshots.total DESC, reputation_snapshots.user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			UserID:   row.UserID,
			Username: row.Username,
			Total:    row.Total,
			Tier:     TierForTotal(row.Total),
		})
	}
	l.board.Set(limit, entries, leaderboardTTL)
	return entries, nil
}

// CanEarnCommentPoints 检查用户今日是否还能通过评论获取积分
func (l *Ledger) CanEarnCommentPoints(ctx context.Context, tx *gorm.DB, userID uint) (bool, error) {
	// 锁住用户行，同一用户的并发评论在这里排队，计数才准确
	var user models.User
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", userID).
		Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}

	startOfDay, endOfDay := todayRange(l.now())
	var count int64
	err := tx.WithContext(ctx).Model(&models.PointsTransaction{}).
		Where("user_id = ? AND category = ? AND created_at >= ? AND created_at < ?",
			userID, CategoryComment, startOfDay, endOfDay).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count < DailyCommentLimit, nil
}

// Rebuild 由完整流水重算单个用户的快照
func (l *Ledger) Rebuild(ctx context.Context, userID uint) (*models.ReputationSnapshot, error) {
	var snapshot *models.ReputationSnapshot
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total int
		if err := tx.Model(&models.PointsTransaction{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&total).Error; err != nil {
			return err
		}

		snapshot = &models.ReputationSnapshot{
			UserID:    userID,
			Total:     total,
			Tier:      TierForTotal(total),
			UpdatedAt: l.now(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total", "tier", "updated_at"}),
		}).Create(snapshot).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild reputation of user %d: %w", userID, err)
	}
	l.InvalidateLeaderboard()
	return snapshot, nil
}

// RebuildAll 重算所有有流水或快照的用户，返回处理的用户数
func (l *Ledger) RebuildAll(ctx context.Context) (int, error) {
	var ids []uint
	err := l.db.WithContext(ctx).Raw(
		"SELECT user_id FROM points_transactions UNION SELECT user_id FROM reputation_snapshots",
	).Scan(&ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list ledger users: %w", err)
	}

	for _, id := range ids {
		if _, err := l.Rebuild(ctx, id); err != nil {
			return 0, err
		}
	}
	l.InvalidateLeaderboard()
	l.logger.Info("Rebuilt reputation snapshots", zap.Int("users", len(ids)))
	return len(ids), nil
}
