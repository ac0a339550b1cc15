package services

import (
	"time"

	"holewatch/internal/config"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 组装后的核心服务
type Services struct {
	Ledger        *Ledger
	Reports       *ReportService
	Cycles        *CycleManager
	History       *HistoryRecorder
	Geo           *GeoIndex
	Quota         *QuotaGuard
	Comments      *CommentService
	Subscriptions *SubscriptionService
	Inbox         *Inbox
	Users         *UserService
	Metrics       *Metrics
}

// New 组装服务。notifier 一般是 *Dispatcher，now 为空时用 time.Now。
func New(conn *gorm.DB, cfg *config.Config, notifier ParticipantNotifier, logger *zap.Logger, metrics *Metrics, now Clock) *Services {
	if now == nil {
		now = time.Now
	}

	runner := &txRunner{
		db:         conn,
		maxRetries: cfg.Consensus.MaxRetries,
		logger:     logger.Named("tx"),
		metrics:    metrics,
	}
	ledger := NewLedger(conn, logger, metrics, now)
	history := NewHistoryRecorder(conn, now)
	subs := NewSubscriptionService(conn, now)
	geo := NewGeoIndex(conn, cfg.Reports, now)
	quota := NewQuotaGuard(conn, cfg.Reports.DailyQuota, now)

	cycles := &CycleManager{
		runner:   runner,
		ledger:   ledger,
		history:  history,
		subs:     subs,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("cycle"),
		now:      now,
	}

	reports := &ReportService{
		db:         conn,
		cfg:        cfg.Reports,
		thresholds: ThresholdsFromConfig(cfg.Consensus),
		runner:     runner,
		ledger:     ledger,
		history:    history,
		cycles:     cycles,
		proximity:  geo,
		quota:      quota,
		subs:       subs,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger.Named("reports"),
		now:        now,
		onChange: func() {
			geo.Invalidate()
			ledger.InvalidateLeaderboard()
		},
	}

	return &Services{
		Ledger:        ledger,
		Reports:       reports,
		Cycles:        cycles,
		History:       history,
		Geo:           geo,
		Quota:         quota,
		Comments:      &CommentService{db: conn, ledger: ledger, notifier: notifier, now: now},
		Subscriptions: subs,
		Inbox:         NewInbox(conn),
		Users:         NewUserService(conn),
		Metrics:       metrics,
	}
}
