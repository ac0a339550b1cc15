package services

import (
	"context"
	"slices"
	"sync"

	"holewatch/internal/config"
	"holewatch/internal/models"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const deliveryBatchSize = 500

// ParticipantNotice 发给报告参与者的一条通知
type ParticipantNotice struct {
	ReportID      uint
	ExcludeUserID uint  // 不通知的用户，通常是触发者
	ActorID       *uint // 触发者，系统动作时为空
	Type          models.NotificationType
	Title         string
	Body          string
	FollowersOnly bool // 只通知作者和关注者
}

// ParticipantNotifier 核心流程只依赖这个接口，发送是异步的，不返回错误
type ParticipantNotifier interface {
	NotifyParticipants(ctx context.Context, notice ParticipantNotice)
}

// Notifier 具体的投递渠道
type Notifier interface {
	Deliver(ctx context.Context, recipients []uint, notice ParticipantNotice) error
}

// Dispatcher 通知队列：缓冲 channel + 后台 worker，按渠道和批次并发投递
type Dispatcher struct {
	db          *gorm.DB
	logger      *zap.Logger
	metrics     *Metrics
	notifiers   []Notifier
	queue       chan ParticipantNotice
	concurrency int

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDispatcher(conn *gorm.DB, cfg config.Notifications, logger *zap.Logger, metrics *Metrics, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		db:          conn,
		logger:      logger.Named("notify"),
		metrics:     metrics,
		notifiers:   notifiers,
		queue:       make(chan ParticipantNotice, cfg.QueueSize), // 缓冲队列，防止阻塞
		concurrency: max(cfg.Concurrency, 1),
		done:        make(chan struct{}),
	}
}

// Start 启动后台 worker，ctx 取消时退出
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.worker(ctx)
	}()
}

// Stop 停止接收新通知，处理完队列中剩余的后返回
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

// NotifyParticipants 非阻塞入队，队列满了直接丢弃
func (d *Dispatcher) NotifyParticipants(_ context.Context, notice ParticipantNotice) {
	select {
	case <-d.done:
		d.metrics.Notifications.WithLabelValues("dropped").Inc()
		return
	default:
	}

	select {
	case d.queue <- notice:
		d.metrics.Notifications.WithLabelValues("queued").Inc()
	default:
		d.metrics.Notifications.WithLabelValues("dropped").Inc()
		d.logger.Warn("Notification queue is full, dropping notice",
			zap.Uint("report_id", notice.ReportID),
			zap.String("type", string(notice.Type)))
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case notice := <-d.queue:
			d.dispatch(ctx, notice)
		case <-d.done:
			// 处理剩余的
			for {
				select {
				case notice := <-d.queue:
					d.dispatch(ctx, notice)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// dispatch 解析收件人并投递到所有渠道，错误只记录日志
func (d *Dispatcher) dispatch(ctx context.Context, notice ParticipantNotice) {
	recipients, err := d.recipients(ctx, notice)
	if err != nil {
		d.metrics.Notifications.WithLabelValues("failed").Inc()
		d.logger.Error("Failed to resolve notice recipients",
			zap.Uint("report_id", notice.ReportID),
			zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(d.concurrency).WithContext(ctx)
	for _, notifier := range d.notifiers {
		for batch := range slices.Chunk(recipients, deliveryBatchSize) {
			p.Go(func(ctx context.Context) error {
				return notifier.Deliver(ctx, batch, notice)
			})
		}
	}
	if err := p.Wait(); err != nil {
		d.metrics.Notifications.WithLabelValues("failed").Inc()
		d.logger.Warn("Notice delivery failed",
			zap.Uint("report_id", notice.ReportID),
			zap.Int("recipients", len(recipients)),
			zap.Error(err))
		return
	}
	d.metrics.Notifications.WithLabelValues("delivered").Inc()
}

// recipients 报告作者、各周期的投票者、评论者和关注者，去重后排除 ExcludeUserID
func (d *Dispatcher) recipients(ctx context.Context, notice ParticipantNotice) ([]uint, error) {
	query := `SELECT user_id FROM reports WHERE id = @id
		UNION SELECT user_id FROM subscriptions WHERE report_id = @id`
	if !notice.FollowersOnly {
		query += `
		UNION SELECT user_id FROM votes WHERE report_id = @id
		UNION SELECT user_id FROM confirmations WHERE report_id = @id
		UNION SELECT user_id FROM comments WHERE report_id = @id`
	}

	var ids []uint
	if err := d.db.WithContext(ctx).Raw(query, map[string]any{"id": notice.ReportID}).Scan(&ids).Error; err != nil {
		return nil, err
	}
	ids = slices.DeleteFunc(ids, func(id uint) bool { return id == notice.ExcludeUserID })
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// InAppNotifier 写入站内通知表
type InAppNotifier struct {
	db  *gorm.DB
	now Clock
}

func NewInAppNotifier(conn *gorm.DB, now Clock) *InAppNotifier {
	return &InAppNotifier{db: conn, now: now}
}

func (n *InAppNotifier) Deliver(ctx context.Context, recipients []uint, notice ParticipantNotice) error {
	reportID := notice.ReportID
	rows := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, models.Notification{
			UserID:    userID,
			ActorID:   notice.ActorID,
			ReportID:  &reportID,
			Type:      notice.Type,
			Title:     notice.Title,
			Body:      notice.Body,
			CreatedAt: n.now(),
		})
	}
	return n.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// LogNotifier 只打日志，推送渠道接入前的占位
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("push")}
}

func (n *LogNotifier) Deliver(_ context.Context, recipients []uint, notice ParticipantNotice) error {
	n.logger.Info("Notice delivered",
		zap.Uint("report_id", notice.ReportID),
		zap.String("type", string(notice.Type)),
		zap.String("title", notice.Title),
		zap.Int("recipients", len(recipients)))
	return nil
}
