package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgreSQL 可重试的错误码
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isRetryable 乐观锁冲突、序列化失败和死锁可以重试
func isRetryable(err error) bool {
	if errors.Is(err, ErrConcurrentModification) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// txRunner 在事务中执行 fn，冲突时按指数退避重试
type txRunner struct {
	db         *gorm.DB
	maxRetries int
	logger     *zap.Logger
	metrics    *Metrics
}

func (r *txRunner) run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(250*time.Millisecond),
		backoff.WithMaxElapsedTime(5*time.Second),
	), uint64(r.maxRetries)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := r.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		// 只在真正重试之前调用
		r.metrics.TxRetries.Inc()
		r.logger.Debug("Retrying report transaction",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})

	if err != nil && isRetryable(err) {
		r.logger.Warn("Report transaction kept conflicting",
			zap.String("op", op),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return fmt.Errorf("%s: %w", op, ErrTransientFailure)
	}
	return err
}
