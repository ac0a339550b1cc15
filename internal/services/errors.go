package services

import "errors"

var (
	// 投票相关
	ErrDuplicateVote      = errors.New("already voted on this report in the current cycle")
	ErrValidationClosed   = errors.New("report is not accepting validation votes")
	ErrConfirmationClosed = errors.New("report is not accepting confirmation votes")
	ErrInvalidTargetState = errors.New("confirmation target state is not reachable")

	// 报告相关
	ErrReportNotFound     = errors.New("report not found")
	ErrDailyQuotaExceeded = errors.New("daily report quota exceeded")
	ErrInvalidLocation    = errors.New("invalid coordinates")
	ErrNotReopenable      = errors.New("report is not in a cycle-terminal state")
	ErrInvalidTransition  = errors.New("transition not allowed from current state")

	// 乐观锁冲突，内部自动重试
	ErrConcurrentModification = errors.New("report was modified concurrently")
	// 重试用尽后返回给调用方
	ErrTransientFailure = errors.New("temporary failure, please retry")

	ErrUserNotFound = errors.New("user not found")
	ErrForbidden    = errors.New("operation not permitted")
	ErrEmptyComment = errors.New("comment is empty")

	ErrNotificationNotFound = errors.New("notification not found")
)
