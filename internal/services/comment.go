package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"holewatch/internal/models"
	"holewatch/internal/utils"

	"gorm.io/gorm"
)

const MaxCommentChars = 5000

type CommentService struct {
	db       *gorm.DB
	ledger   *Ledger
	notifier ParticipantNotifier
	now      Clock
}

// Add 发表评论，每天前几条评论 +1 积分，并通知其他参与者
func (s *CommentService) Add(ctx context.Context, reportID, userID uint, content string) (*models.Comment, error) {
	content = utils.Truncate(strings.TrimSpace(content), MaxCommentChars)
	if content == "" {
		return nil, ErrEmptyComment
	}

	comment := &models.Comment{
		ReportID:  reportID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Report{}).Where("id = ?", reportID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrReportNotFound
		}
		canEarn, err := s.ledger.CanEarnCommentPoints(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Create(comment).Error; err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		if !canEarn {
			return nil
		}
		return s.ledger.RecordPoints(ctx, tx, Award{
			UserID:   userID,
			Amount:   PointsComment,
			Category: CategoryComment,
			Reason:   fmt.Sprintf("Commented on report #%d", reportID),
			ReportID: &reportID,
		})
	})
	if err != nil {
		return nil, err
	}
	s.ledger.InvalidateLeaderboard()

	comment.ContentHTML = string(utils.RenderMarkdown(comment.Content))
	s.notifier.NotifyParticipants(ctx, ParticipantNotice{
		ReportID:      reportID,
		ExcludeUserID: userID,
		ActorID:       &userID,
		Type:          models.NotificationTypeComment,
		Title:         fmt.Sprintf("New comment on report #%d", reportID),
		Body:          utils.Truncate(utils.SanitizeText(content), 140),
	})
	return comment, nil
}

// List 报告的评论，按时间正序，附带渲染后的 HTML
func (s *CommentService) List(ctx context.Context, reportID uint) ([]models.Comment, error) {
	var report models.Report
	if err := s.db.WithContext(ctx).Select("id").Take(&report, reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("report_id = ?", reportID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].ContentHTML = string(utils.RenderMarkdown(comments[i].Content))
	}
	return comments, nil
}
