package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"holewatch/internal/models"

	"gorm.io/gorm"
)

// UserService 用户由外部认证系统写入，这里只做读取和开发环境的手动创建
type UserService struct {
	db *gorm.DB
}

func NewUserService(conn *gorm.DB) *UserService {
	return &UserService{db: conn}
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create 新建用户，邮箱重复时返回 gorm.ErrDuplicatedKey
func (s *UserService) Create(ctx context.Context, username, email string, admin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return nil, errors.New("username and email are required")
	}

	user := &models.User{Username: username, Email: email, Role: models.RoleUser}
	if admin {
		user.Role = models.RoleAdmin
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return user, nil
}
