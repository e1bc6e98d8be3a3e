package repository

import (
	"SportHub/internal/model"
	"context"

	"gorm.io/gorm"
)

type UserRepo interface {
	CreateUser(ctx context.Context, user *model.User, detail *model.UserDetail) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserSimpleInfoById(ctx context.Context, id uint64) (*model.UserDetail, error)
	GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*model.UserDetail, error)
}

type UserRepoImpl struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &UserRepoImpl{db: db}
}

// CreateUser 事务内创建账号与公开资料
func (s *UserRepoImpl) CreateUser(ctx context.Context, user *model.User, detail *model.UserDetail) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		detail.UserID = user.ID
		return tx.Create(detail).Error
	})
}

// GetUserByUsername 根据用户名查找账号（登录用）
func (s *UserRepoImpl) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("username = ? AND is_delete = 0", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserSimpleInfoById 获取单个用户的公开资料
func (s *UserRepoImpl) GetUserSimpleInfoById(ctx context.Context, id uint64) (*model.UserDetail, error) {
	var detail model.UserDetail
	err := s.db.WithContext(ctx).Where("user_id = ?", id).First(&detail).Error
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetUserSimpleInfoByIds 批量获取用户公开资料
func (s *UserRepoImpl) GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*model.UserDetail, error) {
	var details []*model.UserDetail
	err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&details).Error
	return details, err
}
