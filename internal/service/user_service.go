package service

import (
	"SportHub/internal/api/dto"
	"SportHub/internal/model"
	"SportHub/internal/pkg/consts"
	"SportHub/internal/pkg/es"
	"SportHub/internal/pkg/minio"
	"SportHub/internal/pkg/redis"
	"SportHub/internal/pkg/security"
	"SportHub/internal/repository"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

type UserService interface {
	Register(ctx context.Context, req *dto.RegisterDTO) error
	Login(ctx context.Context, req *dto.CredentialDTO) (*dto.LoginResultDTO, error)
	Logout(ctx context.Context, token string) error
	GetUserSimpleInfoById(ctx context.Context, id uint64) (*dto.UserDTO, error)
	GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*dto.UserDTO, error)
	SearchUsers(ctx context.Context, keyword string, page, pageSize int) ([]*dto.UserDTO, error)
}

type UserServiceImpl struct {
	userRepo   repository.UserRepo
	userEsRepo es.UserRepo
}

func NewUserService(userRepo repository.UserRepo, userEsRepo es.UserRepo) UserService {
	return &UserServiceImpl{
		userRepo:   userRepo,
		userEsRepo: userEsRepo,
	}
}

func (s *UserServiceImpl) Register(ctx context.Context, req *dto.RegisterDTO) error {
	_, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err == nil {
		return ErrUserExist
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := security.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := &model.User{
		Username: &req.Username,
		Password: &passwordHash,
	}

	detail := &model.UserDetail{}
	if err = copier.Copy(detail, req); err != nil {
		return err
	}
	detail.AvatarURL = consts.DefaultAvatarURL

	return s.userRepo.CreateUser(ctx, user, detail)
}

func (s *UserServiceImpl) Login(ctx context.Context, req *dto.CredentialDTO) (*dto.LoginResultDTO, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.Password == nil {
		return nil, ErrPasswordIncorrect
	}
	if err = security.CheckPasswordHash(req.Password, *user.Password); err != nil {
		return nil, ErrPasswordIncorrect
	}

	token, err := security.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}

	userDTO, err := s.GetUserSimpleInfoById(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResultDTO{Token: token, User: userDTO}, nil
}

// Logout 将 token 签名拉黑，有效期对齐 token 生命周期
func (s *UserServiceImpl) Logout(ctx context.Context, token string) error {
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return err
	}
	return redis.SetWithExpiration(ctx, consts.TokenBlacklistKey+signature, true, time.Hour*24)
}

// GetUserSimpleInfoById 获取用户公开资料，Redis 缓存 1 小时
func (s *UserServiceImpl) GetUserSimpleInfoById(ctx context.Context, id uint64) (*dto.UserDTO, error) {
	key := consts.UserSimpleInfoKey + strconv.FormatUint(id, 10)
	value, err := redis.GetValue(ctx, key)
	if err != nil {
		return nil, err
	}
	if value != "" {
		var userDTO *dto.UserDTO
		if err = json.Unmarshal([]byte(value), &userDTO); err == nil {
			return userDTO, nil
		}
	}

	detail, err := s.userRepo.GetUserSimpleInfoById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	userDTO := s.toUserDTO(detail)

	jsonStr, err := json.Marshal(userDTO)
	if err != nil {
		return nil, err
	}
	if err = redis.SetWithExpiration(ctx, key, string(jsonStr), time.Hour); err != nil {
		return nil, err
	}
	return userDTO, nil
}

// GetUserSimpleInfoByIds 批量获取公开资料，优先读缓存，缺失部分回源后补写
func (s *UserServiceImpl) GetUserSimpleInfoByIds(ctx context.Context, ids []uint64) ([]*dto.UserDTO, error) {
	missIds := make([]uint64, 0, len(ids))
	mp := make(map[uint64]*dto.UserDTO)

	for _, id := range ids {
		value, err := redis.GetValue(ctx, consts.UserSimpleInfoKey+strconv.FormatUint(id, 10))
		if err != nil {
			return nil, err
		}
		if value == "" {
			missIds = append(missIds, id)
			continue
		}
		var userDTO *dto.UserDTO
		if err = json.Unmarshal([]byte(value), &userDTO); err != nil {
			missIds = append(missIds, id)
		} else {
			mp[id] = userDTO
		}
	}

	if len(missIds) > 0 {
		details, err := s.userRepo.GetUserSimpleInfoByIds(ctx, missIds)
		if err != nil {
			return nil, err
		}
		for _, detail := range details {
			userDTO := s.toUserDTO(detail)
			mp[detail.UserID] = userDTO

			jsonStr, err := json.Marshal(userDTO)
			if err != nil {
				return nil, err
			}
			key := consts.UserSimpleInfoKey + strconv.FormatUint(detail.UserID, 10)
			if err = redis.SetWithExpiration(ctx, key, string(jsonStr), time.Hour); err != nil {
				return nil, err
			}
		}
	}

	res := make([]*dto.UserDTO, 0, len(ids))
	for _, id := range ids {
		if mp[id] == nil {
			continue
		}
		res = append(res, mp[id])
	}
	return res, nil
}

// SearchUsers 运动员搜索，走 Elasticsearch
func (s *UserServiceImpl) SearchUsers(ctx context.Context, keyword string, page, pageSize int) ([]*dto.UserDTO, error) {
	from := (page - 1) * pageSize
	users, err := s.userEsRepo.SearchUsers(ctx, keyword, from, pageSize)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.UserDTO, 0, len(users))
	for _, u := range users {
		res = append(res, &dto.UserDTO{
			UserID:    u.ID,
			Nickname:  u.Nickname,
			AvatarURL: minio.GetPublicURL(u.AvatarURL),
			Bio:       u.Bio,
			Sport:     u.Sport,
			Team:      u.Team,
		})
	}
	return res, nil
}

func (s *UserServiceImpl) toUserDTO(detail *model.UserDetail) *dto.UserDTO {
	return &dto.UserDTO{
		UserID:    detail.UserID,
		Nickname:  detail.Nickname,
		AvatarURL: minio.GetPublicURL(detail.AvatarURL),
		Bio:       detail.Bio,
		Sport:     detail.Sport,
		Team:      detail.Team,
	}
}
