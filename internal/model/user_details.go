package model

import "time"

// UserDetail 用户公开资料
type UserDetail struct {
	ID        uint64  `gorm:"primaryKey"`
	UserID    uint64  `gorm:"uniqueIndex:idx_user_id"`
	Nickname  string  `gorm:"type:varchar(30);not null"`
	AvatarURL string  `gorm:"type:varchar(255)"`
	Bio       *string `gorm:"type:varchar(200)"`
	Sport     string  `gorm:"type:varchar(30)"` // 运动项目
	Team      string  `gorm:"type:varchar(50)"` // 所属俱乐部/球队
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserDetail) TableName() string {
	return "user_details"
}
