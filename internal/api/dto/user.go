package dto

// UserDTO 用户简要信息
type UserDTO struct {
	UserID    uint64  `json:"user_id"`
	Nickname  string  `json:"nickname"`
	AvatarURL string  `json:"avatar_url"`
	Bio       *string `json:"bio,omitempty"`
	Sport     string  `json:"sport,omitempty"`
	Team      string  `json:"team,omitempty"`
}

// RegisterDTO 注册
type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=6,max=20"`
	Password string `json:"password" binding:"required,min=6,max=20"`
	Nickname string `json:"nickname" binding:"required,min=1,max=15"`
	Sport    string `json:"sport"`
	Team     string `json:"team"`
}

// CredentialDTO 登录
type CredentialDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResultDTO 登录结果
type LoginResultDTO struct {
	Token string   `json:"token"`
	User  *UserDTO `json:"user"`
}
