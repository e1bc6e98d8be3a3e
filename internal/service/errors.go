package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid            = errors.New("参数错误")
	ErrUserNotFound            = errors.New("用户不存在")
	ErrUserExist               = errors.New("用户已存在")
	ErrPasswordIncorrect       = errors.New("密码错误")
	ErrMissingLoginCredentials = errors.New("缺少登录凭据")
	ErrMessageEmpty            = errors.New("消息内容不能为空")
	ErrTargetUserInvalid       = errors.New("目标用户无效")
	ErrConversation            = errors.New("会话异常")
	ErrNotifyNotFound          = errors.New("通知不存在")
	ErrFileNotSupported        = errors.New("不支持的文件类型")
	ErrRealtimeUnavailable     = errors.New("消息服务连接失败")
	UnauthorizedError          = errors.New("权限不足")
	UnExpectedError            = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:            BadRequest,
	ErrUserNotFound:            NotFound,
	ErrUserExist:               BadRequest,
	ErrPasswordIncorrect:       Unauthorized,
	ErrMissingLoginCredentials: Unauthorized,
	ErrMessageEmpty:            BadRequest,
	ErrTargetUserInvalid:       BadRequest,
	ErrConversation:            BadRequest,
	ErrNotifyNotFound:          NotFound,
	ErrFileNotSupported:        BadRequest,
	ErrRealtimeUnavailable:     InternalServerError,
	UnauthorizedError:          Unauthorized,
	UnExpectedError:            InternalServerError,
}
