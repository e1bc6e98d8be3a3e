package api

import "SportHub/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	UserHandler   *handler.UserHandler
	IMHandler     *handler.IMHandler
	NotifyHandler *handler.NotifyHandler
	MediaHandler  *handler.MediaHandler
	WsHandler     *handler.WsHandler
}
