package handler

import (
	"SportHub/internal/pkg/response"
	"SportHub/internal/pkg/security"
	"SportHub/internal/realtime"
	"SportHub/internal/service"
	"context"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand 客户端控制指令：打开/关闭某个会话的实时订阅
type wsCommand struct {
	Op             string `json:"op"` // open / close
	ConversationID uint64 `json:"conversation_id"`
}

type WsHandler struct {
	imService     service.IMService
	notifyService service.NotifyService
	manager       *realtime.Manager
	source        realtime.EventSource
}

func NewWsHandler(im service.IMService, notify service.NotifyService, manager *realtime.Manager, source realtime.EventSource) *WsHandler {
	return &WsHandler{
		imService:     im,
		notifyService: notify,
		manager:       manager,
		source:        source,
	}
}

// Connect 实时网关入口
// 一条连接承载用户级角标订阅与按需打开的会话订阅，
// 所有事件汇入同一个写循环推给客户端
func (s *WsHandler) Connect(c *gin.Context) {
	// 鉴权
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := security.ValidateToken(token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	userID := claims.UserID

	// 升级 Websocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	// 用户级角标订阅随连接建立
	badge := realtime.NewBadgeFeed(userID, s.source, s.notifyService)
	badge.Start()
	defer badge.Stop()
	defer s.manager.CloseAll(userID)

	outgoing := make(chan *realtime.Event, 128)
	stopChan := make(chan struct{})

	forward := func(events <-chan *realtime.Event) {
		for ev := range events {
			select {
			case outgoing <- ev:
			case <-stopChan:
				return
			}
		}
	}
	go forward(badge.Events())

	// 读循环：处理控制指令，连接断开时触发清理
	go func() {
		defer close(stopChan)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd wsCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				log.Warn("WS 指令解析失败", "user_id", userID, "err", err)
				continue
			}
			switch cmd.Op {
			case "open":
				if err := s.imService.EnsureMember(context.Background(), userID, cmd.ConversationID); err != nil {
					log.Warn("WS 打开会话被拒绝", "user_id", userID, "conversation_id", cmd.ConversationID)
					continue
				}
				sub := s.manager.Open(userID, cmd.ConversationID)
				go forward(sub.Events())
			case "close":
				s.manager.Close(userID, cmd.ConversationID)
			}
		}
	}()

	log.Info("用户 WS 连接已建立", "user_id", userID)

	// 写循环：汇总事件推送至客户端
	for {
		select {
		case ev := <-outgoing:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("WS 推送失败", "user_id", userID, "err", err)
				return
			}
		case <-stopChan:
			log.Info("用户 WS 连接已断开", "user_id", userID)
			return
		}
	}
}
