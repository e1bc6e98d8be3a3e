package push

import (
	"SportHub/internal/api/config"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sender 对接离线推送网关，用户不在线时兜底通知
type Sender interface {
	SendPush(ctx context.Context, userID uint64, title, message, url string) error
}

type senderImpl struct {
	httpClient *resty.Client
}

func NewSender() Sender {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetBaseURL(config.Cfg.Push.URL).
		SetHeader("X-API-Key", config.Cfg.Push.APIKey)

	return &senderImpl{httpClient: client}
}

type pushPayload struct {
	UserID  uint64 `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

func (s *senderImpl) SendPush(ctx context.Context, userID uint64, title, message, url string) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(&pushPayload{
			UserID:  userID,
			Title:   title,
			Message: message,
			URL:     url,
		}).
		Post("/api/v1/push")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode())
	}
	return nil
}
