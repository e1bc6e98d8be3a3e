package util

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// GetSafeContentType 以文件头嗅探结果为准，不信任客户端声明的 Content-Type
func GetSafeContentType(file multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}

	contentType := http.DetectContentType(buf[:n])

	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return contentType, nil
}

// RelativeTime 将时间转为会话列表展示用的相对描述
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "刚刚"
	case d < time.Hour:
		return fmt.Sprintf("%d分钟前", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d小时前", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%d天前", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
