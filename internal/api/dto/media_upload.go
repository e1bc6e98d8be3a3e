package dto

// MediaUploadDTO 上传结果
type MediaUploadDTO struct {
	URL      string `json:"url"`
	CoverURL string `json:"cover_url,omitempty"` // 图片缩略图
	MimeType string `json:"mime_type"`
}
