package handler

import (
	"SportHub/internal/api/dto"
	"SportHub/internal/pkg/consts"
	"SportHub/internal/pkg/minio"
	"SportHub/internal/pkg/response"
	"SportHub/internal/pkg/util"
	"SportHub/internal/service"
	"io"
	log "log/slog"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MediaHandler struct{}

func NewMediaHandler() *MediaHandler {
	return &MediaHandler{}
}

// Upload 上传消息附件/头像，图片额外生成缩略图
func (s *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	reader, err := file.Open()
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	defer func() { _ = reader.Close() }()

	contentType, err := util.GetSafeContentType(reader)
	if err != nil {
		response.Error(c, service.UnExpectedError)
		return
	}

	isImage := strings.HasPrefix(contentType, consts.MimePrefixImage)
	isVideo := strings.HasPrefix(contentType, consts.MimePrefixVideo)
	isAudio := strings.HasPrefix(contentType, consts.MimePrefixAudio)
	if !isImage && !isVideo && !isAudio {
		response.Error(c, service.ErrFileNotSupported)
		return
	}

	prefix := time.Now().Format("2006/01/02/") + uuid.NewString()

	// 图片先出缩略图，失败不阻断原图上传
	var coverURL string
	if isImage {
		thumb, err := util.MakeImageThumbnail(reader)
		if err != nil {
			log.WarnContext(c.Request.Context(), "缩略图生成失败", "file", file.Filename, "err", err)
		} else {
			coverName := prefix + "_cover.jpg"
			if _, err = minio.UploadFile(c.Request.Context(), coverName, thumb, int64(thumb.Len()), "image/jpeg"); err != nil {
				log.WarnContext(c.Request.Context(), "缩略图上传失败", "object", coverName, "err", err)
			} else {
				coverURL = minio.GetPublicURL(coverName)
			}
		}
		if _, err = reader.Seek(0, io.SeekStart); err != nil {
			response.Error(c, service.UnExpectedError)
			return
		}
	}

	objectName := prefix + path.Ext(file.Filename)
	fileKey, err := minio.UploadFile(c.Request.Context(), objectName, reader, file.Size, contentType)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "MinIO 上传失败", "object", objectName, "err", err)
		response.Error(c, service.UnExpectedError)
		return
	}

	response.Success(c, &dto.MediaUploadDTO{
		URL:      minio.GetPublicURL(fileKey),
		CoverURL: coverURL,
		MimeType: contentType,
	})
}
