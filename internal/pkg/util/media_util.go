package util

import (
	"bytes"
	"io"

	"github.com/disintegration/imaging"
)

const thumbnailMaxEdge = 400

// MakeImageThumbnail 生成图片缩略图，返回 JPEG 字节流
func MakeImageThumbnail(reader io.Reader) (*bytes.Buffer, error) {
	img, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, thumbnailMaxEdge, thumbnailMaxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return &buf, nil
}
