package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif" // 支援 GIF
	_ "image/png" // 支援 PNG

	"chef-session/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 支援 WebP
)

// Processor 圖片處理器：解碼、縮圖並重新編碼為 JPEG
type Processor struct {
	maxSizeBytes int64
	maxDimension int
	quality      int
}

// NewProcessor 創建圖片處理器
func NewProcessor(maxSizeBytes int64, maxDimension, quality int) *Processor {
	if maxDimension <= 0 {
		maxDimension = 1024
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Processor{
		maxSizeBytes: maxSizeBytes,
		maxDimension: maxDimension,
		quality:      quality,
	}
}

// Process 處理上傳的圖片，mediaType 必須為 image/*
func (p *Processor) Process(data []byte, mediaType string) (*common.ImageInput, error) {
	if len(data) == 0 {
		return nil, common.ErrInvalidRequest.WithMessage("image is empty")
	}
	if mediaType != "" && !strings.HasPrefix(mediaType, "image/") {
		return nil, common.ErrInvalidRequest.WithMessage("uploaded file must be an image")
	}
	if p.maxSizeBytes > 0 && int64(len(data)) > p.maxSizeBytes {
		return nil, common.ErrRequestTooLarge.WithMessage(
			fmt.Sprintf("image size exceeds maximum limit of %d bytes", p.maxSizeBytes))
	}

	// 解碼圖片
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.ErrInvalidRequest.WithMessage("failed to decode image").Wrap(err)
	}

	// 檢查圖片格式
	if !isSupportedFormat(format) {
		return nil, common.ErrInvalidRequest.WithMessage(fmt.Sprintf("unsupported image format: %s", format))
	}

	resized := p.thumbnail(img)

	// 將圖片轉換為 JPEG 格式
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image as JPEG: %w", err)
	}

	common.LogDebug("圖片已處理",
		zap.String("format", format),
		zap.Int("original_bytes", len(data)),
		zap.Int("processed_bytes", buf.Len()),
		zap.Int("width", resized.Bounds().Dx()),
		zap.Int("height", resized.Bounds().Dy()),
	)

	return &common.ImageInput{Data: buf.Bytes(), MediaType: "image/jpeg"}, nil
}

// ProcessDataURI 處理 data:image/...;base64, 格式的圖片
func (p *Processor) ProcessDataURI(uri string) (*common.ImageInput, error) {
	if !strings.HasPrefix(uri, "data:image/") {
		return nil, common.ErrInvalidRequest.WithMessage("invalid image data format")
	}

	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, common.ErrInvalidRequest.WithMessage("invalid base64 data format")
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, common.ErrInvalidRequest.WithMessage("failed to decode base64 data").Wrap(err)
	}

	mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return p.Process(decoded, mediaType)
}

// thumbnail 等比例縮小到 maxDimension 以內，不放大
func (p *Processor) thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.maxDimension && h <= p.maxDimension {
		return img
	}

	nw, nh := p.maxDimension, p.maxDimension
	if w >= h {
		nh = max(1, h*p.maxDimension/w)
	} else {
		nw = max(1, w*p.maxDimension/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	supportedFormats := map[string]bool{
		"jpeg": true,
		"png":  true,
		"gif":  true,
		"webp": true,
	}
	return supportedFormats[format]
}
