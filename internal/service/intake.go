package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/leafsense/leafsense_server/config"
)

var (
	ErrNoImages      = errors.New("请至少上传一张叶片图片")
	ErrTooManyImages = errors.New("图片数量超过上限")
	ErrNoValidImages = errors.New("没有可用的图片，请检查格式与大小")
	ErrEmptyCropType = errors.New("作物类型不能为空")
)

// UploadedImage 一张待校验的上传图片
type UploadedImage struct {
	Name string
	Data []byte
}

// RejectedImage 被拒绝的图片及原因
type RejectedImage struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IntakeResult 校验结果：通过的图片与被拒图片清单
type IntakeResult struct {
	Accepted []*UploadedImage
	Rejected []*RejectedImage
}

// IntakeValidator 对上传图片做准入校验：扩展名、大小、可解码性
type IntakeValidator struct {
	cfg *config.UploadConfig
}

func NewIntakeValidator(cfg *config.UploadConfig) *IntakeValidator {
	return &IntakeValidator{cfg: cfg}
}

// Validate 逐张校验。单张不合格只记录原因不中断；全部不合格才报错。
func (v *IntakeValidator) Validate(images []*UploadedImage) (*IntakeResult, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if len(images) > v.cfg.MaxImageCount {
		return nil, fmt.Errorf("%w（最多 %d 张）", ErrTooManyImages, v.cfg.MaxImageCount)
	}

	result := &IntakeResult{}
	for _, img := range images {
		if reason := v.check(img); reason != "" {
			result.Rejected = append(result.Rejected, &RejectedImage{Name: img.Name, Reason: reason})
			continue
		}
		result.Accepted = append(result.Accepted, img)
	}

	if len(result.Accepted) == 0 {
		return nil, ErrNoValidImages
	}

	return result, nil
}

func (v *IntakeValidator) check(img *UploadedImage) string {
	ext := strings.ToLower(filepath.Ext(img.Name))
	if !v.allowedExt(ext) {
		return fmt.Sprintf("不支持的图片格式: %s", ext)
	}

	if int64(len(img.Data)) > v.cfg.MaxImageSize {
		return fmt.Sprintf("图片超过 %dMB 限制", v.cfg.MaxImageSize>>20)
	}
	if len(img.Data) == 0 {
		return "图片内容为空"
	}

	// 只解码头部信息确认是合法图片，不做完整解码
	if _, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err != nil {
		return "图片内容损坏或不是有效图片"
	}

	return ""
}

func (v *IntakeValidator) allowedExt(ext string) bool {
	for _, allowed := range v.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
