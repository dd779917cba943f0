package service

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsense/leafsense_server/config"
)

func uploadCfg() *config.UploadConfig {
	return &config.UploadConfig{
		MaxImageSize:      12 << 20,
		MaxImageCount:     5,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif"},
	}
}

// pngImage 生成一张合法的 PNG 图片
func pngImage(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIntakeValidator_Accepts(t *testing.T) {
	v := NewIntakeValidator(uploadCfg())

	result, err := v.Validate([]*UploadedImage{
		{Name: "leaf1.png", Data: pngImage(t)},
		{Name: "leaf2.png", Data: pngImage(t)},
	})
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 2)
	assert.Empty(t, result.Rejected)
}

func TestIntakeValidator_NoImages(t *testing.T) {
	v := NewIntakeValidator(uploadCfg())

	_, err := v.Validate(nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestIntakeValidator_TooMany(t *testing.T) {
	v := NewIntakeValidator(uploadCfg())

	images := make([]*UploadedImage, 6)
	for i := range images {
		images[i] = &UploadedImage{Name: "leaf.png", Data: pngImage(t)}
	}

	_, err := v.Validate(images)
	assert.ErrorIs(t, err, ErrTooManyImages)
}

func TestIntakeValidator_RejectsBadExtension(t *testing.T) {
	v := NewIntakeValidator(uploadCfg())

	result, err := v.Validate([]*UploadedImage{
		{Name: "leaf.png", Data: pngImage(t)},
		{Name: "notes.pdf", Data: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "notes.pdf", result.Rejected[0].Name)
	assert.Contains(t, result.Rejected[0].Reason, "格式")
}

func TestIntakeValidator_RejectsOversized(t *testing.T) {
	small := pngImage(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 256, 256))))
	big := buf.Bytes()

	cfg := uploadCfg()
	cfg.MaxImageSize = int64(len(small))
	v := NewIntakeValidator(cfg)

	result, err := v.Validate([]*UploadedImage{
		{Name: "small.png", Data: small},
		{Name: "big.png", Data: big},
	})
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "big.png", result.Rejected[0].Name)
	assert.Contains(t, result.Rejected[0].Reason, "限制")
}

func TestIntakeValidator_RejectsCorrupted(t *testing.T) {
	v := NewIntakeValidator(uploadCfg())

	result, err := v.Validate([]*UploadedImage{
		{Name: "leaf.png", Data: pngImage(t)},
		{Name: "broken.png", Data: []byte("this is not a png")},
	})
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "broken.png", result.Rejected[0].Name)
}

func TestIntakeValidator_AllInvalid(t *testing.T) {
	v := NewIntakeValidator(uploadCfg())

	_, err := v.Validate([]*UploadedImage{
		{Name: "a.txt", Data: []byte("hello")},
		{Name: "b.png", Data: []byte("not a png")},
	})
	assert.ErrorIs(t, err, ErrNoValidImages)
}

func TestIntakeValidator_EmptyData(t *testing.T) {
	v := NewIntakeValidator(uploadCfg())

	_, err := v.Validate([]*UploadedImage{
		{Name: "empty.png", Data: nil},
	})
	assert.ErrorIs(t, err, ErrNoValidImages)
}
