package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/leafsense/leafsense_server/internal/pkg/oss"
)

// ImageStore 图片落盘接口，生产实现为 OSS，未配置 OSS 时退回本地目录
type ImageStore interface {
	Save(analysisID int64, name string, data []byte) (url string, err error)
	Delete(url string) error
}

// OSSImageStore 把图片上传到对象存储
type OSSImageStore struct {
	client *oss.Client
}

func NewOSSImageStore(client *oss.Client) *OSSImageStore {
	return &OSSImageStore{client: client}
}

func (s *OSSImageStore) Save(analysisID int64, name string, data []byte) (string, error) {
	return s.client.UploadLeafImage(analysisID, name, data)
}

func (s *OSSImageStore) Delete(url string) error {
	if url == "" {
		return nil
	}
	return s.client.Delete(s.client.ExtractObjectKey(url))
}

// LocalImageStore 把图片写到本地目录，供开发环境与单机部署使用
type LocalImageStore struct {
	baseDir string
}

func NewLocalImageStore(baseDir string) *LocalImageStore {
	if baseDir == "" {
		baseDir = "uploads"
	}
	return &LocalImageStore{baseDir: baseDir}
}

func (s *LocalImageStore) Save(analysisID int64, name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	dir := filepath.Join(s.baseDir, "leaf_images", fmt.Sprintf("%d", analysisID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return "/" + filepath.ToSlash(path), nil
}

// Delete 按 Save 返回的 URL 删除本地文件。空 URL（存图失败的记录）
// 与文件已不存在都视为成功。
func (s *LocalImageStore) Delete(url string) error {
	if url == "" {
		return nil
	}
	path := filepath.FromSlash(strings.TrimPrefix(url, "/"))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
