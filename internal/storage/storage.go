package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/zekeo/sjfnw/internal/config"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// Storage 申请附件存储
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New 按配置创建存储后端
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch strings.ToLower(cfg.Driver) {
	case "s3":
		return NewS3Storage(ctx, cfg.Bucket, cfg.Region)
	case "local", "":
		return NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// NewKey 生成唯一存储 key：prefix/uuid/文件名
func NewKey(prefix, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return path.Join(prefix, uuid.New().String(), name)
}

// FileName 从 key 取出原始文件名
func FileName(key string) string {
	if key == "" {
		return ""
	}
	return path.Base(key)
}

// AllowedType 按扩展名判断是否允许上传
func AllowedType(filename string, allowed []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
