package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore 本地磁盘制品存储
// 键即相对路径,文件写入配置的根目录下
type LocalStore struct {
	dir string
}

// NewLocalStore 创建本地磁盘存储
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// resolve 将制品引用转换为磁盘路径,拒绝越出根目录的引用
func (s *LocalStore) resolve(ref string) (string, error) {
	cleaned := filepath.Clean(ref)
	if cleaned == "" || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid artifact reference: %s", ref)
	}
	return filepath.Join(s.dir, cleaned), nil
}

// Put 写入制品
func (s *LocalStore) Put(ctx context.Context, key string, artifact *Artifact) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, artifact.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", key, err)
	}
	return key, nil
}

// Get 读取制品
func (s *LocalStore) Get(ctx context.Context, ref string) (*Artifact, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", ref, err)
	}
	return &Artifact{
		Data:        data,
		ContentType: http.DetectContentType(data),
	}, nil
}

// Delete 删除制品
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", ref, err)
	}
	return nil
}
