package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mautops/procurement-gin/internal/utils"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

// BlobStore 附件存储接口, 文件按 collection/recordID/filename 寻址
type BlobStore interface {
	// Put 保存文件, 返回实际保存的文件名
	Put(ctx context.Context, collection, recordID, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, collection, recordID, filename string) (io.ReadCloser, error)
	// Copy 复制文件到另一条记录下, 返回新文件名
	Copy(ctx context.Context, src Ref, dstCollection, dstRecordID string) (string, error)
	Delete(ctx context.Context, collection, recordID, filename string) error
	URL(collection, recordID, filename string) string
}

// Ref 文件引用
type Ref struct {
	Collection string
	RecordID   string
	Filename   string
}

// LocalStore 本地磁盘存储
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore 创建本地存储
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// path 计算文件路径并拒绝越界的路径
func (s *LocalStore) path(collection, recordID, filename string) (string, error) {
	for _, part := range []string{collection, recordID} {
		if err := utils.ValidateID(part); err != nil {
			return "", fmt.Errorf("invalid path segment %q: %w", part, err)
		}
	}
	if filename != "" {
		if err := utils.ValidateFilename(filename); err != nil {
			return "", err
		}
	}
	return filepath.Join(s.root, collection, recordID, filename), nil
}

// storedName 在扩展名前加随机后缀, 避免同名覆盖
func storedName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, stem)
	if stem == "" || stem == "." {
		stem = "file"
	}
	return fmt.Sprintf("%s_%s%s", stem, uuid.New().String()[:8], ext)
}

// Put 保存文件
func (s *LocalStore) Put(ctx context.Context, collection, recordID, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := storedName(filename)
	p, err := s.path(collection, recordID, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(p)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return name, nil
}

// Open 打开文件
func (s *LocalStore) Open(ctx context.Context, collection, recordID, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(collection, recordID, filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Copy 复制文件
func (s *LocalStore) Copy(ctx context.Context, src Ref, dstCollection, dstRecordID string) (string, error) {
	rc, err := s.Open(ctx, src.Collection, src.RecordID, src.Filename)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return s.Put(ctx, dstCollection, dstRecordID, originalName(src.Filename), rc)
}

// Delete 删除文件, 文件不存在时返回 ErrNotFound
func (s *LocalStore) Delete(ctx context.Context, collection, recordID, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(collection, recordID, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL 文件下载地址
func (s *LocalStore) URL(collection, recordID, filename string) string {
	return fmt.Sprintf("%s/api/files/%s/%s/%s", s.baseURL, collection, recordID, filename)
}

// originalName 去掉 storedName 添加的随机后缀
func originalName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if i := strings.LastIndex(stem, "_"); i > 0 && len(stem)-i-1 == 8 {
		stem = stem[:i]
	}
	return stem + ext
}
