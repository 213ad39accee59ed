package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

const defaultContentType = "application/octet-stream"

var (
	ErrNotFound    = errors.New("object_not_found")
	ErrInvalidName = errors.New("invalid_object_name")
)

type ObjectInfo struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Object is an open stored asset. The caller closes it.
type Object struct {
	io.ReadCloser
	Info ObjectInfo
}

// Store holds product assets and preview images, addressed by file id.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (*ObjectInfo, error)
	Open(ctx context.Context, name string) (*Object, error)
	Stat(ctx context.Context, name string) (*ObjectInfo, error)
	Delete(ctx context.Context, name string) error
}

// CleanName rejects names that could escape the bucket namespace.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", ErrInvalidName
	}
	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", ErrInvalidName
	}
	return cleaned, nil
}

func contentTypeOr(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return defaultContentType
	}
	return ct
}
