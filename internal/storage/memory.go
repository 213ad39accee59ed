package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// MemoryStore keeps objects in process. It backs tests and local runs
// without NATS.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: map[string]memoryObject{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (*ObjectInfo, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	info := ObjectInfo{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentTypeOr(contentType),
		ModTime:     s.now(),
	}
	s.mu.Lock()
	s.objects[name] = memoryObject{data: data, info: info}
	s.mu.Unlock()
	return &info, nil
}

func (s *MemoryStore) Open(ctx context.Context, name string) (*Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		ReadCloser: io.NopCloser(bytes.NewReader(obj.data)),
		Info:       obj.info,
	}, nil
}

func (s *MemoryStore) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	s.mu.RLock()
	obj, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	info := obj.info
	return &info, nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		return ErrNotFound
	}
	delete(s.objects, name)
	return nil
}
