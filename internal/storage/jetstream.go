package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamStore keeps assets in a NATS JetStream object store bucket.
type JetStreamStore struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	store  jetstream.ObjectStore
	bucket string
}

func NewJetStreamStore(url, bucket string) (*JetStreamStore, error) {
	conn, err := nats.Connect(url,
		nats.Name("digistore"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &JetStreamStore{conn: conn, js: js, bucket: bucket}, nil
}

// Init opens the bucket, creating it on first run.
func (s *JetStreamStore) Init(ctx context.Context) error {
	store, err := s.js.ObjectStore(ctx, s.bucket)
	if err == nil {
		s.store = store
		return nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return fmt.Errorf("open object store: %w", err)
	}
	store, err = s.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      s.bucket,
		Description: "digistore product assets",
	})
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}
	s.store = store
	return nil
}

func (s *JetStreamStore) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *JetStreamStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (*ObjectInfo, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	meta := jetstream.ObjectMeta{
		Name: name,
		Headers: nats.Header{
			"Content-Type": []string{contentTypeOr(contentType)},
		},
	}
	info, err := s.store.Put(ctx, meta, r)
	if err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}
	return toObjectInfo(info), nil
}

func (s *JetStreamStore) Open(ctx context.Context, name string) (*Object, error) {
	result, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, mapJetStreamErr(err)
	}
	info, err := result.Info()
	if err != nil {
		_ = result.Close()
		return nil, fmt.Errorf("object info: %w", err)
	}
	return &Object{ReadCloser: result, Info: *toObjectInfo(info)}, nil
}

func (s *JetStreamStore) Stat(ctx context.Context, name string) (*ObjectInfo, error) {
	info, err := s.store.GetInfo(ctx, name)
	if err != nil {
		return nil, mapJetStreamErr(err)
	}
	return toObjectInfo(info), nil
}

func (s *JetStreamStore) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return mapJetStreamErr(err)
	}
	return nil
}

func mapJetStreamErr(err error) error {
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return ErrNotFound
	}
	return err
}

func toObjectInfo(info *jetstream.ObjectInfo) *ObjectInfo {
	contentType := defaultContentType
	if info.Headers != nil {
		if ct := info.Headers.Get("Content-Type"); ct != "" {
			contentType = ct
		}
	}
	return &ObjectInfo{
		Name:        info.Name,
		Size:        int64(info.Size),
		ContentType: contentType,
		ModTime:     info.ModTime,
	}
}
