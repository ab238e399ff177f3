package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joshp123/gohome-tech/internal/config"
)

// Store persists session state per provider.
type Store interface {
	Load(ctx context.Context, provider string) (State, error)
	Save(ctx context.Context, provider string, state State) error
}

// S3Store mirrors session state to an S3-compatible bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Store(cfg *config.BlobConfig) (*S3Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing blob config")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	accessKeyFile := strings.TrimSpace(cfg.AccessKeyFile)
	secretKeyFile := strings.TrimSpace(cfg.SecretKeyFile)

	if endpoint == "" || bucket == "" || accessKeyFile == "" || secretKeyFile == "" {
		return nil, fmt.Errorf("missing blob configuration")
	}

	accessKey, err := config.ReadSecretFile(accessKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read blob access key: %w", err)
	}
	secretKey, err := config.ReadSecretFile(secretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read blob secret key: %w", err)
	}

	host, secure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = config.DefaultBlobPrefix
	}

	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Store) Load(ctx context.Context, provider string) (State, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(provider), minio.GetObjectOptions{})
	if err != nil {
		return State{}, s.wrapError(err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return State{}, s.wrapError(err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return State{}, fmt.Errorf("read blob: %w", err)
	}
	return DecodeState(data)
}

func (s *S3Store) Save(ctx context.Context, provider string, state State) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}
	reader := bytes.NewReader(data)
	_, err = s.client.PutObject(ctx, s.bucket, s.key(provider), reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		remotePersistOK.WithLabelValues(provider).Set(0)
		return s.wrapError(err)
	}
	remotePersistOK.WithLabelValues(provider).Set(1)
	return nil
}

func (s *S3Store) key(provider string) string {
	return path.Join(s.prefix, provider+".json")
}

func (s *S3Store) wrapError(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrStateNotFound
	}
	return err
}

// MirrorStore reads from the first store that has state and writes to all of them.
type MirrorStore []Store

func (m MirrorStore) Load(ctx context.Context, provider string) (State, error) {
	for _, store := range m {
		state, err := store.Load(ctx, provider)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, ErrStateNotFound) {
			return State{}, err
		}
	}
	return State{}, ErrStateNotFound
}

func (m MirrorStore) Save(ctx context.Context, provider string, state State) error {
	for _, store := range m {
		if err := store.Save(ctx, provider, state); err != nil {
			return err
		}
	}
	return nil
}

func parseEndpoint(raw string) (string, bool, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint: %q", raw)
		}
		return u.Host, u.Scheme == "https", nil
	}
	return raw, true, nil
}
