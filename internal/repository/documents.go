package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// DocumentStore retains source documents under a key derived from the
// invoice number.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// OpenDocumentStore returns nil when retention is disabled.
func OpenDocumentStore(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (DocumentStore, error) {
	switch cfg.Backend {
	case common.DocumentsNone, "":
		return nil, nil
	case common.DocumentsFS:
		return NewFSDocumentStore(cfg.Dir, logger)
	case common.DocumentsS3:
		return NewS3DocumentStore(ctx, cfg, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown document store %q", cfg.Backend), common.ErrInvalidInput)
	}
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return common.NewAppError("INVALID_KEY", fmt.Sprintf("document key %q", key), common.ErrInvalidInput)
	}
	return nil
}

// FSDocumentStore writes documents as files in one directory.
type FSDocumentStore struct {
	dir    string
	logger *slog.Logger
}

func NewFSDocumentStore(dir string, logger *slog.Logger) (*FSDocumentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.NewAppError("STORAGE_ERROR", "create document dir", errors.Join(common.ErrStorage, err))
	}
	return &FSDocumentStore{dir: dir, logger: logger}, nil
}

func (s *FSDocumentStore) Put(_ context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+".*")
	if err != nil {
		return errors.Join(common.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Join(common.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(common.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return errors.Join(common.ErrStorage, err)
	}
	s.logger.Debug("document stored", "key", key, "bytes", len(data))
	return nil
}

func (s *FSDocumentStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound("document", key)
	}
	if err != nil {
		return nil, errors.Join(common.ErrStorage, err)
	}
	return data, nil
}

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3DocumentStore keeps documents as objects under an optional prefix.
type S3DocumentStore struct {
	client s3API
	bucket string
	prefix string
	logger *slog.Logger
}

func NewS3DocumentStore(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (*S3DocumentStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "load aws config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3DocumentStore(client, cfg.S3Bucket, cfg.S3Prefix, logger), nil
}

func newS3DocumentStore(client s3API, bucket, prefix string, logger *slog.Logger) *S3DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3DocumentStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}
}

func (s *S3DocumentStore) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *S3DocumentStore) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		s.logger.Error("s3 put failed", "bucket", s.bucket, "key", key, "error", err)
		return errors.Join(common.ErrStorage, err)
	}
	return nil
}

func (s *S3DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, notFound("document", key)
		}
		return nil, errors.Join(common.ErrStorage, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Join(common.ErrStorage, err)
	}
	return data, nil
}

func contentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
