package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/harunnryd/kirana/pkg/errorsx"
)

// Document is one raw course file from a source.
type Document struct {
	Name    string
	Content string
}

// Source yields course documents for ingestion.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Document, error)
}

// LocalSource reads .txt course files from a directory.
type LocalSource struct {
	Dir string
}

func (s LocalSource) Name() string { return "local:" + s.Dir }

func (s LocalSource) Load(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("read docs directory %s: %w", s.Dir, err), errorsx.ReasonIngestSource)
	}
	var docs []Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("read document %s: %w", entry.Name(), err), errorsx.ReasonIngestSource)
		}
		docs = append(docs, Document{Name: entry.Name(), Content: string(data)})
	}
	return docs, nil
}

// S3Config connects an S3Source to a bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Source reads .txt course files from an S3 bucket prefix.
type S3Source struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

func NewS3Source(cfg S3Config) (*S3Source, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("connect to s3 %s: %w", cfg.Endpoint, err), errorsx.ReasonIngestSource)
	}
	return &S3Source{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}

func (s *S3Source) Name() string { return "s3:" + s.Bucket + "/" + s.Prefix }

func (s *S3Source) Load(ctx context.Context) ([]Document, error) {
	opts := minio.ListObjectsOptions{Prefix: s.Prefix, Recursive: true}
	var docs []Document
	for obj := range s.Client.ListObjects(ctx, s.Bucket, opts) {
		if obj.Err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("list bucket %s: %w", s.Bucket, obj.Err), errorsx.ReasonIngestSource)
		}
		if !strings.HasSuffix(obj.Key, ".txt") {
			continue
		}
		reader, err := s.Client.GetObject(ctx, s.Bucket, obj.Key, minio.GetObjectOptions{})
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("fetch object %s: %w", obj.Key, err), errorsx.ReasonIngestSource)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("read object %s: %w", obj.Key, err), errorsx.ReasonIngestSource)
		}
		docs = append(docs, Document{Name: path.Base(obj.Key), Content: string(data)})
	}
	return docs, nil
}
