// Package minio implements stowgate.ObjectStore with the MinIO Go client.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/stowgate"
)

const (
	DefaultPartSize    = 5 * 1024 * 1024
	DefaultConcurrency = 4
)

type Config struct {
	// Endpoint is host[:port] without a scheme.
	Endpoint  string
	UseSSL    bool
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PartSize  int64
	// Concurrency is the number of parts uploaded in parallel.
	Concurrency int
}

// Store implements stowgate.ObjectStore on one bucket.
type Store struct {
	client      *miniogo.Client
	bucket      string
	partSize    uint64
	concurrency uint
}

var _ stowgate.ObjectStore = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new minio store: bucket is required")
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if endpoint == "" {
		return nil, errors.New("new minio store: endpoint is required")
	}

	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: miniogo.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("new minio store: create client: %w", err)
	}

	partSize := cfg.PartSize
	if partSize < DefaultPartSize {
		partSize = DefaultPartSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Store{
		client:      client,
		bucket:      cfg.Bucket,
		partSize:    uint64(partSize),  //nolint:gosec // bounded above
		concurrency: uint(concurrency), //nolint:gosec // positive
	}, nil
}

// Client exposes the underlying client, for bucket administration in tests
// and tooling.
func (s *Store) Client() *miniogo.Client {
	return s.client
}

func (s *Store) Get(ctx context.Context, key string) (stowgate.ObjectInfo, io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return stowgate.ObjectInfo{}, nil, mapError("get object", err)
	}

	// GetObject is lazy; Stat surfaces a missing key.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return stowgate.ObjectInfo{}, nil, mapError("get object", err)
	}

	return toObjectInfo(stat), obj, nil
}

func (s *Store) Head(ctx context.Context, key string) (stowgate.ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return stowgate.ObjectInfo{}, mapError("stat object", err)
	}
	return toObjectInfo(stat), nil
}

// Put streams body with unknown length, which the client uploads as a
// multipart upload of PartSize parts, aborting it on failure.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, opts stowgate.PutOptions) (stowgate.ObjectInfo, error) {
	upload, err := s.client.PutObject(ctx, s.bucket, key, body, -1, miniogo.PutObjectOptions{
		UserMetadata: opts.Metadata.Map(),
		ContentType:  opts.ContentType,
		PartSize:     s.partSize,
		NumThreads:   s.concurrency,
	})
	if err != nil {
		return stowgate.ObjectInfo{}, mapError("put object", err)
	}

	return stowgate.ObjectInfo{
		Key:          key,
		ContentType:  opts.ContentType,
		Size:         upload.Size,
		ETag:         upload.ETag,
		LastModified: upload.LastModified,
		Metadata:     opts.Metadata,
	}, nil
}

// ReplaceMetadata copies the object onto itself replacing its user metadata
// and keeping its content type.
func (s *Store) ReplaceMetadata(ctx context.Context, key string, meta stowgate.Metadata) error {
	stat, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return mapError("stat object", err)
	}

	userMeta := meta.Map()
	if stat.ContentType != "" {
		userMeta["Content-Type"] = stat.ContentType
	}

	_, err = s.client.CopyObject(ctx,
		miniogo.CopyDestOptions{
			Bucket:          s.bucket,
			Object:          key,
			UserMetadata:    userMeta,
			ReplaceMetadata: true,
		},
		miniogo.CopySrcOptions{
			Bucket: s.bucket,
			Object: key,
		},
	)
	if err != nil {
		return mapError("copy object", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError("remove object", err)
	}
	return nil
}

// List reads one page of at most q.Limit keys after q.Cursor.
func (s *Store) List(ctx context.Context, q stowgate.ListQuery) (stowgate.ListResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}

	objects := s.client.ListObjects(ctx, s.bucket, miniogo.ListObjectsOptions{
		Prefix:     q.Prefix,
		Recursive:  true,
		StartAfter: q.Cursor,
		MaxKeys:    limit + 1,
	})

	result := stowgate.ListResult{Items: make([]stowgate.ObjectInfo, 0, limit)}
	for obj := range objects {
		if obj.Err != nil {
			return stowgate.ListResult{}, mapError("list objects", obj.Err)
		}
		if len(result.Items) == limit {
			result.NextCursor = result.Items[len(result.Items)-1].Key
			break
		}
		result.Items = append(result.Items, toObjectInfo(obj))
	}

	return result, nil
}

func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return mapError("bucket exists", err)
	}
	if !exists {
		return &stowgate.BackendError{
			Op:         "bucket exists",
			StatusCode: http.StatusNotFound,
			Code:       "NoSuchBucket",
			Err:        fmt.Errorf("bucket %s does not exist", s.bucket),
		}
	}
	return nil
}

func toObjectInfo(info miniogo.ObjectInfo) stowgate.ObjectInfo {
	return stowgate.ObjectInfo{
		Key:          info.Key,
		ContentType:  info.ContentType,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		LastModified: info.LastModified,
		Metadata:     stowgate.MetadataFromMap(info.UserMetadata),
	}
}

// mapError annotates err with the status and code of the S3 error response
// it carries, if any.
func mapError(op string, err error) error {
	be := &stowgate.BackendError{Op: op, Err: err}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		be.StatusCode = resp.StatusCode
		be.Code = resp.Code
	}

	return be
}
