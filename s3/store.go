// Package s3 implements stowgate.ObjectStore on Amazon S3 and S3-compatible
// services using aws-sdk-go-v2.
//
// Uploads go through the SDK's multipart upload manager with a fixed part
// size and concurrency; parts of a failed upload are aborted.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sagarc03/stowgate"
)

const (
	DefaultPartSize    = 5 * 1024 * 1024
	DefaultConcurrency = 4
)

// Config holds the connection settings for a single bucket.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// UsePathStyle addresses the bucket as a path segment, as most
	// S3-compatible services require.
	UsePathStyle bool
	PartSize     int64
	Concurrency  int
}

// Client is the subset of *s3.Client the store uses.
type Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *awss3.CopyObjectInput, optFns ...func(*awss3.Options)) (*awss3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Store implements stowgate.ObjectStore on one bucket.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
}

var _ stowgate.ObjectStore = (*Store)(nil)

// New builds an S3 client from cfg. Credentials fall back to the SDK's
// default chain when AccessKey is empty.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new s3 store: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new s3 store: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, cfg Config) *Store {
	partSize := cfg.PartSize
	if partSize < manager.MinUploadPartSize {
		partSize = DefaultPartSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = concurrency
		u.LeavePartsOnError = false
	})

	return &Store{client: client, uploader: uploader, bucket: cfg.Bucket}
}

func (s *Store) Get(ctx context.Context, key string) (stowgate.ObjectInfo, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return stowgate.ObjectInfo{}, nil, mapError("get object", err)
	}

	info := stowgate.ObjectInfo{
		Key:          key,
		ContentType:  aws.ToString(out.ContentType),
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         trimETag(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     stowgate.MetadataFromMap(out.Metadata),
	}
	return info, out.Body, nil
}

func (s *Store) Head(ctx context.Context, key string) (stowgate.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return stowgate.ObjectInfo{}, mapError("head object", err)
	}

	return stowgate.ObjectInfo{
		Key:          key,
		ContentType:  aws.ToString(out.ContentType),
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         trimETag(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     stowgate.MetadataFromMap(out.Metadata),
	}, nil
}

// Put streams body through the multipart uploader. The returned info
// carries no size or modification time.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, opts stowgate.PutOptions) (stowgate.ObjectInfo, error) {
	input := &awss3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     body,
		Metadata: opts.Metadata.Map(),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return stowgate.ObjectInfo{}, mapError("upload object", err)
	}

	return stowgate.ObjectInfo{
		Key:         key,
		ContentType: opts.ContentType,
		ETag:        trimETag(out.ETag),
		Metadata:    opts.Metadata,
	}, nil
}

// ReplaceMetadata copies the object onto itself with the REPLACE metadata
// directive. The current content type is carried over since a replacing copy
// would otherwise reset it.
func (s *Store) ReplaceMetadata(ctx context.Context, key string, meta stowgate.Metadata) error {
	head, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError("head object", err)
	}

	_, err = s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource(s.bucket, key)),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          meta.Map(),
		ContentType:       head.ContentType,
	})
	if err != nil {
		return mapError("copy object", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError("delete object", err)
	}
	return nil
}

// List pages with StartAfter; the cursor is the last key of the previous page.
func (s *Store) List(ctx context.Context, q stowgate.ListQuery) (stowgate.ListResult, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if q.Prefix != "" {
		input.Prefix = aws.String(q.Prefix)
	}
	if q.Cursor != "" {
		input.StartAfter = aws.String(q.Cursor)
	}
	if q.Limit > 0 {
		input.MaxKeys = aws.Int32(int32(q.Limit)) //nolint:gosec // limit is capped by the service
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return stowgate.ListResult{}, mapError("list objects", err)
	}

	result := stowgate.ListResult{Items: make([]stowgate.ObjectInfo, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		result.Items = append(result.Items, stowgate.ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         trimETag(obj.ETag),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}

	if aws.ToBool(out.IsTruncated) && len(result.Items) > 0 {
		result.NextCursor = result.Items[len(result.Items)-1].Key
	}

	return result, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return mapError("head bucket", err)
	}
	return nil
}

// mapError annotates err with the HTTP status and S3 error code, when the
// failure came from a response.
func mapError(op string, err error) error {
	be := &stowgate.BackendError{Op: op, Err: err}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		be.StatusCode = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		be.Code = apiErr.ErrorCode()
	}

	return be
}

func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}
