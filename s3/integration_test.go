package s3_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/internal/miniotest"
	"github.com/sagarc03/stowgate/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationStore(t *testing.T, bucket string) *s3.Store {
	t.Helper()
	ctx := context.Background()

	cfg := s3.Config{
		Bucket:       bucket,
		Region:       "us-east-1",
		Endpoint:     "http://" + miniotest.Endpoint(t),
		AccessKey:    miniotest.AccessKey,
		SecretKey:    miniotest.SecretKey,
		UsePathStyle: true,
	}

	client := awss3.New(awss3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})
	_, err := client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	store, err := s3.New(ctx, cfg)
	require.NoError(t, err)
	return store
}

func TestIntegration_ObjectLifecycle(t *testing.T) {
	store := newIntegrationStore(t, "lifecycle")
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	// larger than one part to exercise the multipart path
	big := bytes.Repeat([]byte("0123456789abcdef"), (6*1024*1024)/16)
	_, err := store.Put(ctx, "big/blob.bin", bytes.NewReader(big), stowgate.PutOptions{
		Metadata:    stowgate.Metadata{Visibility: stowgate.VisibilityPublic},
		ContentType: stowgate.ContentTypeOctetStream,
	})
	require.NoError(t, err)

	info, body, err := store.Get(ctx, "big/blob.bin")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	_ = body.Close()
	require.NoError(t, err)
	assert.Equal(t, int64(len(big)), info.Size)
	assert.True(t, bytes.Equal(big, data))
	assert.True(t, info.Metadata.IsPublic())

	_, err = store.Put(ctx, "notes/a b.txt", strings.NewReader("hello"), stowgate.PutOptions{
		Metadata:    stowgate.Metadata{Visibility: stowgate.VisibilityPublic, Type: stowgate.ObjectTypeText},
		ContentType: stowgate.ContentTypeOctetStream,
	})
	require.NoError(t, err)

	require.NoError(t, store.ReplaceMetadata(ctx, "notes/a b.txt", stowgate.Metadata{Visibility: stowgate.VisibilityPrivate}))

	head, err := store.Head(ctx, "notes/a b.txt")
	require.NoError(t, err)
	assert.Equal(t, stowgate.VisibilityPrivate, head.Metadata.Visibility)
	assert.Empty(t, head.Metadata.Type)
	assert.Equal(t, stowgate.ContentTypeOctetStream, head.ContentType)

	list, err := store.List(ctx, stowgate.ListQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "big/blob.bin", list.Items[0].Key)
	assert.Equal(t, "big/blob.bin", list.NextCursor)

	require.NoError(t, store.Delete(ctx, "notes/a b.txt"))
	_, err = store.Head(ctx, "notes/a b.txt")
	assert.ErrorIs(t, err, stowgate.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "notes/a b.txt"), "deleting a missing key succeeds on S3")
}
