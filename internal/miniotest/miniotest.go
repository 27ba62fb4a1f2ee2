// Package miniotest starts a MinIO container shared by the integration tests
// of the object store backends.
package miniotest

import (
	"context"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

const (
	Image     = "minio/minio:RELEASE.2024-01-16T16-07-38Z"
	AccessKey = "minioadmin"
	SecretKey = "minioadmin"
)

var (
	once     sync.Once
	endpoint string
	startErr error
)

// Endpoint returns host:port of a MinIO server reused across the tests of the
// calling package. Tests are skipped in -short mode.
func Endpoint(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping minio integration test in short mode")
	}

	once.Do(func() {
		ctx := context.Background()

		container, err := tcminio.Run(ctx, Image,
			tcminio.WithUsername(AccessKey),
			tcminio.WithPassword(SecretKey),
		)
		if err != nil {
			startErr = err
			return
		}

		endpoint, startErr = container.ConnectionString(ctx)
		if startErr != nil {
			_ = testcontainers.TerminateContainer(container)
		}
	})

	if startErr != nil {
		t.Fatalf("failed to start minio container: %v", startErr)
	}

	return endpoint
}
