// Package archive keeps rendered weekly reports as markdown objects in MinIO.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ledger-bot/internal/logger"
)

type Archiver interface {
	PutReport(ctx context.Context, weekStart, markdown string) error
}

type Nop struct{}

func (Nop) PutReport(context.Context, string, string) error { return nil }

// ObjectName is the key a report is stored under.
func ObjectName(weekStart string) string {
	return "reports/" + weekStart + ".md"
}

type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects and creates the bucket when it does not exist yet.
func NewMinIO(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIO, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		logger.Infof("🪣 Bucket %s does not exist, creating", bucket)
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinIO{client: client, bucket: bucket}, nil
}

func (m *MinIO) PutReport(ctx context.Context, weekStart, markdown string) error {
	name := ObjectName(weekStart)
	_, err := m.client.PutObject(ctx, m.bucket, name, strings.NewReader(markdown), int64(len(markdown)),
		minio.PutObjectOptions{ContentType: "text/markdown; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	logger.Infow("weekly report archived", "bucket", m.bucket, "object", name)
	return nil
}
