// Package media presigns product-image object keys into time-limited URLs
// for cached catalog snapshots. The bucket holds images uploaded by the
// catalog API, which is outside this service; only read access lives here.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const presignedURLTTL = 15 * time.Minute

// Presigner turns stored object keys into fetchable URLs. A nil Presigner
// is valid and means snapshots carry no image URLs.
type Presigner interface {
	PresignAll(ctx context.Context, objectKeys []string) []string
}

type MinIOPresigner struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

func NewMinIOPresigner(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *slog.Logger) (*MinIOPresigner, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOPresigner{client: client, bucket: bucket, logger: logger}, nil
}

// PresignAll presigns every key it can and drops the rest; a snapshot with
// a missing image beats a failed catalog read.
func (p *MinIOPresigner) PresignAll(ctx context.Context, objectKeys []string) []string {
	urls := make([]string, 0, len(objectKeys))
	for _, key := range objectKeys {
		if key == "" {
			continue
		}
		u, err := p.client.PresignedGetObject(ctx, p.bucket, key, presignedURLTTL, url.Values{})
		if err != nil {
			p.logger.WarnContext(ctx, "presign image failed", "object_key", key, "error", err)
			continue
		}
		urls = append(urls, u.String())
	}
	return urls
}
