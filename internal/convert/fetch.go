package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectLocatorScheme = "s3://"

// IsObjectLocator reports whether the archive location points into object
// storage instead of the shared volume.
func IsObjectLocator(location string) bool {
	return strings.HasPrefix(location, objectLocatorScheme)
}

// Fetcher downloads a source archive addressed by an s3://bucket/key
// locator to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, locator string, dst string) error
}

// ObjectFetcher fetches source archives from S3-compatible object storage.
type ObjectFetcher struct {
	client *minio.Client
}

func NewObjectFetcher(endpoint string, accessKey string, secretKey string, useSSL bool) (*ObjectFetcher, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &ObjectFetcher{client: client}, nil
}

func (f *ObjectFetcher) Fetch(ctx context.Context, locator string, dst string) error {
	bucket, key, err := splitObjectLocator(locator)
	if err != nil {
		return err
	}
	return f.client.FGetObject(ctx, bucket, key, dst, minio.GetObjectOptions{})
}

func splitObjectLocator(locator string) (string, string, error) {
	trimmed := strings.TrimPrefix(locator, objectLocatorScheme)
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object locator %q: expected s3://bucket/key", locator)
	}
	return bucket, key, nil
}
