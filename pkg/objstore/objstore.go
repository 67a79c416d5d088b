package objstore

import (
	"context"
	"io"
	"os"
	"time"
)

// Store is the object storage backing uploaded media files.
type Store interface {
	// Put stores body under key, overwriting any existing object.
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL for key.
	PresignGet(key string, expiry time.Duration) (string, error)
}

type Config struct {
	Bucket   string
	Region   string
	// Endpoint overrides the S3 endpoint for S3-compatible stores (forces
	// path-style addressing).
	Endpoint string
}

// ConfigFromEnv reads object store config from environment variables.
// Credentials resolve through the SDK's default chain (env, shared config,
// instance role).
func ConfigFromEnv() Config {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return Config{
		Bucket:   os.Getenv("S3_BUCKET"),
		Region:   region,
		Endpoint: os.Getenv("S3_ENDPOINT"),
	}
}
