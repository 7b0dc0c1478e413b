package snapshot

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// RemoteConfig configures an S3-compatible bucket for snapshots.
type RemoteConfig struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// ObjectClient is the subset of the MinIO client used for snapshots.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucket, object, filePath string, opts minio.GetObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// Remote uploads and downloads snapshot archives.
type Remote struct {
	client ObjectClient
	bucket string
	prefix string
	region string
	logger *zap.Logger
}

// NewRemote connects to the configured endpoint.
func NewRemote(cfg RemoteConfig, logger *zap.Logger) (*Remote, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("snapshot endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return NewRemoteWithClient(client, cfg.Bucket, cfg.Prefix, cfg.Region, logger), nil
}

// NewRemoteWithClient wraps an existing client.
func NewRemoteWithClient(client ObjectClient, bucket, prefix, region string, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{client: client, bucket: bucket, prefix: prefix, region: region, logger: logger}
}

func (r *Remote) key(name string) string {
	return path.Join(r.prefix, name)
}

// Upload stores the archive at localPath under prefix/<base name>, creating the bucket if
// needed, and returns the object key.
func (r *Remote) Upload(ctx context.Context, localPath string) (string, error) {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{Region: r.region}); err != nil {
			return "", fmt.Errorf("create bucket: %w", err)
		}
	}
	key := r.key(filepath.Base(localPath))
	info, err := r.client.FPutObject(ctx, r.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/zstd",
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	r.logger.Info("snapshot uploaded", zap.String("bucket", r.bucket), zap.String("key", key), zap.Int64("size", info.Size))
	return key, nil
}

// Download fetches the object key into localPath.
func (r *Remote) Download(ctx context.Context, key, localPath string) error {
	if err := r.client.FGetObject(ctx, r.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	r.logger.Info("snapshot downloaded", zap.String("key", key), zap.String("path", localPath))
	return nil
}

// List returns snapshot object keys under the prefix in lexical (and therefore time) order.
func (r *Remote) List(ctx context.Context) ([]string, error) {
	prefix := r.prefix
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	var keys []string
	for obj := range r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list snapshots: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
