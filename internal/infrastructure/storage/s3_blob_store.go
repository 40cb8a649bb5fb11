// Package storage keeps order deliverables in S3-compatible object storage.
package storage

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/editdesk/backend/internal/domain/fulfillment"
	infraconfig "github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// S3API is the part of the S3 client the blob store uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

var _ fulfillment.BlobStore = (*S3BlobStore)(nil)

// S3BlobStore implements fulfillment.BlobStore on any S3-compatible backend
// (AWS S3, MinIO, RustFS)
type S3BlobStore struct {
	client          S3API
	bucket          string
	publicURL       string
	bufferSize      int64
	downloadTimeout time.Duration
	logger          *zap.Logger
}

// S3BlobStoreOption configures an S3BlobStore
type S3BlobStoreOption func(*S3BlobStore)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) S3BlobStoreOption {
	return func(s *S3BlobStore) {
		s.logger = logger
	}
}

// WithClient replaces the S3 client
func WithClient(client S3API) S3BlobStoreOption {
	return func(s *S3BlobStore) {
		s.client = client
	}
}

// NewS3BlobStore creates an S3BlobStore from configuration
func NewS3BlobStore(cfg *infraconfig.StorageConfig, opts ...S3BlobStoreOption) (*S3BlobStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	store := &S3BlobStore{
		client: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
			o.BaseEndpoint = aws.String(endpoint)
		}),
		bucket:          cfg.Bucket,
		publicURL:       strings.TrimRight(cfg.PublicURL, "/"),
		bufferSize:      cfg.PartSize,
		downloadTimeout: cfg.DownloadTimeout,
		logger:          zap.NewNop(),
	}
	if store.publicURL == "" {
		store.publicURL = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.bufferSize <= 0 {
		store.bufferSize = 32 << 10
	}
	return store, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// Bucket returns the bucket name
func (s *S3BlobStore) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it does not exist
func (s *S3BlobStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload stores body under key and reports the bytes sent through progress
func (s *S3BlobStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress fulfillment.ProgressFunc) (fulfillment.StoredObject, error) {
	if key == "" {
		return fulfillment.StoredObject{}, errors.New("storage key is required")
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        newProgressReader(body, progress),
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fulfillment.StoredObject{}, fmt.Errorf("failed to upload object: %w", err)
	}
	s.logger.Debug("Uploaded deliverable", zap.String("key", key), zap.Int64("size", size))
	return fulfillment.StoredObject{URL: s.publicURL + "/" + key, Path: key}, nil
}

// Download writes the order's stored files to w as a zip archive. Entries are
// named after the file name below the item folder.
func (s *S3BlobStore) Download(ctx context.Context, orderID uuid.UUID, w io.Writer, include func(path string) bool) error {
	if s.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.downloadTimeout)
		defer cancel()
	}

	keys, err := s.list(ctx, fulfillment.DeliverablePrefix(orderID))
	if err != nil {
		return err
	}

	archive := newArchive(w, s.bufferSize)
	for _, key := range keys {
		if include != nil && !include(key) {
			continue
		}
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to read object %s: %w", key, err)
		}
		err = archive.add(key, out.Body)
		_ = out.Body.Close()
		if err != nil {
			return err
		}
	}
	return archive.close()
}

func (s *S3BlobStore) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// progressReader counts bytes read and reports the running total
type progressReader struct {
	r        io.Reader
	read     int64
	progress fulfillment.ProgressFunc
}

func newProgressReader(r io.Reader, progress fulfillment.ProgressFunc) io.Reader {
	if progress == nil {
		return r
	}
	return &progressReader{r: r, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.progress(p.read)
	}
	return n, err
}

// zipArchive writes entries into a zip stream and keeps entry names unique
type zipArchive struct {
	zw    *zip.Writer
	buf   []byte
	names map[string]int
}

func newArchive(w io.Writer, bufferSize int64) *zipArchive {
	return &zipArchive{
		zw:    zip.NewWriter(w),
		buf:   make([]byte, bufferSize),
		names: make(map[string]int),
	}
}

func (a *zipArchive) add(key string, body io.Reader) error {
	entry, err := a.zw.Create(a.entryName(key))
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", key, err)
	}
	if _, err := io.CopyBuffer(entry, body, a.buf); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", key, err)
	}
	return nil
}

// entryName is the base file name. Repeats of a name get a numeric suffix.
func (a *zipArchive) entryName(key string) string {
	name := path.Base(key)
	n := a.names[name]
	a.names[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
}

func (a *zipArchive) close() error {
	if err := a.zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}
