// Package s3images stores spoilage evidence images in an S3 compatible bucket.
package s3images

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/config"
)

// Store uploads images under a key prefix and returns their public URL.
type Store struct {
	uploader      *manager.Uploader
	bucket        string
	prefix        string
	publicBaseURL string
	logger        *zap.Logger
	now           func() time.Time
}

// NewStore builds the S3 client from cfg. Static credentials are used when
// provided, otherwise the default AWS credential chain.
func NewStore(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return newStore(client, cfg.Bucket, cfg.Prefix, publicBase, logger), nil
}

func newStore(client manager.UploadAPIClient, bucket, prefix, publicBaseURL string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		uploader:      manager.NewUploader(client),
		bucket:        bucket,
		prefix:        strings.Trim(prefix, "/"),
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:        logger,
		now:           time.Now,
	}
}

// Upload stores body under a fresh key that keeps the original extension.
func (s *Store) Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	key := path.Join(s.prefix, s.now().UTC().Format("2006/01"), uuid.NewString()+ext)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-name": name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Info("image uploaded", zap.String("bucket", s.bucket), zap.String("key", key))
	return s.publicBaseURL + "/" + key, nil
}
