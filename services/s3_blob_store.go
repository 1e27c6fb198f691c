package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kendall-kelly/manuorder-api/apperror"
	appConfig "github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/utils"
)

// SignedURLExpiry is how long a presigned download URL stays valid
const SignedURLExpiry = time.Hour

// S3BlobStore keeps design files in a private S3 bucket
type S3BlobStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	timeout time.Duration
	now     func() time.Time
}

// NewS3BlobStore creates the S3 client from cfg. AWS_S3_ENDPOINT points the
// client at an S3 compatible server (MinIO, localstack) with path style
// addressing.
func NewS3BlobStore(ctx context.Context, cfg *appConfig.Config, optFns ...func(*s3.Options)) (*S3BlobStore, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.AWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.AWSS3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSS3Endpoint)
				o.UsePathStyle = true
			}
		},
	}
	client := s3.NewFromConfig(awsConfig, append(opts, optFns...)...)

	return &S3BlobStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.AWSS3Bucket,
		timeout: cfg.BlobTimeout,
		now:     time.Now,
	}, nil
}

func (s *S3BlobStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Put uploads content under uploads/<unix millis>-<name> and returns the key
func (s *S3BlobStore) Put(ctx context.Context, content []byte, fileName, contentType string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := fmt.Sprintf("uploads/%d-%s", s.now().UnixMilli(), utils.SafeFileName(fileName))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", apperror.Unavailable(fmt.Errorf("upload to S3: %w", err))
		}
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

// URL presigns a GET for key, valid for SignedURLExpiry. The URL is built
// per call and never stored.
func (s *S3BlobStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", apperror.NotFound("FILE_NOT_FOUND", "File not found")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = SignedURLExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return request.URL, nil
}
