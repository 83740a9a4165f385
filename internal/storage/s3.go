package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	appconfig "civicdesk/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Storage stores complaint evidence in an S3 bucket and hands back the
// public object URL that gets persisted on the complaint record.
type S3Storage struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3Storage(ctx context.Context, cfg appconfig.StorageConfig) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Storage{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// Store uploads content under a key layout of owner/year/month/uuid_name.
func (s3s *S3Storage) Store(ctx context.Context, ownerID uuid.UUID, filename string, content io.Reader, contentType string) (string, error) {
	now := time.Now()
	key := fmt.Sprintf("%s/%d/%02d/%s_%s",
		ownerID.String(),
		now.Year(),
		now.Month(),
		uuid.New().String(),
		sanitizeFilename(filename),
	)

	_, err := s3s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"owner-id":          ownerID.String(),
			"original-filename": filename,
			"upload-time":       now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s3s.bucket, s3s.region, key), nil
}

func (s3s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s3s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s3s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_")
	sanitized := replacer.Replace(filename)
	if len(sanitized) > 128 {
		sanitized = sanitized[len(sanitized)-128:]
	}
	return sanitized
}
